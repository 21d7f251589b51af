package mode

import (
	"log/slog"

	"github.com/kfujii/agenthook/internal/trigger"
)

// Registry holds the closed mode set. Construct once at process start.
type Registry struct {
	cfg   TriggerConfig
	modes map[Name]Mode
}

func NewRegistry(cfg TriggerConfig) *Registry {
	r := &Registry{cfg: cfg, modes: make(map[Name]Mode)}
	for _, m := range []Mode{
		&mentionMode{cfg: cfg},
		&automationMode{},
		&reviewMode{},
		&remoteMode{},
	} {
		r.modes[m.Name()] = m
	}
	return r
}

// Get returns the mode registered under name.
func (r *Registry) Get(name Name) (Mode, bool) {
	m, ok := r.modes[name]
	return m, ok
}

// reviewActions are the pull request lifecycle actions handled by review mode.
var reviewActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

// Classify maps an event to exactly one mode. It is total: every
// representable event yields a mode, with direct-automation as the
// universal fallback. First match wins.
func (r *Registry) Classify(e trigger.Event) Mode {
	// An explicit instruction always overrides trigger-phrase scanning.
	if e.Prompt != "" {
		return r.modes[DirectAutomation]
	}
	if e.Kind == trigger.KindPullRequest && reviewActions[e.Action] {
		return r.modes[Review]
	}
	if e.IsEntityEvent() && e.ContainsPhrase(r.cfg.Phrase) {
		return r.modes[InteractiveMention]
	}
	if e.Kind == trigger.KindIssues && e.Action == "assigned" &&
		r.cfg.Assignee != "" && e.Assignee == r.cfg.Assignee {
		return r.modes[InteractiveMention]
	}
	if e.Kind == trigger.KindIssues && e.Action == "labeled" &&
		r.cfg.Label != "" && e.Label == r.cfg.Label {
		return r.modes[InteractiveMention]
	}
	if e.Kind == trigger.KindRepositoryDispatch {
		return r.modes[RemoteDispatch]
	}
	return r.modes[DirectAutomation]
}

// Resolve honors an explicit mode override when it names a known mode.
// An unrecognized override falls back to classification, never an error.
func (r *Registry) Resolve(override string, e trigger.Event) Mode {
	if override != "" {
		if m, ok := r.modes[Name(override)]; ok {
			return m
		}
		slog.Warn("unknown mode override, falling back to classification", "override", override)
	}
	return r.Classify(e)
}
