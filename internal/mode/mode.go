// Package mode selects exactly one execution policy for an inbound trigger
// event. The mode set is closed and statically constructed; classification is
// total and deterministic.
package mode

import (
	"github.com/kfujii/agenthook/internal/trigger"
)

// Name identifies one of the fixed execution modes.
type Name string

const (
	// InteractiveMention responds to a trigger phrase, assignment, or label
	// on an issue or pull request.
	InteractiveMention Name = "interactive-mention"
	// DirectAutomation executes an explicit prompt or automation event.
	// It is the universal classification fallback.
	DirectAutomation Name = "direct-automation"
	// Review handles pull request lifecycle events (opened, synchronize,
	// reopened) with code review tooling.
	Review Name = "review"
	// RemoteDispatch handles external repository_dispatch triggers.
	RemoteDispatch Name = "remote-dispatch"
)

// TriggerConfig carries the trigger-matching knobs shared by the modes.
type TriggerConfig struct {
	// Phrase is matched as an exact, case-sensitive substring of entity
	// text, including inside code fences.
	Phrase string
	// Assignee selects interactive-mention mode when an issue is assigned
	// to this user.
	Assignee string
	// Label selects interactive-mention mode when this label is applied.
	Label string
}

// Context is the minimal state the downstream prompt builder needs. Modes
// other than interactive-mention deliberately fill only Mode and Event.
type Context struct {
	Mode  Name
	Event trigger.Event

	// Interactive-mention bookkeeping.
	TriggerPhrase   string
	CommentID       int64
	TrackingComment bool
}

// Mode is one execution policy. Implementations are immutable after
// registry construction.
type Mode interface {
	Name() Name
	Description() string

	// ShouldTrigger is the secondary gate applied after classification: a
	// classified mode may still decline to run (for example
	// direct-automation with neither a prompt nor an automation event).
	ShouldTrigger(e trigger.Event) bool

	// AllowedTools and DisallowedTools are the mode's contribution to the
	// assistant's tool policy.
	AllowedTools() []string
	DisallowedTools() []string

	// CreatesTrackingComment reports whether the mode posts a progress
	// comment on the triggering entity. True only for interactive-mention.
	CreatesTrackingComment() bool

	// PrepareContext produces the state the prompt builder needs.
	PrepareContext(e trigger.Event) Context
}
