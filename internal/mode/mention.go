package mode

import (
	"github.com/kfujii/agenthook/internal/trigger"
)

// mentionMode handles interactive requests: a trigger phrase in entity text,
// an assignment, or a label. It is the only mode that posts a tracking
// comment on the triggering entity.
type mentionMode struct {
	cfg TriggerConfig
}

func (m *mentionMode) Name() Name {
	return InteractiveMention
}

func (m *mentionMode) Description() string {
	return "responds to a trigger phrase, assignment, or label on an issue or pull request"
}

func (m *mentionMode) ShouldTrigger(e trigger.Event) bool {
	if e.IsEntityEvent() && e.ContainsPhrase(m.cfg.Phrase) {
		return true
	}
	if e.Kind == trigger.KindIssues && e.Action == "assigned" &&
		m.cfg.Assignee != "" && e.Assignee == m.cfg.Assignee {
		return true
	}
	if e.Kind == trigger.KindIssues && e.Action == "labeled" &&
		m.cfg.Label != "" && e.Label == m.cfg.Label {
		return true
	}
	return false
}

func (m *mentionMode) AllowedTools() []string {
	return []string{"mcp__github_comment__update_claude_comment"}
}

func (m *mentionMode) DisallowedTools() []string {
	return nil
}

func (m *mentionMode) CreatesTrackingComment() bool {
	return true
}

func (m *mentionMode) PrepareContext(e trigger.Event) Context {
	return Context{
		Mode:            InteractiveMention,
		Event:           e,
		TriggerPhrase:   m.cfg.Phrase,
		CommentID:       e.CommentID,
		TrackingComment: true,
	}
}
