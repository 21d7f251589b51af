package mode

import (
	"github.com/kfujii/agenthook/internal/trigger"
)

// automationMode executes explicit prompts and automation events. As the
// universal classification fallback it can still decline to run when the
// event carries neither.
type automationMode struct{}

func (m *automationMode) Name() Name {
	return DirectAutomation
}

func (m *automationMode) Description() string {
	return "executes an explicit prompt or scheduled/dispatched automation event"
}

func (m *automationMode) ShouldTrigger(e trigger.Event) bool {
	return e.Prompt != "" || e.IsAutomationEvent()
}

func (m *automationMode) AllowedTools() []string {
	return nil
}

func (m *automationMode) DisallowedTools() []string {
	return nil
}

func (m *automationMode) CreatesTrackingComment() bool {
	return false
}

// PrepareContext is deliberately minimal: automation runs carry no branch or
// comment bookkeeping.
func (m *automationMode) PrepareContext(e trigger.Event) Context {
	return Context{
		Mode:  DirectAutomation,
		Event: e,
	}
}
