package mode

import (
	"github.com/kfujii/agenthook/internal/trigger"
)

// reviewMode handles pull request lifecycle events with code review tooling.
type reviewMode struct{}

func (m *reviewMode) Name() Name {
	return Review
}

func (m *reviewMode) Description() string {
	return "reviews pull requests on opened, synchronize, and reopened events"
}

func (m *reviewMode) ShouldTrigger(e trigger.Event) bool {
	return e.Kind == trigger.KindPullRequest && reviewActions[e.Action]
}

func (m *reviewMode) AllowedTools() []string {
	return []string{
		"mcp__github_inline_comment__create_inline_comment",
		"mcp__github_review__submit_pr_review",
	}
}

func (m *reviewMode) DisallowedTools() []string {
	// Review runs read and comment; they never modify the working tree.
	return []string{"Edit", "Write", "NotebookEdit"}
}

func (m *reviewMode) CreatesTrackingComment() bool {
	return false
}

func (m *reviewMode) PrepareContext(e trigger.Event) Context {
	return Context{
		Mode:  Review,
		Event: e,
	}
}
