// Package trigger models the inbound GitHub events that can start a run.
package trigger

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind is the closed enumeration of supported event kinds.
type Kind string

const (
	KindIssueComment       Kind = "issue_comment"
	KindPRReviewComment    Kind = "pull_request_review_comment"
	KindPRReview           Kind = "pull_request_review"
	KindIssues             Kind = "issues"
	KindPullRequest        Kind = "pull_request"
	KindSchedule           Kind = "schedule"
	KindWorkflowDispatch   Kind = "workflow_dispatch"
	KindRepositoryDispatch Kind = "repository_dispatch"
)

var knownKinds = map[Kind]bool{
	KindIssueComment:       true,
	KindPRReviewComment:    true,
	KindPRReview:           true,
	KindIssues:             true,
	KindPullRequest:        true,
	KindSchedule:           true,
	KindWorkflowDispatch:   true,
	KindRepositoryDispatch: true,
}

// ValidKind reports whether s names a supported event kind.
func ValidKind(s string) bool {
	return knownKinds[Kind(s)]
}

// Repository identifies the repository the event belongs to.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Event is the classification input for mode detection. Exactly one
// execution mode is selected per event.
type Event struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Action     string     `json:"action,omitempty"`
	Prompt     string     `json:"prompt,omitempty"`
	Actor      string     `json:"actor,omitempty"`
	Repo       Repository `json:"repository"`
	Title      string     `json:"title,omitempty"`
	Body       string     `json:"body,omitempty"`
	Assignee   string     `json:"assignee,omitempty"`
	Label      string     `json:"label,omitempty"`
	Number     int        `json:"number,omitempty"`
	IsPR       bool       `json:"is_pr,omitempty"`
	CommentID  int64      `json:"comment_id,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
}

// New constructs an event with a fresh ULID and capture timestamp.
func New(kind Kind) Event {
	return Event{
		ID:         ulid.Make().String(),
		Kind:       kind,
		ReceivedAt: time.Now().UTC(),
	}
}

// IsEntityEvent reports whether the event is tied to an issue, PR, comment,
// or review, i.e. carries entity text that can contain a trigger phrase.
func (e Event) IsEntityEvent() bool {
	switch e.Kind {
	case KindIssueComment, KindPRReviewComment, KindPRReview, KindIssues, KindPullRequest:
		return true
	default:
		return false
	}
}

// IsAutomationEvent reports whether the event is a non-interactive trigger
// (scheduled or dispatched) rather than human entity activity.
func (e Event) IsAutomationEvent() bool {
	switch e.Kind {
	case KindSchedule, KindWorkflowDispatch, KindRepositoryDispatch:
		return true
	default:
		return false
	}
}

// EntityText returns the searchable text of the event: comment or entity
// body plus title. Trigger-phrase matching runs over this text verbatim,
// including inside code fences.
func (e Event) EntityText() string {
	if e.Title == "" {
		return e.Body
	}
	return e.Title + "\n" + e.Body
}

// ContainsPhrase reports whether the entity text contains phrase as an exact,
// case-sensitive substring.
func (e Event) ContainsPhrase(phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(e.EntityText(), phrase)
}
