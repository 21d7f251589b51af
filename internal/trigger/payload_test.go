package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayloadIssueComment(t *testing.T) {
	raw := []byte(`{
		"action": "created",
		"issue": {
			"number": 12,
			"title": "Crash on startup",
			"body": "stale issue text",
			"user": {"login": "alice"}
		},
		"comment": {
			"id": 9001,
			"body": "@claude can you reproduce this?",
			"user": {"login": "bob"}
		},
		"repository": {"name": "widgets", "owner": {"login": "acme"}},
		"sender": {"login": "bob"}
	}`)

	e, err := ParsePayload(KindIssueComment, raw)
	require.NoError(t, err)

	assert.Equal(t, KindIssueComment, e.Kind)
	assert.Equal(t, "created", e.Action)
	assert.Equal(t, 12, e.Number)
	assert.Equal(t, "Crash on startup", e.Title)
	// The comment body replaces the issue body for phrase matching.
	assert.Equal(t, "@claude can you reproduce this?", e.Body)
	assert.Equal(t, int64(9001), e.CommentID)
	assert.Equal(t, "bob", e.Actor)
	assert.Equal(t, "acme/widgets", e.Repo.FullName())
	assert.False(t, e.IsPR)
}

func TestParsePayloadCommentOnPR(t *testing.T) {
	raw := []byte(`{
		"action": "created",
		"issue": {
			"number": 7,
			"title": "Add caching",
			"body": "pr description",
			"pull_request": {}
		},
		"comment": {"id": 1, "body": "@claude rebase please", "user": {"login": "carol"}}
	}`)

	e, err := ParsePayload(KindIssueComment, raw)
	require.NoError(t, err)
	assert.True(t, e.IsPR)
	assert.Equal(t, "carol", e.Actor)
}

func TestParsePayloadPullRequest(t *testing.T) {
	raw := []byte(`{
		"action": "opened",
		"pull_request": {
			"number": 33,
			"title": "Refactor parser",
			"body": "@claude mentioned but irrelevant",
			"user": {"login": "dave"}
		},
		"sender": {"login": "dave"}
	}`)

	e, err := ParsePayload(KindPullRequest, raw)
	require.NoError(t, err)
	assert.Equal(t, "opened", e.Action)
	assert.Equal(t, 33, e.Number)
	assert.True(t, e.IsPR)
}

func TestParsePayloadReview(t *testing.T) {
	raw := []byte(`{
		"action": "submitted",
		"pull_request": {"number": 5, "title": "t", "body": "pr body"},
		"review": {"id": 77, "body": "@claude address my comments", "user": {"login": "erin"}}
	}`)

	e, err := ParsePayload(KindPRReview, raw)
	require.NoError(t, err)
	assert.Equal(t, "@claude address my comments", e.Body)
	assert.Equal(t, int64(77), e.CommentID)
	assert.Equal(t, "erin", e.Actor)
}

func TestParsePayloadAssignedAndLabeled(t *testing.T) {
	raw := []byte(`{
		"action": "assigned",
		"issue": {"number": 2, "title": "t", "body": "b", "assignee": {"login": "claude-bot"}},
		"assignee": {"login": "claude-bot"}
	}`)
	e, err := ParsePayload(KindIssues, raw)
	require.NoError(t, err)
	assert.Equal(t, "claude-bot", e.Assignee)

	raw = []byte(`{
		"action": "labeled",
		"issue": {"number": 2, "title": "t", "body": "b"},
		"label": {"name": "claude"}
	}`)
	e, err = ParsePayload(KindIssues, raw)
	require.NoError(t, err)
	assert.Equal(t, "claude", e.Label)
}

func TestParsePayloadDispatchPrompts(t *testing.T) {
	raw := []byte(`{"client_payload": {"prompt": "rebuild the docs"}}`)
	e, err := ParsePayload(KindRepositoryDispatch, raw)
	require.NoError(t, err)
	assert.Equal(t, "rebuild the docs", e.Prompt)

	raw = []byte(`{"inputs": {"prompt": "run nightly triage"}}`)
	e, err = ParsePayload(KindWorkflowDispatch, raw)
	require.NoError(t, err)
	assert.Equal(t, "run nightly triage", e.Prompt)
}

func TestParsePayloadEmptyBody(t *testing.T) {
	e, err := ParsePayload(KindSchedule, nil)
	require.NoError(t, err)
	assert.Equal(t, KindSchedule, e.Kind)
	assert.NotEmpty(t, e.ID)
}

func TestParsePayloadMalformed(t *testing.T) {
	_, err := ParsePayload(KindIssues, []byte("{nope"))
	assert.Error(t, err)
}

func TestParsePayloadUnknownKind(t *testing.T) {
	_, err := ParsePayload(Kind("deployment_status"), []byte(`{}`))
	assert.Error(t, err)
}
