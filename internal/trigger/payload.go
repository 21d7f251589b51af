package trigger

import (
	"encoding/json"
	"fmt"
)

type payloadUser struct {
	Login string `json:"login"`
}

type payloadEntity struct {
	Number      int          `json:"number"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	User        payloadUser  `json:"user"`
	Assignee    *payloadUser `json:"assignee"`
	PRInComment *struct{}    `json:"pull_request"` // present when an issue payload is actually a PR
}

type payload struct {
	Action  string `json:"action"`
	Comment *struct {
		ID   int64       `json:"id"`
		Body string      `json:"body"`
		User payloadUser `json:"user"`
	} `json:"comment"`
	Review *struct {
		ID   int64       `json:"id"`
		Body string      `json:"body"`
		User payloadUser `json:"user"`
	} `json:"review"`
	Issue       *payloadEntity `json:"issue"`
	PullRequest *payloadEntity `json:"pull_request"`
	Label       *struct {
		Name string `json:"name"`
	} `json:"label"`
	Assignee   *payloadUser `json:"assignee"`
	Repository *struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	Sender *payloadUser `json:"sender"`
	// repository_dispatch carries caller data here.
	ClientPayload *struct {
		Prompt string `json:"prompt"`
	} `json:"client_payload"`
	// workflow_dispatch carries form inputs here.
	Inputs *struct {
		Prompt string `json:"prompt"`
	} `json:"inputs"`
}

// ParsePayload builds an Event from a raw GitHub webhook payload body.
// Unknown kinds are rejected; unknown payload fields are ignored.
func ParsePayload(kind Kind, raw []byte) (Event, error) {
	if !ValidKind(string(kind)) {
		return Event{}, fmt.Errorf("unsupported event kind %q", kind)
	}

	var p payload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return Event{}, fmt.Errorf("failed to parse %s payload: %w", kind, err)
		}
	}

	e := New(kind)
	e.Action = p.Action
	if p.Repository != nil {
		e.Repo = Repository{Owner: p.Repository.Owner.Login, Name: p.Repository.Name}
	}
	if p.Sender != nil {
		e.Actor = p.Sender.Login
	}

	entity := p.Issue
	if entity == nil {
		entity = p.PullRequest
	}
	if entity != nil {
		e.Number = entity.Number
		e.Title = entity.Title
		e.Body = entity.Body
		e.IsPR = p.PullRequest != nil || entity.PRInComment != nil
		if entity.Assignee != nil {
			e.Assignee = entity.Assignee.Login
		}
	}

	// Comment and review bodies replace the entity body: the trigger phrase
	// must appear in the text that caused the event, not in stale entity text.
	if p.Comment != nil {
		e.Body = p.Comment.Body
		e.CommentID = p.Comment.ID
		if e.Actor == "" {
			e.Actor = p.Comment.User.Login
		}
	}
	if p.Review != nil {
		e.Body = p.Review.Body
		e.CommentID = p.Review.ID
		if e.Actor == "" {
			e.Actor = p.Review.User.Login
		}
	}

	if p.Assignee != nil && e.Assignee == "" {
		e.Assignee = p.Assignee.Login
	}
	if p.Label != nil {
		e.Label = p.Label.Name
	}
	if p.ClientPayload != nil {
		e.Prompt = p.ClientPayload.Prompt
	}
	if p.Inputs != nil && p.Inputs.Prompt != "" {
		e.Prompt = p.Inputs.Prompt
	}

	return e, nil
}
