package progress

// EventType discriminates the workflow lifecycle events.
type EventType string

const (
	EventWorkflowInitializing EventType = "workflow_initializing"
	EventAssistantStarting    EventType = "claude_starting"
	EventAssistantComplete    EventType = "claude_complete"
	EventWorkflowFailed       EventType = "workflow_failed"
)

// Phase names the run phase in which a failure occurred.
type Phase string

const (
	PhaseInitialization Phase = "initialization"
	PhaseExecution      Phase = "execution"
)

// envelope is the wire format shared by all lifecycle events.
type envelope struct {
	Timestamp string    `json:"timestamp"`
	EventType EventType `json:"event_type"`
	Data      any       `json:"data"`
}

type initializingData struct {
	Branch     string `json:"branch"`
	BaseBranch string `json:"base_branch"`
	SessionID  string `json:"session_id,omitempty"`
}

type startingData struct{}

type completeData struct {
	ExitCode   int   `json:"exit_code"`
	DurationMs int64 `json:"duration_ms"`
}

type failedData struct {
	Error failedError `json:"error"`
}

type failedError struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
