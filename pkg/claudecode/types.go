package claudecode

import "encoding/json"

// PermissionMode represents the permission handling mode for tools.
type PermissionMode string

const (
	PermissionModeDefault           PermissionMode = "default"
	PermissionModeAcceptEdits       PermissionMode = "acceptEdits"
	PermissionModeBypassPermissions PermissionMode = "bypassPermissions"
)

// McpServerConfig represents MCP server configuration passed to the CLI.
type McpServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options configures a single assistant invocation.
type Options struct {
	// Prompt is the instruction passed to the assistant.
	Prompt string

	// Model selects the model; empty uses the CLI default.
	Model string

	// MaxTurns limits the number of conversation turns (0 = unlimited).
	MaxTurns int

	// Resume continues from a specific session ID.
	Resume string

	// ContinueConversation continues the most recent conversation.
	ContinueConversation bool

	// SystemPrompt overrides the default system prompt.
	SystemPrompt string

	// AppendSystemPrompt is additional text appended to the system prompt.
	AppendSystemPrompt string

	// AllowedTools and DisallowedTools are the mode's tool policy.
	AllowedTools    []string
	DisallowedTools []string

	// PermissionMode controls how tool permissions are handled.
	PermissionMode PermissionMode

	// McpServers is a map of MCP server configurations.
	McpServers map[string]McpServerConfig

	// Cwd is the working directory for the assistant process.
	Cwd string

	// Env is appended to the inherited process environment.
	Env []string
}

// Result carries the metadata of the CLI's terminal "result" message.
type Result struct {
	Subtype      string   `json:"subtype"`
	DurationMs   int      `json:"duration_ms"`
	IsError      bool     `json:"is_error"`
	NumTurns     int      `json:"num_turns"`
	SessionID    string   `json:"session_id"`
	TotalCostUSD *float64 `json:"total_cost_usd,omitempty"`
	Output       *string  `json:"result,omitempty"`
}

// ParseResult decodes a stream-json line into a Result. It returns false for
// any line that is not a well-formed result message.
func ParseResult(line string) (Result, bool) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(line), &head); err != nil || head.Type != "result" {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal([]byte(line), &res); err != nil {
		return Result{}, false
	}
	return res, true
}
