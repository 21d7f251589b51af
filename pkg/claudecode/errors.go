package claudecode

import "fmt"

// CLIConnectionError represents a failure to start or talk to the CLI process.
type CLIConnectionError struct {
	Message string
}

func (e *CLIConnectionError) Error() string {
	return e.Message
}

// NewCLIConnectionError creates a new CLIConnectionError.
func NewCLIConnectionError(message string) *CLIConnectionError {
	return &CLIConnectionError{Message: message}
}

// CLINotFoundError is returned when the assistant CLI binary cannot be located.
type CLINotFoundError struct {
	CLIConnectionError
	CLIPath string
}

// NewCLINotFoundError creates a new CLINotFoundError.
func NewCLINotFoundError(cliPath string) *CLINotFoundError {
	message := "Claude Code CLI not found. Please install it with: npm install -g @anthropic-ai/claude-code"
	if cliPath != "" {
		message = fmt.Sprintf("Claude Code CLI not found at '%s'. Please install it with: npm install -g @anthropic-ai/claude-code", cliPath)
	}
	return &CLINotFoundError{
		CLIConnectionError: CLIConnectionError{Message: message},
		CLIPath:            cliPath,
	}
}
