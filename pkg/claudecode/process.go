// Package claudecode spawns the Claude Code CLI as a subprocess and streams
// its stream-json stdout line by line.
package claudecode

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kfujii/agenthook/pkg/shellformat"
)

const stopGracePeriod = 5 * time.Second

// Process is a running assistant CLI invocation. Stdout lines are delivered
// on Lines(); stderr is consumed and logged at debug level.
type Process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	lines  chan string
	wg     sync.WaitGroup
	mu     sync.Mutex
	argv   []string
}

// Start locates the CLI binary, builds the argument list from opts, and
// starts the process. The returned Process streams stdout lines until EOF.
func Start(ctx context.Context, opts Options) (*Process, error) {
	cliPath, err := findCLI()
	if err != nil {
		return nil, err
	}

	args := buildArgs(opts)
	p := &Process{
		cmd:   exec.CommandContext(ctx, cliPath, args...),
		lines: make(chan string, 64),
		argv:  append([]string{cliPath}, args...),
	}

	// Context cancellation interrupts rather than kills, giving the CLI a
	// chance to flush its final result line. WaitDelay escalates to SIGKILL.
	p.cmd.Cancel = func() error {
		return p.cmd.Process.Signal(os.Interrupt)
	}
	p.cmd.WaitDelay = stopGracePeriod

	p.cmd.Env = append(os.Environ(), "CLAUDE_CODE_ENTRYPOINT=agenthook")
	p.cmd.Env = append(p.cmd.Env, opts.Env...)
	if opts.Cwd != "" {
		p.cmd.Dir = opts.Cwd
	}

	p.stdout, err = p.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	p.stderr, err = p.cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return nil, NewCLIConnectionError(fmt.Sprintf("failed to start CLI process: %v", err))
	}

	slog.Debug("assistant process started", "command", shellformat.Command(p.argv))

	p.wg.Add(2)
	go p.readStdout()
	go p.readStderr()

	return p, nil
}

// Lines returns the channel of non-empty stdout lines. It is closed when the
// process's stdout reaches EOF.
func (p *Process) Lines() <-chan string {
	return p.lines
}

// CommandLine renders the spawned command for logs.
func (p *Process) CommandLine() string {
	return shellformat.Command(p.argv)
}

// Wait blocks until the process exits and returns its exit code. The line
// channel is drained and closed before Wait returns.
func (p *Process) Wait() (int, error) {
	p.wg.Wait()
	err := p.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		// cmd.Wait reports the context error even when the interrupted
		// process exited cleanly. The process is gone either way, so
		// surface its actual exit code.
		if p.cmd.ProcessState != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return p.cmd.ProcessState.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

// Stop requests graceful termination (SIGINT), escalating to SIGKILL after a
// grace period. It is safe to call concurrently with Wait.
func (p *Process) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = p.cmd.Process.Kill()
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		_ = p.cmd.Process.Kill()
	}
	return nil
}

func buildArgs(opts Options) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
	}

	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", fmt.Sprintf("%d", opts.MaxTurns))
	}
	if opts.Resume != "" {
		args = append(args, "--resume", opts.Resume)
	}
	if opts.ContinueConversation {
		args = append(args, "--continue")
	}
	if opts.SystemPrompt != "" {
		args = append(args, "--system-prompt", opts.SystemPrompt)
	}
	if opts.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", opts.AppendSystemPrompt)
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	if len(opts.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(opts.DisallowedTools, ","))
	}
	switch opts.PermissionMode {
	case PermissionModeAcceptEdits:
		args = append(args, "--permission-mode", "acceptEdits")
	case PermissionModeBypassPermissions:
		args = append(args, "--permission-mode", "bypassPermissions")
	}
	if len(opts.McpServers) > 0 {
		cfg := map[string]any{"mcpServers": opts.McpServers}
		data, _ := json.Marshal(cfg)
		args = append(args, "--mcp-config", string(data))
	}

	args = append(args, opts.Prompt)
	return args
}

func (p *Process) readStdout() {
	defer p.wg.Done()
	defer close(p.lines)

	scanner := bufio.NewScanner(p.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max line size

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.lines <- line
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		slog.Warn("assistant stdout scan failed", "error", err)
	}
}

func (p *Process) readStderr() {
	defer p.wg.Done()

	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		slog.Debug("assistant stderr", "line", line)
	}
}

// findCLI attempts to locate the Claude CLI binary.
func findCLI() (string, error) {
	if path, err := exec.LookPath("claude"); err == nil {
		return path, nil
	}

	commonPaths := []string{
		filepath.Join(os.Getenv("HOME"), ".npm", "bin", "claude"),
		filepath.Join(os.Getenv("HOME"), "node_modules", ".bin", "claude"),
		filepath.Join(os.Getenv("HOME"), ".local", "bin", "claude"),
		"/usr/local/bin/claude",
		"/usr/bin/claude",
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", NewCLINotFoundError("")
}
