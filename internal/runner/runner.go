// Package runner orchestrates a single assistant run: mode selection,
// optional conversation resumption, process execution, output relay, and
// transcript archival.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kfujii/agenthook/internal/archive"
	"github.com/kfujii/agenthook/internal/config"
	"github.com/kfujii/agenthook/internal/mode"
	"github.com/kfujii/agenthook/internal/progress"
	"github.com/kfujii/agenthook/internal/relay"
	"github.com/kfujii/agenthook/internal/resume"
	"github.com/kfujii/agenthook/internal/token"
	"github.com/kfujii/agenthook/internal/trigger"
	"github.com/kfujii/agenthook/pkg/claudecode"
	"github.com/kfujii/agenthook/pkg/clog"
)

// Runner executes assistant runs for trigger events. It is safe to reuse
// across runs; per-run state (relay, process) is created inside Run.
type Runner struct {
	env      *config.Env
	settings *config.Settings
	registry *mode.Registry
	reporter *progress.Reporter
	resolver *resume.Resolver
	archiver *archive.Archiver
	tokens   token.Provider
}

func New(
	env *config.Env,
	settings *config.Settings,
	registry *mode.Registry,
	reporter *progress.Reporter,
	resolver *resume.Resolver,
	archiver *archive.Archiver,
	tokens token.Provider,
) *Runner {
	return &Runner{
		env:      env,
		settings: settings,
		registry: registry,
		reporter: reporter,
		resolver: resolver,
		archiver: archiver,
		tokens:   tokens,
	}
}

// Options adjusts a single run.
type Options struct {
	// ModeOverride forces a mode by name. An unknown name falls back to
	// classification.
	ModeOverride string
	// SessionID resumes a specific prior assistant session. Takes
	// precedence over the resume endpoint.
	SessionID string
	// Cwd is the working directory for the assistant process.
	Cwd string
	// Branch and BaseBranch describe the prepared working branch.
	Branch     string
	BaseBranch string
}

// Run executes one assistant run for e. A non-triggering event is a no-op,
// not an error. Relay and lifecycle reporting failures never surface here;
// only setup and process failures do.
func (r *Runner) Run(ctx context.Context, e trigger.Event, opts Options) error {
	runID := ulid.Make().String()
	ctx = clog.ContextWithSlog(ctx)
	clog.AddAttribute(ctx, "run_id", runID)

	m := r.registry.Resolve(opts.ModeOverride, e)
	clog.AddAttribute(ctx, "mode", string(m.Name()))

	if !m.ShouldTrigger(e) {
		slog.InfoContext(ctx, "event does not trigger a run", "kind", e.Kind, "action", e.Action)
		return nil
	}

	mctx := m.PrepareContext(e)
	slog.InfoContext(ctx, "starting run",
		"kind", e.Kind, "action", e.Action, "actor", e.Actor, "repository", e.Repo.FullName())

	sessionID, resumedBranch := r.resolveResume(ctx, opts.SessionID)
	branch := opts.Branch
	if branch == "" {
		branch = resumedBranch
	}
	r.reporter.ReportWorkflowInitialized(branch, opts.BaseBranch, sessionID)

	out := relay.New(relay.Config{
		Endpoint:       r.env.ProgressEndpoint,
		Headers:        r.env.StaticHeaders,
		BatchSize:      r.env.BatchSize,
		IdleTimeout:    r.env.BatchIdleTimeout,
		RequestTimeout: r.env.RequestTimeout,
		TokenLifetime:  r.env.TokenLifetime,
		TokenProvider:  r.tokens,
	})
	defer out.Close(context.WithoutCancel(ctx))

	ccOpts := r.buildOptions(mctx, sessionID, opts.Cwd)

	startedAt := time.Now()
	r.reporter.ReportAssistantStarting()

	proc, err := claudecode.Start(ctx, ccOpts)
	if err != nil {
		r.reporter.ReportWorkflowFailed(progress.PhaseInitialization, err, "spawn_failed")
		return fmt.Errorf("failed to start assistant for run %s: %w", runID, err)
	}
	slog.DebugContext(ctx, "assistant started", "command", proc.CommandLine())

	// On cancellation, interrupt the assistant so it can emit its final
	// result line. The line channel closes once the process lets go of
	// stdout, ending the pump below.
	pumpDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := proc.Stop(); err != nil {
				slog.WarnContext(ctx, "failed to stop assistant", "error", err)
			}
		case <-pumpDone:
		}
	}()

	var transcript []string
	var result claudecode.Result
	var haveResult bool
	for line := range proc.Lines() {
		transcript = append(transcript, line)
		if json.Valid([]byte(line)) {
			out.AddChunk(ctx, line)
		}
		if res, ok := claudecode.ParseResult(line); ok {
			result = res
			haveResult = true
		}
	}

	close(pumpDone)

	exitCode, waitErr := proc.Wait()
	duration := time.Since(startedAt)
	out.Close(context.WithoutCancel(ctx))

	if waitErr != nil {
		r.reporter.ReportWorkflowFailed(progress.PhaseExecution, waitErr, "process_failed")
	} else {
		r.reporter.ReportAssistantComplete(exitCode, duration)
	}

	r.archiveRun(ctx, archive.Manifest{
		RunID:      runID,
		Mode:       string(m.Name()),
		EventKind:  string(e.Kind),
		Repository: e.Repo.FullName(),
		SessionID:  resultSessionID(result, haveResult, sessionID),
		ExitCode:   exitCode,
		DurationMs: duration.Milliseconds(),
		StartedAt:  startedAt.UTC(),
		FinishedAt: startedAt.Add(duration).UTC(),
	}, transcript)

	if waitErr != nil {
		return fmt.Errorf("assistant run %s failed: %w", runID, waitErr)
	}
	slog.InfoContext(ctx, "run complete", "exit_code", exitCode, "duration", duration)
	return nil
}

// resolveResume picks the session to continue: an explicit session ID wins,
// then the resume endpoint, then a fresh conversation.
func (r *Runner) resolveResume(ctx context.Context, explicit string) (sessionID, branch string) {
	if explicit != "" {
		return explicit, ""
	}
	state := r.resolver.TryResume(ctx, r.env.ResumeEndpoint)
	if state == nil {
		return "", ""
	}
	// The endpoint returns a raw transcript rather than a session handle;
	// the session ID, when archived, rides in the first entry.
	var head struct {
		SessionID string `json:"session_id"`
	}
	if len(state.Messages) > 0 {
		_ = json.Unmarshal(state.Messages[0], &head)
	}
	return head.SessionID, state.Branch
}

func (r *Runner) buildOptions(mctx mode.Context, sessionID, cwd string) claudecode.Options {
	m, _ := r.registry.Get(mctx.Mode)

	allowed := append([]string(nil), m.AllowedTools()...)
	allowed = append(allowed, r.settings.AllowedTools...)
	disallowed := append([]string(nil), m.DisallowedTools()...)
	disallowed = append(disallowed, r.settings.DisallowedTools...)

	return claudecode.Options{
		Prompt:          buildPrompt(mctx),
		Model:           r.settings.Model,
		MaxTurns:        r.settings.MaxTurns,
		Resume:          sessionID,
		AllowedTools:    allowed,
		DisallowedTools: disallowed,
		PermissionMode:  claudecode.PermissionMode(r.settings.PermissionMode),
		Cwd:             cwd,
	}
}

// buildPrompt renders the mode context into the assistant instruction. An
// explicit prompt always wins; entity modes fall back to the entity text.
func buildPrompt(mctx mode.Context) string {
	e := mctx.Event
	if e.Prompt != "" {
		return e.Prompt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", e.Repo.FullName())
	if e.Number != 0 {
		entity := "Issue"
		if e.IsPR {
			entity = "Pull request"
		}
		fmt.Fprintf(&b, "%s #%d: %s\n", entity, e.Number, e.Title)
	}
	if e.Actor != "" {
		fmt.Fprintf(&b, "Triggered by: %s\n", e.Actor)
	}
	b.WriteString("\n")

	switch mctx.Mode {
	case mode.Review:
		b.WriteString("Review the changes in this pull request and leave inline comments where warranted.\n")
	default:
		if e.Body != "" {
			b.WriteString(e.Body)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (r *Runner) archiveRun(ctx context.Context, m archive.Manifest, transcript []string) {
	// Archival is best effort; a failed write never fails the run.
	actx := context.WithoutCancel(ctx)
	if err := r.archiver.WriteTranscript(actx, m.RunID, transcript); err != nil {
		slog.WarnContext(ctx, "failed to archive transcript", "error", err)
	}
	if err := r.archiver.WriteManifest(actx, m); err != nil {
		slog.WarnContext(ctx, "failed to archive manifest", "error", err)
	}
}

func resultSessionID(res claudecode.Result, have bool, fallback string) string {
	if have && res.SessionID != "" {
		return res.SessionID
	}
	return fallback
}
