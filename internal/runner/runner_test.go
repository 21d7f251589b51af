package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfujii/agenthook/internal/archive"
	"github.com/kfujii/agenthook/internal/config"
	"github.com/kfujii/agenthook/internal/mode"
	"github.com/kfujii/agenthook/internal/progress"
	"github.com/kfujii/agenthook/internal/resume"
	"github.com/kfujii/agenthook/internal/token"
	"github.com/kfujii/agenthook/internal/trigger"
	"github.com/kfujii/agenthook/pkg/storage"
)

func newTestRunner(t *testing.T, env *config.Env) *Runner {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	registry := mode.NewRegistry(mode.TriggerConfig{Phrase: "@claude"})
	reporter := progress.NewReporter(progress.Config{})
	return New(env, &config.Settings{}, registry, reporter, resume.NewResolver(), archive.NewArchiver(store), token.Static(""))
}

func TestBuildPromptPrefersExplicitPrompt(t *testing.T) {
	e := trigger.New(trigger.KindRepositoryDispatch)
	e.Prompt = "rebuild the docs"
	e.Body = "ignored"

	got := buildPrompt(mode.Context{Mode: mode.DirectAutomation, Event: e})
	assert.Equal(t, "rebuild the docs", got)
}

func TestBuildPromptEntityFallback(t *testing.T) {
	e := trigger.New(trigger.KindIssueComment)
	e.Repo = trigger.Repository{Owner: "acme", Name: "widgets"}
	e.Number = 12
	e.Title = "Crash on startup"
	e.Actor = "alice"
	e.Body = "@claude can you look into this"

	got := buildPrompt(mode.Context{Mode: mode.InteractiveMention, Event: e})
	assert.Contains(t, got, "Repository: acme/widgets")
	assert.Contains(t, got, "Issue #12: Crash on startup")
	assert.Contains(t, got, "Triggered by: alice")
	assert.Contains(t, got, "@claude can you look into this")
}

func TestBuildPromptReviewMode(t *testing.T) {
	e := trigger.New(trigger.KindPullRequest)
	e.Repo = trigger.Repository{Owner: "acme", Name: "widgets"}
	e.Number = 7
	e.IsPR = true
	e.Title = "Refactor parser"
	e.Body = "long pr description"

	got := buildPrompt(mode.Context{Mode: mode.Review, Event: e})
	assert.Contains(t, got, "Pull request #7: Refactor parser")
	assert.Contains(t, got, "Review the changes")
	assert.NotContains(t, got, "long pr description")
}

func TestResolveResumeExplicitSessionWins(t *testing.T) {
	env := &config.Env{}
	env.ResumeEndpoint = "http://127.0.0.1:1" // must never be contacted
	r := newTestRunner(t, env)

	session, branch := r.resolveResume(context.Background(), "sess-explicit")
	assert.Equal(t, "sess-explicit", session)
	assert.Empty(t, branch)
}

func TestResolveResumeFromEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"log":[{"session_id":"sess-77","type":"system"}],"branch":"claude/issue-3"}`))
	}))
	defer srv.Close()

	env := &config.Env{}
	env.ResumeEndpoint = srv.URL
	r := newTestRunner(t, env)

	session, branch := r.resolveResume(context.Background(), "")
	assert.Equal(t, "sess-77", session)
	assert.Equal(t, "claude/issue-3", branch)
}

func TestResolveResumeUnavailableStartsFresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	env := &config.Env{}
	env.ResumeEndpoint = srv.URL
	r := newTestRunner(t, env)

	session, branch := r.resolveResume(context.Background(), "")
	assert.Empty(t, session)
	assert.Empty(t, branch)
}

func TestBuildOptionsMergesToolPolicy(t *testing.T) {
	env := &config.Env{}
	r := newTestRunner(t, env)
	r.settings = &config.Settings{
		Model:           "claude-sonnet-4-20250514",
		MaxTurns:        5,
		AllowedTools:    []string{"Bash"},
		DisallowedTools: []string{"WebSearch"},
	}

	e := trigger.New(trigger.KindPullRequest)
	e.Action = "opened"
	m, _ := r.registry.Get(mode.Review)
	opts := r.buildOptions(m.PrepareContext(e), "sess-1", "/work")

	assert.Equal(t, "claude-sonnet-4-20250514", opts.Model)
	assert.Equal(t, 5, opts.MaxTurns)
	assert.Equal(t, "sess-1", opts.Resume)
	assert.Equal(t, "/work", opts.Cwd)
	assert.Contains(t, opts.AllowedTools, "Bash")
	assert.Contains(t, opts.AllowedTools, "mcp__github_inline_comment__create_inline_comment")
	assert.Contains(t, opts.DisallowedTools, "Edit")
	assert.Contains(t, opts.DisallowedTools, "WebSearch")
}

// installStubCLI puts a shell script named claude on PATH. It traps SIGINT to
// emit a final result line, touches $STUB_READY once running, then idles.
func installStubCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ready := filepath.Join(dir, "ready")
	script := `#!/bin/sh
trap 'echo "{\"type\":\"result\",\"subtype\":\"interrupted\",\"is_error\":false}"; exit 0' INT
echo '{"type":"system","subtype":"init"}'
: > "$STUB_READY"
while :; do sleep 1; done
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claude"), []byte(script), 0o755))
	t.Setenv("STUB_READY", ready)
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return ready
}

func TestRunInterruptsAssistantOnCancel(t *testing.T) {
	ready := installStubCLI(t)
	r := newTestRunner(t, &config.Env{})

	e := trigger.New(trigger.KindSchedule)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, e, Options{}) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(ready)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "stub assistant never started")

	cancel()

	select {
	case err := <-done:
		// The interrupt lets the assistant exit cleanly, so the run
		// finishes without error instead of being hard-killed.
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
