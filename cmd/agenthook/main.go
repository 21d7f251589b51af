package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kfujii/agenthook/internal/archive"
	"github.com/kfujii/agenthook/internal/config"
	"github.com/kfujii/agenthook/internal/dispatch"
	"github.com/kfujii/agenthook/internal/event"
	"github.com/kfujii/agenthook/internal/mode"
	"github.com/kfujii/agenthook/internal/progress"
	"github.com/kfujii/agenthook/internal/resume"
	"github.com/kfujii/agenthook/internal/runner"
	"github.com/kfujii/agenthook/internal/token"
	"github.com/kfujii/agenthook/internal/trigger"
	"github.com/kfujii/agenthook/internal/webhook"
	"github.com/kfujii/agenthook/pkg/clog"
	"github.com/kfujii/agenthook/pkg/panicerr"
	"github.com/kfujii/agenthook/pkg/storage"
)

var (
	app          = kingpin.New("agenthook", "GitHub event automation for an AI coding assistant")
	settingsPath = app.Flag("settings", "Path to the YAML settings file").Default(".agenthook/settings.yaml").String()

	// One-shot run from an event payload file.
	runCmd     = app.Command("run", "Execute a single run for one event")
	runEvent   = runCmd.Arg("event", "Event kind (e.g. issue_comment)").Required().String()
	runPayload = runCmd.Flag("payload", "Path to the webhook payload JSON").Required().String()
	runMode    = runCmd.Flag("mode", "Force an execution mode").String()
	runSession = runCmd.Flag("session", "Resume a specific assistant session").String()
	runCwd     = runCmd.Flag("cwd", "Working directory for the assistant").Default(".").String()
	runBranch  = runCmd.Flag("branch", "Prepared working branch").String()
	runBase    = runCmd.Flag("base-branch", "Base branch of the working branch").String()

	// Long-running daemon: webhook server plus dispatch spool watcher.
	serveCmd = app.Command("serve", "Serve the webhook endpoint and dispatch watcher")

	// Classification without execution.
	classifyCmd     = app.Command("classify", "Print the mode selected for an event")
	classifyEvent   = classifyCmd.Arg("event", "Event kind").Required().String()
	classifyPayload = classifyCmd.Flag("payload", "Path to the webhook payload JSON").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}
	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		os.Exit(1)
	}
	settings.Apply(env)

	setupLogger(env)

	switch command {
	case runCmd.FullCommand():
		if err := handleRun(env, settings); err != nil {
			slog.Error("run failed", "error", err)
			os.Exit(1)
		}
	case serveCmd.FullCommand():
		if err := handleServe(env, settings); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	case classifyCmd.FullCommand():
		if err := handleClassify(env); err != nil {
			slog.Error("classify failed", "error", err)
			os.Exit(1)
		}
	}
}

func setupLogger(env *config.Env) {
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))
}

func newRunner(env *config.Env, settings *config.Settings) (*runner.Runner, *progress.Reporter, error) {
	store, err := newStorage(env)
	if err != nil {
		return nil, nil, err
	}

	tokens := newTokenProvider(env)
	// Shared across runs in serve mode, so tokens must refresh as they age
	// out rather than being captured once at startup.
	cached := token.NewCached(tokens, env.TokenLifetime)

	reporter := progress.NewReporter(progress.Config{
		Endpoint:       env.SystemProgressEndpoint,
		Tokens:         cached,
		Headers:        env.StaticHeaders,
		RequestTimeout: env.RequestTimeout,
	})
	resolver := resume.NewResolver(
		resume.WithHeaders(env.StaticHeaders),
		resume.WithTokenProvider(cached),
		resume.WithRequestTimeout(env.RequestTimeout),
	)

	r := runner.New(
		env,
		settings,
		newRegistry(env),
		reporter,
		resolver,
		archive.NewArchiver(store),
		tokens,
	)
	return r, reporter, nil
}

func newRegistry(env *config.Env) *mode.Registry {
	return mode.NewRegistry(mode.TriggerConfig{
		Phrase:   env.TriggerPhrase,
		Assignee: env.AssigneeTrigger,
		Label:    env.LabelTrigger,
	})
}

func newTokenProvider(env *config.Env) token.Provider {
	if env.TokenRequestURL != "" {
		return &token.OIDCProvider{
			RequestURL:   env.TokenRequestURL,
			RequestToken: env.TokenRequestToken,
			Audience:     env.TokenAudience,
		}
	}
	return token.Static(env.APIKey)
}

func newStorage(env *config.Env) (storage.Storage, error) {
	switch env.StorageEnv.Type {
	case "s3":
		return storage.NewS3Storage(context.Background(), env.S3Bucket, env.S3Prefix, env.S3Region)
	default:
		return storage.NewLocalStorage(env.StorageEnv.BaseDir)
	}
}

func loadEvent(kind, payloadPath string) (trigger.Event, error) {
	if !trigger.ValidKind(kind) {
		return trigger.Event{}, fmt.Errorf("unsupported event kind: %s", kind)
	}
	raw, err := os.ReadFile(payloadPath)
	if err != nil {
		return trigger.Event{}, fmt.Errorf("failed to read payload %s: %w", payloadPath, err)
	}
	return trigger.ParsePayload(trigger.Kind(kind), raw)
}

func handleRun(env *config.Env, settings *config.Settings) error {
	e, err := loadEvent(*runEvent, *runPayload)
	if err != nil {
		return err
	}

	r, reporter, err := newRunner(env, settings)
	if err != nil {
		return err
	}
	defer reporter.Drain()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return r.Run(ctx, e, runner.Options{
		ModeOverride: *runMode,
		SessionID:    *runSession,
		Cwd:          *runCwd,
		Branch:       *runBranch,
		BaseBranch:   *runBase,
	})
}

func handleServe(env *config.Env, settings *config.Settings) error {
	r, reporter, err := newRunner(env, settings)
	if err != nil {
		return err
	}
	defer reporter.Drain()

	bus := event.NewBus()
	srv := webhook.NewServer(env, bus)
	watcher := dispatch.NewWatcher(env.SpoolDir, bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	subID, events := bus.Subscribe(16)
	defer bus.Unsubscribe(subID)

	panicerr.GoContext(ctx, func(ctx context.Context) error {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
	panicerr.GoContext(ctx, func(ctx context.Context) error {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
		return nil
	})

	// Runs are sequential: one assistant process at a time.
	panicerr.GoContext(ctx, func(ctx context.Context) error {
		for e := range events {
			if err := r.Run(ctx, e, runner.Options{Cwd: "."}); err != nil {
				slog.Error("run failed", "event", e.ID, "error", err)
			}
		}
		return nil
	})

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func handleClassify(env *config.Env) error {
	e, err := loadEvent(*classifyEvent, *classifyPayload)
	if err != nil {
		return err
	}

	registry := newRegistry(env)
	m := registry.Classify(e)
	out, err := json.MarshalIndent(map[string]any{
		"mode":                     string(m.Name()),
		"description":              m.Description(),
		"should_trigger":           m.ShouldTrigger(e),
		"creates_tracking_comment": m.CreatesTrackingComment(),
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
