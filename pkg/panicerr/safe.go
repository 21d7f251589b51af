// Package panicerr converts panics in wrapped functions into errors, so that
// background goroutines can never take the process down.
package panicerr

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc/panics"
)

// Safe wraps a function that returns an error, catching any panics and returning them as an error.
func Safe(fn func() error) func() error {
	return func() error {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn()
		})
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}

// SafeContext wraps a function that takes a context and returns an error.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn(ctx)
		})
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}

// Go runs fn on a detached goroutine. A returned error or recovered panic is
// logged as a warning and otherwise discarded; the caller never observes it.
func Go(fn func() error) {
	safe := Safe(fn)
	go func() {
		if err := safe(); err != nil {
			slog.Warn("background task failed", "error", err)
		}
	}()
}

// GoContext is Go for functions that take a context.
func GoContext(ctx context.Context, fn func(context.Context) error) {
	safe := SafeContext(fn)
	go func() {
		if err := safe(ctx); err != nil {
			slog.Warn("background task failed", "error", err)
		}
	}()
}
