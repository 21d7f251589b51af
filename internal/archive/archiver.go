// Package archive persists run transcripts and manifests so later runs can
// be inspected or resumed from local state.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kfujii/agenthook/pkg/cerr"
	"github.com/kfujii/agenthook/pkg/storage"
)

// Manifest records the outcome of a single run.
type Manifest struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	EventKind  string    `json:"event_kind"`
	Repository string    `json:"repository,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	ExitCode   int       `json:"exit_code"`
	DurationMs int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Archiver struct {
	store storage.Storage
}

func NewArchiver(store storage.Storage) *Archiver {
	return &Archiver{store: store}
}

// WriteTranscript stores the raw output lines of a run, one JSON line per
// transcript entry, under the run's directory.
func (a *Archiver) WriteTranscript(ctx context.Context, runID string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	data := []byte(strings.Join(lines, "\n") + "\n")
	if err := a.store.Write(ctx, transcriptPath(runID), data); err != nil {
		return cerr.NewError(cerr.Internal, fmt.Sprintf("failed to archive transcript for run %s", runID), err)
	}
	return nil
}

// WriteManifest stores the run manifest alongside its transcript.
func (a *Archiver) WriteManifest(ctx context.Context, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return cerr.NewError(cerr.Internal, fmt.Sprintf("failed to marshal manifest for run %s", m.RunID), err)
	}
	if err := a.store.Write(ctx, manifestPath(m.RunID), data); err != nil {
		return cerr.NewError(cerr.Internal, fmt.Sprintf("failed to archive manifest for run %s", m.RunID), err)
	}
	return nil
}

// ReadManifest loads the manifest of a prior run.
func (a *Archiver) ReadManifest(ctx context.Context, runID string) (*Manifest, error) {
	data, err := a.store.Read(ctx, manifestPath(runID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, cerr.NewError(cerr.NotFound, fmt.Sprintf("run %s not found", runID), err)
		}
		return nil, cerr.NewError(cerr.Internal, fmt.Sprintf("failed to read manifest for run %s", runID), err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, cerr.NewError(cerr.Internal, fmt.Sprintf("failed to parse manifest for run %s", runID), err)
	}
	return &m, nil
}

// ListRuns returns the IDs of archived runs, derived from stored manifests.
func (a *Archiver) ListRuns(ctx context.Context) ([]string, error) {
	paths, err := a.store.List(ctx, "")
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to list archived runs", err)
	}
	var ids []string
	for _, p := range paths {
		if strings.HasSuffix(p, "/manifest.json") {
			ids = append(ids, strings.TrimSuffix(p, "/manifest.json"))
		}
	}
	return ids, nil
}

func transcriptPath(runID string) string {
	return runID + "/transcript.jsonl"
}

func manifestPath(runID string) string {
	return runID + "/manifest.json"
}
