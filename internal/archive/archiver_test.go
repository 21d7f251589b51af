package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfujii/agenthook/pkg/cerr"
	"github.com/kfujii/agenthook/pkg/storage"
)

func newTestArchiver(t *testing.T) *Archiver {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewArchiver(store)
}

func TestArchiverRoundTrip(t *testing.T) {
	a := newTestArchiver(t)
	ctx := context.Background()

	m := Manifest{
		RunID:      "01TESTRUN",
		Mode:       "interactive-mention",
		EventKind:  "issue_comment",
		Repository: "acme/widgets",
		SessionID:  "sess-9",
		ExitCode:   0,
		DurationMs: 4200,
		StartedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 1, 12, 0, 4, 0, time.UTC),
	}
	require.NoError(t, a.WriteManifest(ctx, m))
	require.NoError(t, a.WriteTranscript(ctx, m.RunID, []string{`{"type":"system"}`, `{"type":"result"}`}))

	got, err := a.ReadManifest(ctx, m.RunID)
	require.NoError(t, err)
	assert.Equal(t, m, *got)

	runs, err := a.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"01TESTRUN"}, runs)
}

func TestArchiverEmptyTranscriptIsNoop(t *testing.T) {
	a := newTestArchiver(t)
	require.NoError(t, a.WriteTranscript(context.Background(), "01EMPTY", nil))

	runs, err := a.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestArchiverReadMissingManifest(t *testing.T) {
	a := newTestArchiver(t)
	_, err := a.ReadManifest(context.Background(), "01MISSING")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}
