package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/detect"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/pipeline"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(config.HistoryConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	assert.Equal(t, "sqlite", s.Driver())
}

func TestRecorderStoresEffectiveExitCode(t *testing.T) {
	s := openTestStore(t)
	rec := NewRecorder(s, "main")
	ctx := context.Background()

	failed := pipeline.FileResult{Path: "a.js", Status: pipeline.StatusError, Err: errors.New("503")}
	rec.FileDone(ctx, "run-strict", failed)
	rec.RunDone(ctx, pipeline.Outcome{
		RunID:       "run-strict",
		Backend:     "ollama",
		StartedAt:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2026, 3, 2, 9, 0, 1, 0, time.UTC),
		State:       pipeline.StateDoneClean,
		Results:     []pipeline.FileResult{failed},
		FailOnError: true,
	})

	runs, err := s.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, pipeline.ExitErrors, runs[0].ExitCode)
}

func TestRecorderStoresRunAndFiles(t *testing.T) {
	s := openTestStore(t)
	rec := NewRecorder(s, "main")
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	results := []pipeline.FileResult{
		{Path: "a.js", Status: pipeline.StatusSkipped, Duration: 2 * time.Millisecond},
		{Path: "b.js", Status: pipeline.StatusFixed, Written: true, Categories: []detect.Category{detect.SecretLike, detect.SQLInjection}},
		{Path: "c.js", Status: pipeline.StatusError, Err: errors.New("timeout")},
	}
	for _, r := range results {
		rec.FileDone(ctx, "run-1", r)
	}
	rec.RunDone(ctx, pipeline.Outcome{
		RunID:            "run-1",
		Backend:          "gemini",
		StartedAt:        started,
		FinishedAt:       started.Add(time.Second),
		State:            pipeline.StateDoneDirty,
		Results:          results,
		AnyChangeApplied: true,
	})

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "main", runs[0].BaseRef)
	assert.Equal(t, "DONE_DIRTY", runs[0].FinalState)
	assert.Equal(t, 2, runs[0].ExitCode)
	assert.Equal(t, 3, runs[0].FilesTotal)
	assert.Equal(t, 1, runs[0].Fixed)
	assert.Equal(t, 1, runs[0].Errors)

	files, err := s.RunFiles(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.js", files[0].Path)
	assert.Equal(t, "SECRET_LIKE,SQL_INJECTION", files[1].Categories)
	assert.Equal(t, "timeout", files[2].ErrorText)
	assert.Equal(t, int64(2), files[0].DurationMS)
}

func TestRecentRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		at := base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339Nano)
		require.NoError(t, s.SaveRun(ctx, RunRecord{ID: id, StartedAt: at, FinishedAt: at, FinalState: "DONE_CLEAN"}, nil))
	}

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
}

func TestSaveRunRollsBackOnDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := RunRecord{ID: "dup", StartedAt: "2026-01-01T00:00:00Z", FinishedAt: "2026-01-01T00:00:01Z"}
	require.NoError(t, s.SaveRun(ctx, run, nil))

	err := s.SaveRun(ctx, run, []FileRecord{{Seq: 0, Path: "x.js"}})
	require.Error(t, err)

	files, err := s.RunFiles(ctx, "dup")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestOpenRejectsUnknownDriverAndMissingDSN(t *testing.T) {
	_, err := Open(config.HistoryConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported history driver")

	_, err = Open(config.HistoryConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "dsn is required")

	_, err = Open(config.HistoryConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, "dsn is required")
}

func TestRebind(t *testing.T) {
	pg := &sqlStore{numbered: true}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	lite := &sqlStore{}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\nCREATE TABLE b (y INT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"}, got)
}
