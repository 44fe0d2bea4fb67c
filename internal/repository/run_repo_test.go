package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/llavacap/internal/config"
	"github.com/timmy/llavacap/internal/domain"
	"github.com/timmy/llavacap/internal/logger"
)

func newTestRepo(t *testing.T) *RunRepository {
	t.Helper()
	db, err := InitDB(config.JournalConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "journal", "runs.db"),
	}, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return NewRunRepository(db)
}

func TestRunRepository_StartFinish(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := &domain.CaptionRun{
		ID:    uuid.NewString(),
		Root:  "/data/set",
		Model: domain.ModelOllama,
		Mode:  domain.ModePromptComparison,
	}
	require.NoError(t, repo.Start(ctx, run))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)

	stats := &domain.RunStats{TotalItems: 3, ProcessedItems: 2, SkippedItems: 0}
	stats.RecordFailure("/data/set/c.txt", errors.New("backend exploded"))
	require.NoError(t, repo.Finish(ctx, run.ID, stats, nil))

	got, err = repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Equal(t, 3, got.TotalItems)
	assert.Equal(t, 2, got.ProcessedItems)
	assert.Equal(t, 1, got.FailedItems)
	assert.Contains(t, got.ErrorLog, "c.txt: backend exploded")
	assert.NotNil(t, got.CompletedAt)
}

func TestRunRepository_FinishCompleted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := &domain.CaptionRun{ID: uuid.NewString(), Root: ".", Model: domain.ModelVision, Mode: domain.ModeDirect}
	require.NoError(t, repo.Start(ctx, run))
	require.NoError(t, repo.Finish(ctx, run.ID, &domain.RunStats{TotalItems: 1, ProcessedItems: 1}, nil))

	runs, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusCompleted, runs[0].Status)
	assert.Empty(t, runs[0].ErrorLog)
}

func TestRunRepository_FinishAborted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := &domain.CaptionRun{ID: uuid.NewString(), Root: ".", Model: domain.ModelOllama, Mode: domain.ModeDirect}
	require.NoError(t, repo.Start(ctx, run))
	require.NoError(t, repo.Finish(ctx, run.ID, nil, errors.New("interrupted")))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Equal(t, "interrupted", got.ErrorLog)
}

func TestInitDB_UnknownDriver(t *testing.T) {
	_, err := InitDB(config.JournalConfig{Driver: "mysql", DSN: "x"}, false)
	assert.Error(t, err)
}

func TestRunRepository_StartTakesRunIDFromContext(t *testing.T) {
	repo := newTestRepo(t)
	ctx := logger.WithRun(context.Background(), "run-from-ctx")

	run := &domain.CaptionRun{Root: ".", Model: domain.ModelOllama, Mode: domain.ModeDirect}
	require.NoError(t, repo.Start(ctx, run))
	assert.Equal(t, "run-from-ctx", run.ID)

	other := &domain.CaptionRun{Root: ".", Model: domain.ModelOllama, Mode: domain.ModeDirect}
	require.NoError(t, repo.Start(context.Background(), other))
	_, err := uuid.Parse(other.ID)
	assert.NoError(t, err)
}

func TestRunRepository_FinishKeepsErrorLogValidUTF8(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := &domain.CaptionRun{Root: ".", Model: domain.ModelOllama, Mode: domain.ModeDirect}
	require.NoError(t, repo.Start(ctx, run))

	// The cut point lands inside the first multi-byte rune.
	msg := strings.Repeat("x", maxErrorLog-4) + "猫猫"
	require.NoError(t, repo.Finish(ctx, run.ID, nil, errors.New(msg)))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got.ErrorLog))
	assert.LessOrEqual(t, len(got.ErrorLog), maxErrorLog)
	assert.Equal(t, strings.Repeat("x", maxErrorLog-4)+"猫", got.ErrorLog)
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", truncateUTF8("abc", 10))
	assert.Equal(t, "ab", truncateUTF8("abc", 2))
	assert.Equal(t, "a", truncateUTF8("a猫", 3))
	assert.Equal(t, "a猫", truncateUTF8("a猫", 4))
}
