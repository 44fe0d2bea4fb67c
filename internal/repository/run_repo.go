package repository

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/timmy/llavacap/internal/domain"
	"github.com/timmy/llavacap/internal/logger"
	"gorm.io/gorm"
)

// maxErrorLog bounds the stored failure text per run.
const maxErrorLog = 8192

// RunRepository records caption runs.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *RunRepository: repository instance bound to db.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start inserts a run in the running state.
// Parameters:
//   - ctx: context for cancellation and deadlines; its run ID names the row when run.ID is empty.
//   - run: run record; ID, StartedAt and Status are filled in when empty.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *RunRepository) Start(ctx context.Context, run *domain.CaptionRun) error {
	if run.ID == "" {
		run.ID = logger.RunID(ctx)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt == nil {
		now := time.Now()
		run.StartedAt = &now
	}
	run.Status = domain.RunStatusRunning
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// Finish stores the final counts of a run.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: run ID.
//   - stats: statistics gathered by the processor; may be nil when the run aborted early.
//   - runErr: error that aborted the run, if any.
//
// Returns:
//   - error: non-nil if the update fails.
func (r *RunRepository) Finish(ctx context.Context, id string, stats *domain.RunStats, runErr error) error {
	now := time.Now()
	status := domain.RunStatusCompleted
	updates := map[string]interface{}{
		"completed_at": &now,
	}

	var lines []string
	if runErr != nil {
		lines = append(lines, runErr.Error())
	}
	if stats != nil {
		updates["total_items"] = stats.TotalItems
		updates["processed_items"] = stats.ProcessedItems
		updates["skipped_items"] = stats.SkippedItems
		updates["failed_items"] = stats.FailedItems
		for _, f := range stats.Failures {
			lines = append(lines, fmt.Sprintf("%s: %v", f.Path, f.Err))
		}
		if stats.HasFailures() {
			status = domain.RunStatusFailed
		}
	}
	if runErr != nil {
		status = domain.RunStatusFailed
	}
	updates["status"] = status
	if len(lines) > 0 {
		updates["error_log"] = truncateUTF8(strings.Join(lines, "\n"), maxErrorLog)
	}

	if err := r.db.WithContext(ctx).Model(&domain.CaptionRun{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record run result: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.CaptionRun, error) {
	var run domain.CaptionRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecent returns the latest runs, newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]domain.CaptionRun, error) {
	var runs []domain.CaptionRun
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
