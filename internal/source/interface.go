package source

import (
	"context"

	"github.com/timmy/llavacap/internal/domain"
)

// Source enumerates caption tasks under a root directory.
type Source interface {
	// Mode returns the processing mode this source feeds.
	Mode() domain.CaptionMode

	// Tasks returns every task in a deterministic (lexicographic) order,
	// with Index and Total filled in.
	// Parameters:
	//   - ctx: context for cancellation during the walk.
	// Returns:
	//   - []domain.CaptionTask: discovered tasks; empty when nothing matches.
	//   - error: non-nil if the root cannot be walked.
	Tasks(ctx context.Context) ([]domain.CaptionTask, error)
}
