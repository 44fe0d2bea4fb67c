package captioner

import (
	"context"
	"fmt"

	"github.com/timmy/llavacap/internal/config"
	"github.com/timmy/llavacap/internal/domain"
	"github.com/timmy/llavacap/internal/logger"
)

// Factory constructs a Captioner from configuration, performing all backend setup.
type Factory func(ctx context.Context, cfg *config.Config, log *logger.Logger) (Captioner, error)

var factories = map[domain.ModelKind]Factory{
	domain.ModelOllama: func(ctx context.Context, cfg *config.Config, log *logger.Logger) (Captioner, error) {
		return NewOllamaCaptioner(ctx, cfg, log)
	},
	domain.ModelHosted: func(ctx context.Context, cfg *config.Config, log *logger.Logger) (Captioner, error) {
		return NewHostedCaptioner(ctx, cfg, log)
	},
	domain.ModelLlamaCpp: func(ctx context.Context, cfg *config.Config, log *logger.Logger) (Captioner, error) {
		return NewLlamaCppCaptioner(ctx, cfg, log)
	},
	domain.ModelVision: func(ctx context.Context, cfg *config.Config, log *logger.Logger) (Captioner, error) {
		return NewVisionCaptioner(ctx, cfg, log)
	},
	domain.ModelMLX: func(ctx context.Context, cfg *config.Config, log *logger.Logger) (Captioner, error) {
		return NewMLXCaptioner(ctx, cfg, log)
	},
	domain.ModelDual: newDualFromConfig,
}

// newDualFromConfig pairs the vision model (first caption) with Ollama
// (refinement). Ollama is only contacted when secondary captioning is on.
func newDualFromConfig(ctx context.Context, cfg *config.Config, log *logger.Logger) (Captioner, error) {
	first, err := NewVisionCaptioner(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("dual first stage: %w", err)
	}
	if !cfg.SecondaryCaption {
		return NewDualCaptioner(first, nil, false), nil
	}
	second, err := NewOllamaCaptioner(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("dual second stage: %w", err)
	}
	return NewDualCaptioner(first, second, true), nil
}

// New selects and constructs the captioner named by cfg.Model.
// Parameters:
//   - ctx: context for construction-time probes.
//   - cfg: validated run configuration.
//   - log: logger for backend diagnostics; nil uses the default logger.
//
// Returns:
//   - Captioner: ready backend.
//   - error: wraps config.ErrUnknownModel for unknown kinds, or the setup failure.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (Captioner, error) {
	factory, ok := factories[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: model class %s does not exist", config.ErrUnknownModel, cfg.Model)
	}
	if log == nil {
		log = logger.GetDefault()
	}
	log = log.WithField(logger.FieldBackend, cfg.Model.String())

	c, err := factory(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s: %w", cfg.Model, err)
	}
	return c, nil
}
