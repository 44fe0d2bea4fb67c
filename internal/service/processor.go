package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/timmy/llavacap/internal/captioner"
	"github.com/timmy/llavacap/internal/domain"
	"github.com/timmy/llavacap/internal/imaging"
	"github.com/timmy/llavacap/internal/logger"
	"github.com/timmy/llavacap/internal/prompts"
	"github.com/timmy/llavacap/internal/source"
)

// AssetPreparer produces temporary, backend-ready copies of images.
type AssetPreparer interface {
	Prepare(ctx context.Context, srcPath string) (*imaging.Asset, error)
}

// ProcessorConfig holds the processing policy.
type ProcessorConfig struct {
	Mode     domain.CaptionMode
	ImageExt string
	TextExt  string

	// Preprocess cleans prompt text before it reaches the backend; nil sends the text as-is.
	Preprocess func(string) string

	// FailFast aborts the run on the first per-file error instead of recording it.
	FailFast bool

	// Output receives progress lines. Defaults to os.Stdout.
	Output io.Writer
}

// Processor walks a directory and captions every task through one Captioner.
type Processor struct {
	captioner captioner.Captioner
	assets    AssetPreparer
	cfg       ProcessorConfig
	out       io.Writer
	logger    *logger.Logger
}

// errSkipped marks a task that was skipped without counting as a failure.
var errSkipped = errors.New("skipped")

// NewProcessor creates a new directory processor.
// Parameters:
//   - c: backend used for every caption.
//   - assets: preparer for temporary image copies.
//   - log: fallback logger when the context carries none.
//   - cfg: processing policy.
//
// Returns:
//   - *Processor: initialized processor.
func NewProcessor(c captioner.Captioner, assets AssetPreparer, log *logger.Logger, cfg ProcessorConfig) *Processor {
	if cfg.Mode == "" {
		cfg.Mode = domain.ModePromptComparison
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Processor{
		captioner: c,
		assets:    assets,
		cfg:       cfg,
		out:       out,
		logger:    log,
	}
}

// log returns the context logger, which RunSource seeds with the processor's own.
func (p *Processor) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx)
}

// Run captions everything under root using the configured mode.
func (p *Processor) Run(ctx context.Context, root string) (*domain.RunStats, error) {
	return p.RunSource(ctx, source.NewDirectorySource(root, p.cfg.Mode, p.cfg.ImageExt, p.cfg.TextExt))
}

// RunSource captions every task produced by src.
// Parameters:
//   - ctx: cancellation stops the run between files.
//   - src: task enumeration.
//
// Returns:
//   - *domain.RunStats: counts for the files handled so far; never nil.
//   - error: non-nil when enumeration fails, the context is cancelled,
//     or a file fails under the fail-fast policy.
func (p *Processor) RunSource(ctx context.Context, src source.Source) (*domain.RunStats, error) {
	if logger.FromContext(ctx) == logger.GetDefault() {
		ctx = p.logger.WithContext(ctx)
	}
	ctx = logger.WithComponent(ctx, "processor")
	stats := &domain.RunStats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	mode := src.Mode()
	if mode == domain.ModeDirect {
		fmt.Fprint(p.out, "Direct Caption Mode\n\n")
	}

	tasks, err := src.Tasks(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to enumerate files: %w", err)
	}
	stats.TotalItems = len(tasks)

	p.log(ctx).WithFields(logger.Fields{
		logger.FieldMode:    string(mode),
		logger.FieldCount:   len(tasks),
		logger.FieldBackend: p.captioner.Name(),
	}).Info("Starting caption run")

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		taskCtx := logger.WithFile(ctx, task.ImagePath)
		step := logger.Begin(taskCtx, "caption").Set(logger.FieldBackend, p.captioner.Name())
		caption, err := p.processTask(taskCtx, mode, task)
		switch {
		case errors.Is(err, errSkipped):
			stats.SkippedItems++
			continue
		case err != nil:
			// Interrupted backends surface as unrelated errors (a killed
			// subprocess reports "signal: killed"); the file is not a failure.
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			failed := task.TextPath
			if mode == domain.ModeDirect {
				failed = task.ImagePath
			}
			stats.RecordFailure(failed, err)
			step.End(err)
			if p.cfg.FailFast {
				return stats, fmt.Errorf("failed to caption %s: %w", task.ImagePath, err)
			}
			continue
		}

		stats.ProcessedItems++
		fmt.Fprintf(p.out, "%s: %d of %d\n%s\n\n", task.DisplayName(mode), task.Index, task.Total, caption)
		step.End(nil)
	}

	p.log(ctx).WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"skipped":   stats.SkippedItems,
		"failed":    stats.FailedItems,
		"duration":  stats.Duration().String(),
	}).Info("Caption run completed")

	return stats, nil
}

// processTask captions a single task and writes the result.
// It returns errSkipped when the task cannot be attempted.
func (p *Processor) processTask(ctx context.Context, mode domain.CaptionMode, task domain.CaptionTask) (string, error) {
	prompt := prompts.DirectCaptionPrompt
	if mode == domain.ModePromptComparison {
		if _, err := os.Stat(task.ImagePath); err != nil {
			fmt.Fprintf(p.out, "No corresponding image for %s\n", task.TextPath)
			return "", errSkipped
		}
		data, err := os.ReadFile(task.TextPath)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = string(data)
		if p.cfg.Preprocess != nil {
			prompt = p.cfg.Preprocess(prompt)
		}
	}

	asset, err := p.assets.Prepare(ctx, task.ImagePath)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.log(ctx).WithError(err).Debug("Skipping image that could not be prepared")
		return "", errSkipped
	}
	defer func() {
		if err := asset.Release(); err != nil {
			p.log(ctx).WithError(err).Warn("Failed to release temporary asset")
		}
	}()

	caption, err := p.captioner.Caption(ctx, prompt, asset.Path)
	if err != nil {
		return "", err
	}
	caption = captioner.NormalizeText(caption)

	if err := os.WriteFile(task.TextPath, []byte(caption), 0644); err != nil {
		return "", fmt.Errorf("failed to write caption: %w", err)
	}
	return caption, nil
}

// Summary renders the end-of-run report, listing failed files in a table.
func Summary(stats *domain.RunStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Captioned %d of %d files (%d skipped, %d failed) in %s\n",
		stats.ProcessedItems, stats.TotalItems, stats.SkippedItems, stats.FailedItems,
		stats.Duration().Round(time.Millisecond))
	if len(stats.Failures) == 0 {
		return b.String()
	}

	data := make([][]string, 0, len(stats.Failures))
	for _, f := range stats.Failures {
		data = append(data, []string{f.Path, f.Err.Error()})
	}

	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"FILE", "ERROR"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
	return b.String()
}
