package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/timmy/llavacap/internal/captioner"
	"github.com/timmy/llavacap/internal/config"
	"github.com/timmy/llavacap/internal/domain"
	"github.com/timmy/llavacap/internal/imaging"
	"github.com/timmy/llavacap/internal/logger"
	"github.com/timmy/llavacap/internal/repository"
	"github.com/timmy/llavacap/internal/service"
	"github.com/timmy/llavacap/internal/textprep"
)

// errFilesFailed signals a completed run in which at least one file failed.
var errFilesFailed = errors.New("one or more files failed")

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command and maps its outcome to a process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	_ = logger.Sync()
	if err == nil {
		return 0
	}
	if !errors.Is(err, errFilesFailed) {
		fmt.Fprintf(stderr, "\nError: %v\n", err)
	}
	return 1
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "llavacap [directory]",
		Short:         "Generate captions for a directory of images",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := cmd.Flags().GetString(config.FlagConfig)
			if err != nil {
				return err
			}
			cfg, err := config.Load(&config.LoadOptions{
				ConfigPath: configPath,
				Flags:      cmd.Flags(),
			})
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return run(cmd.Context(), cfg, root, stdout, stderr)
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.AddCommand(newRunsCmd(stdout))
	return cmd
}

// run wires the backend, processor and optional journal for one directory.
func run(ctx context.Context, cfg *config.Config, root string, stdout, stderr io.Writer) error {
	appLogger := logger.New(&logger.Config{
		Level:       cfg.LogLevel(),
		Format:      cfg.Log.Format,
		Output:      stderr,
		ServiceName: "llavacap",
		File:        cfg.Log.File,
		MaxSize:     50,
		MaxBackups:  3,
		MaxAge:      14,
		Compress:    true,
	})
	logger.SetDefaultLogger(appLogger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithRun(appLogger.WithContext(ctx), uuid.NewString())

	fmt.Fprintf(stdout, "\n<'%s processor loading'>\n\n", cfg.Model.ProcessorName())

	capt, err := captioner.New(ctx, cfg, appLogger)
	if err != nil {
		return err
	}

	var runs *repository.RunRepository
	if cfg.Journal.DSN != "" {
		db, err := repository.InitDB(cfg.Journal, cfg.SysLogging)
		if err != nil {
			return err
		}
		defer repository.Close(db)

		runs = repository.NewRunRepository(db)
		if err := runs.Start(ctx, &domain.CaptionRun{
			Root:  root,
			Model: cfg.Model,
			Mode:  cfg.Mode(),
		}); err != nil {
			return err
		}
	}

	procCfg := service.ProcessorConfig{
		Mode:     cfg.Mode(),
		ImageExt: cfg.Files.ImageExt,
		TextExt:  cfg.Files.TextExt,
		FailFast: cfg.FailFast,
		Output:   stdout,
	}
	if cfg.Preprocess {
		procCfg.Preprocess = textprep.Preprocess
	}
	processor := service.NewProcessor(capt, imaging.NewPreparer(cfg.Files.MaxImageSize, ""), appLogger, procCfg)

	stats, runErr := processor.Run(ctx, root)

	if runs != nil {
		// The run context may already be cancelled; record the outcome regardless.
		if err := runs.Finish(context.WithoutCancel(ctx), logger.RunID(ctx), stats, runErr); err != nil {
			appLogger.WithError(err).Warn("Failed to record run in journal")
		}
	}

	fmt.Fprint(stdout, service.Summary(stats))
	appLogger.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"skipped":   stats.SkippedItems,
		"failed":    stats.FailedItems,
	}).Info("Run finished")

	if runErr != nil {
		return runErr
	}
	if stats.HasFailures() {
		return errFilesFailed
	}
	return nil
}
