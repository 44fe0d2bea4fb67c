package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/timmy/llavacap/internal/config"
	"github.com/timmy/llavacap/internal/domain"
	"github.com/timmy/llavacap/internal/repository"
	"gorm.io/gorm"
)

var errNoJournal = errors.New("no journal configured (set --journal or JOURNAL_DSN)")

// newRunsCmd lists the most recent runs recorded in the journal.
func newRunsCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List recent caption runs from the journal, or show one run with its errors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := cmd.Flags().GetString(config.FlagConfig)
			if err != nil {
				return err
			}
			limit, err := cmd.Flags().GetInt("limit")
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
			if cfg.Journal.DSN == "" {
				return errNoJournal
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			db, err := repository.InitDB(cfg.Journal, cfg.SysLogging)
			if err != nil {
				return err
			}
			defer repository.Close(db)

			repo := repository.NewRunRepository(db)
			if len(args) == 1 {
				run, err := repo.GetByID(cmd.Context(), args[0])
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("run %s not found", args[0])
				}
				if err != nil {
					return fmt.Errorf("failed to load run: %w", err)
				}
				writeRunsTable(stdout, []domain.CaptionRun{*run})
				if run.ErrorLog != "" {
					fmt.Fprintf(stdout, "\n%s\n", run.ErrorLog)
				}
				return nil
			}

			runs, err := repo.ListRecent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			writeRunsTable(stdout, runs)
			return nil
		},
	}
	cmd.Flags().String(config.FlagConfig, "", "Path to config file")
	cmd.Flags().String(config.FlagJournal, "", "Journal database (sqlite path or postgres DSN) (env: JOURNAL_DSN)")
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	return cmd
}

func writeRunsTable(w io.Writer, runs []domain.CaptionRun) {
	var data [][]string
	for _, r := range runs {
		data = append(data, []string{
			r.ID,
			string(r.Model),
			string(r.Mode),
			string(r.Status),
			fmt.Sprintf("%d/%d", r.ProcessedItems, r.TotalItems),
			strconv.Itoa(r.SkippedItems),
			strconv.Itoa(r.FailedItems),
			formatTime(r.StartedAt),
			r.Root,
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "MODEL", "MODE", "STATUS", "CAPTIONED", "SKIPPED", "FAILED", "STARTED", "ROOT"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
