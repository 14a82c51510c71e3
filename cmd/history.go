package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/history"
)

var (
	historyLimit int
	historyRun   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the history store",
	Long: `Reads the run-history store (history.enabled) and prints recent runs, or
the per-file results of one run with --run.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the file results of one run ID")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store, err := history.Open(cfg.History)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	out := cmd.OutOrStdout()
	if historyRun != "" {
		files, err := store.RunFiles(ctx, historyRun)
		if err != nil {
			return fmt.Errorf("loading run %s: %w", historyRun, err)
		}
		if len(files) == 0 {
			fmt.Fprintln(out, dimStyle.Render("No file results for run "+historyRun))
			return nil
		}
		for _, f := range files {
			line := fmt.Sprintf("%-16s %-40s %s", f.Status, f.Path, f.Categories)
			if f.Reason != "" {
				line += "  " + f.Reason
			}
			if f.ErrorText != "" {
				line += "  " + f.ErrorText
			}
			fmt.Fprintln(out, line)
		}
		return nil
	}

	runs, err := store.RecentRuns(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, dimStyle.Render("No runs recorded yet."))
		return nil
	}
	fmt.Fprintf(out, "%-36s  %-20s  %-10s  %-11s  %5s  %5s  %5s  %5s\n",
		"RUN", "STARTED", "BACKEND", "STATE", "FILES", "FIXED", "UNFIX", "ERR")
	for _, r := range runs {
		started := r.StartedAt
		if len(started) > 19 {
			started = started[:19]
		}
		fmt.Fprintf(out, "%-36s  %-20s  %-10s  %-11s  %5d  %5d  %5d  %5d\n",
			r.ID, started, r.Backend, r.FinalState, r.FilesTotal, r.Fixed, r.Unfixed, r.Errors)
	}
	return nil
}
