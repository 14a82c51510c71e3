package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/ai"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/apply"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/changeset"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/history"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/notify"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/pipeline"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/profiles"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/telemetry"
)

var (
	runDir     string
	runBase    string
	runFiles   []string
	runDryRun  bool
	runProfile string
	runTrace   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Detect and remediate insecure code in the current change set",
	Long: `Lists source files changed between the merge base with the base branch
and HEAD, flags them with the built-in heuristics and rewrites each flagged
file with the configured generative backend.

Examples:
  ctrlscan-autofix run
  ctrlscan-autofix run --base develop
  ctrlscan-autofix run --files src/db.js,src/views.js --dry-run
  GEMINI_API_KEY=... ctrlscan-autofix run --profile secrets`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDir, "dir", ".", "Working tree to inspect")
	runCmd.Flags().StringVar(&runBase, "base", "", "Base branch to diff against (overrides diff.base_ref)")
	runCmd.Flags().StringSliceVar(&runFiles, "files", nil, "Explicit comma-separated file list instead of the git diff")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Request fixes but never write files")
	runCmd.Flags().StringVar(&runProfile, "profile", "", "Remediation policy profile (overrides pipeline.profile)")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "Export OpenTelemetry spans and run metrics to stderr")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if runBase != "" {
		cfg.Diff.BaseRef = runBase
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Pipeline.DryRun = runDryRun
	}
	if runProfile != "" {
		cfg.Pipeline.Profile = runProfile
	}

	if runTrace {
		shutdown, err := telemetry.Setup(os.Stderr)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("Flushing traces failed", "error", err)
			}
		}()
	}

	backend, err := ai.New(cfg.AI)
	if err != nil {
		return fmt.Errorf("configuring AI backend: %w", err)
	}
	profile, err := profiles.Load(cfg.Pipeline.Profile, cfg.Pipeline.ProfilesDir)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	dir, err := filepath.Abs(runDir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", runDir, err)
	}

	observers := []pipeline.Observer{&reporter{out: cmd.OutOrStdout()}}
	if cfg.History.Enabled {
		if store := openHistory(ctx, cfg.History); store != nil {
			defer store.Close()
			observers = append(observers, history.NewRecorder(store, cfg.Diff.BaseRef))
		}
	}
	if d := notify.NewDispatcher(cfg.Notify); d.IsAnyConfigured() {
		slog.Debug("Notifications enabled", "channels", d.ChannelNames())
		observers = append(observers, d)
	}

	metrics, err := telemetry.NewRunMetrics(nil)
	if err != nil {
		slog.Warn("Metrics disabled", "error", err)
	}

	slog.Info("Starting remediation run",
		"backend", backend.Name(),
		"base", cfg.Diff.BaseRef,
		"dry_run", cfg.Pipeline.DryRun,
		"profile", cfg.Pipeline.Profile,
	)

	driver := &pipeline.Driver{
		Resolver:    newResolver(dir, cfg.Diff),
		Backend:     backend,
		Applier:     &apply.Applier{DryRun: cfg.Pipeline.DryRun},
		Profile:     profile,
		Observers:   observers,
		Metrics:     metrics,
		DryRun:      cfg.Pipeline.DryRun,
		FailOnError: cfg.Pipeline.FailOnError,
	}
	out := driver.Run(ctx)

	if code := out.ExitCode(); code != pipeline.ExitClean {
		return &exitError{code: code}
	}
	return nil
}

func newResolver(dir string, cfg config.DiffConfig) changeset.Resolver {
	if len(runFiles) > 0 {
		return &changeset.StaticResolver{
			Root:        dir,
			Paths:       runFiles,
			Extensions:  cfg.Extensions,
			ExcludeDirs: cfg.ExcludeDirs,
		}
	}
	return &changeset.GitResolver{
		Dir:         dir,
		Remote:      cfg.Remote,
		Base:        cfg.BaseRef,
		Extensions:  cfg.Extensions,
		ExcludeDirs: cfg.ExcludeDirs,
	}
}

// openHistory opens and migrates the history store. A broken store only
// disables history for this run.
func openHistory(ctx context.Context, cfg config.HistoryConfig) history.Store {
	store, err := history.Open(cfg)
	if err != nil {
		slog.Warn("Run history disabled", "driver", cfg.Driver, "error", err)
		return nil
	}
	if err := store.Migrate(ctx); err != nil {
		slog.Warn("Run history disabled", "driver", cfg.Driver, "error", err)
		store.Close()
		return nil
	}
	return store
}
