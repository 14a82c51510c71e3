package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/ai"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/changeset"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/history"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/notify"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/profiles"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify repository, backend, profile and history store",
	Long: `Checks that the working tree is a git repository with a resolvable base
branch, that the AI backend is configured and reachable, that the selected
profile loads, and that the history store (when enabled) can be opened.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	out := cmd.OutOrStdout()
	allOK := true

	fmt.Fprintln(out, headerStyle.Render("=== ctrlscan-autofix doctor ==="))

	fmt.Fprint(out, "Git repository .......... ")
	dir, _ := filepath.Abs(".")
	if repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true}); err != nil {
		fmt.Fprintf(out, "FAIL (%s)\n", err)
		allOK = false
	} else if head, err := repo.Head(); err != nil {
		fmt.Fprintf(out, "FAIL (no HEAD: %s)\n", err)
		allOK = false
	} else {
		fmt.Fprintf(out, "OK (HEAD %s)\n", head.Hash().String()[:8])
	}

	fmt.Fprint(out, "Change set .............. ")
	cs := (&changeset.GitResolver{
		Dir:         dir,
		Remote:      cfg.Diff.Remote,
		Base:        cfg.Diff.BaseRef,
		Extensions:  cfg.Diff.Extensions,
		ExcludeDirs: cfg.Diff.ExcludeDirs,
	}).Resolve(ctx)
	fmt.Fprintf(out, "%d candidate file(s) against %s/%s\n", len(cs.Paths), cfg.Diff.Remote, cfg.Diff.BaseRef)

	fmt.Fprint(out, "AI backend .............. ")
	backend, err := ai.New(cfg.AI)
	switch {
	case err != nil:
		fmt.Fprintf(out, "FAIL (%s)\n", err)
		allOK = false
	case !backend.IsAvailable(ctx):
		fmt.Fprintf(out, "WARN (%s configured but not reachable)\n", backend.Name())
		allOK = false
	default:
		fmt.Fprintf(out, "OK (%s)\n", backend.Name())
	}

	fmt.Fprint(out, "Profile ................. ")
	if cfg.Pipeline.Profile == "" {
		fmt.Fprintln(out, "none (default remediation policy)")
	} else if p, err := profiles.Load(cfg.Pipeline.Profile, cfg.Pipeline.ProfilesDir); err != nil {
		fmt.Fprintf(out, "FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Fprintf(out, "OK (%s v%d)\n", p.Name, p.Version)
	}

	fmt.Fprint(out, "History store ........... ")
	if !cfg.History.Enabled {
		fmt.Fprintln(out, "disabled")
	} else if store, err := history.Open(cfg.History); err != nil {
		fmt.Fprintf(out, "FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Fprintf(out, "OK (%s)\n", store.Driver())
		store.Close()
	}

	fmt.Fprint(out, "Notifications ........... ")
	if d := notify.NewDispatcher(cfg.Notify); d.IsAnyConfigured() {
		fmt.Fprintf(out, "OK (%s)\n", strings.Join(d.ChannelNames(), ", "))
	} else {
		fmt.Fprintln(out, "none configured")
	}

	fmt.Fprintln(out)
	if allOK {
		fmt.Fprintln(out, successStyle.Render("All checks passed."))
	} else {
		fmt.Fprintln(out, warnStyle.Render("Some checks failed. Run 'ctrlscan-autofix init' or see 'ctrlscan-autofix config show'."))
	}
	return nil
}
