package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile   string
	verbose   bool
	logFormat string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ctrlscan-autofix",
	Short: "Detect and AI-remediate insecure code in a proposed change",
	Long: `ctrlscan-autofix runs in CI on a proposed code update. It lists the source
files changed against the base branch, flags likely secrets, SQL injection,
XSS and command injection with fixed heuristics, asks a generative model
(Gemini or a local Ollama) for a rewritten file and writes accepted fixes
back in place.

Exit codes:
  0  nothing was changed
  2  at least one file was rewritten (commit or review the changes)
  3  per-file errors and no fixes (only with pipeline.fail_on_error)
  130  interrupted before every file was checked
  1  fatal setup error

Get started:
  ctrlscan-autofix init      Interactive setup
  ctrlscan-autofix doctor    Verify repository, backend and stores
  ctrlscan-autofix run       Remediate the current change set
  ctrlscan-autofix scan      Report flagged files without calling a model`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a non-zero exit status that is not a failure message.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute is the entry point called from main.go.
func Execute() {
	err := rootCmd.Execute()
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.ctrlscan-autofix/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format on stderr: text|json")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		runCmd,
		scanCmd,
		doctorCmd,
		configCmd,
		initCmd,
		historyCmd,
	)
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if strings.EqualFold(logFormat, "json") {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	} else {
		slog.SetLogLoggerLevel(level)
	}
	slog.Debug("Verbose logging enabled")
}
