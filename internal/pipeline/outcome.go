// Package pipeline drives one remediation run: resolve the change set, then
// detect, prompt, complete, sanitize and apply for each file in order.
package pipeline

import (
	"time"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/detect"
)

// State is the driver's lifecycle position.
type State string

const (
	StateInit       State = "INIT"
	StateResolving  State = "RESOLVING_CHANGES"
	StateProcessing State = "PROCESSING"
	StateDoneClean  State = "DONE_CLEAN"
	StateDoneDirty  State = "DONE_DIRTY"
)

// Status classifies what happened to one file.
type Status string

const (
	StatusSkipped Status = "skipped"
	StatusUnfixed Status = "flagged-unfixed"
	StatusFixed   Status = "flagged-fixed"
	StatusError   Status = "error"
)

// Process exit codes.
const (
	ExitClean   = 0
	ExitFatal   = 1
	ExitChanged = 2
	ExitErrors  = 3

	// ExitInterrupted follows the shell convention for SIGINT (128+2).
	ExitInterrupted = 130
)

// Reasons attached to flagged-unfixed results.
const (
	ReasonNoResult = "no-result"
)

// FileResult is the outcome for a single change-set entry.
type FileResult struct {
	Path       string
	Status     Status
	Categories []detect.Category
	// Reason explains a flagged-unfixed status (no-result, empty, unchanged).
	Reason   string
	Err      error
	Written  bool
	Duration time.Duration
}

// CategoryNames returns the categories as plain strings.
func (r FileResult) CategoryNames() []string {
	out := make([]string, len(r.Categories))
	for i, c := range r.Categories {
		out[i] = string(c)
	}
	return out
}

// Counts tallies results by status.
type Counts struct {
	Total   int
	Skipped int
	Unfixed int
	Fixed   int
	Errors  int
}

// Outcome is the aggregate result of a run.
type Outcome struct {
	RunID            string
	Backend          string
	DryRun           bool
	StartedAt        time.Time
	FinishedAt       time.Time
	State            State
	Results          []FileResult
	AnyChangeApplied bool
	// FailOnError makes per-file errors without fixes exit non-zero.
	FailOnError bool
	// Cancelled is set when the run context ended before every file was
	// checked.
	Cancelled bool
}

// ByPath returns the results keyed by path.
func (o Outcome) ByPath() map[string]FileResult {
	m := make(map[string]FileResult, len(o.Results))
	for _, r := range o.Results {
		m[r.Path] = r
	}
	return m
}

func (o Outcome) Counts() Counts {
	c := Counts{Total: len(o.Results)}
	for _, r := range o.Results {
		switch r.Status {
		case StatusSkipped:
			c.Skipped++
		case StatusUnfixed:
			c.Unfixed++
		case StatusFixed:
			c.Fixed++
		case StatusError:
			c.Errors++
		}
	}
	return c
}

// FixedPaths lists the files that received a fix, in processing order.
func (o Outcome) FixedPaths() []string {
	var out []string
	for _, r := range o.Results {
		if r.Status == StatusFixed {
			out = append(out, r.Path)
		}
	}
	return out
}

// ExitCode maps the outcome to the process exit status. Applied fixes win
// over everything else so that CI always sees that the tree changed. An
// interrupted run never reports success.
func (o Outcome) ExitCode() int {
	if o.AnyChangeApplied {
		return ExitChanged
	}
	if o.Cancelled {
		return ExitInterrupted
	}
	if o.FailOnError && o.Counts().Errors > 0 {
		return ExitErrors
	}
	return ExitClean
}

// reduce folds per-file results into an Outcome. Dry-run fixes are
// reported as flagged-fixed but leave the tree clean.
func reduce(base Outcome, results []FileResult) Outcome {
	base.Results = results
	base.AnyChangeApplied = false
	for _, r := range results {
		if r.Status == StatusFixed && r.Written {
			base.AnyChangeApplied = true
			break
		}
	}
	base.State = StateDoneClean
	if base.AnyChangeApplied {
		base.State = StateDoneDirty
	}
	return base
}
