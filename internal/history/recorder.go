package history

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/pipeline"
)

// Recorder is a pipeline observer that stores each run once it finishes.
// Storage failures are logged; they never change the run's outcome.
type Recorder struct {
	store   Store
	baseRef string
	files   []FileRecord
}

// NewRecorder returns a Recorder writing to store. baseRef is recorded on
// the run row for reference.
func NewRecorder(store Store, baseRef string) *Recorder {
	return &Recorder{store: store, baseRef: baseRef}
}

func (r *Recorder) FileDone(_ context.Context, runID string, res pipeline.FileResult) {
	r.files = append(r.files, fileRecord(runID, len(r.files), res))
}

func (r *Recorder) RunDone(ctx context.Context, o pipeline.Outcome) {
	// The run context may already be cancelled; the history write still
	// gets a short window of its own.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := r.store.SaveRun(saveCtx, runRecord(o, r.baseRef), r.files); err != nil {
		slog.Warn("Failed to record run history", "run_id", o.RunID, "driver", r.store.Driver(), "error", err)
		return
	}
	slog.Debug("Recorded run history", "run_id", o.RunID, "files", len(r.files))
	r.files = nil
}

func runRecord(o pipeline.Outcome, baseRef string) RunRecord {
	c := o.Counts()
	dry := 0
	if o.DryRun {
		dry = 1
	}
	return RunRecord{
		ID:         o.RunID,
		StartedAt:  o.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: o.FinishedAt.UTC().Format(time.RFC3339Nano),
		Backend:    o.Backend,
		BaseRef:    baseRef,
		DryRun:     dry,
		FinalState: string(o.State),
		ExitCode:   o.ExitCode(),
		FilesTotal: c.Total,
		Fixed:      c.Fixed,
		Unfixed:    c.Unfixed,
		Skipped:    c.Skipped,
		Errors:     c.Errors,
	}
}

func fileRecord(runID string, seq int, res pipeline.FileResult) FileRecord {
	rec := FileRecord{
		RunID:      runID,
		Seq:        seq,
		Path:       res.Path,
		Status:     string(res.Status),
		Categories: strings.Join(res.CategoryNames(), ","),
		Reason:     res.Reason,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		rec.ErrorText = res.Err.Error()
	}
	return rec
}
