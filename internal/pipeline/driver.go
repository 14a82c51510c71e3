package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/ai"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/apply"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/changeset"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/detect"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/profiles"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/prompt"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/sanitize"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/telemetry"
)

// Applier writes an accepted artifact over a file.
type Applier interface {
	Apply(path, original, artifact string) (apply.Result, error)
}

// Observer receives per-file results as they are produced and the final
// outcome once the run ends. Observers must not block for long; the run is
// sequential.
type Observer interface {
	FileDone(ctx context.Context, runID string, r FileResult)
	RunDone(ctx context.Context, o Outcome)
}

// Driver runs one remediation pass over a change set.
type Driver struct {
	Resolver    changeset.Resolver
	Backend     ai.Backend
	Applier     Applier
	Profile     *profiles.Profile
	Observers   []Observer
	Metrics     *telemetry.RunMetrics
	DryRun      bool
	FailOnError bool

	state  State
	tracer trace.Tracer
}

// State returns the driver's current lifecycle state.
func (d *Driver) State() State {
	if d.state == "" {
		return StateInit
	}
	return d.state
}

// Run resolves the change set and processes each file in order. It never
// returns an error: every per-file failure is recorded in the Outcome.
func (d *Driver) Run(ctx context.Context) Outcome {
	d.state = StateInit
	if d.tracer == nil {
		d.tracer = otel.Tracer("ctrlscan-autofix/pipeline")
	}

	base := Outcome{
		RunID:       uuid.NewString(),
		DryRun:      d.DryRun,
		FailOnError: d.FailOnError,
		StartedAt:   time.Now().UTC(),
	}
	if d.Backend != nil {
		base.Backend = d.Backend.Name()
	}

	ctx, span := d.tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", base.RunID),
		attribute.String("ai.backend", base.Backend),
		attribute.Bool("run.dry_run", d.DryRun),
	)

	d.transition(StateResolving)
	cs := d.Resolver.Resolve(ctx)
	span.SetAttributes(attribute.Int("run.files", len(cs.Paths)))

	var results []FileResult
	if cs.Empty() {
		slog.Info("No changed source files to check", "run_id", base.RunID)
	} else {
		d.transition(StateProcessing)
		results = make([]FileResult, 0, len(cs.Paths))
		for _, path := range cs.Paths {
			var r FileResult
			if err := ctx.Err(); err != nil {
				r = FileResult{Path: path, Status: StatusError, Err: fmt.Errorf("run cancelled: %w", err)}
			} else {
				r = d.processFile(ctx, cs, path)
			}
			results = append(results, r)
			d.report(ctx, base.RunID, r)
		}
	}

	if err := ctx.Err(); err != nil {
		base.Cancelled = true
		slog.Warn("Run interrupted before every file was checked", "run_id", base.RunID, "error", err)
	}
	out := reduce(base, results)
	out.FinishedAt = time.Now().UTC()
	d.transition(out.State)

	c := out.Counts()
	span.SetAttributes(
		attribute.String("run.state", string(out.State)),
		attribute.Int("run.fixed", c.Fixed),
		attribute.Int("run.errors", c.Errors),
		attribute.Bool("run.cancelled", out.Cancelled),
	)
	slog.Info("Run finished",
		"run_id", out.RunID,
		"state", out.State,
		"files", c.Total,
		"fixed", c.Fixed,
		"unfixed", c.Unfixed,
		"skipped", c.Skipped,
		"errors", c.Errors,
		"duration", out.FinishedAt.Sub(out.StartedAt).Round(time.Millisecond),
	)
	if d.Metrics != nil {
		d.Metrics.RecordRun(ctx, string(out.State), out.ExitCode())
	}
	for _, o := range d.Observers {
		o.RunDone(ctx, out)
	}
	return out
}

func (d *Driver) transition(to State) {
	slog.Debug("Pipeline state", "from", d.State(), "to", to)
	d.state = to
}

// processFile runs one file through detect, prompt, backend, sanitize and
// apply. A panic anywhere in that chain is confined to this file.
func (d *Driver) processFile(ctx context.Context, cs changeset.ChangeSet, path string) (res FileResult) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "pipeline.file", trace.WithAttributes(attribute.String("file.path", path)))
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Recovered panic while processing file", "path", path, "panic", rec)
			res = FileResult{Path: path, Status: StatusError, Categories: res.Categories, Err: fmt.Errorf("panic: %v", rec)}
		}
		res.Duration = time.Since(start)
		span.SetAttributes(attribute.String("file.status", string(res.Status)))
		if res.Err != nil && res.Status == StatusError {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.End()
	}()

	res.Path = path
	abs := cs.Abs(path)

	data, err := os.ReadFile(abs)
	if err != nil {
		res.Status = StatusError
		res.Err = fmt.Errorf("reading %s: %w", path, err)
		return res
	}
	content := string(data)

	verdict := detect.DetectFamilies(path, content, d.Profile.Focus()...)
	res.Categories = verdict.Categories
	if !verdict.Flagged() {
		res.Status = StatusSkipped
		return res
	}
	for _, m := range verdict.Matches {
		slog.Debug("Rule matched", "path", path, "rule", m.RuleID, "category", m.Category, "line", m.Line)
	}

	p := prompt.Build(path, content, verdict.Categories, d.Profile)
	raw, err := d.Backend.Complete(ctx, p.Text())
	if errors.Is(err, ai.ErrNoResult) {
		res.Status = StatusUnfixed
		res.Reason = ReasonNoResult
		return res
	}
	if err != nil {
		res.Status = StatusError
		res.Err = fmt.Errorf("requesting fix for %s: %w", path, err)
		return res
	}

	artifact := sanitize.Completion(raw)
	applied, err := d.Applier.Apply(abs, content, artifact)
	var rej *apply.Rejected
	switch {
	case errors.As(err, &rej):
		res.Status = StatusUnfixed
		res.Reason = rej.Reason
	case err != nil:
		res.Status = StatusError
		res.Err = err
	default:
		res.Status = StatusFixed
		res.Written = applied.Written
	}
	return res
}

func (d *Driver) report(ctx context.Context, runID string, r FileResult) {
	attrs := []any{
		"run_id", runID,
		"path", r.Path,
		"status", r.Status,
		"duration", r.Duration.Round(time.Millisecond),
	}
	if len(r.Categories) > 0 {
		attrs = append(attrs, "categories", r.CategoryNames())
	}
	if r.Reason != "" {
		attrs = append(attrs, "reason", r.Reason)
	}
	switch r.Status {
	case StatusError:
		slog.Error("File failed", append(attrs, "error", r.Err)...)
	case StatusUnfixed:
		slog.Warn("File flagged but not fixed", attrs...)
	case StatusSkipped:
		slog.Debug("File clean", attrs...)
	default:
		slog.Info("File fixed", attrs...)
	}

	if d.Metrics != nil {
		d.Metrics.RecordFile(ctx, string(r.Status), r.CategoryNames(), r.Duration)
	}
	for _, o := range d.Observers {
		o.FileDone(ctx, runID, r)
	}
}
