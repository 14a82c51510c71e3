package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/pipeline"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#EF4444"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

// statusTag renders the glyph tag for a per-file status.
func statusTag(s pipeline.Status) string {
	switch s {
	case pipeline.StatusFixed:
		return successStyle.Render("✔ fixed  ")
	case pipeline.StatusError:
		return errorStyle.Render("✖ error  ")
	case pipeline.StatusUnfixed:
		return warnStyle.Render("⚠ unfixed")
	default:
		return dimStyle.Render("· skipped")
	}
}

// reporter prints one line per file and a summary to out.
type reporter struct {
	out io.Writer
}

func (r *reporter) FileDone(_ context.Context, _ string, res pipeline.FileResult) {
	line := fmt.Sprintf("  %s  %s", statusTag(res.Status), res.Path)
	var detail []string
	if len(res.Categories) > 0 {
		detail = append(detail, strings.Join(res.CategoryNames(), ", "))
	}
	if res.Reason != "" {
		detail = append(detail, res.Reason)
	}
	if res.Err != nil {
		detail = append(detail, res.Err.Error())
	}
	if len(detail) > 0 {
		line += dimStyle.Render("  " + strings.Join(detail, " · "))
	}
	fmt.Fprintln(r.out, line)
}

func (r *reporter) RunDone(_ context.Context, o pipeline.Outcome) {
	c := o.Counts()
	fmt.Fprintln(r.out)
	if c.Total == 0 {
		fmt.Fprintln(r.out, dimStyle.Render("No changed source files to check."))
		return
	}
	summary := fmt.Sprintf("%d checked · %d fixed · %d unfixed · %d skipped · %d errors (%s)",
		c.Total, c.Fixed, c.Unfixed, c.Skipped, c.Errors,
		o.FinishedAt.Sub(o.StartedAt).Round(time.Millisecond))
	switch {
	case o.AnyChangeApplied:
		fmt.Fprintln(r.out, warnStyle.Render("Files were rewritten. Review and commit the changes: "+summary))
	case o.DryRun && c.Fixed > 0:
		fmt.Fprintln(r.out, dimStyle.Render("Dry run, nothing written: "+summary))
	case c.Errors > 0:
		fmt.Fprintln(r.out, errorStyle.Render(summary))
	default:
		fmt.Fprintln(r.out, successStyle.Render(summary))
	}
}
