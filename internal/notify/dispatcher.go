package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/pipeline"
)

// Dispatcher fans a run summary out to all configured channels. It is a
// pipeline observer: only runs that applied a fix produce an event.
type Dispatcher struct {
	channels []Channel
}

// NewDispatcher creates a Dispatcher from cfg. Only channels with
// IsConfigured() == true are active.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	candidates := []Channel{
		NewSlack(cfg.Slack),
		NewWebhook(cfg.Webhook),
	}
	if cfg.GitHub.Token != "" {
		if gh, err := NewGitHub(cfg.GitHub); err != nil {
			slog.Warn("notify: GitHub channel disabled", "error", err)
		} else {
			candidates = append(candidates, gh)
		}
	}
	if cfg.GitLab.Token != "" {
		if gl, err := NewGitLab(cfg.GitLab); err != nil {
			slog.Warn("notify: GitLab channel disabled", "error", err)
		} else {
			candidates = append(candidates, gl)
		}
	}
	return NewDispatcherWith(candidates...)
}

// NewDispatcherWith builds a Dispatcher from explicit channels.
func NewDispatcherWith(channels ...Channel) *Dispatcher {
	d := &Dispatcher{}
	for _, ch := range channels {
		if ch != nil && ch.IsConfigured() {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// IsAnyConfigured returns true if at least one channel is ready to send.
func (d *Dispatcher) IsAnyConfigured() bool {
	return len(d.channels) > 0
}

// ChannelNames lists the active channels.
func (d *Dispatcher) ChannelNames() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Notify sends evt to all configured channels. Errors are logged but never returned.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) {
	for _, ch := range d.channels {
		if err := ch.Send(ctx, evt); err != nil {
			slog.Warn("notify: channel send failed", "channel", ch.Name(), "event", evt.Type, "error", err)
		}
	}
}

func (d *Dispatcher) FileDone(context.Context, string, pipeline.FileResult) {}

func (d *Dispatcher) RunDone(ctx context.Context, o pipeline.Outcome) {
	if !o.AnyChangeApplied || !d.IsAnyConfigured() {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	d.Notify(sendCtx, EventFromOutcome(o))
}

// EventFromOutcome summarises the files a run rewrote.
func EventFromOutcome(o pipeline.Outcome) Event {
	evt := Event{
		Type:    EventRemediationApplied,
		RunID:   o.RunID,
		Backend: o.Backend,
	}
	for _, r := range o.Results {
		if r.Status == pipeline.StatusFixed && r.Written {
			evt.Fixed = append(evt.Fixed, FixedFile{Path: r.Path, Categories: r.CategoryNames()})
		}
	}

	noun := "files"
	if len(evt.Fixed) == 1 {
		noun = "file"
	}
	evt.Title = fmt.Sprintf("ctrlscan-autofix rewrote %d %s", len(evt.Fixed), noun)

	var b strings.Builder
	fmt.Fprintf(&b, "Automated security fixes were applied by the `%s` backend (run `%s`):\n\n", o.Backend, o.RunID)
	for _, f := range evt.Fixed {
		fmt.Fprintf(&b, "- `%s`", f.Path)
		if len(f.Categories) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(f.Categories, ", "))
		}
		b.WriteString("\n")
	}
	c := o.Counts()
	fmt.Fprintf(&b, "\n%d checked, %d flagged but unfixed, %d errors.\n", c.Total, c.Unfixed, c.Errors)
	b.WriteString("The rewrites are machine-generated and unverified. Review them before merging.\n")
	evt.Body = b.String()

	evt.Metadata = map[string]any{
		"files_total": c.Total,
		"fixed":       c.Fixed,
		"unfixed":     c.Unfixed,
		"errors":      c.Errors,
	}
	return evt
}
