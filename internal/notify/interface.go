package notify

import "context"

// Event types.
const (
	EventRemediationApplied = "remediation_applied"
)

// Event is a run summary sent to the configured channels.
type Event struct {
	Type    string
	Title   string
	Body    string // markdown
	RunID   string
	Backend string
	// Fixed lists the rewritten files with their categories.
	Fixed    []FixedFile
	Metadata map[string]any
}

// FixedFile is one rewritten file in an Event.
type FixedFile struct {
	Path       string   `json:"path"`
	Categories []string `json:"categories"`
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
