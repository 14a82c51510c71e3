package history

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
)

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID         string `db:"id"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
	Backend    string `db:"backend"`
	BaseRef    string `db:"base_ref"`
	DryRun     int    `db:"dry_run"`
	FinalState string `db:"final_state"`
	ExitCode   int    `db:"exit_code"`
	FilesTotal int    `db:"files_total"`
	Fixed      int    `db:"fixed"`
	Unfixed    int    `db:"unfixed"`
	Skipped    int    `db:"skipped"`
	Errors     int    `db:"errors"`
}

// FileRecord is one row of the file_results table.
type FileRecord struct {
	RunID      string `db:"run_id"`
	Seq        int    `db:"seq"`
	Path       string `db:"path"`
	Status     string `db:"status"`
	Categories string `db:"categories"`
	Reason     string `db:"reason"`
	ErrorText  string `db:"error_text"`
	DurationMS int64  `db:"duration_ms"`
}

// Store persists run history. Nothing in a run reads it back.
type Store interface {
	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	// SaveRun writes a run and its file results in one transaction.
	SaveRun(ctx context.Context, run RunRecord, files []FileRecord) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// RunFiles returns the file results of one run in processing order.
	RunFiles(ctx context.Context, runID string) ([]FileRecord, error)

	Ping(ctx context.Context) error
	Close() error

	// Driver returns "sqlite", "mysql" or "postgres".
	Driver() string
}

// Open returns a Store for cfg.Driver. SQLite is the default.
func Open(cfg config.HistoryConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "sqlite3", "":
		return openSQLite(cfg)
	case "mysql":
		return openMySQL(cfg)
	case "postgres", "postgresql", "pgx":
		return openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported history driver %q (supported: sqlite, mysql, postgres)", cfg.Driver)
	}
}
