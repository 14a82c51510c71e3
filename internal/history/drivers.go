package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
)

// openSQLite opens (or creates) the SQLite database at cfg.Path.
func openSQLite(cfg config.HistoryConfig) (Store, error) {
	path := cfg.Path
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, config.DefaultDBFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	return ping(&sqlStore{db: db, driver: "sqlite"})
}

// openMySQL opens a MySQL connection using cfg.DSN.
func openMySQL(cfg config.HistoryConfig) (Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required when history.driver is mysql")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return ping(&sqlStore{db: db, driver: "mysql"})
}

// openPostgres opens a PostgreSQL connection through the pgx stdlib driver.
// cfg.DSN accepts a URL (postgres://...) or a key=value string.
func openPostgres(cfg config.HistoryConfig) (Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("history.dsn is required when history.driver is postgres")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return ping(&sqlStore{db: db, driver: "postgres", numbered: true})
}

func ping(s *sqlStore) (Store, error) {
	if err := s.Ping(context.Background()); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("pinging %s: %w", s.driver, err)
	}
	return s, nil
}
