// Package sqlite implementa el adapter SQLite (modernc, sin cgo) para store.
//
// Una sola conexión abierta: SQLite serializa escritores de todas formas y así
// cada transacción queda aislada sin depender de busy retries.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/store"
	migrations "github.com/dropDatabas3/consentd/migrations/sqlite"
)

func init() {
	store.RegisterAdapter(&sqliteAdapter{})
}

type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string { return "sqlite" }

func (a *sqliteAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	path := strings.TrimSpace(cfg.DSN)
	if path == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}
	dsn := path
	if !strings.Contains(path, "?") {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping db: %w", err)
	}
	return &sqliteConnection{db: db}, nil
}

type sqliteConnection struct {
	db *sql.DB
}

func (c *sqliteConnection) Name() string { return "sqlite" }

func (c *sqliteConnection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *sqliteConnection) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// ─── Repositorios ───

func (c *sqliteConnection) Accounts() repository.AccountRepository             { return &accountRepo{db: c.db} }
func (c *sqliteConnection) Consents() repository.ConsentRepository             { return &consentRepo{db: c.db} }
func (c *sqliteConnection) ConsentLogs() repository.ConsentLogRepository       { return &consentLogRepo{db: c.db} }
func (c *sqliteConnection) Authorizations() repository.AuthorizationRepository { return &authorizationRepo{db: c.db} }

// ─── Migraciones ───

// Migrate aplica las migraciones embebidas de migrations/sqlite.
func (c *sqliteConnection) Migrate(ctx context.Context) (*store.MigrationResult, error) {
	m := store.NewMigrator(migrations.FS, migrations.Dir, store.DialectSQLite)
	return m.Run(ctx, &dbExecutor{db: c.db})
}

type dbExecutor struct{ db *sql.DB }

func (e *dbExecutor) ExecSQL(ctx context.Context, query string, args ...any) error {
	_, err := e.db.ExecContext(ctx, query, args...)
	return err
}

func (e *dbExecutor) QueryInts(ctx context.Context, query string) ([]int, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ─── Helpers ───

// queryer es lo común entre *sql.DB y *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func encodeStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(raw string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("sqlite: decode string list: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
