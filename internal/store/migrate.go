package store

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Las migraciones SQL se embeben en el binario (ver /migrations).
// Formato de archivo: {version}_{name}.sql (ej: 0001_init.sql)

// Dialect selecciona DDL y placeholders de la tabla de tracking.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// MigrationExecutor abstrae pgx vs database/sql para el Migrator.
type MigrationExecutor interface {
	// ExecSQL ejecuta una sentencia (o un script completo si no hay args).
	ExecSQL(ctx context.Context, query string, args ...any) error

	// QueryInts ejecuta una query de una sola columna entera.
	QueryInts(ctx context.Context, query string) ([]int, error)
}

// Migrator aplica migraciones SQL a una base de datos.
type Migrator struct {
	migrationsFS  fs.FS
	migrationsDir string
	dialect       Dialect
}

// NewMigrator crea un nuevo Migrator.
func NewMigrator(migrationsFS fs.FS, migrationsDir string, dialect Dialect) *Migrator {
	if migrationsDir == "" {
		migrationsDir = "."
	}
	return &Migrator{
		migrationsFS:  migrationsFS,
		migrationsDir: migrationsDir,
		dialect:       dialect,
	}
}

// Migration representa una migración individual.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationResult resultado de aplicar migraciones.
type MigrationResult struct {
	Applied  []int
	Skipped  []int
	Duration time.Duration
}

// migrationFilePattern patrón para nombres de archivo de migración.
var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// ParseMigrations lee y parsea las migraciones del FS embebido, ordenadas por versión.
func (m *Migrator) ParseMigrations() ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(m.migrationsFS, m.migrationsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matches := migrationFilePattern.FindStringSubmatch(filepath.Base(path))
		if matches == nil {
			return nil // Ignorar archivos que no coinciden
		}

		version, _ := strconv.Atoi(matches[1])
		content, err := fs.ReadFile(m.migrationsFS, path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    matches[2],
			SQL:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicated migration version %d", migrations[i].Version)
		}
	}
	return migrations, nil
}

// Run aplica migraciones pendientes.
func (m *Migrator) Run(ctx context.Context, exec MigrationExecutor) (*MigrationResult, error) {
	start := time.Now()
	result := &MigrationResult{}

	if err := exec.ExecSQL(ctx, m.trackingTableDDL()); err != nil {
		return result, fmt.Errorf("creating migrations table: %w", err)
	}

	versions, err := exec.QueryInts(ctx, "SELECT version FROM _migrations")
	if err != nil {
		return result, fmt.Errorf("getting applied migrations: %w", err)
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	migrations, err := m.ParseMigrations()
	if err != nil {
		return result, fmt.Errorf("parsing migrations: %w", err)
	}

	for _, mig := range migrations {
		if applied[mig.Version] {
			result.Skipped = append(result.Skipped, mig.Version)
			continue
		}
		if err := exec.ExecSQL(ctx, mig.SQL); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("applying migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		if err := exec.ExecSQL(ctx, m.recordSQL(), mig.Version, mig.Name); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("recording migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		result.Applied = append(result.Applied, mig.Version)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (m *Migrator) trackingTableDDL() string {
	if m.dialect == DialectPostgres {
		return `
			CREATE TABLE IF NOT EXISTS _migrations (
				version INT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				applied_at TIMESTAMPTZ DEFAULT NOW()
			)`
	}
	return `
		CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`
}

func (m *Migrator) recordSQL() string {
	if m.dialect == DialectPostgres {
		return "INSERT INTO _migrations (version, name) VALUES ($1, $2)"
	}
	return "INSERT INTO _migrations (version, name) VALUES (?, ?)"
}
