// Package pg implementa el adapter PostgreSQL para store.
// Usa pgxpool directamente.
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/store"
	migrations "github.com/dropDatabas3/consentd/migrations/postgres"
)

func init() {
	store.RegisterAdapter(&postgresAdapter{})
}

// postgresAdapter implementa store.Adapter para PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return "postgres" }

func (a *postgresAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}

	// Configurar pool
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.ConnMaxLifetime != "" {
		d, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("pg: conn max lifetime: %w", err)
		}
		poolCfg.MaxConnLifetime = d
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}

	// Verificar conexión
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}

	return &pgConnection{pool: pool}, nil
}

// pgConnection representa una conexión activa a PostgreSQL.
type pgConnection struct {
	pool *pgxpool.Pool
}

func (c *pgConnection) Name() string { return "postgres" }

func (c *pgConnection) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *pgConnection) Close() error {
	c.pool.Close()
	return nil
}

// ─── Repositorios ───

func (c *pgConnection) Accounts() repository.AccountRepository             { return &accountRepo{pool: c.pool} }
func (c *pgConnection) Consents() repository.ConsentRepository             { return &consentRepo{pool: c.pool} }
func (c *pgConnection) ConsentLogs() repository.ConsentLogRepository       { return &consentLogRepo{pool: c.pool} }
func (c *pgConnection) Authorizations() repository.AuthorizationRepository { return &authorizationRepo{pool: c.pool} }

// ─── Migraciones ───

// Migrate aplica las migraciones embebidas de migrations/postgres.
func (c *pgConnection) Migrate(ctx context.Context) (*store.MigrationResult, error) {
	m := store.NewMigrator(migrations.FS, migrations.Dir, store.DialectPostgres)
	return m.Run(ctx, &poolExecutor{pool: c.pool})
}

// poolExecutor adapta pgxpool.Pool a store.MigrationExecutor.
type poolExecutor struct {
	pool *pgxpool.Pool
}

func (e *poolExecutor) ExecSQL(ctx context.Context, query string, args ...any) error {
	_, err := e.pool.Exec(ctx, query, args...)
	return err
}

func (e *poolExecutor) QueryInts(ctx context.Context, query string) ([]int, error) {
	rows, err := e.pool.Query(ctx, query)
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
