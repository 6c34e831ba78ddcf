package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
)

type accountRepo struct{ pool *pgxpool.Pool }

// querier es lo común entre pool y tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadAccount(ctx context.Context, q querier, accountID string) (*repository.Account, error) {
	var acc repository.Account
	err := q.QueryRow(ctx,
		`SELECT id, created_at FROM accounts WHERE id = $1`, accountID,
	).Scan(&acc.ID, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT account_id, issuer, external_subject, created_at
		FROM account_identities WHERE account_id = $1
		ORDER BY created_at, issuer, external_subject`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id repository.Identity
		if err := rows.Scan(&id.AccountID, &id.Issuer, &id.ExternalSubject, &id.CreatedAt); err != nil {
			return nil, err
		}
		acc.Identities = append(acc.Identities, id)
	}
	return &acc, rows.Err()
}

func (r *accountRepo) Get(ctx context.Context, accountID string) (*repository.Account, error) {
	return loadAccount(ctx, r.pool, accountID)
}

func (r *accountRepo) GetByIdentity(ctx context.Context, issuer, externalSubject string) (*repository.Account, error) {
	owner, err := r.owner(ctx, r.pool, issuer, externalSubject)
	if err != nil {
		return nil, err
	}
	return loadAccount(ctx, r.pool, owner)
}

func (r *accountRepo) owner(ctx context.Context, q querier, issuer, externalSubject string) (string, error) {
	var owner string
	err := q.QueryRow(ctx,
		`SELECT account_id FROM account_identities WHERE issuer = $1 AND external_subject = $2`,
		issuer, externalSubject,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	return owner, err
}

func (r *accountRepo) ResolveOrCreate(ctx context.Context, accountID, issuer, externalSubject string) (*repository.Account, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	// 1. Identidad ya vista → su cuenta
	owner, err := r.owner(ctx, tx, issuer, externalSubject)
	if err == nil {
		acc, err := loadAccount(ctx, tx, owner)
		if err != nil {
			return nil, false, err
		}
		return acc, false, tx.Commit(ctx)
	} else if !repository.IsNotFound(err) {
		return nil, false, err
	}

	// 2. Crear cuenta + identidad. Si otro la reclamó en paralelo, el
	// ON CONFLICT espera a su commit y no inserta nada.
	if _, err := tx.Exec(ctx, `INSERT INTO accounts (id, created_at) VALUES ($1, NOW())`, accountID); err != nil {
		if isUniqueViolation(err) {
			return nil, false, repository.ErrConflict
		}
		return nil, false, fmt.Errorf("pg: insert account: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO account_identities (issuer, external_subject, account_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (issuer, external_subject) DO NOTHING`,
		issuer, externalSubject, accountID)
	if err != nil {
		return nil, false, fmt.Errorf("pg: insert identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		acc, err := r.GetByIdentity(ctx, issuer, externalSubject)
		return acc, false, err
	}

	acc, err := loadAccount(ctx, tx, accountID)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

func (r *accountRepo) Link(ctx context.Context, accountID, issuer, externalSubject string) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID,
	).Scan(&exists); err != nil {
		return "", err
	}
	if !exists {
		return "", repository.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO account_identities (issuer, external_subject, account_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (issuer, external_subject) DO NOTHING`,
		issuer, externalSubject, accountID); err != nil {
		return "", fmt.Errorf("pg: link identity: %w", err)
	}

	owner, err := r.owner(ctx, tx, issuer, externalSubject)
	if err != nil {
		return "", err
	}
	return owner, tx.Commit(ctx)
}

// isUniqueViolation detecta SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
