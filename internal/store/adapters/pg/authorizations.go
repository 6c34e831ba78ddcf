package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
)

type authorizationRepo struct{ pool *pgxpool.Pool }

func (r *authorizationRepo) FindLatestCovering(ctx context.Context, accountID, clientID string, requested []string) (*repository.Authorization, error) {
	const query = `
		SELECT id, account_id, client_id, scopes, created_at
		FROM client_authorizations
		WHERE account_id = $1 AND client_id = $2 AND scopes @> $3::text[]
		ORDER BY created_at DESC
		LIMIT 1
	`
	if requested == nil {
		requested = []string{}
	}
	var a repository.Authorization
	err := r.pool.QueryRow(ctx, query, accountID, clientID, requested).Scan(
		&a.ID, &a.AccountID, &a.ClientID, &a.Scopes, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *authorizationRepo) Save(ctx context.Context, a repository.Authorization) error {
	if a.AccountID == "" || a.ClientID == "" {
		return repository.ErrInvalidInput
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Scopes == nil {
		a.Scopes = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO client_authorizations (id, account_id, client_id, scopes, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.AccountID, a.ClientID, a.Scopes, a.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}
