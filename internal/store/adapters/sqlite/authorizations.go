package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/validation"
)

type authorizationRepo struct{ db *sql.DB }

// FindLatestCovering filtra la cobertura en Go: SQLite no tiene operador de contención sobre JSON.
func (r *authorizationRepo) FindLatestCovering(ctx context.Context, accountID, clientID string, requested []string) (*repository.Authorization, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, client_id, scopes, created_at
		FROM client_authorizations
		WHERE account_id = ? AND client_id = ?
		ORDER BY created_at DESC, rowid DESC`, accountID, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a repository.Authorization
		var scopes string
		var created int64
		if err := rows.Scan(&a.ID, &a.AccountID, &a.ClientID, &scopes, &created); err != nil {
			return nil, err
		}
		if a.Scopes, err = decodeStrings(scopes); err != nil {
			return nil, err
		}
		if validation.Covers(a.Scopes, requested) {
			a.CreatedAt = fromMillis(created)
			return &a, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, repository.ErrNotFound
}

func (r *authorizationRepo) Save(ctx context.Context, a repository.Authorization) error {
	if a.AccountID == "" || a.ClientID == "" {
		return repository.ErrInvalidInput
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	scopes, err := encodeStrings(a.Scopes)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO client_authorizations (id, account_id, client_id, scopes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.AccountID, a.ClientID, scopes, toMillis(a.CreatedAt))
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}
