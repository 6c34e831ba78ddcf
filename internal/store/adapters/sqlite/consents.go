package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/validation"
)

type consentRepo struct{ db *sql.DB }

const consentColumns = `account_id, client_id, account_sub, scopes, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsent(row rowScanner) (*repository.Consent, error) {
	var c repository.Consent
	var scopes, status string
	var created, updated int64
	if err := row.Scan(&c.AccountID, &c.ClientID, &c.Pseudonym, &scopes, &status, &created, &updated); err != nil {
		return nil, err
	}
	decoded, err := decodeStrings(scopes)
	if err != nil {
		return nil, err
	}
	c.Scopes = decoded
	c.Status = repository.ConsentStatus(status)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}

func getConsent(ctx context.Context, q queryer, accountID, clientID string) (*repository.Consent, error) {
	c, err := scanConsent(q.QueryRowContext(ctx,
		`SELECT `+consentColumns+` FROM client_consents WHERE account_id = ? AND client_id = ?`,
		accountID, clientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return c, err
}

func (r *consentRepo) Get(ctx context.Context, accountID, clientID string) (*repository.Consent, error) {
	return getConsent(ctx, r.db, accountID, clientID)
}

func (r *consentRepo) ListByAccount(ctx context.Context, accountID string) ([]repository.Consent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+consentColumns+` FROM client_consents WHERE account_id = ? ORDER BY client_id`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var consents []repository.Consent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		consents = append(consents, *c)
	}
	return consents, rows.Err()
}

func (r *consentRepo) EnsureExists(ctx context.Context, accountID, clientID, pseudonym string) (bool, error) {
	now := toMillis(time.Now())
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO client_consents (account_id, client_id, account_sub, scopes, status, created_at, updated_at)
		VALUES (?, ?, ?, '[]', 'active', ?, ?)
		ON CONFLICT (account_id, client_id) DO NOTHING`,
		accountID, clientID, pseudonym, now, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MergeScopes hace read-modify-write en una tx; la conexión única la serializa.
func (r *consentRepo) MergeScopes(ctx context.Context, accountID, clientID string, scopes []string, pseudonym string) (*repository.Consent, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := toMillis(time.Now())
	current, err := getConsent(ctx, tx, accountID, clientID)
	switch {
	case repository.IsNotFound(err):
		encoded, err := encodeStrings(validation.Union(nil, scopes))
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO client_consents (account_id, client_id, account_sub, scopes, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, 'active', ?, ?)`,
			accountID, clientID, pseudonym, encoded, now, now); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		encoded, err := encodeStrings(validation.Union(current.Scopes, scopes))
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE client_consents SET scopes = ?, status = 'active', updated_at = ?
			WHERE account_id = ? AND client_id = ?`,
			encoded, now, accountID, clientID); err != nil {
			return nil, err
		}
	}

	merged, err := getConsent(ctx, tx, accountID, clientID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return merged, nil
}

func (r *consentRepo) Revoke(ctx context.Context, accountID, clientID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE client_consents SET scopes = '[]', status = 'revoked', updated_at = ?
		WHERE account_id = ? AND client_id = ?`,
		toMillis(time.Now()), accountID, clientID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
