package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
)

type consentRepo struct{ pool *pgxpool.Pool }

const consentColumns = `account_id, client_id, account_sub, scopes, status, created_at, updated_at`

func scanConsent(row pgx.Row) (*repository.Consent, error) {
	var c repository.Consent
	var status string
	if err := row.Scan(&c.AccountID, &c.ClientID, &c.Pseudonym, &c.Scopes, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = repository.ConsentStatus(status)
	if c.Scopes == nil {
		c.Scopes = []string{}
	}
	return &c, nil
}

func (r *consentRepo) Get(ctx context.Context, accountID, clientID string) (*repository.Consent, error) {
	c, err := scanConsent(r.pool.QueryRow(ctx,
		`SELECT `+consentColumns+` FROM client_consents WHERE account_id = $1 AND client_id = $2`,
		accountID, clientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return c, err
}

func (r *consentRepo) ListByAccount(ctx context.Context, accountID string) ([]repository.Consent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+consentColumns+` FROM client_consents WHERE account_id = $1 ORDER BY client_id`,
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
	const query = `
		INSERT INTO client_consents (account_id, client_id, account_sub, scopes, status, created_at, updated_at)
		VALUES ($1, $2, $3, '{}', 'active', NOW(), NOW())
		ON CONFLICT (account_id, client_id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query, accountID, clientID, pseudonym)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MergeScopes hace la unión dentro del upsert; el lock de fila del
// ON CONFLICT serializa escrituras concurrentes sobre el mismo par.
func (r *consentRepo) MergeScopes(ctx context.Context, accountID, clientID string, scopes []string, pseudonym string) (*repository.Consent, error) {
	const query = `
		INSERT INTO client_consents (account_id, client_id, account_sub, scopes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text[], 'active', NOW(), NOW())
		ON CONFLICT (account_id, client_id) DO UPDATE SET
			scopes = ARRAY(
				SELECT DISTINCT s FROM unnest(client_consents.scopes || EXCLUDED.scopes) AS s ORDER BY s
			),
			status = 'active',
			updated_at = NOW()
		RETURNING ` + consentColumns
	if scopes == nil {
		scopes = []string{}
	}
	return scanConsent(r.pool.QueryRow(ctx, query, accountID, clientID, pseudonym, scopes))
}

func (r *consentRepo) Revoke(ctx context.Context, accountID, clientID string) (bool, error) {
	const query = `
		UPDATE client_consents SET scopes = '{}', status = 'revoked', updated_at = NOW()
		WHERE account_id = $1 AND client_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, accountID, clientID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
