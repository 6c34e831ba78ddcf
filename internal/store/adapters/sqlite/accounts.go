package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
)

type accountRepo struct{ db *sql.DB }

func loadAccount(ctx context.Context, q queryer, accountID string) (*repository.Account, error) {
	var acc repository.Account
	var created int64
	err := q.QueryRowContext(ctx,
		`SELECT id, created_at FROM accounts WHERE id = ?`, accountID,
	).Scan(&acc.ID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.CreatedAt = fromMillis(created)

	rows, err := q.QueryContext(ctx, `
		SELECT account_id, issuer, external_subject, created_at
		FROM account_identities WHERE account_id = ?
		ORDER BY created_at, issuer, external_subject`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id repository.Identity
		var ts int64
		if err := rows.Scan(&id.AccountID, &id.Issuer, &id.ExternalSubject, &ts); err != nil {
			return nil, err
		}
		id.CreatedAt = fromMillis(ts)
		acc.Identities = append(acc.Identities, id)
	}
	return &acc, rows.Err()
}

func ownerOf(ctx context.Context, q queryer, issuer, externalSubject string) (string, error) {
	var owner string
	err := q.QueryRowContext(ctx,
		`SELECT account_id FROM account_identities WHERE issuer = ? AND external_subject = ?`,
		issuer, externalSubject,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	return owner, err
}

func (r *accountRepo) Get(ctx context.Context, accountID string) (*repository.Account, error) {
	return loadAccount(ctx, r.db, accountID)
}

func (r *accountRepo) GetByIdentity(ctx context.Context, issuer, externalSubject string) (*repository.Account, error) {
	owner, err := ownerOf(ctx, r.db, issuer, externalSubject)
	if err != nil {
		return nil, err
	}
	return loadAccount(ctx, r.db, owner)
}

func (r *accountRepo) ResolveOrCreate(ctx context.Context, accountID, issuer, externalSubject string) (*repository.Account, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	owner, err := ownerOf(ctx, tx, issuer, externalSubject)
	if err == nil {
		acc, err := loadAccount(ctx, tx, owner)
		if err != nil {
			return nil, false, err
		}
		return acc, false, tx.Commit()
	} else if !repository.IsNotFound(err) {
		return nil, false, err
	}

	now := toMillis(time.Now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, created_at) VALUES (?, ?)`, accountID, now,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, false, repository.ErrConflict
		}
		return nil, false, fmt.Errorf("sqlite: insert account: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_identities (issuer, external_subject, account_id, created_at)
		VALUES (?, ?, ?, ?)`, issuer, externalSubject, accountID, now,
	); err != nil {
		return nil, false, fmt.Errorf("sqlite: insert identity: %w", err)
	}

	acc, err := loadAccount(ctx, tx, accountID)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

func (r *accountRepo) Link(ctx context.Context, accountID, issuer, externalSubject string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE id = ?`, accountID,
	).Scan(&exists); err != nil {
		return "", err
	}
	if exists == 0 {
		return "", repository.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_identities (issuer, external_subject, account_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (issuer, external_subject) DO NOTHING`,
		issuer, externalSubject, accountID, toMillis(time.Now()),
	); err != nil {
		return "", fmt.Errorf("sqlite: link identity: %w", err)
	}

	owner, err := ownerOf(ctx, tx, issuer, externalSubject)
	if err != nil {
		return "", err
	}
	return owner, tx.Commit()
}
