package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
)

type consentLogRepo struct{ pool *pgxpool.Pool }

// Atomic abre una tx y toma un advisory lock por par, liberado al terminar la tx.
func (r *consentLogRepo) Atomic(ctx context.Context, accountID, clientID string, fn func(w repository.ConsentLogWriter) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, accountID, clientID,
	); err != nil {
		return fmt.Errorf("pg: lock consent log: %w", err)
	}

	if err := fn(&logWriter{tx: tx, accountID: accountID, clientID: clientID}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *consentLogRepo) ListByPair(ctx context.Context, accountID, clientID string, limit int) ([]repository.ConsentLog, error) {
	query := `
		SELECT id, account_id, client_id, ts, kind, messages
		FROM client_consent_logs
		WHERE account_id = $1 AND client_id = $2
		ORDER BY seq DESC`
	args := []any{accountID, clientID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []repository.ConsentLog
	for rows.Next() {
		var l repository.ConsentLog
		if err := rows.Scan(&l.ID, &l.AccountID, &l.ClientID, &l.Timestamp, &l.Kind, &l.Messages); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *consentLogRepo) CountByPair(ctx context.Context, accountID, clientID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM client_consent_logs WHERE account_id = $1 AND client_id = $2`,
		accountID, clientID,
	).Scan(&n)
	return n, err
}

type logWriter struct {
	tx        pgx.Tx
	accountID string
	clientID  string
}

// DeleteAllExceptLatest corre en un savepoint (tx anidada de pgx): si falla,
// solo se revierte el borrado y la tx externa sigue usable.
func (w *logWriter) DeleteAllExceptLatest(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	sp, err := w.tx.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer sp.Rollback(ctx)

	tag, err := sp.Exec(ctx, `
		DELETE FROM client_consent_logs
		WHERE account_id = $1 AND client_id = $2
		  AND seq NOT IN (
			SELECT seq FROM client_consent_logs
			WHERE account_id = $1 AND client_id = $2
			ORDER BY seq DESC LIMIT $3
		  )`, w.accountID, w.clientID, keep)
	if err != nil {
		return 0, err
	}
	if err := sp.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (w *logWriter) Insert(ctx context.Context, entry repository.ConsentLog) error {
	messages := entry.Messages
	if messages == nil {
		messages = []string{}
	}
	_, err := w.tx.Exec(ctx, `
		INSERT INTO client_consent_logs (id, account_id, client_id, ts, kind, messages)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, w.accountID, w.clientID, entry.Timestamp, entry.Kind, messages)
	return err
}
