package sqlite

import (
	"context"
	"database/sql"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
)

type consentLogRepo struct{ db *sql.DB }

func (r *consentLogRepo) Atomic(ctx context.Context, accountID, clientID string, fn func(w repository.ConsentLogWriter) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&logWriter{tx: tx, accountID: accountID, clientID: clientID}); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *consentLogRepo) ListByPair(ctx context.Context, accountID, clientID string, limit int) ([]repository.ConsentLog, error) {
	if limit <= 0 {
		limit = -1 // LIMIT -1: sin límite en SQLite
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, client_id, ts, kind, messages
		FROM client_consent_logs
		WHERE account_id = ? AND client_id = ?
		ORDER BY seq DESC
		LIMIT ?`, accountID, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []repository.ConsentLog
	for rows.Next() {
		var l repository.ConsentLog
		var ts int64
		var messages string
		if err := rows.Scan(&l.ID, &l.AccountID, &l.ClientID, &ts, &l.Kind, &messages); err != nil {
			return nil, err
		}
		l.Timestamp = fromMillis(ts)
		if l.Messages, err = decodeStrings(messages); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *consentLogRepo) CountByPair(ctx context.Context, accountID, clientID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM client_consent_logs WHERE account_id = ? AND client_id = ?`,
		accountID, clientID,
	).Scan(&n)
	return n, err
}

type logWriter struct {
	tx        *sql.Tx
	accountID string
	clientID  string
}

// DeleteAllExceptLatest corre dentro de un SAVEPOINT: si falla se revierte
// solo el borrado y la tx sigue viva para el Insert.
func (w *logWriter) DeleteAllExceptLatest(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	if _, err := w.tx.ExecContext(ctx, `SAVEPOINT consent_log_trim`); err != nil {
		return 0, err
	}

	res, err := w.tx.ExecContext(ctx, `
		DELETE FROM client_consent_logs
		WHERE account_id = ? AND client_id = ?
		  AND seq NOT IN (
			SELECT seq FROM client_consent_logs
			WHERE account_id = ? AND client_id = ?
			ORDER BY seq DESC LIMIT ?
		  )`, w.accountID, w.clientID, w.accountID, w.clientID, keep)
	if err != nil {
		_, _ = w.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT consent_log_trim`)
		_, _ = w.tx.ExecContext(ctx, `RELEASE SAVEPOINT consent_log_trim`)
		return 0, err
	}
	if _, err := w.tx.ExecContext(ctx, `RELEASE SAVEPOINT consent_log_trim`); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (w *logWriter) Insert(ctx context.Context, entry repository.ConsentLog) error {
	messages, err := encodeStrings(entry.Messages)
	if err != nil {
		return err
	}
	_, err = w.tx.ExecContext(ctx, `
		INSERT INTO client_consent_logs (id, account_id, client_id, ts, kind, messages)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, w.accountID, w.clientID, toMillis(entry.Timestamp), entry.Kind, messages)
	return err
}
