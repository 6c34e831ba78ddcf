package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
)

type consentLogRepo struct {
	mu      sync.Mutex // protege entries y locks
	entries map[pairKey][]repository.ConsentLog
	locks   map[pairKey]*sync.Mutex
}

func (r *consentLogRepo) pairLock(key pairKey) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// Atomic serializa por par y trabaja sobre una copia; solo se publica si fn no falla.
func (r *consentLogRepo) Atomic(ctx context.Context, accountID, clientID string, fn func(w repository.ConsentLogWriter) error) error {
	key := pairKey{accountID, clientID}
	l := r.pairLock(key)
	l.Lock()
	defer l.Unlock()

	r.mu.Lock()
	staged := append([]repository.ConsentLog(nil), r.entries[key]...)
	r.mu.Unlock()

	w := &memLogWriter{key: key, staged: staged}
	if err := fn(w); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.entries[key] = w.staged
	r.mu.Unlock()
	return nil
}

func (r *consentLogRepo) ListByPair(_ context.Context, accountID, clientID string, limit int) ([]repository.ConsentLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.entries[pairKey{accountID, clientID}]
	out := make([]repository.ConsentLog, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		e.Messages = cloneStrings(e.Messages)
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *consentLogRepo) CountByPair(_ context.Context, accountID, clientID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[pairKey{accountID, clientID}]), nil
}

type memLogWriter struct {
	key    pairKey
	staged []repository.ConsentLog
}

func (w *memLogWriter) DeleteAllExceptLatest(_ context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	n := len(w.staged) - keep
	if n <= 0 {
		return 0, nil
	}
	w.staged = append([]repository.ConsentLog(nil), w.staged[n:]...)
	return int64(n), nil
}

func (w *memLogWriter) Insert(_ context.Context, entry repository.ConsentLog) error {
	entry.AccountID = w.key.accountID
	entry.ClientID = w.key.clientID
	entry.Messages = cloneStrings(entry.Messages)
	w.staged = append(w.staged, entry)
	return nil
}
