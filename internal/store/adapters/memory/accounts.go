package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
)

type accountRow struct {
	id         string
	createdAt  time.Time
	identities []repository.Identity
}

type accountRepo struct {
	mu     sync.RWMutex
	byID   map[string]*accountRow
	owners map[identityKey]string
}

func (r *accountRepo) snapshot(row *accountRow) *repository.Account {
	acc := &repository.Account{
		ID:         row.id,
		CreatedAt:  row.createdAt,
		Identities: make([]repository.Identity, len(row.identities)),
	}
	copy(acc.Identities, row.identities)
	return acc
}

func (r *accountRepo) Get(_ context.Context, accountID string) (*repository.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.byID[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.snapshot(row), nil
}

func (r *accountRepo) GetByIdentity(_ context.Context, issuer, externalSubject string) (*repository.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[identityKey{issuer, externalSubject}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.snapshot(r.byID[owner]), nil
}

func (r *accountRepo) ResolveOrCreate(_ context.Context, accountID, issuer, externalSubject string) (*repository.Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identityKey{issuer, externalSubject}
	if owner, ok := r.owners[key]; ok {
		return r.snapshot(r.byID[owner]), false, nil
	}
	if _, taken := r.byID[accountID]; taken {
		return nil, false, repository.ErrConflict
	}

	now := time.Now().UTC()
	row := &accountRow{
		id:        accountID,
		createdAt: now,
		identities: []repository.Identity{{
			AccountID:       accountID,
			Issuer:          issuer,
			ExternalSubject: externalSubject,
			CreatedAt:       now,
		}},
	}
	r.byID[accountID] = row
	r.owners[key] = accountID
	return r.snapshot(row), true, nil
}

func (r *accountRepo) Link(_ context.Context, accountID, issuer, externalSubject string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.byID[accountID]
	if !ok {
		return "", repository.ErrNotFound
	}
	key := identityKey{issuer, externalSubject}
	if owner, ok := r.owners[key]; ok {
		return owner, nil
	}
	row.identities = append(row.identities, repository.Identity{
		AccountID:       accountID,
		Issuer:          issuer,
		ExternalSubject: externalSubject,
		CreatedAt:       time.Now().UTC(),
	})
	r.owners[key] = accountID
	return accountID, nil
}
