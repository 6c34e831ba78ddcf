package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/validation"
)

type authorizationRepo struct {
	mu     sync.RWMutex
	byPair map[pairKey][]repository.Authorization
}

func (r *authorizationRepo) FindLatestCovering(_ context.Context, accountID, clientID string, requested []string) (*repository.Authorization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byPair[pairKey{accountID, clientID}]
	var best *repository.Authorization
	for i := range list {
		a := list[i]
		if !validation.Covers(a.Scopes, requested) {
			continue
		}
		// empate en CreatedAt: gana la insertada después
		if best == nil || !a.CreatedAt.Before(best.CreatedAt) {
			cp := a
			cp.Scopes = cloneStrings(a.Scopes)
			best = &cp
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (r *authorizationRepo) Save(_ context.Context, a repository.Authorization) error {
	if a.AccountID == "" || a.ClientID == "" {
		return repository.ErrInvalidInput
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Scopes = cloneStrings(a.Scopes)

	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{a.AccountID, a.ClientID}
	r.byPair[key] = append(r.byPair[key], a)
	return nil
}
