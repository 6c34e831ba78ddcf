package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/validation"
)

type consentRepo struct {
	mu   sync.RWMutex
	rows map[pairKey]*repository.Consent
}

func copyConsent(c *repository.Consent) *repository.Consent {
	out := *c
	out.Scopes = cloneStrings(c.Scopes)
	return &out
}

func (r *consentRepo) Get(_ context.Context, accountID, clientID string) (*repository.Consent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.rows[pairKey{accountID, clientID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyConsent(c), nil
}

func (r *consentRepo) ListByAccount(_ context.Context, accountID string) ([]repository.Consent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []repository.Consent
	for k, c := range r.rows {
		if k.accountID == accountID {
			out = append(out, *copyConsent(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (r *consentRepo) EnsureExists(_ context.Context, accountID, clientID, pseudonym string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{accountID, clientID}
	if _, ok := r.rows[key]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	r.rows[key] = &repository.Consent{
		AccountID: accountID,
		ClientID:  clientID,
		Pseudonym: pseudonym,
		Scopes:    []string{},
		Status:    repository.ConsentActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, nil
}

func (r *consentRepo) MergeScopes(_ context.Context, accountID, clientID string, scopes []string, pseudonym string) (*repository.Consent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{accountID, clientID}
	now := time.Now().UTC()
	c, ok := r.rows[key]
	if !ok {
		c = &repository.Consent{
			AccountID: accountID,
			ClientID:  clientID,
			Pseudonym: pseudonym,
			CreatedAt: now,
		}
		r.rows[key] = c
	}
	c.Scopes = validation.Union(c.Scopes, scopes)
	c.Status = repository.ConsentActive
	c.UpdatedAt = now
	return copyConsent(c), nil
}

func (r *consentRepo) Revoke(_ context.Context, accountID, clientID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[pairKey{accountID, clientID}]
	if !ok {
		return false, nil
	}
	c.Scopes = []string{}
	c.Status = repository.ConsentRevoked
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}
