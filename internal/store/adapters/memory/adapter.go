// Package memory implementa un adapter en memoria para store.
// Pensado para desarrollo local y tests: no persiste nada entre reinicios.
package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(_ context.Context, _ store.AdapterConfig) (store.AdapterConnection, error) {
	return New(), nil
}

// Connection mantiene todas las tablas en memoria.
type Connection struct {
	accounts       *accountRepo
	consents       *consentRepo
	logs           *consentLogRepo
	authorizations *authorizationRepo
}

// New crea una conexión vacía. Útil en tests sin pasar por el registry.
func New() *Connection {
	return &Connection{
		accounts:       &accountRepo{byID: map[string]*accountRow{}, owners: map[identityKey]string{}},
		consents:       &consentRepo{rows: map[pairKey]*repository.Consent{}},
		logs:           &consentLogRepo{entries: map[pairKey][]repository.ConsentLog{}, locks: map[pairKey]*sync.Mutex{}},
		authorizations: &authorizationRepo{byPair: map[pairKey][]repository.Authorization{}},
	}
}

func (c *Connection) Name() string               { return "memory" }
func (c *Connection) Ping(context.Context) error { return nil }
func (c *Connection) Close() error               { return nil }

// ─── Repositorios ───

func (c *Connection) Accounts() repository.AccountRepository             { return c.accounts }
func (c *Connection) Consents() repository.ConsentRepository             { return c.consents }
func (c *Connection) ConsentLogs() repository.ConsentLogRepository       { return c.logs }
func (c *Connection) Authorizations() repository.AuthorizationRepository { return c.authorizations }

type pairKey struct{ accountID, clientID string }

type identityKey struct{ issuer, subject string }

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
