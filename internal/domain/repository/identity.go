package repository

import (
	"context"
	"time"
)

// Identity es una identidad federada: el par (issuer, subject) que prueba un
// login en un sistema externo. El par es único a nivel global.
type Identity struct {
	AccountID       string
	Issuer          string // "github", "google", "https://idp.example.com", etc.
	ExternalSubject string // ID del usuario en el issuer
	CreatedAt       time.Time
}

// Account representa la cuenta canónica local. Puede tener varias identidades.
type Account struct {
	ID         string
	Identities []Identity
	CreatedAt  time.Time
}

// HasIdentity indica si la cuenta ya tiene vinculado el par.
func (a *Account) HasIdentity(issuer, externalSubject string) bool {
	for _, id := range a.Identities {
		if id.Issuer == issuer && id.ExternalSubject == externalSubject {
			return true
		}
	}
	return false
}

// AccountRepository define operaciones sobre cuentas e identidades federadas.
// Las identidades nunca se eliminan y las cuentas nunca se borran.
type AccountRepository interface {
	// Get obtiene una cuenta con todas sus identidades.
	// Retorna ErrNotFound si no existe.
	Get(ctx context.Context, accountID string) (*Account, error)

	// GetByIdentity busca la cuenta dueña del par (issuer, externalSubject).
	// Retorna ErrNotFound si el par nunca se vio.
	GetByIdentity(ctx context.Context, issuer, externalSubject string) (*Account, error)

	// ResolveOrCreate retorna la cuenta dueña del par o crea una nueva cuenta con
	// esa única identidad, todo en una transacción. created indica si se creó.
	// Dos llamadas concurrentes con el mismo par resuelven a la misma cuenta.
	ResolveOrCreate(ctx context.Context, accountID, issuer, externalSubject string) (acc *Account, created bool, err error)

	// Link vincula el par a la cuenta si nadie lo reclamó todavía.
	// Retorna el ID de la cuenta dueña del par después de la operación: si es
	// distinto de accountID, el par ya pertenecía a otra cuenta y no se tocó nada.
	// Retorna ErrNotFound si accountID no existe.
	Link(ctx context.Context, accountID, issuer, externalSubject string) (ownerID string, err error)
}
