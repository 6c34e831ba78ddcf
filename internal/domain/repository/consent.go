package repository

import (
	"context"
	"time"
)

// ConsentStatus es el estado explícito de una fila de consentimiento.
type ConsentStatus string

const (
	ConsentActive  ConsentStatus = "active"
	ConsentRevoked ConsentStatus = "revoked"
)

// Consent representa el consentimiento de una cuenta a un client.
// Hay como máximo una fila por (AccountID, ClientID). Pseudonym se asigna al
// crear la fila y no cambia nunca, ni siquiera al revocar.
type Consent struct {
	AccountID string
	ClientID  string
	Pseudonym string
	Scopes    []string
	Status    ConsentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Visible indica si el consent cuenta como concedido: activo y con scopes.
func (c *Consent) Visible() bool {
	return c != nil && c.Status == ConsentActive && len(c.Scopes) > 0
}

// ConsentRepository define operaciones sobre client consents.
// Cada método de escritura es una única transacción read-modify-write.
type ConsentRepository interface {
	// Get obtiene la fila (activa o revocada).
	// Retorna ErrNotFound si no existe.
	Get(ctx context.Context, accountID, clientID string) (*Consent, error)

	// ListByAccount lista todas las filas de una cuenta, sin filtrar por estado.
	ListByAccount(ctx context.Context, accountID string) ([]Consent, error)

	// EnsureExists crea una fila activa sin scopes con el pseudónimo dado si no
	// existe ninguna. No hace nada si ya existe (activa o revocada).
	EnsureExists(ctx context.Context, accountID, clientID, pseudonym string) (created bool, err error)

	// MergeScopes une scopes con los ya guardados y deja la fila activa.
	// Si la fila no existe la crea con el pseudónimo dado.
	MergeScopes(ctx context.Context, accountID, clientID string, scopes []string, pseudonym string) (*Consent, error)

	// Revoke vacía los scopes y marca la fila como revocada, preservando el
	// pseudónimo. Retorna false si no había fila.
	Revoke(ctx context.Context, accountID, clientID string) (bool, error)
}
