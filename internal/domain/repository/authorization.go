package repository

import (
	"context"
	"time"
)

// Authorization es una autorización previa completada por el pipeline de
// tokens para (cuenta, client) y el set de scopes que cubrió.
type Authorization struct {
	ID        string
	AccountID string
	ClientID  string
	Scopes    []string
	CreatedAt time.Time
}

// AuthorizationRepository expone las autorizaciones previas.
// El núcleo de consent solo las lee; Save existe para el pipeline de tokens.
type AuthorizationRepository interface {
	// FindLatestCovering retorna la autorización más reciente del par cuyos
	// scopes incluyen todos los requested.
	// Retorna ErrNotFound si no hay ninguna.
	FindLatestCovering(ctx context.Context, accountID, clientID string, requested []string) (*Authorization, error)

	// Save registra una autorización completada.
	Save(ctx context.Context, a Authorization) error
}
