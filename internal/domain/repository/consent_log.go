package repository

import (
	"context"
	"time"
)

// ConsentLog es una entrada del historial de eventos de consentimiento.
type ConsentLog struct {
	ID        string
	AccountID string
	ClientID  string
	Timestamp time.Time
	Kind      string
	Messages  []string
}

// ConsentLogWriter opera dentro de la unidad atómica de un par (cuenta, client).
type ConsentLogWriter interface {
	// DeleteAllExceptLatest borra todas las entradas del par salvo las keep más
	// recientes. Un error aquí NO invalida la unidad: el adapter lo aísla
	// (savepoint) para que Insert pueda seguir.
	DeleteAllExceptLatest(ctx context.Context, keep int) (deleted int64, err error)

	// Insert agrega una entrada al final del historial del par.
	Insert(ctx context.Context, entry ConsentLog) error
}

// ConsentLogRepository define el acceso al historial acotado de consents.
type ConsentLogRepository interface {
	// Atomic ejecuta fn como una unidad atómica serializada por par.
	// Si fn retorna error, la unidad se descarta.
	Atomic(ctx context.Context, accountID, clientID string, fn func(w ConsentLogWriter) error) error

	// ListByPair lista las entradas del par, más recientes primero.
	// limit <= 0 significa sin límite.
	ListByPair(ctx context.Context, accountID, clientID string, limit int) ([]ConsentLog, error)

	// CountByPair cuenta las entradas almacenadas del par.
	CountByPair(ctx context.Context, accountID, clientID string) (int, error)
}
