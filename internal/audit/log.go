// Package audit mantiene el historial acotado de eventos de consentimiento por
// par (cuenta, client). Cada par guarda como máximo MaxEntries entradas; las
// más viejas se descartan al escribir una nueva.
package audit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/metrics"
	"github.com/dropDatabas3/consentd/internal/observability/logger"
)

// Kinds de entrada.
const (
	KindConsent       = "CONSENT"
	KindRevocation    = "REVOCATION"
	KindAuthorization = "AUTHORIZATION"
)

// DefaultMaxEntries es el cap por par si no se configura otro.
const DefaultMaxEntries = 50

// Entry es una entrada persistida del historial.
type Entry = repository.ConsentLog

// Log escribe y lee el historial de auditoría.
type Log struct {
	repo       repository.ConsentLogRepository
	maxEntries int
	now        func() time.Time
	newID      func() string
}

// New crea un Log. maxEntries <= 0 usa DefaultMaxEntries.
func New(repo repository.ConsentLogRepository, maxEntries int) *Log {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Log{
		repo:       repo,
		maxEntries: maxEntries,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// MaxEntries retorna el cap configurado.
func (l *Log) MaxEntries() int { return l.maxEntries }

// Open abre un contexto de auditoría. El timestamp de la entrada es el de apertura.
func (l *Log) Open(accountID, clientID, kind string) *Context {
	return &Context{
		log:       l,
		accountID: accountID,
		clientID:  clientID,
		kind:      kind,
		openedAt:  l.now(),
	}
}

// Do abre un contexto, ejecuta fn y lo cierra exactamente una vez en cualquier
// salida de fn, incluido un panic (que se re-lanza después de escribir).
// Si fn falla, la entrada se escribe igual y se retorna el error de fn.
func (l *Log) Do(ctx context.Context, accountID, clientID, kind string, fn func(ac *Context) error) error {
	ac := l.Open(accountID, clientID, kind)
	defer func() {
		if r := recover(); r != nil {
			if err := ac.Finish(ctx); err != nil {
				logger.From(ctx).Error("audit finish after panic failed", logger.Err(err))
			}
			panic(r)
		}
	}()

	fnErr := fn(ac)
	finErr := ac.Finish(ctx)
	if fnErr != nil {
		return fnErr
	}
	return finErr
}

// List lista las entradas del par, más recientes primero.
func (l *Log) List(ctx context.Context, accountID, clientID string) ([]Entry, error) {
	entries, err := l.repo.ListByPair(ctx, accountID, clientID, 0)
	if err != nil {
		return nil, fmt.Errorf("audit: list entries: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Context acumula mensajes de un evento. Pertenece a un único goroutine;
// solo Finish es seguro ante llamadas repetidas o concurrentes.
type Context struct {
	log       *Log
	accountID string
	clientID  string
	kind      string
	openedAt  time.Time
	messages  []string
	finished  atomic.Bool
}

// Record agrega un mensaje formateado. Después de Finish no hace nada.
func (c *Context) Record(format string, args ...any) {
	if c.finished.Load() {
		return
	}
	c.messages = append(c.messages, fmt.Sprintf(format, args...))
}

// Messages retorna una copia de los mensajes acumulados.
func (c *Context) Messages() []string {
	out := make([]string, len(c.messages))
	copy(out, c.messages)
	return out
}

// Finish persiste la entrada una sola vez. En una unidad atómica por par:
// recorta a las MaxEntries-1 más recientes y agrega la nueva. Un fallo del
// recorte se loguea y se ignora; un fallo del insert se retorna.
func (c *Context) Finish(ctx context.Context) error {
	if !c.finished.CompareAndSwap(false, true) {
		return nil
	}
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("audit.finish"),
		logger.AccountID(c.accountID), logger.ClientID(c.clientID), logger.Kind(c.kind))

	entry := repository.ConsentLog{
		ID:        c.log.newID(),
		AccountID: c.accountID,
		ClientID:  c.clientID,
		Timestamp: c.openedAt,
		Kind:      c.kind,
		Messages:  c.Messages(),
	}

	err := c.log.repo.Atomic(ctx, c.accountID, c.clientID, func(w repository.ConsentLogWriter) error {
		if deleted, err := w.DeleteAllExceptLatest(ctx, c.log.maxEntries-1); err != nil {
			metrics.AuditTrimFailures.Inc()
			log.Warn("failed to trim consent log history", logger.Err(err))
		} else if deleted > 0 {
			log.Debug("consent log history trimmed", logger.Int64("deleted", deleted))
		}
		return w.Insert(ctx, entry)
	})
	if err != nil {
		metrics.AuditAppendFailures.Inc()
		log.Error("failed to write consent log entry", logger.Err(err))
		return fmt.Errorf("audit: append entry: %w", err)
	}

	metrics.AuditEntriesWritten.WithLabelValues(c.kind).Inc()
	return nil
}
