// Package consent implementa el store de consentimientos por (cuenta, client).
//
// Un consent visible es una fila activa con al menos un scope. Los scopes solo
// crecen por unión al conceder; revocar vacía el set y marca la fila como
// revocada sin tocar el pseudónimo.
package consent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/consentd/internal/audit"
	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/metrics"
	"github.com/dropDatabas3/consentd/internal/observability/logger"
	"github.com/dropDatabas3/consentd/internal/validation"
)

// Errors
var (
	// ErrScopeInsufficient: la decisión del usuario no incluye los scopes
	// mínimos requeridos. El pipeline lo traduce a access_denied.
	ErrScopeInsufficient = errors.New("consent: decision does not cover required scopes")
)

// Service expone el store de consents.
type Service interface {
	// List retorna los consents visibles de la cuenta.
	List(ctx context.Context, accountID string) ([]repository.Consent, error)

	// Get retorna el consent visible o repository.ErrNotFound.
	Get(ctx context.Context, accountID, clientID string) (*repository.Consent, error)

	// EnsureExists crea una fila activa sin scopes si no hay ninguna.
	EnsureExists(ctx context.Context, accountID, clientID string) error

	// Pseudonym retorna el identificador estable de la cuenta frente al client,
	// exista la fila activa o revocada.
	Pseudonym(ctx context.Context, accountID, clientID string) (string, error)

	// Revoke revoca el consent. No-op si no existe.
	Revoke(ctx context.Context, accountID, clientID string) error

	// Grant une decisionScopes al consent guardado. Falla con
	// ErrScopeInsufficient, sin cambios, si no cubren minimalRequired.
	Grant(ctx context.Context, accountID, clientID string, decisionScopes, minimalRequired []string) (*repository.Consent, error)

	// FindCoveringConsent retorna el consent visible si cubre requested, o nil.
	// Con forceReconsent siempre retorna nil.
	FindCoveringConsent(ctx context.Context, accountID, clientID string, requested []string, forceReconsent bool) (*repository.Consent, error)
}

// Deps dependencias.
type Deps struct {
	Accounts repository.AccountRepository
	Consents repository.ConsentRepository
	Audit    *audit.Log

	// NewPseudonym genera el sub por client. Default: uuid v4.
	NewPseudonym func() string
}

type service struct {
	accounts     repository.AccountRepository
	consents     repository.ConsentRepository
	audit        *audit.Log
	newPseudonym func() string
}

// NewService crea el servicio de consents.
func NewService(d Deps) Service {
	s := &service{
		accounts:     d.Accounts,
		consents:     d.Consents,
		audit:        d.Audit,
		newPseudonym: d.NewPseudonym,
	}
	if s.newPseudonym == nil {
		s.newPseudonym = uuid.NewString
	}
	return s
}

func requirePair(accountID, clientID string) error {
	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("%w: account id and client id are required", repository.ErrInvalidInput)
	}
	return nil
}

func normalize(scopes []string) ([]string, error) {
	out, err := validation.NormalizeScopes(scopes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrInvalidInput, err)
	}
	return out, nil
}

func (s *service) List(ctx context.Context, accountID string) ([]repository.Consent, error) {
	rows, err := s.consents.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("consent: list: %w", err)
	}
	visible := make([]repository.Consent, 0, len(rows))
	for i := range rows {
		if rows[i].Visible() {
			visible = append(visible, rows[i])
		}
	}
	return visible, nil
}

func (s *service) Get(ctx context.Context, accountID, clientID string) (*repository.Consent, error) {
	c, err := s.consents.Get(ctx, accountID, clientID)
	if err != nil {
		return nil, err
	}
	if !c.Visible() {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (s *service) EnsureExists(ctx context.Context, accountID, clientID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("consent.ensureExists"),
		logger.AccountID(accountID), logger.ClientID(clientID))

	if err := requirePair(accountID, clientID); err != nil {
		return err
	}
	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return err
	}

	created, err := s.consents.EnsureExists(ctx, accountID, clientID, s.newPseudonym())
	if err != nil {
		log.Error("ensure consent row failed", logger.Err(err))
		return fmt.Errorf("consent: ensure exists: %w", err)
	}
	if created {
		log.Debug("consent row created")
	}
	return nil
}

func (s *service) Pseudonym(ctx context.Context, accountID, clientID string) (string, error) {
	c, err := s.consents.Get(ctx, accountID, clientID)
	if err != nil {
		return "", err
	}
	return c.Pseudonym, nil
}

func (s *service) Revoke(ctx context.Context, accountID, clientID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("consent.revoke"),
		logger.AccountID(accountID), logger.ClientID(clientID))

	revoked, err := s.consents.Revoke(ctx, accountID, clientID)
	if err != nil {
		log.Error("revoke consent failed", logger.Err(err))
		return fmt.Errorf("consent: revoke: %w", err)
	}
	if revoked {
		metrics.ConsentRevocations.Inc()
		log.Info("consent revoked")
	}
	return nil
}

func (s *service) Grant(ctx context.Context, accountID, clientID string, decisionScopes, minimalRequired []string) (*repository.Consent, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("consent.grant"),
		logger.AccountID(accountID), logger.ClientID(clientID))

	// 1. Validar input
	if err := requirePair(accountID, clientID); err != nil {
		return nil, err
	}
	decision, err := normalize(decisionScopes)
	if err != nil {
		return nil, err
	}
	required, err := normalize(minimalRequired)
	if err != nil {
		return nil, err
	}

	// 2. La decisión tiene que incluir lo mínimo requerido
	if missing := validation.Missing(decision, required); len(missing) > 0 {
		metrics.ConsentGrants.WithLabelValues("insufficient").Inc()
		log.Info("consent decision rejected", logger.Scopes(missing))
		return nil, fmt.Errorf("%w: missing [%s]", ErrScopeInsufficient, strings.Join(missing, ", "))
	}

	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return nil, err
	}

	// 3. Merge + entrada CONSENT. La fila se confirma antes de escribir la entrada.
	var merged *repository.Consent
	auditErr := s.audit.Do(ctx, accountID, clientID, audit.KindConsent, func(ac *audit.Context) error {
		c, err := s.consents.MergeScopes(ctx, accountID, clientID, decision, s.newPseudonym())
		if err != nil {
			return err
		}
		merged = c
		ac.Record("Updated consented oauth2-scopes to [%s]", strings.Join(c.Scopes, ", "))
		return nil
	})
	if merged == nil {
		log.Error("merge consent scopes failed", logger.Err(auditErr))
		return nil, fmt.Errorf("consent: grant: %w", auditErr)
	}
	if auditErr != nil {
		log.Warn("consent granted but audit entry was not written", logger.Err(auditErr))
	}

	metrics.ConsentGrants.WithLabelValues("granted").Inc()
	log.Info("consent granted", logger.Scopes(merged.Scopes))
	return merged, nil
}

func (s *service) FindCoveringConsent(ctx context.Context, accountID, clientID string, requested []string, forceReconsent bool) (*repository.Consent, error) {
	if forceReconsent {
		return nil, nil
	}
	want, err := normalize(requested)
	if err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, accountID, clientID)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consent: lookup: %w", err)
	}
	if !validation.Covers(c.Scopes, want) {
		return nil, nil
	}
	return c, nil
}
