// Package gate decide, por intento de autorización, si el consentimiento
// guardado cubre lo pedido, y registra la decisión del usuario cuando no.
package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/consentd/internal/audit"
	"github.com/dropDatabas3/consentd/internal/consent"
	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/metrics"
	"github.com/dropDatabas3/consentd/internal/observability/logger"
	"github.com/dropDatabas3/consentd/internal/validation"
)

// EvaluateRequest describe un intento de autorización.
type EvaluateRequest struct {
	AccountID       string
	ClientID        string
	RequestedScopes []string
	ForceReconsent  bool
}

// Decision resultado de Evaluate.
type Decision struct {
	// Covered: se puede saltar la pantalla de consentimiento.
	Covered bool

	// PriorAuthorizationID de la autorización previa que cubre lo pedido, si hay.
	PriorAuthorizationID string
}

// Deps dependencias del gate.
type Deps struct {
	Consents       consent.Service
	Authorizations repository.AuthorizationRepository
	Audit          *audit.Log

	// RequirePriorAuthorization: un consent que cubre pero sin autorización
	// previa reutilizable no cuenta como cubierto.
	RequirePriorAuthorization bool
}

// Gate es el punto de decisión consultado por el pipeline de autorización.
type Gate struct {
	consents       consent.Service
	authorizations repository.AuthorizationRepository
	audit          *audit.Log
	requirePrior   bool
}

// New crea un Gate.
func New(d Deps) *Gate {
	return &Gate{
		consents:       d.Consents,
		authorizations: d.Authorizations,
		audit:          d.Audit,
		requirePrior:   d.RequirePriorAuthorization,
	}
}

// Evaluate decide si el consent guardado cubre req. Cuando cubre y existe una
// autorización previa con al menos esos scopes, su ID queda en flow bajo
// KeyPriorAuthorizationID.
func (g *Gate) Evaluate(ctx context.Context, flow *Flow, req EvaluateRequest) (Decision, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("gate.evaluate"),
		logger.AccountID(req.AccountID), logger.ClientID(req.ClientID))

	if req.ForceReconsent {
		metrics.ConsentDecisions.WithLabelValues("forced").Inc()
		return Decision{}, nil
	}

	requested, err := validation.NormalizeScopes(req.RequestedScopes)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", repository.ErrInvalidInput, err)
	}

	// 1. ¿El consent guardado cubre lo pedido?
	c, err := g.consents.FindCoveringConsent(ctx, req.AccountID, req.ClientID, requested, false)
	if err != nil {
		log.Error("consent lookup failed", logger.Err(err))
		return Decision{}, err
	}
	if c == nil {
		metrics.ConsentDecisions.WithLabelValues("prompt").Inc()
		return Decision{}, nil
	}

	// 2. Autorización previa reutilizable
	prior, err := g.authorizations.FindLatestCovering(ctx, req.AccountID, req.ClientID, requested)
	switch {
	case err == nil:
		flow.Put(KeyPriorAuthorizationID, prior.ID)
		flow.Put(KeyAccountSub, c.Pseudonym)
		metrics.ConsentPriorAuthorizationReuse.Inc()
		metrics.ConsentDecisions.WithLabelValues("covered").Inc()
		log.Debug("covered by prior authorization", logger.String("authorization_id", prior.ID))
		return Decision{Covered: true, PriorAuthorizationID: prior.ID}, nil
	case !repository.IsNotFound(err):
		log.Error("prior authorization lookup failed", logger.Err(err))
		return Decision{}, fmt.Errorf("gate: prior authorization lookup: %w", err)
	}

	if g.requirePrior {
		metrics.ConsentDecisions.WithLabelValues("prompt").Inc()
		return Decision{}, nil
	}
	flow.Put(KeyAccountSub, c.Pseudonym)
	metrics.ConsentDecisions.WithLabelValues("covered").Inc()
	return Decision{Covered: true}, nil
}

// Commit guarda la decisión del usuario. Los errores de Grant, incluido
// consent.ErrScopeInsufficient, se retornan tal cual.
func (g *Gate) Commit(ctx context.Context, flow *Flow, accountID, clientID string, decisionScopes, minimalRequired []string) (*repository.Consent, error) {
	c, err := g.consents.Grant(ctx, accountID, clientID, decisionScopes, minimalRequired)
	if err != nil {
		return nil, err
	}
	flow.Put(KeyAccountSub, c.Pseudonym)
	return c, nil
}

// Rescind revoca el consent y registra una entrada REVOCATION. No-op si el
// par nunca tuvo consent.
func (g *Gate) Rescind(ctx context.Context, accountID, clientID string) error {
	if _, err := g.consents.Pseudonym(ctx, accountID, clientID); err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}

	revoked := false
	err := g.audit.Do(ctx, accountID, clientID, audit.KindRevocation, func(ac *audit.Context) error {
		if err := g.consents.Revoke(ctx, accountID, clientID); err != nil {
			ac.Record("Failed to revoke consent")
			return err
		}
		revoked = true
		ac.Record("Revoked consent")
		return nil
	})
	if revoked && err != nil {
		logger.From(ctx).Warn("consent revoked but audit entry was not written",
			logger.AccountID(accountID), logger.ClientID(clientID), logger.Err(err))
		return nil
	}
	return err
}

// RecordAuthorization registra una autorización completada por el pipeline de
// tokens y deja una entrada AUTHORIZATION. Si el flow reutilizó una
// autorización previa, la entrada lo menciona.
func (g *Gate) RecordAuthorization(ctx context.Context, flow *Flow, a repository.Authorization) (*repository.Authorization, error) {
	if strings.TrimSpace(a.AccountID) == "" || strings.TrimSpace(a.ClientID) == "" {
		return nil, fmt.Errorf("%w: account id and client id are required", repository.ErrInvalidInput)
	}
	scopes, err := validation.NormalizeScopes(a.Scopes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrInvalidInput, err)
	}
	a.Scopes = scopes
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	saved := false
	err = g.audit.Do(ctx, a.AccountID, a.ClientID, audit.KindAuthorization, func(ac *audit.Context) error {
		if err := g.authorizations.Save(ctx, a); err != nil {
			return err
		}
		saved = true
		ac.Record("Authorized oauth2-scopes [%s]", strings.Join(a.Scopes, ", "))
		if prior, ok := flow.Get(KeyPriorAuthorizationID); ok && prior != "" {
			ac.Record("Reused prior authorization %s", prior)
		}
		return nil
	})
	if !saved {
		return nil, err
	}
	if err != nil {
		logger.From(ctx).Warn("authorization saved but audit entry was not written", logger.Err(err))
	}
	return &a, nil
}
