// Package federation implementa el ledger de identidades: mapea pares
// (issuer, externalSubject) verificados por un IdP externo a cuentas locales.
package federation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/consentd/internal/cache"
	"github.com/dropDatabas3/consentd/internal/config"
	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/metrics"
	"github.com/dropDatabas3/consentd/internal/observability/logger"
)

// Service resuelve y vincula identidades federadas.
type Service interface {
	// ResolveOrCreate retorna la cuenta dueña del par, creándola si es la
	// primera vez que se ve. Idempotente.
	ResolveOrCreate(ctx context.Context, issuer, externalSubject string) (*repository.Account, error)

	// LinkIdentity agrega el par a la cuenta. Si el par ya pertenece a otra
	// cuenta, según la política retorna esa cuenta sin cambios o
	// repository.ErrIdentityConflict.
	LinkIdentity(ctx context.Context, accountID, issuer, externalSubject string) (*repository.Account, error)

	GetAccount(ctx context.Context, accountID string) (*repository.Account, error)
}

// Deps dependencias del servicio.
type Deps struct {
	Accounts repository.AccountRepository

	// Cache opcional para la resolución (issuer, subject) → cuenta.
	Cache    cache.Client
	CacheTTL time.Duration

	// LinkConflict: config.LinkConflictKeepOwner (default) | config.LinkConflictReject
	LinkConflict string

	// NewID genera IDs de cuenta. Default: uuid v4.
	NewID func() string
}

type service struct {
	accounts     repository.AccountRepository
	cache        cache.Client
	cacheTTL     time.Duration
	linkConflict string
	newID        func() string
	group        singleflight.Group
}

// NewService crea el servicio de federación.
func NewService(d Deps) Service {
	s := &service{
		accounts:     d.Accounts,
		cache:        d.Cache,
		cacheTTL:     d.CacheTTL,
		linkConflict: d.LinkConflict,
		newID:        d.NewID,
	}
	if s.linkConflict == "" {
		s.linkConflict = config.LinkConflictKeepOwner
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func identityCacheKey(issuer, externalSubject string) string {
	// len(issuer) evita colisiones entre issuers que contienen ':'
	return fmt.Sprintf("federation:identity:%d:%s:%s", len(issuer), issuer, externalSubject)
}

func validatePair(issuer, externalSubject string) error {
	if strings.TrimSpace(issuer) == "" || strings.TrimSpace(externalSubject) == "" {
		return fmt.Errorf("%w: issuer and external subject are required", repository.ErrInvalidInput)
	}
	return nil
}

func (s *service) ResolveOrCreate(ctx context.Context, issuer, externalSubject string) (*repository.Account, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("federation.resolve"), logger.Issuer(issuer))

	if err := validatePair(issuer, externalSubject); err != nil {
		return nil, err
	}
	key := identityCacheKey(issuer, externalSubject)

	// 1. Cache: la asociación es inmutable, un hit es siempre válido
	if acc := s.cachedAccount(ctx, key); acc != nil {
		metrics.IdentityResolutions.WithLabelValues("cache_hit").Inc()
		return acc, nil
	}

	// 2. Storage, colapsando logins concurrentes del mismo par. La llamada
	// compartida no hereda la cancelación de quien la inició; cada caller deja
	// de esperar con su propio ctx.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		acc, created, err := s.accounts.ResolveOrCreate(shared, s.newID(), issuer, externalSubject)
		if repository.IsConflict(err) {
			// colisión de ID de cuenta: reintentar una vez con otro
			acc, created, err = s.accounts.ResolveOrCreate(shared, s.newID(), issuer, externalSubject)
		}
		if err != nil {
			return nil, err
		}
		if created {
			metrics.IdentityResolutions.WithLabelValues("created").Inc()
			log.Info("account created for new identity", logger.AccountID(acc.ID))
		} else {
			metrics.IdentityResolutions.WithLabelValues("existing").Inc()
		}
		s.remember(shared, key, acc.ID)
		return acc, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("federation: resolve identity: %w", ctx.Err())
	}
	if res.Err != nil {
		log.Error("identity resolution failed", logger.Err(res.Err))
		return nil, fmt.Errorf("federation: resolve identity: %w", res.Err)
	}

	return res.Val.(*repository.Account), nil
}

func (s *service) LinkIdentity(ctx context.Context, accountID, issuer, externalSubject string) (*repository.Account, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("federation.link"),
		logger.AccountID(accountID), logger.Issuer(issuer))

	if err := validatePair(issuer, externalSubject); err != nil {
		return nil, err
	}

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.HasIdentity(issuer, externalSubject) {
		metrics.IdentityLinks.WithLabelValues("already").Inc()
		return acc, nil
	}

	owner, err := s.accounts.Link(ctx, accountID, issuer, externalSubject)
	if err != nil {
		log.Error("link identity failed", logger.Err(err))
		return nil, fmt.Errorf("federation: link identity: %w", err)
	}
	s.remember(ctx, identityCacheKey(issuer, externalSubject), owner)

	if owner != accountID {
		metrics.IdentityLinks.WithLabelValues("conflict").Inc()
		log.Warn("identity already owned by another account",
			logger.String("owner_account_id", owner), logger.String("policy", s.linkConflict))
		if s.linkConflict == config.LinkConflictReject {
			return nil, fmt.Errorf("%w: owned by %s", repository.ErrIdentityConflict, owner)
		}
		return s.accounts.Get(ctx, owner)
	}

	metrics.IdentityLinks.WithLabelValues("linked").Inc()
	log.Info("identity linked")
	return s.accounts.Get(ctx, accountID)
}

func (s *service) GetAccount(ctx context.Context, accountID string) (*repository.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("%w: account id is required", repository.ErrInvalidInput)
	}
	return s.accounts.Get(ctx, accountID)
}

// ─── cache helpers ───

func (s *service) cachedAccount(ctx context.Context, key string) *repository.Account {
	if s.cache == nil {
		return nil
	}
	accountID, err := s.cache.Get(ctx, key)
	if err != nil {
		if !cache.IsNotFound(err) {
			logger.From(ctx).Warn("identity cache read failed", logger.Err(err))
		}
		return nil
	}
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		// cache apunta a algo que storage no conoce (ej: DB recreada)
		_ = s.cache.Delete(ctx, key)
		return nil
	}
	return acc
}

func (s *service) remember(ctx context.Context, key, accountID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, accountID, s.cacheTTL); err != nil {
		logger.From(ctx).Warn("identity cache write failed", logger.Err(err))
	}
}
