// Package app arma el grafo de dependencias del servicio a partir de la config.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/consentd/internal/audit"
	"github.com/dropDatabas3/consentd/internal/cache"
	"github.com/dropDatabas3/consentd/internal/config"
	"github.com/dropDatabas3/consentd/internal/consent"
	"github.com/dropDatabas3/consentd/internal/federation"
	"github.com/dropDatabas3/consentd/internal/gate"
	healthctrl "github.com/dropDatabas3/consentd/internal/http/controllers/health"
	mectrl "github.com/dropDatabas3/consentd/internal/http/controllers/me"
	pipelinectrl "github.com/dropDatabas3/consentd/internal/http/controllers/pipeline"
	mw "github.com/dropDatabas3/consentd/internal/http/middlewares"
	"github.com/dropDatabas3/consentd/internal/http/router"
	"github.com/dropDatabas3/consentd/internal/metrics"
	"github.com/dropDatabas3/consentd/internal/observability/logger"
	"github.com/dropDatabas3/consentd/internal/rate"
	"github.com/dropDatabas3/consentd/internal/store"

	// Registra los adapters de storage vía init()
	_ "github.com/dropDatabas3/consentd/internal/store/adapters/dal"
)

// Version se pisa en build con -ldflags.
var Version = "dev"

// Container agrupa los servicios ya cableados.
type Container struct {
	Store      store.AdapterConnection
	Cache      cache.Client
	Audit      *audit.Log
	Federation federation.Service
	Consents   consent.Service
	Gate       *gate.Gate
	Handler    http.Handler
}

// Options permite inyectar un registry propio (tests).
type Options struct {
	Registry interface {
		prometheus.Registerer
		prometheus.Gatherer
	}
}

// OpenStore abre el store configurado.
func OpenStore(ctx context.Context, cfg *config.Config) (store.AdapterConnection, error) {
	return store.OpenAdapter(ctx, store.AdapterConfig{
		Name:            cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		AutoMigrate:     cfg.Storage.AutoMigrate,
	})
}

// Build crea el container completo. Llamar Close al terminar.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	log := logger.L().With(logger.Component("app"))

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if opts.Registry != nil {
		reg, gatherer = opts.Registry, opts.Registry
	}
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("app: register metrics: %w", err)
	}
	httpMetrics, err := mw.NewHTTPMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("app: http metrics: %w", err)
	}

	// 1. Store
	conn, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}
	log.Info("store ready", logger.String("driver", conn.Name()))

	// 2. Cache
	cc, err := cache.New(cache.Config{
		Driver:     cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix + ":",
		DefaultTTL: cfg.MemoryTTL(),
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("app: cache: %w", err)
	}

	// 3. Servicios del núcleo
	auditLog := audit.New(conn.ConsentLogs(), cfg.Audit.MaxEntries)
	fed := federation.NewService(federation.Deps{
		Accounts:     conn.Accounts(),
		Cache:        cc,
		CacheTTL:     cfg.Federation.ResolveCacheTTL,
		LinkConflict: cfg.Federation.LinkConflict,
	})
	consents := consent.NewService(consent.Deps{
		Accounts: conn.Accounts(),
		Consents: conn.Consents(),
		Audit:    auditLog,
	})
	g := gate.New(gate.Deps{
		Consents:                  consents,
		Authorizations:            conn.Authorizations(),
		Audit:                     auditLog,
		RequirePriorAuthorization: cfg.Consent.RequirePriorAuthorization,
	})

	// 4. HTTP
	var commitLimiter rate.Limiter
	if cfg.Rate.Enabled {
		commitLimiter = newCommitLimiter(cfg, cc)
	}

	handler := router.New(router.Deps{
		Pipeline: pipelinectrl.NewController(g, fed),
		Me:       mectrl.NewController(consents, g, auditLog),
		Health: healthctrl.NewController(Version, map[string]healthctrl.Pinger{
			"store": conn,
			"cache": cc,
		}),
		Bearer: mw.BearerConfig{
			Secret: []byte(cfg.Auth.JWTSecret),
			Issuer: cfg.Auth.JWTIssuer,
		},
		PipelineKey:   cfg.Auth.PipelineKey,
		CommitLimiter: commitLimiter,
		HTTPMetrics:   httpMetrics,
		Gatherer:      gatherer,
	})

	return &Container{
		Store:      conn,
		Cache:      cc,
		Audit:      auditLog,
		Federation: fed,
		Consents:   consents,
		Gate:       g,
		Handler:    handler,
	}, nil
}

// newCommitLimiter usa redis si el cache es redis (ventana compartida entre
// réplicas) y go-cache si no.
func newCommitLimiter(cfg *config.Config, cc cache.Client) rate.Limiter {
	const prefix = "rl:commit:"
	if rc, ok := cc.(*cache.RedisClient); ok {
		return rate.NewRedisLimiter(rc.Raw(), cfg.Cache.Redis.Prefix+":"+prefix, cfg.Rate.Commit.Limit, cfg.CommitWindow())
	}
	return rate.NewMemoryLimiter(prefix, cfg.Rate.Commit.Limit, cfg.CommitWindow())
}

// Close libera store y cache.
func (c *Container) Close() error {
	var first error
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			first = err
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
