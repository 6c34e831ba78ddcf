// Package router arma el árbol de rutas chi de la API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthctrl "github.com/dropDatabas3/consentd/internal/http/controllers/health"
	mectrl "github.com/dropDatabas3/consentd/internal/http/controllers/me"
	pipelinectrl "github.com/dropDatabas3/consentd/internal/http/controllers/pipeline"
	httperrors "github.com/dropDatabas3/consentd/internal/http/errors"
	mw "github.com/dropDatabas3/consentd/internal/http/middlewares"
	"github.com/dropDatabas3/consentd/internal/rate"
)

// Deps contiene todas las dependencias del router.
type Deps struct {
	Pipeline *pipelinectrl.Controller
	Me       *mectrl.Controller
	Health   *healthctrl.Controller

	// Auth
	Bearer      mw.BearerConfig
	PipelineKey string

	// Opcional: rate limit de POST /v1/pipeline/commit
	CommitLimiter rate.Limiter

	// Métricas HTTP; Gatherer sirve /metrics. nil = default registry.
	HTTPMetrics *mw.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

// New construye el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Orden: request id → logging → recover → metrics
	r.Use(
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithRecover(),
		mw.WithMetrics(d.HTTPMetrics),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// ===========================================================================
	// Health & metrics
	// ===========================================================================
	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// ===========================================================================
	// Pipeline (credencial de servicio)
	// ===========================================================================
	if d.Pipeline != nil {
		r.Route("/v1/pipeline", func(r chi.Router) {
			r.Use(mw.RequirePipelineKey(d.PipelineKey))

			r.Post("/evaluate", d.Pipeline.Evaluate)
			r.With(mw.WithRateLimit(d.CommitLimiter, nil)).Post("/commit", d.Pipeline.Commit)
			r.Post("/rescind", d.Pipeline.Rescind)
			r.Post("/authorizations", d.Pipeline.RecordAuthorization)
			r.Post("/identities/resolve", d.Pipeline.ResolveIdentity)
			r.Post("/identities/link", d.Pipeline.LinkIdentity)
		})
	}

	// ===========================================================================
	// Management (bearer de la cuenta)
	// ===========================================================================
	if d.Me != nil {
		r.Route("/v1/me/consents", func(r chi.Router) {
			r.Use(mw.RequireBearer(d.Bearer))

			r.Get("/", d.Me.List)
			r.Get("/{clientID}", d.Me.Get)
			r.Put("/{clientID}", d.Me.Ensure)
			r.Delete("/{clientID}", d.Me.Revoke)
			r.Get("/{clientID}/logs", d.Me.Logs)
		})
	}

	return r
}
