// Package health contiene el controller para health checks.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/consentd/internal/http/helpers"
	"github.com/dropDatabas3/consentd/internal/observability/logger"
)

// Pinger es cualquier componente que sabe responder un ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components"`
}

// Controller maneja GET /healthz.
type Controller struct {
	version    string
	components map[string]Pinger
}

// NewController recibe los componentes a chequear por nombre (store, cache, ...).
func NewController(version string, components map[string]Pinger) *Controller {
	return &Controller{version: version, components: components}
}

// Healthz maneja GET /healthz
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("HealthController.Healthz"))

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: c.version, Components: map[string]string{}}
	for name, p := range c.components {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			log.Warn("component unhealthy", logger.Component(name), logger.Err(err))
			resp.Components[name] = "down"
			resp.Status = "unavailable"
			continue
		}
		resp.Components[name] = "up"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("X-Service-Version", c.version)
	helpers.WriteJSON(w, status, resp)
}
