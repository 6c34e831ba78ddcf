// Package pipeline contiene los endpoints que consume el pipeline de
// autorización: evaluación, guardado y revocación de consents, registro de
// autorizaciones y resolución de identidades federadas.
package pipeline

import (
	"net/http"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/federation"
	"github.com/dropDatabas3/consentd/internal/gate"
	"github.com/dropDatabas3/consentd/internal/http/controllers"
	"github.com/dropDatabas3/consentd/internal/http/dto"
	httperrors "github.com/dropDatabas3/consentd/internal/http/errors"
	"github.com/dropDatabas3/consentd/internal/http/helpers"
	"github.com/dropDatabas3/consentd/internal/observability/logger"
)

// Controller maneja /v1/pipeline/*.
type Controller struct {
	gate       *gate.Gate
	federation federation.Service
}

func NewController(g *gate.Gate, fed federation.Service) *Controller {
	return &Controller{gate: g, federation: fed}
}

// flowFrom reconstruye el flow del intento a partir de los valores del cliente.
func flowFrom(values map[string]string) *gate.Flow {
	f := gate.NewFlow()
	for k, v := range values {
		f.Put(k, v)
	}
	return f
}

// Evaluate maneja POST /v1/pipeline/evaluate
func (c *Controller) Evaluate(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("PipelineController.Evaluate"))

	var req dto.EvaluateRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.AccountID == "" || req.ClientID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("account_id y client_id son obligatorios"))
		return
	}

	flow := gate.NewFlow()
	decision, err := c.gate.Evaluate(r.Context(), flow, gate.EvaluateRequest{
		AccountID:       req.AccountID,
		ClientID:        req.ClientID,
		RequestedScopes: req.RequestedScopes,
		ForceReconsent:  req.ForceReconsent || gate.ParsePrompt(req.Prompt),
	})
	if err != nil {
		log.Warn("evaluate failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.EvaluateResponse{
		Covered:              decision.Covered,
		PriorAuthorizationID: decision.PriorAuthorizationID,
		Flow:                 flow.Values(),
	})
}

// Commit maneja POST /v1/pipeline/commit
func (c *Controller) Commit(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("PipelineController.Commit"))

	var req dto.CommitRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	flow := gate.NewFlow()
	consent, err := c.gate.Commit(r.Context(), flow, req.AccountID, req.ClientID, req.DecisionScopes, req.MinimalRequired)
	if err != nil {
		log.Warn("commit failed", logger.AccountID(req.AccountID), logger.ClientID(req.ClientID), logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.CommitResponse{
		Consent: controllers.ConsentToDTO(consent),
		Flow:    flow.Values(),
	})
}

// Rescind maneja POST /v1/pipeline/rescind
func (c *Controller) Rescind(w http.ResponseWriter, r *http.Request) {
	var req dto.RescindRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := c.gate.Rescind(r.Context(), req.AccountID, req.ClientID); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordAuthorization maneja POST /v1/pipeline/authorizations
func (c *Controller) RecordAuthorization(w http.ResponseWriter, r *http.Request) {
	var req dto.AuthorizationRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	saved, err := c.gate.RecordAuthorization(r.Context(), flowFrom(req.Flow), repository.Authorization{
		AccountID: req.AccountID,
		ClientID:  req.ClientID,
		Scopes:    req.Scopes,
	})
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, dto.AuthorizationResponse{
		ID:        saved.ID,
		AccountID: saved.AccountID,
		ClientID:  saved.ClientID,
		Scopes:    saved.Scopes,
		CreatedAt: saved.CreatedAt,
	})
}

// ResolveIdentity maneja POST /v1/pipeline/identities/resolve
func (c *Controller) ResolveIdentity(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveIdentityRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	acc, err := c.federation.ResolveOrCreate(r.Context(), req.Issuer, req.ExternalSubject)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, controllers.AccountToDTO(acc))
}

// LinkIdentity maneja POST /v1/pipeline/identities/link
func (c *Controller) LinkIdentity(w http.ResponseWriter, r *http.Request) {
	var req dto.LinkIdentityRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	acc, err := c.federation.LinkIdentity(r.Context(), req.AccountID, req.Issuer, req.ExternalSubject)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, controllers.AccountToDTO(acc))
}
