// Package me contiene los endpoints de gestión de consents de la cuenta
// autenticada.
package me

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/consentd/internal/audit"
	"github.com/dropDatabas3/consentd/internal/consent"
	"github.com/dropDatabas3/consentd/internal/gate"
	"github.com/dropDatabas3/consentd/internal/http/controllers"
	"github.com/dropDatabas3/consentd/internal/http/dto"
	httperrors "github.com/dropDatabas3/consentd/internal/http/errors"
	"github.com/dropDatabas3/consentd/internal/http/helpers"
	mw "github.com/dropDatabas3/consentd/internal/http/middlewares"
)

// Controller maneja /v1/me/consents*.
type Controller struct {
	consents consent.Service
	gate     *gate.Gate
	audit    *audit.Log
}

func NewController(consents consent.Service, g *gate.Gate, log *audit.Log) *Controller {
	return &Controller{consents: consents, gate: g, audit: log}
}

// accountAndClient extrae la cuenta autenticada y el {clientID} de la ruta.
func accountAndClient(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	accountID := mw.GetAccountID(r.Context())
	if accountID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return "", "", false
	}
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("clientID requerido"))
		return "", "", false
	}
	return accountID, clientID, true
}

// List maneja GET /v1/me/consents
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	accountID := mw.GetAccountID(r.Context())
	if accountID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	rows, err := c.consents.List(r.Context(), accountID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	out := dto.ListConsentsResponse{Consents: make([]dto.ConsentResponse, 0, len(rows))}
	for i := range rows {
		out.Consents = append(out.Consents, controllers.ConsentToDTO(&rows[i]))
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Get maneja GET /v1/me/consents/{clientID}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	accountID, clientID, ok := accountAndClient(w, r)
	if !ok {
		return
	}
	row, err := c.consents.Get(r.Context(), accountID, clientID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, controllers.ConsentToDTO(row))
}

// Ensure maneja PUT /v1/me/consents/{clientID}: asegura que exista la fila
// (y con ella el pseudónimo) sin conceder scopes.
func (c *Controller) Ensure(w http.ResponseWriter, r *http.Request) {
	accountID, clientID, ok := accountAndClient(w, r)
	if !ok {
		return
	}
	if err := c.consents.EnsureExists(r.Context(), accountID, clientID); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Revoke maneja DELETE /v1/me/consents/{clientID}
func (c *Controller) Revoke(w http.ResponseWriter, r *http.Request) {
	accountID, clientID, ok := accountAndClient(w, r)
	if !ok {
		return
	}
	if err := c.gate.Rescind(r.Context(), accountID, clientID); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Logs maneja GET /v1/me/consents/{clientID}/logs
func (c *Controller) Logs(w http.ResponseWriter, r *http.Request) {
	accountID, clientID, ok := accountAndClient(w, r)
	if !ok {
		return
	}
	entries, err := c.audit.List(r.Context(), accountID, clientID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	out := dto.ListConsentLogsResponse{Logs: make([]dto.ConsentLogResponse, 0, len(entries))}
	for _, e := range entries {
		out.Logs = append(out.Logs, controllers.ConsentLogToDTO(e))
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}
