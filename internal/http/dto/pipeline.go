// Package dto define los payloads JSON de la API.
package dto

import "time"

// ─── Pipeline: gate ───

// EvaluateRequest es el payload de POST /v1/pipeline/evaluate.
// Prompt acepta el parámetro OIDC "prompt"; "consent" fuerza re-consent.
type EvaluateRequest struct {
	AccountID       string   `json:"account_id"`
	ClientID        string   `json:"client_id"`
	RequestedScopes []string `json:"requested_scopes"`
	ForceReconsent  bool     `json:"force_reconsent,omitempty"`
	Prompt          string   `json:"prompt,omitempty"`
}

// EvaluateResponse indica si el consent existente cubre el request.
// Flow contiene los valores que el pipeline debe conservar para el intento.
type EvaluateResponse struct {
	Covered              bool              `json:"covered"`
	PriorAuthorizationID string            `json:"prior_authorization_id,omitempty"`
	Flow                 map[string]string `json:"flow,omitempty"`
}

// CommitRequest es el payload de POST /v1/pipeline/commit.
type CommitRequest struct {
	AccountID       string   `json:"account_id"`
	ClientID        string   `json:"client_id"`
	DecisionScopes  []string `json:"decision_scopes"`
	MinimalRequired []string `json:"minimal_required,omitempty"`
}

// CommitResponse devuelve el consent resultante y los valores del flow.
type CommitResponse struct {
	Consent ConsentResponse   `json:"consent"`
	Flow    map[string]string `json:"flow,omitempty"`
}

// RescindRequest es el payload de POST /v1/pipeline/rescind.
type RescindRequest struct {
	AccountID string `json:"account_id"`
	ClientID  string `json:"client_id"`
}

// AuthorizationRequest registra una autorización completada.
// Flow son los valores devueltos por evaluate para el mismo intento.
type AuthorizationRequest struct {
	AccountID string            `json:"account_id"`
	ClientID  string            `json:"client_id"`
	Scopes    []string          `json:"scopes"`
	Flow      map[string]string `json:"flow,omitempty"`
}

type AuthorizationResponse struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	ClientID  string    `json:"client_id"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
}

// ─── Pipeline: federation ───

// ResolveIdentityRequest es el payload de POST /v1/pipeline/identities/resolve.
type ResolveIdentityRequest struct {
	Issuer          string `json:"issuer"`
	ExternalSubject string `json:"external_subject"`
}

// LinkIdentityRequest es el payload de POST /v1/pipeline/identities/link.
type LinkIdentityRequest struct {
	AccountID       string `json:"account_id"`
	Issuer          string `json:"issuer"`
	ExternalSubject string `json:"external_subject"`
}

type IdentityResponse struct {
	Issuer          string    `json:"issuer"`
	ExternalSubject string    `json:"external_subject"`
	CreatedAt       time.Time `json:"created_at"`
}

type AccountResponse struct {
	ID         string             `json:"id"`
	Identities []IdentityResponse `json:"identities"`
	CreatedAt  time.Time          `json:"created_at"`
}
