// Package controllers convierte entre el dominio y los DTOs de la API.
package controllers

import (
	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/http/dto"
)

// ConsentToDTO mapea un consent. Nunca devuelve Scopes nil.
func ConsentToDTO(c *repository.Consent) dto.ConsentResponse {
	scopes := c.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return dto.ConsentResponse{
		ClientID:  c.ClientID,
		Subject:   c.Pseudonym,
		Scopes:    scopes,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func AccountToDTO(a *repository.Account) dto.AccountResponse {
	ids := make([]dto.IdentityResponse, 0, len(a.Identities))
	for _, id := range a.Identities {
		ids = append(ids, dto.IdentityResponse{
			Issuer:          id.Issuer,
			ExternalSubject: id.ExternalSubject,
			CreatedAt:       id.CreatedAt,
		})
	}
	return dto.AccountResponse{ID: a.ID, Identities: ids, CreatedAt: a.CreatedAt}
}

func ConsentLogToDTO(e repository.ConsentLog) dto.ConsentLogResponse {
	msgs := e.Messages
	if msgs == nil {
		msgs = []string{}
	}
	return dto.ConsentLogResponse{
		ID:        e.ID,
		Kind:      e.Kind,
		Messages:  msgs,
		Timestamp: e.Timestamp,
	}
}
