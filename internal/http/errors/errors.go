package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/consentd/internal/consent"
	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/validation"
)

// errorResponse controla exactamente qué campos se envían al cliente.
type errorResponse struct {
	Code    string `json:"error"`
	Message string `json:"error_description"`
	Detail  string `json:"detail,omitempty"`
}

// FromError convierte errores de otras capas en AppError. Los errores
// desconocidos se vuelven 500 conservando la causa.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var scopeErr *validation.InvalidScopeError
	switch {
	case stderrors.Is(err, consent.ErrScopeInsufficient):
		return ErrAccessDenied.WithCause(err)
	case stderrors.As(err, &scopeErr):
		return ErrInvalidScope.WithDetail(scopeErr.Error()).WithCause(err)
	case repository.IsIdentityConflict(err):
		return ErrIdentityConflict.WithCause(err)
	case repository.IsNotFound(err):
		return ErrNotFound.WithCause(err)
	case repository.IsConflict(err):
		return ErrConflict.WithCause(err)
	case stderrors.Is(err, repository.ErrInvalidInput):
		return ErrBadRequest.WithDetail(err.Error()).WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// WriteError escribe una respuesta HTTP basada en el error.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}
