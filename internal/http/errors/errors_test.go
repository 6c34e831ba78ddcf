package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/consentd/internal/consent"
	"github.com/dropDatabas3/consentd/internal/domain/repository"
	"github.com/dropDatabas3/consentd/internal/validation"
)

func TestFromError_Mapping(t *testing.T) {
	_, scopeErr := validation.NormalizeScopes([]string{"Bad Scope"})
	require.Error(t, scopeErr)

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient", fmt.Errorf("grant: %w", consent.ErrScopeInsufficient), http.StatusForbidden, "access_denied"},
		{"invalid scope", fmt.Errorf("%w: %w", repository.ErrInvalidInput, scopeErr), http.StatusBadRequest, "invalid_scope"},
		{"identity conflict", fmt.Errorf("%w: owned by x", repository.ErrIdentityConflict), http.StatusConflict, "identity_conflict"},
		{"not found", fmt.Errorf("load: %w", repository.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid input", fmt.Errorf("%w: empty issuer", repository.ErrInvalidInput), http.StatusBadRequest, "invalid_request"},
		{"app error", ErrRateLimitExceeded, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "server_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromError(tc.err)
			require.Equal(t, tc.status, got.HTTPStatus)
			require.Equal(t, tc.code, got.Code)
		})
	}
}

func TestWriteError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("pg: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "server_error", body["error"])
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestWithDetail_DoesNotMutateBase(t *testing.T) {
	e := ErrBadRequest.WithDetail("x")
	require.Equal(t, "x", e.Detail)
	require.Empty(t, ErrBadRequest.Detail)
}
