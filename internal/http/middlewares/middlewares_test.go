package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/consentd/internal/rate"
)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/":                                       "/",
		"/v1/pipeline/commit":                     "/v1/pipeline/commit",
		"/v1/me/consents/client-c":                "/v1/me/consents/:param",
		"/v1/me/consents/client-c/logs":           "/v1/me/consents/:param/logs",
		"/x/7c9e6679-7425-40de-944b-e07fc1f90ae7": "/x/:param",
		"/x/12345":                                "/x/:param",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizePath(in), in)
	}
}

func TestWithRequestID_PropagatesOrGenerates(t *testing.T) {
	var seen string
	h := WithRequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc", seen)
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.NotEqual(t, "abc", seen)
}

func TestWithRecover(t *testing.T) {
	h := WithRecover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireBearer(t *testing.T) {
	secret := []byte("s3cret")
	var got string
	h := RequireBearer(BearerConfig{Secret: secret, Issuer: "iss"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAccountID(r.Context())
	}))

	sign := func(method jwtv5.SigningMethod, claims jwtv5.RegisteredClaims) string {
		s, err := jwtv5.NewWithClaims(method, claims).SignedString(secret)
		require.NoError(t, err)
		return s
	}
	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	exp := jwtv5.NewNumericDate(time.Now().Add(time.Hour))

	require.Equal(t, http.StatusOK, call(sign(jwtv5.SigningMethodHS256, jwtv5.RegisteredClaims{Subject: "acc-1", Issuer: "iss", ExpiresAt: exp})))
	require.Equal(t, "acc-1", got)

	require.Equal(t, http.StatusUnauthorized, call(""))
	// issuer distinto
	require.Equal(t, http.StatusUnauthorized, call(sign(jwtv5.SigningMethodHS256, jwtv5.RegisteredClaims{Subject: "acc-1", Issuer: "other", ExpiresAt: exp})))
	// sin exp
	require.Equal(t, http.StatusUnauthorized, call(sign(jwtv5.SigningMethodHS256, jwtv5.RegisteredClaims{Subject: "acc-1", Issuer: "iss"})))
	// algoritmo no permitido
	require.Equal(t, http.StatusUnauthorized, call(sign(jwtv5.SigningMethodHS512, jwtv5.RegisteredClaims{Subject: "acc-1", Issuer: "iss", ExpiresAt: exp})))
	// sin sub
	require.Equal(t, http.StatusUnauthorized, call(sign(jwtv5.SigningMethodHS256, jwtv5.RegisteredClaims{Issuer: "iss", ExpiresAt: exp})))
}

func TestRequirePipelineKey(t *testing.T) {
	h := RequirePipelineKey("k")(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("X-Pipeline-Key", "k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// sin clave configurada no se exige nada
	open := RequirePipelineKey("")(http.HandlerFunc(okHandler))
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, errors.New("redis down")
}

func TestWithRateLimit_FailsOpen(t *testing.T) {
	h := WithRateLimit(failingLimiter{}, nil)(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/pipeline/commit", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewHTTPMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewHTTPMetrics(reg)
	require.NoError(t, err)
	b, err := NewHTTPMetrics(reg)
	require.NoError(t, err)
	require.Same(t, a.requests, b.requests)
}
