package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/consentd/internal/http/errors"
)

// =================================================================================
// AUTHENTICATION MIDDLEWARES
// =================================================================================

// BearerConfig valida tokens de sesión HS256 emitidos por la capa de sesión.
type BearerConfig struct {
	Secret []byte
	Issuer string // opcional; si está, se exige iss exacto
}

// RequireBearer valida Authorization: Bearer <JWT> y guarda el sub (account ID)
// en el contexto. Responde 401 si falta o es inválido.
func RequireBearer(cfg BearerConfig) Middleware {
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(cfg.Issuer))
	}
	parser := jwtv5.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(ah) < len("bearer ") || !strings.EqualFold(ah[:len("bearer ")], "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			raw := strings.TrimSpace(ah[len("bearer "):])

			var claims jwtv5.RegisteredClaims
			tk, err := parser.ParseWithClaims(raw, &claims, func(*jwtv5.Token) (any, error) {
				return cfg.Secret, nil
			})
			if err != nil || !tk.Valid || strings.TrimSpace(claims.Subject) == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), claims.Subject)))
		})
	}
}

// RequirePipelineKey exige X-Pipeline-Key igual a key (comparación en tiempo
// constante). Con key vacía deja pasar todo: solo para desarrollo.
func RequirePipelineKey(key string) Middleware {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Pipeline-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
