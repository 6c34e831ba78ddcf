package middlewares

import "context"

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	// ctxAccountIDKey guarda el account ID (sub) del bearer token
	ctxAccountIDKey ctxKey = "account_id"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// WithAccountID inyecta el account ID en el contexto
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, ctxAccountIDKey, accountID)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetAccountID obtiene el account ID autenticado. "" si no hay.
func GetAccountID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxAccountIDKey).(string); ok {
		return v
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}
