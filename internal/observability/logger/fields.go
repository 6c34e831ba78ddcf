package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─────────────────────────────
// HTTP
// ─────────────────────────────

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// ─────────────────────────────
// Negocio
// ─────────────────────────────

// AccountID crea un campo para el ID de la cuenta canónica.
func AccountID(v string) zap.Field { return zap.String("account_id", v) }

// ClientID crea un campo para el ID del cliente OAuth.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// Issuer crea un campo para el issuer de una identidad federada.
func Issuer(v string) zap.Field { return zap.String("issuer", v) }

// Subject crea un campo para el subject en el issuer.
// Es un identificador externo: usar solo en debug.
func Subject(v string) zap.Field { return zap.String("external_subject", v) }

// Scopes crea un campo para un set de scopes.
func Scopes(v []string) zap.Field { return zap.Strings("scopes", v) }

// Kind crea un campo para el tipo de evento de auditoría.
func Kind(v string) zap.Field { return zap.String("kind", v) }

// ─────────────────────────────
// Sistema
// ─────────────────────────────

func Component(v string) zap.Field { return zap.String("component", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer crea un campo para la capa (handler, service, repository).
func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Count(v int) zap.Field { return zap.Int("count", v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int64(key string, v int64) zap.Field { return zap.Int64(key, v) }

func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
