// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: Una sola instancia global inicializada con Init().
//   - Context Scoping: cada request/flujo puede llevar su logger "scoped" con
//     campos adicionales (request_id, account_id, client_id) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Levels: debug, info, warn, error (configurable via LOG_LEVEL).
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.App.Env,   // "dev" o "prod"
//	    Level: cfg.Log.Level, // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// En servicios (con contexto):
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("consent.Grant"))
//	log.Info("consent granted", logger.AccountID(accountID), logger.ClientID(clientID))
package logger
