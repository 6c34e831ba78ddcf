// Package store provee el registry de adaptadores de almacenamiento.
//
// Cada adapter (pg, sqlite, memory) se registra en init() y se abre por nombre
// con OpenAdapter. El binario importa internal/store/adapters/dal para
// registrarlos a todos.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dropDatabas3/consentd/internal/domain/repository"
)

// Adapter representa un adaptador de base de datos capaz de crear repositorios.
type Adapter interface {
	// Name retorna el nombre del adapter (ej: "postgres", "sqlite", "memory").
	Name() string

	// Connect establece conexión con el almacenamiento.
	Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

// AdapterConnection representa una conexión activa.
// Provee acceso a los repositorios implementados por el adapter.
type AdapterConnection interface {
	// Name retorna el nombre del adapter.
	Name() string

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error

	// ─── Repositorios ───

	Accounts() repository.AccountRepository
	Consents() repository.ConsentRepository
	ConsentLogs() repository.ConsentLogRepository
	Authorizations() repository.AuthorizationRepository
}

// MigratableConnection interfaz opcional para conexiones que pueden ejecutar migraciones.
// Las conexiones SQL (postgres, sqlite) la implementan; memory no.
type MigratableConnection interface {
	Migrate(ctx context.Context) (*MigrationResult, error)
}

// AdapterConfig configuración para conectar a un almacenamiento.
type AdapterConfig struct {
	// Name del adapter: "postgres", "sqlite", "memory"
	Name string

	// DSN connection string (postgres) o path del archivo (sqlite)
	DSN string

	// Pool settings (postgres)
	MaxConns        int32
	ConnMaxLifetime string

	// AutoMigrate aplica las migraciones embebidas al conectar.
	AutoMigrate bool
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres de todos los adapters registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAdapter abre una conexión usando el adapter especificado en la config.
// Si AutoMigrate está activo y la conexión es migrable, aplica migraciones.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered", cfg.Name)
	}
	conn, err := a.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if m, ok := conn.(MigratableConnection); ok {
			if _, err := m.Migrate(ctx); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("adapter %q: migrate: %w", cfg.Name, err)
			}
		}
	}
	return conn, nil
}
