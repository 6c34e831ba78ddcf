package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Políticas de vinculación cuando el par (issuer, subject) ya pertenece a otra cuenta.
const (
	LinkConflictKeepOwner = "keep_owner" // devuelve la cuenta dueña, sin merge (default)
	LinkConflictReject    = "reject"     // devuelve ErrIdentityConflict
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | sqlite | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int32  `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		// Aplicar migraciones embebidas al abrir el store.
		AutoMigrate bool `yaml:"auto_migrate"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Audit struct {
		// Cantidad máxima de entradas retenidas por (cuenta, client).
		MaxEntries int `yaml:"max_entries"`
	} `yaml:"audit"`

	Consent struct {
		// Si true, un consent suficiente sin autorización previa que lo cubra
		// se reporta como "no cubierto" (fuerza el prompt).
		RequirePriorAuthorization bool `yaml:"require_prior_authorization"`
	} `yaml:"consent"`

	Federation struct {
		LinkConflict string `yaml:"link_conflict"` // keep_owner | reject
		// TTL del cache (issuer, subject) → account. 0 = sin expiración.
		ResolveCacheTTL time.Duration `yaml:"resolve_cache_ttl"`
	} `yaml:"federation"`

	Auth struct {
		// Secreto HS256 con el que la capa de sesión firma los bearer de /v1/me.
		JWTSecret string `yaml:"jwt_secret"`
		JWTIssuer string `yaml:"jwt_issuer"`
		// Clave compartida del pipeline de autorización (/v1/pipeline).
		PipelineKey string `yaml:"pipeline_key"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Commit  struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"commit"`
	} `yaml:"rate"`
}

// Load lee el YAML (si path no es vacío), aplica defaults y overrides por env, y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default retorna la config con defaults, sin archivo ni env. Útil en tests.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "consentd"
	}
	if c.Audit.MaxEntries == 0 {
		c.Audit.MaxEntries = 50
	}
	if strings.TrimSpace(c.Federation.LinkConflict) == "" {
		c.Federation.LinkConflict = LinkConflictKeepOwner
	}
	if c.Rate.Commit.Limit == 0 {
		c.Rate.Commit.Limit = 30
	}
	if c.Rate.Commit.Window == "" {
		c.Rate.Commit.Window = "1m"
	}
}

// Validate chequea combinaciones inválidas. Se llama desde Load.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "postgres", "sqlite":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, fmt.Errorf("storage.dsn requerido para driver %q", c.Storage.Driver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver inválido: %q (postgres|sqlite|memory)", c.Storage.Driver))
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			errs = append(errs, fmt.Errorf("storage.postgres.conn_max_lifetime: %w", err))
		}
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr requerido para cache redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind inválido: %q (memory|redis)", c.Cache.Kind))
	}
	if _, err := time.ParseDuration(c.Cache.Memory.DefaultTTL); err != nil {
		errs = append(errs, fmt.Errorf("cache.memory.default_ttl: %w", err))
	}

	if c.Audit.MaxEntries < 1 {
		errs = append(errs, fmt.Errorf("audit.max_entries debe ser >= 1 (got %d)", c.Audit.MaxEntries))
	}

	switch c.Federation.LinkConflict {
	case LinkConflictKeepOwner, LinkConflictReject:
	default:
		errs = append(errs, fmt.Errorf("federation.link_conflict inválido: %q (keep_owner|reject)", c.Federation.LinkConflict))
	}

	if _, err := time.ParseDuration(c.Rate.Commit.Window); err != nil {
		errs = append(errs, fmt.Errorf("rate.commit.window: %w", err))
	}
	if c.Rate.Commit.Limit < 1 {
		errs = append(errs, fmt.Errorf("rate.commit.limit debe ser >= 1"))
	}

	// Guardia dura: en prod los endpoints tienen que estar protegidos.
	if strings.EqualFold(c.App.Env, "prod") {
		if strings.TrimSpace(c.Auth.JWTSecret) == "" {
			errs = append(errs, errors.New("auth.jwt_secret requerido en prod"))
		}
		if strings.TrimSpace(c.Auth.PipelineKey) == "" {
			errs = append(errs, errors.New("auth.pipeline_key requerido en prod"))
		}
	}

	return errors.Join(errs...)
}

// CommitWindow retorna la ventana de rate limit de commit ya parseada.
func (c *Config) CommitWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Commit.Window)
	return d
}

// MemoryTTL retorna el TTL por defecto del cache en memoria ya parseado.
func (c *Config) MemoryTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.Memory.DefaultTTL)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP / LOG
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = int32(v)
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}
	if v, ok := getEnvBool("STORAGE_AUTO_MIGRATE"); ok {
		c.Storage.AutoMigrate = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// AUDIT / CONSENT / FEDERATION
	if v, ok := getEnvInt("AUDIT_MAX_ENTRIES"); ok {
		c.Audit.MaxEntries = v
	}
	if v, ok := getEnvBool("CONSENT_REQUIRE_PRIOR_AUTHORIZATION"); ok {
		c.Consent.RequirePriorAuthorization = v
	}
	if v, ok := getEnvStr("FEDERATION_LINK_CONFLICT"); ok {
		c.Federation.LinkConflict = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvDur("FEDERATION_RESOLVE_CACHE_TTL"); ok {
		c.Federation.ResolveCacheTTL = v
	}

	// AUTH
	if v, ok := getEnvStr("AUTH_JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}
	if v, ok := getEnvStr("AUTH_JWT_ISSUER"); ok {
		c.Auth.JWTIssuer = v
	}
	if v, ok := getEnvStr("AUTH_PIPELINE_KEY"); ok {
		c.Auth.PipelineKey = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_COMMIT_LIMIT"); ok {
		c.Rate.Commit.Limit = v
	}
	if v, ok := getEnvStr("RATE_COMMIT_WINDOW"); ok {
		c.Rate.Commit.Window = v
	}
}
