// Package config loads CyberSentinel settings from an optional YAML file,
// a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported values for inference.provider and cache.backend.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// envPaths are tried in order; the first readable file wins.
var envPaths = []string{".env", "../.env", "/app/.env"}

// Config is the fully resolved service configuration.
type Config struct {
	Server    ServerConfig
	Inference InferenceConfig
	Retrieval RetrievalConfig
	Cache     CacheConfig
	Reports   ReportsConfig
	Audit     AuditConfig
	Database  DatabaseConfig
	Events    EventsConfig
	Health    HealthConfig
	Log       LogConfig

	// File is the config file that was read, or "" when none was found.
	File string
	// EnvFile is the .env file that was loaded, or "".
	EnvFile string
}

type ServerConfig struct {
	Port         int
	CORSOrigins  []string
	RateLimitRPS int
	LegacyRoutes bool
	MaxBodyBytes int64
}

type InferenceConfig struct {
	Provider string
	URL      string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

type RetrievalConfig struct {
	Enabled bool
	URL     string
	Class   string
	APIKey  string
	Limit   int
	Timeout time.Duration
}

type CacheConfig struct {
	Backend  string
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type ReportsConfig struct {
	Dir      string
	Compress bool
}

// AuditConfig names the actor recorded on case audit entries.
type AuditConfig struct {
	Actor string
}

// DatabaseConfig selects Postgres for case history and the audit ledger.
// An empty URL keeps both in memory.
type DatabaseConfig struct {
	URL string
}

// EventsConfig selects NATS for event publishing. An empty URL disables it.
type EventsConfig struct {
	NATSURL string
}

type HealthConfig struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

type LogConfig struct {
	Development bool
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{
		"http://localhost:5173",
		"http://127.0.0.1:5173",
		"http://localhost:3000",
		"http://localhost:8000",
		"http://127.0.0.1:8000",
	})
	v.SetDefault("server.rate_limit_rps", 10)
	v.SetDefault("server.legacy_routes", true)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("inference.provider", ProviderOllama)
	v.SetDefault("inference.url", "http://localhost:11434")
	v.SetDefault("inference.model", "llama3.2")
	v.SetDefault("inference.api_key", "")
	v.SetDefault("inference.timeout", "120s")

	v.SetDefault("retrieval.enabled", false)
	v.SetDefault("retrieval.url", "http://localhost:8080")
	v.SetDefault("retrieval.class", "CybersecDoc")
	v.SetDefault("retrieval.api_key", "")
	v.SetDefault("retrieval.limit", 3)
	v.SetDefault("retrieval.timeout", "10s")

	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("reports.dir", "reports")
	v.SetDefault("reports.compress", true)
	v.SetDefault("audit.actor", "cybersentinel")
	v.SetDefault("database.url", "")
	v.SetDefault("events.nats_url", "")

	v.SetDefault("health.check_interval", "1m")
	v.SetDefault("health.probe_timeout", "5s")
	v.SetDefault("health.fail_threshold", 3)

	v.SetDefault("log.development", false)
}

// bindLegacyEnv maps environment names used by earlier deployments onto
// their keys. The canonical name is listed first and takes precedence.
func bindLegacyEnv(v *viper.Viper) error {
	aliases := map[string][]string{
		"server.cors_origins": {"SERVER_CORS_ORIGINS", "ALLOWED_ORIGINS"},
		"retrieval.enabled":   {"RETRIEVAL_ENABLED", "ENABLE_RETRIEVAL", "ENABLE_CHROMA"},
		"inference.url":       {"INFERENCE_URL", "OLLAMA_URL"},
		"inference.model":     {"INFERENCE_MODEL", "MODEL_NAME"},
		"reports.dir":         {"REPORTS_DIR"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Load resolves the configuration. configFile may be empty, in which case
// cybersentinel.yaml is looked up in ./configs and the working directory and
// its absence is not an error.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			cfg.EnvFile = path
			break
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cybersentinel")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &cfgNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		cfg.File = v.ConfigFileUsed()
	}

	cfg.Server = ServerConfig{
		Port:         v.GetInt("server.port"),
		CORSOrigins:  splitList(v.Get("server.cors_origins")),
		RateLimitRPS: v.GetInt("server.rate_limit_rps"),
		LegacyRoutes: v.GetBool("server.legacy_routes"),
		MaxBodyBytes: v.GetInt64("server.max_body_bytes"),
	}
	cfg.Inference = InferenceConfig{
		Provider: strings.ToLower(strings.TrimSpace(v.GetString("inference.provider"))),
		URL:      normalizeInferenceURL(v.GetString("inference.url")),
		Model:    v.GetString("inference.model"),
		APIKey:   v.GetString("inference.api_key"),
		Timeout:  v.GetDuration("inference.timeout"),
	}
	cfg.Retrieval = RetrievalConfig{
		Enabled: v.GetBool("retrieval.enabled"),
		URL:     v.GetString("retrieval.url"),
		Class:   v.GetString("retrieval.class"),
		APIKey:  v.GetString("retrieval.api_key"),
		Limit:   v.GetInt("retrieval.limit"),
		Timeout: v.GetDuration("retrieval.timeout"),
	}
	cfg.Cache = CacheConfig{
		Backend:  strings.ToLower(strings.TrimSpace(v.GetString("cache.backend"))),
		Addr:     v.GetString("cache.addr"),
		Password: v.GetString("cache.password"),
		DB:       v.GetInt("cache.db"),
		TTL:      v.GetDuration("cache.ttl"),
	}
	cfg.Reports = ReportsConfig{
		Dir:      v.GetString("reports.dir"),
		Compress: v.GetBool("reports.compress"),
	}
	cfg.Audit = AuditConfig{Actor: strings.TrimSpace(v.GetString("audit.actor"))}
	cfg.Database = DatabaseConfig{URL: v.GetString("database.url")}
	cfg.Events = EventsConfig{NATSURL: v.GetString("events.nats_url")}
	cfg.Health = HealthConfig{
		CheckInterval: v.GetDuration("health.check_interval"),
		ProbeTimeout:  v.GetDuration("health.probe_timeout"),
		FailThreshold: v.GetInt("health.fail_threshold"),
	}
	cfg.Log = LogConfig{Development: v.GetBool("log.development")}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if err := validateOrigins(c.Server.CORSOrigins); err != nil {
		return err
	}
	switch c.Inference.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("inference.provider %q is not one of ollama, openai", c.Inference.Provider)
	}
	if c.Inference.URL == "" {
		return errors.New("inference.url is required")
	}
	if c.Inference.Model == "" {
		return errors.New("inference.model is required")
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("cache.backend %q is not one of none, memory, redis", c.Cache.Backend)
	}
	if c.Reports.Dir == "" {
		return errors.New("reports.dir is required")
	}
	if c.Audit.Actor == "" {
		return errors.New("audit.actor is required")
	}
	return nil
}

// validateOrigins rejects origin lists the CORS middleware cannot build
// from: an empty list, and entries that are neither "*" nor an http(s) URL.
func validateOrigins(origins []string) error {
	if len(origins) == 0 {
		return errors.New("server.cors_origins must list at least one origin")
	}
	for _, o := range origins {
		if o == "*" || strings.HasPrefix(o, "http://") || strings.HasPrefix(o, "https://") {
			continue
		}
		return fmt.Errorf("server.cors_origins entry %q must be \"*\" or start with http:// or https://", o)
	}
	return nil
}

// splitList accepts either a YAML list or a comma-separated string.
func splitList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case []string:
		parts = val
	case []any:
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
	case string:
		parts = strings.Split(val, ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeInferenceURL strips a trailing slash and a full /api/generate
// endpoint, which older deployments configured instead of the base URL.
func normalizeInferenceURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	u = strings.TrimSuffix(u, "/api/generate")
	return strings.TrimRight(u, "/")
}
