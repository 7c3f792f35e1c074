package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for corebridge.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// AllowedHostsStr is a comma-separated Host header whitelist.
	// Empty means all hosts are accepted.
	AllowedHostsStr string   `yaml:"allowed_hosts" env:"ALLOWED_HOSTS" env-default:""`
	AllowedHosts    []string `yaml:"-"`

	Auth     AuthConfig     `yaml:"auth"`
	CORS     CORSConfig     `yaml:"cors"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Gateway  GatewayConfig  `yaml:"gateway"`
}

// AuthConfig holds token validation configuration. The gateway does not issue
// tokens; it validates what the OAuth2 provider issued and forwards the raw
// bearer token to backends unchanged.
type AuthConfig struct {
	// EnableVerification controls whether bearer tokens are validated.
	// Set to false for local development without an auth provider.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// TokenSecretKey is the HMAC secret shared with the token issuer.
	TokenSecretKey string `yaml:"-" env:"TOKEN_SECRET_KEY"` // Secret - not in YAML

	// SecretKey is the process-level secret.
	SecretKey string `yaml:"-" env:"SECRET_KEY"` // Secret - not in YAML

	// JWKSEndpoint enables RS256 validation against a JWKS document instead
	// of the shared HMAC secret when set.
	JWKSEndpoint string `yaml:"jwks_endpoint" env:"JWKS_ENDPOINT" env-default:""`

	// Token lifetimes mirror the OAuth2 provider settings.
	AccessTokenExpireSeconds  int `yaml:"access_token_expire_seconds" env:"OAUTH2_ACCESS_TOKEN_EXPIRE_SECONDS" env-default:"3600"`
	RefreshTokenExpireSeconds int `yaml:"refresh_token_expire_seconds" env:"OAUTH2_REFRESH_TOKEN_EXPIRE_SECONDS" env-default:"86400"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowAll     bool     `yaml:"allow_all" env:"CORS_ORIGIN_ALLOW_ALL" env-default:"false"`
	WhitelistStr string   `yaml:"whitelist" env:"CORS_ORIGIN_WHITELIST" env-default:""`
	Whitelist    []string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL configuration for the relationship registry
// and the join record store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"DATABASE_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"DATABASE_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"DATABASE_USER" env-default:"corebridge"`
	Password       string `yaml:"-" env:"DATABASE_PASSWORD"` // Secret - not in YAML
	Database       string `yaml:"name" env:"DATABASE_NAME" env-default:"corebridge"`
	SSLMode        string `yaml:"ssl_mode" env:"DATABASE_SSL_MODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"DATABASE_MAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"DATABASE_MIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds optional Redis configuration for the shared raw
// specification cache. Empty host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// GatewayConfig holds dispatcher and mesh orchestration settings.
type GatewayConfig struct {
	// BackendTimeout bounds a single backend call.
	BackendTimeout time.Duration `yaml:"backend_timeout" env:"GATEWAY_BACKEND_TIMEOUT" env-default:"30s"`
	// RequestTimeout bounds a whole inbound request including fan-out.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"GATEWAY_REQUEST_TIMEOUT" env-default:"60s"`
	// SpecCacheTTL is how long a parsed OpenAPI document stays cached.
	SpecCacheTTL time.Duration `yaml:"spec_cache_ttl" env:"GATEWAY_SPEC_CACHE_TTL" env-default:"1h"`
	// InspectRequests enables the query-string injection scanner.
	InspectRequests bool `yaml:"inspect_requests" env:"GATEWAY_INSPECT_REQUESTS" env-default:"true"`
	// SeedFile, when set, is imported at startup before serving.
	SeedFile string `yaml:"seed_file" env:"GATEWAY_SEED_FILE" env-default:""`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (DATABASE_PASSWORD, TOKEN_SECRET_KEY, SECRET_KEY)
// must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.parseComplexFields()

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if cfg.Auth.EnableVerification && cfg.Auth.TokenSecretKey == "" && cfg.Auth.JWKSEndpoint == "" {
		return nil, fmt.Errorf("auth verification enabled but neither TOKEN_SECRET_KEY nor JWKS_ENDPOINT is set")
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	c.AllowedHosts = splitAndTrim(c.AllowedHostsStr)
	c.CORS.Whitelist = splitAndTrim(c.CORS.WhitelistStr)
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// HostAllowed reports whether the inbound Host header is acceptable.
// An empty whitelist accepts everything.
func (c *Config) HostAllowed(host string) bool {
	if len(c.AllowedHosts) == 0 {
		return true
	}
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	for _, allowed := range c.AllowedHosts {
		if strings.EqualFold(allowed, host) {
			return true
		}
	}
	return false
}
