// Package config provides application configuration management using koanf
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"rag-doc-assistant/internal/models"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read by Load. Nested keys are joined
// with a double underscore: DOCCHAT_BACKEND__BASE_URL sets backend.base_url.
const EnvPrefix = "DOCCHAT_"

// Config holds all configuration for the application
type Config struct {
	// Gateway HTTP server configuration
	Server ServerConfig `koanf:"server"`

	// Document assistant backend
	Backend BackendConfig `koanf:"backend"`

	// In-memory chat sessions
	Session SessionConfig `koanf:"session"`

	// Settings every new session starts with
	Defaults models.Settings `koanf:"defaults"`

	// Inbox folder watched in console mode
	Watch WatchConfig `koanf:"watch"`

	// Security settings
	Security SecurityConfig `koanf:"security"`

	// Application settings
	App AppConfig `koanf:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string    `koanf:"host"`
	Port         int       `koanf:"port"`
	ReadTimeout  int       `koanf:"read_timeout"`  // seconds
	WriteTimeout int       `koanf:"write_timeout"` // seconds
	TLS          TLSConfig `koanf:"tls"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	MinTLS   string `koanf:"min_version"` // "1.2" or "1.3"
}

// BackendConfig holds the location of the document assistant backend
type BackendConfig struct {
	BaseURL string `koanf:"base_url"`
	Timeout int    `koanf:"timeout"` // seconds
}

// SessionConfig controls how long idle sessions are kept
type SessionConfig struct {
	TTLMinutes     int `koanf:"ttl_minutes"`
	CleanupMinutes int `koanf:"cleanup_minutes"`
}

// WatchConfig holds the inbox watcher configuration
type WatchConfig struct {
	Dir        string   `koanf:"dir"`
	Extensions []string `koanf:"extensions"`
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	ErrorMode string `koanf:"error_mode"` // "detailed" or "secure"
}

// AppConfig holds general application settings
type AppConfig struct {
	Environment string `koanf:"environment"` // "development", "staging", "production"
	LogLevel    string `koanf:"log_level"`   // "debug", "info", "warn", "error"
	LogFormat   string `koanf:"log_format"`  // "text" or "json"
	LogFile     string `koanf:"log_file"`    // rotated file sink, empty disables it
}

// Load loads configuration from multiple sources with precedence:
// 1. config.yaml (if exists)
// 2. config.json (if exists)
// 3. Environment variables, including a .env file (highest precedence)
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with config files and .env resolved relative to dir.
func LoadFrom(dir string) (*Config, error) {
	k := koanf.New(".")

	// Set defaults
	setDefaults(k)

	// Load from config files (optional)
	loadConfigFiles(k, dir)

	// .env only fills variables that are not already set
	loadDotEnv(dir)

	// Load from environment variables (highest precedence)
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnvKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	// Unmarshal into config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(k *koanf.Koanf) {
	initial := models.DefaultSettings()

	defaults := map[string]interface{}{
		// Server defaults
		"server.host":            "localhost",
		"server.port":            8080,
		"server.read_timeout":    30,
		"server.write_timeout":   180,
		"server.tls.enabled":     false,
		"server.tls.min_version": "1.3",

		// Backend defaults
		"backend.base_url": "http://localhost:8000",
		"backend.timeout":  120,

		// Session defaults
		"session.ttl_minutes":     60,
		"session.cleanup_minutes": 10,

		// Initial chat settings
		"defaults.provider":      initial.Provider,
		"defaults.model":         initial.Model,
		"defaults.temperature":   initial.Temperature,
		"defaults.top_k":         initial.TopK,
		"defaults.chunk_size":    initial.ChunkSize,
		"defaults.chunk_overlap": initial.ChunkOverlap,

		// Watcher defaults
		"watch.dir":        "",
		"watch.extensions": []string{".docx"},

		// Security defaults
		"security.error_mode": "detailed",

		// App defaults
		"app.environment": "development",
		"app.log_level":   "info",
		"app.log_format":  "text",
		"app.log_file":    "",
	}

	for key, value := range defaults {
		_ = k.Set(key, value) // Ignore error for setting defaults
	}
}

// loadConfigFiles loads configuration from files
func loadConfigFiles(k *koanf.Koanf, dir string) {
	yamlPath := dir + string(os.PathSeparator) + "config.yaml"
	if _, err := os.Stat(yamlPath); err == nil {
		if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
			log.Printf("Warning: failed to load config.yaml: %v", err)
		}
	}

	jsonPath := dir + string(os.PathSeparator) + "config.json"
	if _, err := os.Stat(jsonPath); err == nil {
		if err := k.Load(file.Provider(jsonPath), json.Parser()); err != nil {
			log.Printf("Warning: failed to load config.json: %v", err)
		}
	}
}

func loadDotEnv(dir string) {
	path := dir + string(os.PathSeparator) + ".env"
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}
}

// transformEnvKey maps DOCCHAT_BACKEND__BASE_URL to backend.base_url. The
// watcher extension list accepts a comma separated value.
func transformEnvKey(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if key == "watch.extensions" {
		parts := strings.Split(v, ",")
		exts := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				exts = append(exts, p)
			}
		}
		return key, exts
	}
	return key, v
}

// validate validates the configuration
func validate(cfg *Config) error {
	// Validate TLS configuration
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert file is required when TLS is enabled")
		}
		if cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file is required when TLS is enabled")
		}

		// Check if files exist
		if _, err := os.Stat(cfg.Server.TLS.CertFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS cert file does not exist: %s", cfg.Server.TLS.CertFile)
		}
		if _, err := os.Stat(cfg.Server.TLS.KeyFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file does not exist: %s", cfg.Server.TLS.KeyFile)
		}
	}

	// Validate backend location
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend base_url must be an absolute http(s) URL: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}

	if cfg.Session.TTLMinutes <= 0 {
		return fmt.Errorf("session ttl_minutes must be positive")
	}

	// Validate the settings new sessions start with
	if err := cfg.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}

	return nil
}

// GetTLSConfig returns a TLS configuration based on the config
func (c *Config) GetTLSConfig() *tls.Config {
	if !c.Server.TLS.Enabled {
		return nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12, // Set default minimum version
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}

	// Set minimum TLS version
	switch c.Server.TLS.MinTLS {
	case "1.2":
		tlsConfig.MinVersion = tls.VersionTLS12
	case "1.3":
		tlsConfig.MinVersion = tls.VersionTLS13
	default:
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	return tlsConfig
}

// Addr returns the host:port the gateway listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// BackendTimeout returns the per-request backend timeout
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.Timeout) * time.Second
}

// SessionTTL returns how long an idle session is kept
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// SessionCleanupInterval returns how often expired sessions are purged
func (c *Config) SessionCleanupInterval() time.Duration {
	return time.Duration(c.Session.CleanupMinutes) * time.Minute
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
