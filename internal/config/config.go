// Package config loads service configuration in three layers: built-in
// defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the YAML file to load. When unset, DefaultConfigPaths
// are tried in order.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

const EnvironmentProduction = "production"

type Config struct {
	Environment  string     `koanf:"environment"`
	DatabaseURL  string     `koanf:"database_url"`
	AuditLogFile string     `koanf:"audit_log_file"`
	HTTP         HTTPConfig `koanf:"http"`
	Auth         AuthConfig `koanf:"auth"`
	Log          LogConfig  `koanf:"log"`
}

type HTTPConfig struct {
	Addr               string        `koanf:"addr"`
	ReadTimeout        time.Duration `koanf:"read_timeout"`
	WriteTimeout       time.Duration `koanf:"write_timeout"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
}

type AuthConfig struct {
	// Secret signs session tokens. Required.
	Secret            string        `koanf:"secret"`
	SessionTTL        time.Duration `koanf:"session_ttl"`
	CookieName        string        `koanf:"cookie_name"`
	LoginPath         string        `koanf:"login_path"`
	ProtectedPrefix   string        `koanf:"protected_prefix"`
	HomePath          string        `koanf:"home_path"`
	BootstrapEmail    string        `koanf:"bootstrap_email"`
	BootstrapPassword string        `koanf:"bootstrap_password"`
	UserStateFile     string        `koanf:"user_state_file"`
	LoginRateLimit    int           `koanf:"login_rate_limit"`
	LoginRateWindow   time.Duration `koanf:"login_rate_window"`
	KDFConcurrency    int           `koanf:"kdf_concurrency"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// IsProduction reports whether cookies must carry the Secure attribute.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvironmentProduction)
}

func defaultConfig() Config {
	return Config{
		Environment:  "development",
		AuditLogFile: "./data/audit.log",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 20 * time.Second,
		},
		Auth: AuthConfig{
			SessionTTL:      7 * 24 * time.Hour,
			CookieName:      "admin_session",
			LoginPath:       "/admin/login",
			ProtectedPrefix: "/admin",
			HomePath:        "/admin",
			UserStateFile:   "./data/admin_users.json",
			LoginRateLimit:  10,
			LoginRateWindow: 5 * time.Minute,
			KDFConcurrency:  4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 || c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be > 0")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("AUTH_SECRET must not be empty")
	}
	if c.Auth.SessionTTL < time.Second {
		return fmt.Errorf("AUTH_SESSION_TTL must be at least 1s")
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("AUTH_COOKIE_NAME must not be empty")
	}
	for name, p := range map[string]string{
		"AUTH_LOGIN_PATH":       c.Auth.LoginPath,
		"AUTH_PROTECTED_PREFIX": c.Auth.ProtectedPrefix,
		"AUTH_HOME_PATH":        c.Auth.HomePath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must be an absolute path", name)
		}
	}
	if c.Auth.LoginPath == c.Auth.HomePath {
		return fmt.Errorf("AUTH_LOGIN_PATH and AUTH_HOME_PATH must differ")
	}
	if (c.Auth.BootstrapEmail == "") != (c.Auth.BootstrapPassword == "") {
		return fmt.Errorf("AUTH_BOOTSTRAP_EMAIL and AUTH_BOOTSTRAP_PASSWORD must be set together")
	}
	if c.DatabaseURL == "" && c.Auth.UserStateFile == "" {
		return fmt.Errorf("AUTH_USER_STATE_FILE must not be empty without DATABASE_URL")
	}
	if c.Auth.LoginRateLimit <= 0 {
		return fmt.Errorf("AUTH_LOGIN_RATE_LIMIT must be > 0")
	}
	if c.Auth.LoginRateWindow <= 0 {
		return fmt.Errorf("AUTH_LOGIN_RATE_WINDOW must be > 0")
	}
	if c.Auth.KDFConcurrency <= 0 {
		return fmt.Errorf("AUTH_KDF_CONCURRENCY must be > 0")
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"http.cors_allowed_origins",
}

// processSliceFields splits comma-separated values that arrive from the
// environment as plain strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"APP_ENV":               "environment",
	"DATABASE_URL":          "database_url",
	"AUDIT_LOG_FILE":        "audit_log_file",
	"HTTP_ADDR":             "http.addr",
	"HTTP_READ_TIMEOUT":     "http.read_timeout",
	"HTTP_WRITE_TIMEOUT":    "http.write_timeout",
	"HTTP_SHUTDOWN_TIMEOUT": "http.shutdown_timeout",
	"CORS_ALLOWED_ORIGINS":  "http.cors_allowed_origins",

	"AUTH_SECRET":             "auth.secret",
	"AUTH_SESSION_TTL":        "auth.session_ttl",
	"AUTH_COOKIE_NAME":        "auth.cookie_name",
	"AUTH_LOGIN_PATH":         "auth.login_path",
	"AUTH_PROTECTED_PREFIX":   "auth.protected_prefix",
	"AUTH_HOME_PATH":          "auth.home_path",
	"AUTH_BOOTSTRAP_EMAIL":    "auth.bootstrap_email",
	"AUTH_BOOTSTRAP_PASSWORD": "auth.bootstrap_password",
	"AUTH_USER_STATE_FILE":    "auth.user_state_file",
	"AUTH_LOGIN_RATE_LIMIT":   "auth.login_rate_limit",
	"AUTH_LOGIN_RATE_WINDOW":  "auth.login_rate_window",
	"AUTH_KDF_CONCURRENCY":    "auth.kdf_concurrency",

	"LOG_LEVEL":  "log.level",
	"LOG_FORMAT": "log.format",
}

// envTransformFunc maps known environment variables to config keys. Any
// other variable maps to "" and is ignored.
func envTransformFunc(key string) string {
	return envMappings[key]
}
