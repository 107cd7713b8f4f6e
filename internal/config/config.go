package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	CORS    CORSConfig
	Auth    AuthConfig
	Session SessionConfig
	KV      KVConfig
	Access  AccessConfig
	Rights  RightsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// AuthConfig holds OIDC authentication configuration
type AuthConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TenantID     string
	LogoutURL    string
	Scopes       []string
}

// Configured reports whether the auth subsystem has everything it needs.
// When false, every auth-dependent route answers 503.
func (c *AuthConfig) Configured(sessionSecret string) bool {
	return c.IssuerURL != "" && c.ClientID != "" && c.ClientSecret != "" && sessionSecret != ""
}

// SessionConfig holds signed session cookie configuration
type SessionConfig struct {
	Secret         string
	TTL            time.Duration
	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string // "Lax", "Strict", "None"
}

// KVConfig holds key-value store configuration
type KVConfig struct {
	Backend       string // "redis" or "postgres"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
}

// AccessConfig holds access-table configuration.
// Tables come from a remote sheet endpoint, a local YAML file, or both
// (the file wins when both are set and the fetch fails).
type AccessConfig struct {
	SheetURL string
	FilePath string
	CacheTTL time.Duration
}

// RightsConfig holds rights-request workflow configuration
type RightsConfig struct {
	// RestrictedHosts lists non-production hosts that require the
	// "preview" permission at login.
	RestrictedHosts []string
	// PropagationDelay is slept after multi-key assignment writes so
	// eventually-consistent reads settle before notifications go out.
	PropagationDelay time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Auth: AuthConfig{
			IssuerURL:    getEnv("OIDC_ISSUER_URL", ""),
			ClientID:     getEnv("OIDC_CLIENT_ID", ""),
			ClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),
			TenantID:     getEnv("OIDC_TENANT_ID", ""),
			LogoutURL:    getEnv("OIDC_LOGOUT_URL", ""),
			Scopes:       getEnvSlice("OIDC_SCOPES", []string{"openid", "profile", "email"}),
		},
		Session: SessionConfig{
			Secret:         getEnv("SESSION_SECRET", ""),
			TTL:            getEnvDuration("SESSION_TTL", 6*time.Hour),
			CookieName:     getEnv("SESSION_COOKIE_NAME", "rights_session"),
			CookieDomain:   getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookieSecure:   getEnv("SESSION_SECURE", "true") == "true",
			CookieSameSite: getEnv("SESSION_SAMESITE", "Lax"),
		},
		KV: KVConfig{
			Backend:       getEnv("KV_BACKEND", "redis"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		},
		Access: AccessConfig{
			SheetURL: getEnv("ACCESS_SHEET_URL", ""),
			FilePath: getEnv("ACCESS_FILE_PATH", ""),
			CacheTTL: getEnvDuration("ACCESS_CACHE_TTL", 5*time.Minute),
		},
		Rights: RightsConfig{
			RestrictedHosts:  getEnvSlice("RESTRICTED_HOSTS", nil),
			PropagationDelay: getEnvDuration("KV_PROPAGATION_DELAY", 2*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := []string{}
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
