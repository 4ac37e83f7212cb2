// Package config provides configuration management for orgwarden.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/naming"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// DirectoryConfig points at the external identity/authorization directory.
type DirectoryConfig struct {
	URL          string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Enabled returns true if a remote directory is configured.
func (c DirectoryConfig) Enabled() bool { return c.URL != "" }

// CallbackConfig points at the external callback receiver.
type CallbackConfig struct {
	URL    string
	Secret string
}

// Enabled returns true if a callback receiver is configured.
func (c CallbackConfig) Enabled() bool { return c.URL != "" }

// RegistryConfig points at the external asset registry.
type RegistryConfig struct {
	URL   string
	Token string
}

// Enabled returns true if a remote asset registry is configured.
func (c RegistryConfig) Enabled() bool { return c.URL != "" }

// ProxyConfig holds outbound proxy settings.
type ProxyConfig struct {
	HTTPProxy   string
	SOCKS5Proxy string
	NoProxy     string
}

// HasProxy returns true if any proxy is configured.
func (c ProxyConfig) HasProxy() bool {
	return c.HTTPProxy != "" || c.SOCKS5Proxy != ""
}

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// Enabled returns true if an SMTP host is configured.
func (c SMTPConfig) Enabled() bool { return c.Host != "" }

// OIDCConfig holds bearer-token verification settings.
type OIDCConfig struct {
	Issuer   string
	ClientID string
	// StaticTokens configures fixed bearer tokens for standalone mode, as
	// "token=login:ROLE_A+ROLE_B" entries separated by ";".
	StaticTokens string
}

// Enabled returns true if an issuer is configured.
func (c OIDCConfig) Enabled() bool { return c.Issuer != "" }

// S3Config locates organization images and logos.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	URLTTL          time.Duration
}

// Enabled returns true if a bucket is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// RateLimitConfig configures the API rate limiter.
type RateLimitConfig struct {
	Requests int64
	Period   time.Duration
	RedisURL string
}

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment           Environment
	ListenAddr            string
	DatabaseURL           string // empty selects the in-memory store
	AcceptKeyMaxAge       time.Duration
	DefaultInviteLanguage string
	AdminRoleMaxLength    int
	RoleMaxLength         int
	SystemAdminRole       string
	AssetReleaseConfig    string // path to the YAML allow-list
	InviteBaseURL         string
	ExternalTimeout       time.Duration
	CORSOrigins           []string
	MaxBodyBytes          int64

	Directory DirectoryConfig
	Callbacks CallbackConfig
	Registry  RegistryConfig
	Proxy     ProxyConfig
	SMTP      SMTPConfig
	OIDC      OIDCConfig
	S3        S3Config
	RateLimit RateLimitConfig
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	maxAgeHours := getEnvInt("ACCEPT_KEY_MAX_AGE_HOURS", 24)
	if maxAgeHours <= 0 {
		maxAgeHours = 24
	}

	adminMax := getEnvInt("ADMIN_ROLE_MAX_LENGTH", naming.DefaultAdminRoleMaxLength)
	if adminMax <= len(naming.Prefix)+len(naming.AdminSuffix) {
		adminMax = naming.DefaultAdminRoleMaxLength
	}

	roleMax := getEnvInt("ROLE_MAX_LENGTH", naming.DefaultRoleMaxLength)
	if roleMax <= len(naming.Prefix) {
		roleMax = naming.DefaultRoleMaxLength
	}

	rateRequests := getEnvInt("RATE_LIMIT_REQUESTS", 100)
	if rateRequests <= 0 {
		rateRequests = 100
	}

	return ServerConfig{
		Environment:           env,
		ListenAddr:            getEnv("LISTEN_ADDR", ":8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		AcceptKeyMaxAge:       time.Duration(maxAgeHours) * time.Hour,
		DefaultInviteLanguage: getEnv("DEFAULT_INVITE_LANGUAGE", "en"),
		AdminRoleMaxLength:    adminMax,
		RoleMaxLength:         roleMax,
		SystemAdminRole:       getEnv("SYSTEM_ADMIN_ROLE", "ROLE_ADMIN"),
		AssetReleaseConfig:    os.Getenv("ASSET_RELEASE_CONFIG"),
		InviteBaseURL:         strings.TrimRight(getEnv("INVITE_BASE_URL", "http://localhost:8080"), "/"),
		ExternalTimeout:       getEnvDuration("EXTERNAL_TIMEOUT", 30*time.Second),
		CORSOrigins:           splitList(os.Getenv("CORS_ORIGINS")),
		MaxBodyBytes:          int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		Directory: DirectoryConfig{
			URL:          os.Getenv("DIRECTORY_URL"),
			TokenURL:     os.Getenv("DIRECTORY_TOKEN_URL"),
			ClientID:     os.Getenv("DIRECTORY_CLIENT_ID"),
			ClientSecret: os.Getenv("DIRECTORY_CLIENT_SECRET"),
		},
		Callbacks: CallbackConfig{
			URL:    os.Getenv("CALLBACK_URL"),
			Secret: os.Getenv("CALLBACK_SECRET"),
		},
		Registry: RegistryConfig{
			URL:   os.Getenv("REGISTRY_URL"),
			Token: os.Getenv("REGISTRY_TOKEN"),
		},
		Proxy: ProxyConfig{
			HTTPProxy:   os.Getenv("HTTP_PROXY_URL"),
			SOCKS5Proxy: os.Getenv("SOCKS5_PROXY_URL"),
			NoProxy:     os.Getenv("NO_PROXY_HOSTS"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "noreply@localhost"),
			UseTLS:   getEnvBool("SMTP_TLS", false),
		},
		OIDC: OIDCConfig{
			Issuer:       os.Getenv("OIDC_ISSUER"),
			ClientID:     os.Getenv("OIDC_CLIENT_ID"),
			StaticTokens: os.Getenv("AUTH_STATIC_TOKENS"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			URLTTL:          getEnvDuration("IMAGE_URL_TTL", 15*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Requests: int64(rateRequests),
			Period:   getEnvDuration("RATE_LIMIT_PERIOD", time.Minute),
			RedisURL: os.Getenv("REDIS_URL"),
		},
	}
}

// Namer returns the role namer for the configured length bounds.
func (c ServerConfig) Namer() naming.Namer {
	return naming.Namer{AdminMax: c.AdminRoleMaxLength, RoleMax: c.RoleMaxLength}
}

// IsProduction returns true in production.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// getEnv reads a string from an environment variable, returning the default if unset.
func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration reads a Go duration string, returning the default if unset, invalid or not positive.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
