package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const minJWTSecretLength = 32

// Config holds application configuration sourced from environment variables.
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Exchange ExchangeConfig
}

type ServiceConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	FrontendBaseURL string        `envconfig:"FRONTEND_BASE_URL" default:"http://localhost:3000"`
	RateLimitRPS    float64       `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"30"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

type DatabaseConfig struct {
	Path string `envconfig:"DB_PATH" default:"./pricecalc.db"`
}

type AuthConfig struct {
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"12h"`
	AdminUsername string        `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD"`
	LDAP          LDAPConfig
	Google        GoogleConfig
}

type LDAPConfig struct {
	URL          string `envconfig:"LDAP_URL"`
	BindTemplate string `envconfig:"LDAP_BIND_TEMPLATE" default:"%s"`
	BaseDN       string `envconfig:"LDAP_BASE_DN"`
	UserFilter   string `envconfig:"LDAP_USER_FILTER" default:"(sAMAccountName=%s)"`
	AdminGroupDN string `envconfig:"LDAP_ADMIN_GROUP_DN"`
	StartTLS     bool   `envconfig:"LDAP_START_TLS" default:"false"`
	// Only for lab directories with self-signed certificates.
	InsecureSkipVerify bool `envconfig:"LDAP_INSECURE_SKIP_VERIFY" default:"false"`
}

type GoogleConfig struct {
	ClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	ClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL" default:"http://localhost:8080/api/auth/google/callback"`
	HostedDomain string `envconfig:"GOOGLE_HOSTED_DOMAIN"`
}

type ExchangeConfig struct {
	APIURL   string        `envconfig:"EXCHANGE_API_URL" default:"https://api.frankfurter.app/latest"`
	CacheTTL time.Duration `envconfig:"EXCHANGE_CACHE_TTL" default:"1h"`
	Timeout  time.Duration `envconfig:"EXCHANGE_TIMEOUT" default:"5s"`
}

// LDAPEnabled reports whether an LDAP/AD directory is configured.
func (a AuthConfig) LDAPEnabled() bool {
	return a.LDAP.URL != ""
}

// GoogleEnabled reports whether Google sign-in is configured.
func (a AuthConfig) GoogleEnabled() bool {
	return a.Google.ClientID != "" && a.Google.ClientSecret != ""
}

// Load reads environment variables and returns a populated Config.
func Load() (Config, error) {
	// Best-effort: production should use real env injection.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env config: %w", err)
	}

	if len(cfg.Auth.JWTSecret) < minJWTSecretLength {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}

	return cfg, nil
}

// LogNotices reports insecure or disabled settings. Call it once the global
// logger is installed.
func (c Config) LogNotices(log *zap.SugaredLogger) {
	if c.Auth.AdminPassword == "" {
		log.Warn("ADMIN_PASSWORD is not set; local admin will not be seeded")
	}
	if !c.Auth.LDAPEnabled() {
		log.Info("LDAP_URL is not set; directory login disabled")
	}
	if !c.Auth.GoogleEnabled() {
		log.Info("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set; Google login disabled")
	}
}
