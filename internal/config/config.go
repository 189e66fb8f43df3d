package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/geocoder89/authservice/internal/auth"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	AuditModeDirect = "direct"
	AuditModeQueue  = "queue"
)

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port int    `env:"PORT" envDefault:"8080"`

	DBURL       string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"authservice"`
	DBPassword  string `env:"DB_PASSWORD" envDefault:"authservice"`
	DBName      string `env:"DB_NAME" envDefault:"authservice"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	JWTSecret    string        `env:"JWT_SECRET"`
	JWTAccessTTL time.Duration `env:"JWT_ACCESS_TTL" envDefault:"1h"`
	BcryptCost   int           `env:"BCRYPT_COST" envDefault:"10"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AuditMode     string `env:"AUDIT_MODE" envDefault:"direct"`
	AuditQueueKey string `env:"AUDIT_QUEUE_KEY" envDefault:"authservice:audit"`

	OTELEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"authservice"`
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`

	// frontend targets of the oauth2 handshake
	OAuth2BaseURI               string        `env:"OAUTH2_BASE_URI" envDefault:"http://localhost:3000/"`
	OAuth2AuthorizedRedirectURI string        `env:"OAUTH2_AUTHORIZED_REDIRECT_URI" envDefault:"http://localhost:3000/oauth2/redirect"`
	OAuth2CallbackBaseURL       string        `env:"OAUTH2_CALLBACK_BASE_URL" envDefault:"http://localhost:8080"`
	OAuth2StateTTL              time.Duration `env:"OAUTH2_STATE_TTL" envDefault:"10m"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	MaxBodyBytes       int64    `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	WorkerHealthAddr string `env:"WORKER_HEALTH_ADDR" envDefault:":8081"`
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	// a missing .env is normal outside local dev
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DBURL == "" {
		cfg.DBURL = cfg.buildDBURL()
	}

	return cfg, nil
}

func (c Config) buildDBURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// Validate fails fast on settings that would otherwise break at request time.
func (c Config) Validate() error {
	var errs []error

	if _, err := auth.DecodeSecret(c.JWTSecret); err != nil {
		errs = append(errs, fmt.Errorf("JWT_SECRET: %w", err))
	}
	if c.JWTAccessTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL must be positive"))
	}

	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", c.StoreDriver))
	}

	switch c.AuditMode {
	case AuditModeDirect:
	case AuditModeQueue:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("AUDIT_MODE=queue requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUDIT_MODE: unknown mode %q", c.AuditMode))
	}

	for name, raw := range map[string]string{
		"OAUTH2_BASE_URI":                c.OAuth2BaseURI,
		"OAUTH2_AUTHORIZED_REDIRECT_URI": c.OAuth2AuthorizedRedirectURI,
		"OAUTH2_CALLBACK_BASE_URL":       c.OAuth2CallbackBaseURL,
	} {
		if err := absoluteURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func (c Config) Tracer(serviceName string) observability.TracerConfig {
	return observability.TracerConfig{
		ServiceName: serviceName,
		Environment: c.Env,
		Endpoint:    c.OTELEndpoint,
		SampleRatio: c.OTELSampleRatio,
	}
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// CallbackURL is the redirect_uri registered with a provider.
func (c Config) CallbackURL(registrationID string) string {
	base, _ := url.Parse(c.OAuth2CallbackBaseURL)
	return base.JoinPath("login", "oauth2", "code", registrationID).String()
}

func absoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
