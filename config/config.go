package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET environment variable is not set")

// LoadENV loads variables from .env when GO_ENV is unset or "development".
// A missing .env file is not an error; the process environment is used as is.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

// EnvironmentVariables is the typed view over the process environment.
type EnvironmentVariables struct {
	GoEnv string `mapstructure:"GO_ENV"`
	Port  int    `mapstructure:"PORT"`

	// Database
	DBUserName string `mapstructure:"DB_USER_NAME"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBSSLMode  string `mapstructure:"DB_SSL_MODE"`

	// JWT
	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	JWTAccessTTL  time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL time.Duration `mapstructure:"JWT_REFRESH_TTL"`

	// Redis
	RedisURL string `mapstructure:"REDIS_URL"`

	// HTTP
	AllowedOrigins    string `mapstructure:"ALLOWED_ORIGINS"`
	RateLimitRequests int    `mapstructure:"RATE_LIMIT_REQUESTS"`

	// SMTP
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	AppURL       string `mapstructure:"APP_URL"`

	// Background work
	CronEnabled      bool          `mapstructure:"CRON_ENABLED"`
	NotifyWorkers    int           `mapstructure:"NOTIFY_WORKERS"`
	NotifyCooldown   time.Duration `mapstructure:"NOTIFY_COOLDOWN"`
	InactiveUserDays int           `mapstructure:"INACTIVE_USER_DAYS"`

	// S3-compatible object storage for avatars
	SpacesAccessKey string `mapstructure:"SPACES_ACCESS_KEY"`
	SpacesSecretKey string `mapstructure:"SPACES_SECRET_KEY"`
	SpacesBucket    string `mapstructure:"SPACES_BUCKET"`
	SpacesRegion    string `mapstructure:"SPACES_REGION"`
	SpacesEndpoint  string `mapstructure:"SPACES_ENDPOINT"`
	SpacesCDNURL    string `mapstructure:"SPACES_CDN_URL"`
}

var defaults = map[string]interface{}{
	"GO_ENV":              "development",
	"PORT":                8080,
	"DB_USER_NAME":        "postgres",
	"DB_PASSWORD":         "",
	"DB_NAME":             "edu_materials",
	"DB_HOST":             "localhost",
	"DB_PORT":             "5432",
	"DB_SSL_MODE":         "disable",
	"JWT_SECRET":          "",
	"JWT_ISSUER":          "edu-materials-api",
	"JWT_ACCESS_TTL":      "24h",
	"JWT_REFRESH_TTL":     "168h",
	"REDIS_URL":           "redis://localhost:6379/0",
	"ALLOWED_ORIGINS":     "http://localhost:3000",
	"RATE_LIMIT_REQUESTS": 100,
	"SMTP_HOST":           "smtp.gmail.com",
	"SMTP_PORT":           587,
	"SMTP_USERNAME":       "",
	"SMTP_PASSWORD":       "",
	"SMTP_FROM":           "noreply@edu-materials.local",
	"APP_URL":             "http://localhost:8080/api/v1/materials",
	"CRON_ENABLED":        true,
	"NOTIFY_WORKERS":      2,
	"NOTIFY_COOLDOWN":     "4h",
	"INACTIVE_USER_DAYS":  30,
	"SPACES_ACCESS_KEY":   "",
	"SPACES_SECRET_KEY":   "",
	"SPACES_BUCKET":       "",
	"SPACES_REGION":       "",
	"SPACES_ENDPOINT":     "",
	"SPACES_CDN_URL":      "",
}

// Get reads the environment into EnvironmentVariables, applying defaults.
func Get() (*EnvironmentVariables, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var env EnvironmentVariables
	if err := v.Unmarshal(&env); err != nil {
		return nil, err
	}

	env.JWTSecret = strings.TrimSpace(env.JWTSecret)
	if env.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	if env.NotifyWorkers < 1 {
		env.NotifyWorkers = 1
	}

	return &env, nil
}

// IsProduction reports whether GO_ENV is "production".
func (e *EnvironmentVariables) IsProduction() bool {
	return e.GoEnv == "production"
}

// SpacesConfigured reports whether avatar object storage has credentials and a bucket.
func (e *EnvironmentVariables) SpacesConfigured() bool {
	return e.SpacesAccessKey != "" && e.SpacesSecretKey != "" && e.SpacesBucket != "" && e.SpacesRegion != ""
}
