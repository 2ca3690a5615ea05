/*
Package configs loads the server settings from the environment.

A .env file in the working directory is read first when present; variables
already set in the process environment take precedence over it.
*/
package configs

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
)

const (
	EnvDevelopment = "development"

	developmentJWTSecret   = "livechat_insecure_development_secret_change_me"
	developmentDatabaseURL = "mongodb://localhost:27017/livechat"

	minPort = 1024
	maxPort = 65535
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Port        int    `envconfig:"PORT" default:"3000"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	AllowGuests bool   `envconfig:"ALLOW_GUESTS" default:"false"`

	// Security Settings
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
	JWTSecret      string   `envconfig:"JWT_SECRET"`

	// Database Settings
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DatabaseName string `envconfig:"DATABASE_NAME"`

	// S3 Storage Settings
	S3BucketName      string `envconfig:"S3_BUCKET_NAME"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL   string `envconfig:"S3_PUBLIC_BASE_URL"`
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// StorageEnabled reports whether avatar storage is configured.
func (c *AppConfig) StorageEnabled() bool {
	return c.S3BucketName != ""
}

// LoadConfig reads .env if present, then parses and validates the environment.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load()
	return loadFromEnv()
}

func loadFromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finalize applies environment-dependent defaults and validates the result.
func (c *AppConfig) finalize() error {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))

	if c.Port < minPort || c.Port > maxPort {
		return fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", c.Port, minPort, maxPort)
	}

	c.AllowedOrigins = lo.Compact(lo.Map(c.AllowedOrigins, func(origin string, _ int) string {
		return strings.TrimSpace(origin)
	}))

	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", c.Environment)
		}
		c.JWTSecret = developmentJWTSecret
	}

	if c.DatabaseURL == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("DATABASE_URL environment variable is required in %s environment", c.Environment)
		}
		c.DatabaseURL = developmentDatabaseURL
	}

	return c.validateStorage()
}

// validateStorage accepts either no S3 settings at all or every one of them.
func (c *AppConfig) validateStorage() error {
	settings := map[string]string{
		"S3_BUCKET_NAME":       c.S3BucketName,
		"S3_ENDPOINT":          c.S3Endpoint,
		"S3_ACCESS_KEY_ID":     c.S3AccessKeyID,
		"S3_SECRET_ACCESS_KEY": c.S3SecretAccessKey,
		"S3_PUBLIC_BASE_URL":   c.S3PublicBaseURL,
	}

	missing := lo.Keys(lo.PickBy(settings, func(_ string, value string) bool { return value == "" }))
	if len(missing) == 0 || len(missing) == len(settings) {
		return nil
	}

	slices.Sort(missing)
	return fmt.Errorf("incomplete S3 storage settings, missing: %s", strings.Join(missing, ", "))
}
