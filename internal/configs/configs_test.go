package configs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"ENVIRONMENT", "PORT", "LOG_LEVEL", "ALLOW_GUESTS", "ALLOWED_ORIGINS", "JWT_SECRET",
	"DATABASE_URL", "DATABASE_NAME", "S3_BUCKET_NAME", "S3_ENDPOINT", "S3_ACCESS_KEY_ID",
	"S3_SECRET_ACCESS_KEY", "S3_PUBLIC_BASE_URL",
}

// clearEnv blanks every variable the loader reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "3000")
	t.Setenv("ALLOW_GUESTS", "false")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173")
}

func TestLoadDevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadFromEnv()
	require.NoError(t, err)
	require.True(t, cfg.IsDevelopment())
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	require.Equal(t, developmentJWTSecret, cfg.JWTSecret)
	require.Equal(t, developmentDatabaseURL, cfg.DatabaseURL)
	require.False(t, cfg.AllowGuests)
	require.False(t, cfg.StorageEnabled())
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := loadFromEnv()
	require.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	_, err = loadFromEnv()
	require.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/livechat")
	cfg, err := loadFromEnv()
	require.NoError(t, err)
	require.False(t, cfg.IsDevelopment())
	require.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoadRejectsPrivilegedPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "80")

	_, err := loadFromEnv()
	require.ErrorContains(t, err, "outside the recommended range")
}

func TestLoadTrimsOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "http://a.example.com, ,http://b.example.com ")

	cfg, err := loadFromEnv()
	require.NoError(t, err)
	require.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, cfg.AllowedOrigins)
}

func TestLoadStorageAllOrNone(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_BUCKET_NAME", "avatars")
	t.Setenv("S3_ENDPOINT", "https://s3.example.com")

	_, err := loadFromEnv()
	require.ErrorContains(t, err, "S3_ACCESS_KEY_ID, S3_PUBLIC_BASE_URL, S3_SECRET_ACCESS_KEY")

	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3_PUBLIC_BASE_URL", "https://cdn.example.com")

	cfg, err := loadFromEnv()
	require.NoError(t, err)
	require.True(t, cfg.StorageEnabled())
}
