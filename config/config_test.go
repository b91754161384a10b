package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  type: postgres
  host: db.internal
  port: 5433
  dbname: transfers
smtp:
  host: smtp.example.com
  port: 465
  tls_mode: implicit
  from: no-reply@example.com
storage:
  backend: minio
  endpoint: s3.internal:9000
  bucket: uploads
transfer:
  base_url: https://files.example.com
  link_ttl: 48h
http:
  allowed_origins:
    - https://app.example.com
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "transfers", cfg.Database.DBName)
	assert.Equal(t, "implicit", cfg.SMTP.TLSMode)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, "uploads", cfg.Storage.Bucket)
	assert.Equal(t, "https://files.example.com", cfg.Transfer.BaseURL)
	assert.Equal(t, 48*time.Hour, cfg.Transfer.LinkTTL)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.HTTP.AllowedOrigins)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "filesystem", cfg.Storage.Backend)
	assert.Equal(t, "starttls", cfg.SMTP.TLSMode)
	assert.Equal(t, int64(50*1024*1024), cfg.Transfer.FreeQuotaBytes)
	assert.Equal(t, 7*24*time.Hour, cfg.Transfer.LinkTTL)
	assert.Equal(t, time.Hour, cfg.Transfer.PresignTTL)
	assert.Equal(t, 3, cfg.Transfer.TokenAttempts)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: filesystem\n")
	t.Setenv("SENDMYFILES_STORAGE_BACKEND", "jetstream")
	t.Setenv("SENDMYFILES_TRANSFER_FREE_QUOTA_BYTES", "1024")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "jetstream", cfg.Storage.Backend)
	assert.Equal(t, int64(1024), cfg.Transfer.FreeQuotaBytes)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "database type",
			content: "database:\n  type: mysql\n",
			want:    "tipo de banco de dados não suportado",
		},
		{
			name:    "storage backend",
			content: "storage:\n  backend: ftp\n",
			want:    "backend de armazenamento não suportado",
		},
		{
			name:    "smtp tls mode",
			content: "smtp:\n  tls_mode: ssl3\n",
			want:    "modo TLS do SMTP não suportado",
		},
		{
			name:    "quota",
			content: "transfer:\n  free_quota_bytes: 0\n",
			want:    "free_quota_bytes",
		},
		{
			name:    "rate limit window",
			content: "ratelimit:\n  enabled: true\n  requests: 0\n",
			want:    "ratelimit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
