package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/mlms")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, StorageNone, cfg.StorageDriver)
	assert.False(t, cfg.AI.Enabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/mlms")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("AI_TIMEOUT", "45")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("STORAGE_DRIVER", "MinIO")
	t.Setenv("MINIO_ACCESS_KEY", "access")
	t.Setenv("MINIO_SECRET_KEY", "secret")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, 45*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, StorageMinIO, cfg.StorageDriver)
	assert.True(t, cfg.MinIO.UseSSL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}},
		{"bad timeout", map[string]string{"AI_TIMEOUT": "soon"}},
		{"bad rate limit", map[string]string{"RATE_LIMIT_PER_MINUTE": "0"}},
		{"unknown storage", map[string]string{"STORAGE_DRIVER": "ftp"}},
		{"minio without keys", map[string]string{"STORAGE_DRIVER": "minio", "MINIO_ACCESS_KEY": "", "MINIO_SECRET_KEY": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/mlms")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadAI_WithoutDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("AI_TIMEOUT", "")

	ai, err := LoadAI()
	require.NoError(t, err)

	assert.True(t, ai.Enabled())
	assert.Equal(t, "gemini-2.5-pro", ai.Model)
	assert.Equal(t, 30*time.Second, ai.Timeout)

	t.Setenv("AI_TIMEOUT", "0")
	_, err = LoadAI()
	assert.Error(t, err)
}
