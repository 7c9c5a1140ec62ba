package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shopledger/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeFile(t, `
http:
  port: 9090
auth:
  jwt_secret: from-file
  token_ttl: 30m
`)

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "shopledger.db", cfg.DB.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "admin", cfg.Seed.AdminUsername)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "auth:\n  jwt_secret: from-file\n")
	t.Setenv("SHOPLEDGER_AUTH_JWT_SECRET", "from-env")
	t.Setenv("SHOPLEDGER_HTTP_PORT", "7070")
	t.Setenv("SHOPLEDGER_DB_DRIVER", "postgres")
	t.Setenv("SHOPLEDGER_DB_DSN", "postgres://localhost/shop")

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 7070, cfg.HTTP.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "postgres://localhost/shop", cfg.DB.DSN)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing secret", "http:\n  port: 8080\n"},
		{"unknown driver", "auth:\n  jwt_secret: s\ndb:\n  driver: mongo\n"},
		{"postgres without dsn", "auth:\n  jwt_secret: s\ndb:\n  driver: postgres\n"},
		{"bad port", "auth:\n  jwt_secret: s\nhttp:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
