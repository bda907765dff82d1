package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "server", cfg.Storage.SnapshotName)
	assert.Equal(t, 600, cfg.Marketplace.FrameHeight)
	assert.Equal(t, "2", cfg.Payment.SignatureVersion)
	assert.Equal(t, "RSA-SHA1", cfg.Payment.SignatureMethod)
	assert.Zero(t, cfg.Marketplace.Retries)
	assert.Zero(t, cfg.Payment.Retries)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recapture.yaml")
	yaml := `
server:
  port: 9000
  public_url: https://recapturedocs.example
storage:
  driver: file
  file:
    dir: snapshots
splitter:
  backend: fitz
  jpeg_quality: 75
marketplace:
  lifetime: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("INVITATION_CODE", "letmein")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "fitz", cfg.Splitter.Backend)
	assert.Equal(t, 75, cfg.Splitter.JPEGQuality)
	assert.Equal(t, 48*time.Hour, cfg.Marketplace.Lifetime)
	assert.Equal(t, filepath.Join(dir, "snapshots"), cfg.Storage.File.Dir)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
	assert.True(t, cfg.Access.RequireInvitation)
	assert.Equal(t, "letmein", cfg.Access.InvitationCode)
	assert.Equal(t, "https://recapturedocs.example/process", cfg.PublicURLFor("/process"))
}

func TestLoad_DatabaseURLSelectsDriver(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/recapture?sslmode=disable")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Contains(t, cfg.Storage.Postgres.DSN, "localhost:5432")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"unknown splitter", func(c *Config) { c.Splitter.Backend = "ghostscript" }},
		{"http marketplace without endpoint", func(c *Config) { c.Marketplace.Driver = "http" }},
		{"multiple assignments", func(c *Config) { c.Marketplace.MaxAssignments = 3 }},
		{"negative retries", func(c *Config) { c.Payment.Retries = -1 }},
		{"http payment without endpoint", func(c *Config) { c.Payment.Driver = "http" }},
		{"invitation without code", func(c *Config) {
			c.Access.RequireInvitation = true
			c.Access.InvitationCode = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
