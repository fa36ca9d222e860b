package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, GuardOwner, cfg.Diamond.Guard.Kind)
	assert.Equal(t, 64, cfg.Diamond.MaxDepth)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diamondd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  read_timeout: 3s
diamond:
  max_depth: 8
  guard:
    kind: policy
    policy: isOwner || hasRole("UPGRADER")
log:
  format: json
`), 0o600))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("DIAMOND_ADDR", ":9100")
	t.Cleanup(func() { os.Unsetenv("LOG_LEVEL") })

	cfg, err := Load(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 8, cfg.Diamond.MaxDepth)
	assert.Equal(t, GuardPolicy, cfg.Diamond.Guard.Kind)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"bad owner", func(c *Config) { c.Diamond.Owner = "nope" }, "diamond.owner"},
		{"zero depth", func(c *Config) { c.Diamond.MaxDepth = 0 }, "max_depth"},
		{"role without role", func(c *Config) { c.Diamond.Guard.Kind = GuardRole }, "guard.role"},
		{"policy without policy", func(c *Config) { c.Diamond.Guard.Kind = GuardPolicy }, "guard.policy"},
		{"unknown guard", func(c *Config) { c.Diamond.Guard.Kind = "anyone" }, "unknown guard"},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative rate", func(c *Config) { c.Auth.RateLimit = -1 }, "rate limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
