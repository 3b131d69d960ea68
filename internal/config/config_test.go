package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "World of Eldara Server", cfg.Server.Name)
	assert.Equal(t, "NA-EAST", cfg.Server.Region)
	assert.Equal(t, 5000, cfg.Server.MaxPlayers)
	assert.Equal(t, 50*time.Millisecond, cfg.Server.TickInterval())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	data := []byte(`
server:
  tcp_port: 9100
  tick_rate: 30
storage:
  backend: badger
  badger_path: /tmp/eldara
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.GetTCPPort())
	assert.Equal(t, 30, cfg.Server.TickRate)
	assert.Equal(t, 5000, cfg.Server.MaxPlayers, "непереопределённые поля сохраняют дефолты")
	assert.Equal(t, "badger", cfg.Storage.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPortEnvFallback(t *testing.T) {
	t.Setenv("ELDARA_TCP_PORT", "8123")
	s := ServerConfig{}
	assert.Equal(t, 8123, s.GetTCPPort())

	s.TCPPort = 7000
	assert.Equal(t, 7000, s.GetTCPPort(), "значение из конфига важнее env")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too high", func(c *Config) { c.Server.TCPPort = 70000 }},
		{"no players", func(c *Config) { c.Server.MaxPlayers = 0 }},
		{"tick rate zero", func(c *Config) { c.Server.TickRate = 0 }},
		{"tick rate too high", func(c *Config) { c.Server.TickRate = 500 }},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "floppy" }},
		{"unknown auth", func(c *Config) { c.Auth.Backend = "ldap" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
