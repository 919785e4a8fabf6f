package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Controller.Host)
	assert.Equal(t, 80, cfg.Controller.Port)
	assert.Equal(t, 5*time.Second, cfg.Controller.Timeout.Duration())
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval.Duration())
	assert.False(t, cfg.Poll.Partial)
	assert.Equal(t, 4, cfg.Poll.Parallel)
	assert.Equal(t, "./melco.sqlite", cfg.Database.Path)
	assert.Equal(t, "0.0.0.0:8099", cfg.HTTP.Addr())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Colors)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout.Duration())
}

func TestDefault_MatchesEmptyFile(t *testing.T) {
	parsed, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), parsed)
}

func TestParse_Values(t *testing.T) {
	data := `
controller:
  host: 192.168.1.60
  port: 8080
  timeout: 2s
poll:
  interval: 1m
  partial: true
  parallel: 8
database:
  path: /var/lib/melco/melco.sqlite
http:
  host: 127.0.0.1
  port: 9000
log:
  level: debug
  json: true
  colors: false
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.60", cfg.Controller.Host)
	assert.Equal(t, 8080, cfg.Controller.Port)
	assert.Equal(t, 2*time.Second, cfg.Controller.Timeout.Duration())
	assert.Equal(t, time.Minute, cfg.Poll.Interval.Duration())
	assert.True(t, cfg.Poll.Partial)
	assert.Equal(t, 8, cfg.Poll.Parallel)
	assert.Equal(t, "/var/lib/melco/melco.sqlite", cfg.Database.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.False(t, cfg.Log.Colors)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("MELCO_TEST_HOST", "10.1.2.3")

	cfg, err := Parse([]byte("controller:\n  host: ${MELCO_TEST_HOST}\ndatabase:\n  path: ${MELCO_TEST_UNSET:-/tmp/x.sqlite}\n"))
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", cfg.Controller.Host)
	assert.Equal(t, "/tmp/x.sqlite", cfg.Database.Path)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("poll:\n  interval: soon\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("poll:\n  interval: 100ms\n"))
	assert.ErrorContains(t, err, "poll.interval")

	_, err = Parse([]byte("controller:\n  port: 70000\n"))
	assert.ErrorContains(t, err, "controller.port")

	_, err = Parse([]byte("log:\n  level: chatty\n"))
	assert.ErrorContains(t, err, "log.level")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("controller:\n  host: ac.local\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ac.local", cfg.Controller.Host)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
