package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 20, cfg.RateLimit.SpawnPerSecond)
	assert.Equal(t, 40, cfg.RateLimit.SpawnBurst)

	assert.Equal(t, 1024, cfg.Terminal.ChunkSize)
	assert.Equal(t, 256, cfg.Terminal.EventBuffer)
	assert.Equal(t, 256*1024, cfg.Terminal.ScrollbackBytes)
	assert.Equal(t, 2*time.Second, cfg.Terminal.KillGrace)
	assert.Equal(t, 32, cfg.Terminal.Shards)
	assert.False(t, cfg.Terminal.StrictIDs)
	assert.True(t, cfg.Terminal.SpawnBreaker)

	require.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                  "9000",
		"HOST":                  "0.0.0.0",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"RATE_LIMIT_RPS":        "500",
		"RATE_LIMIT_BURST":      "1000",
		"RATE_LIMIT_ENABLED":    "false",
		"TERM_SHELL":            "/bin/zsh",
		"TERM_SHELL_ARGS":       "-l,-i",
		"TERM_CHUNK_SIZE":       "4096",
		"TERM_EVENT_BUFFER":     "64",
		"TERM_SCROLLBACK_BYTES": "0",
		"TERM_KILL_GRACE":       "500ms",
		"TERM_STRICT_IDS":       "true",
		"TERM_SHARDS":           "4",
		"TERM_SPAWN_BREAKER":    "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	assert.Equal(t, "/bin/zsh", cfg.Terminal.Shell)
	assert.Equal(t, []string{"-l", "-i"}, cfg.Terminal.ShellArgs)
	assert.Equal(t, 4096, cfg.Terminal.ChunkSize)
	assert.Equal(t, 64, cfg.Terminal.EventBuffer)
	assert.Equal(t, 0, cfg.Terminal.ScrollbackBytes)
	assert.Equal(t, 500*time.Millisecond, cfg.Terminal.KillGrace)
	assert.True(t, cfg.Terminal.StrictIDs)
	assert.Equal(t, 4, cfg.Terminal.Shards)
	assert.False(t, cfg.Terminal.SpawnBreaker)
}

func TestLoadRejectsInvalidTerminalSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero chunk size", "TERM_CHUNK_SIZE", "0"},
		{"zero event buffer", "TERM_EVENT_BUFFER", "0"},
		{"negative scrollback", "TERM_SCROLLBACK_BYTES", "-1"},
		{"zero shards", "TERM_SHARDS", "0"},
		{"not a number", "TERM_CHUNK_SIZE", "lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault never fails
			assert.Equal(t, 1024, LoadOrDefault().Terminal.ChunkSize)
		})
	}
}

func TestResolveShell(t *testing.T) {
	t.Setenv("SHELL", "/usr/bin/fish")
	assert.Equal(t, "/bin/bash", TerminalConfig{Shell: "/bin/bash"}.ResolveShell())
	assert.Equal(t, "/usr/bin/fish", TerminalConfig{}.ResolveShell())

	t.Setenv("SHELL", "")
	assert.Equal(t, "/bin/sh", TerminalConfig{}.ResolveShell())
}

func TestLoadProfileFormats(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`shell: /bin/bash
args: ["-l"]
workdir: /tmp
env:
  LANG: en_US.UTF-8
`), 0o644))

	tomlPath := filepath.Join(dir, "profile.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`shell = "/bin/zsh"
args = ["-i"]

[env]
EDITOR = "vi"
`), 0o644))

	p, err := LoadProfile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "/bin/bash", p.Shell)
	assert.Equal(t, []string{"-l"}, p.Args)
	assert.Equal(t, "/tmp", p.WorkDir)
	assert.Equal(t, "en_US.UTF-8", p.Env["LANG"])

	p, err = LoadProfile(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "/bin/zsh", p.Shell)
	assert.Equal(t, []string{"-i"}, p.Args)
	assert.Equal(t, "vi", p.Env["EDITOR"])

	_, err = LoadProfile(filepath.Join(dir, "profile.ini"))
	assert.Error(t, err)
}

func TestProfileMerge(t *testing.T) {
	base := TerminalConfig{Shell: "/bin/sh", WorkDir: "/home/me"}.BaseProfile()
	base.Env = map[string]string{"A": "1"}

	merged := base.Merge(&Profile{Args: []string{"-l"}, Env: map[string]string{"B": "2"}})
	assert.Equal(t, "/bin/sh", merged.Shell)
	assert.Equal(t, "/home/me", merged.WorkDir)
	assert.Equal(t, []string{"-l"}, merged.Args)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Env)

	// base is untouched
	assert.Equal(t, map[string]string{"A": "1"}, base.Env)
	assert.Equal(t, base, base.Merge(nil))
}

func TestWatchProfileReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shell: /bin/sh\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *Profile, 4)
	require.NoError(t, WatchProfile(ctx, path, zap.NewNop(), func(p *Profile) {
		updates <- p
	}))

	require.NoError(t, os.WriteFile(path, []byte("shell: /bin/bash\n"), 0o644))

	// A truncating write can surface an empty intermediate profile first.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case p := <-updates:
			if p.Shell == "/bin/bash" {
				return
			}
		case <-deadline:
			t.Fatal("profile change was not picked up")
		}
	}
}
