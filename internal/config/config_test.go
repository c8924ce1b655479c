package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileMissing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.App.SocketPath != DefaultSocketPath || cfg.Providers.RaceTimeout != DefaultRaceTimeout {
		t.Errorf("expected defaults, got %+v", cfg.App)
	}
	if len(cfg.Providers.Priority) != len(DefaultPriority) || cfg.Providers.Priority[0] != "custom-lyrics" {
		t.Errorf("unexpected default priority %v", cfg.Providers.Priority)
	}
	if cfg.Fixers.ShortSpaceMs != 100 || cfg.Fixers.ShortWordRatio != 0.5 {
		t.Errorf("unexpected fixer defaults %+v", cfg.Fixers)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
socket_path = "/tmp/test.sock"
check_interval = "2s"
poll_player = false
lookup_timeout = "not-a-duration"
bar_process = "i3blocks"

[log]
level = "debug"

[providers]
enabled = ["lrclib"]
priority = ["lrclib-plain", "lrclib-synced"]
request_timeout = "3s"
max_retries = 0
retry_backoff = "1s"
unison_url = "https://unison.example/api"

[sniffer]
retry_interval = "50ms"
album_retries = 10

[fixers]
min_word_ms = 150

[translation]
enabled = true
backend = "tencent"
target_language = "zh"
romanize = false

[redis]
addr = "redis:6379"
db = 2
ttl = "1h"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.App.SocketPath != "/tmp/test.sock" || cfg.App.CheckInterval != 2*time.Second || cfg.App.PollPlayer {
		t.Errorf("app overrides not applied: %+v", cfg.App)
	}
	if cfg.App.BarProcess != "i3blocks" || cfg.App.BarSignal != DefaultBarSignal {
		t.Errorf("bar settings not applied: %q %d", cfg.App.BarProcess, cfg.App.BarSignal)
	}
	if cfg.App.LookupTimeout != DefaultLookupTimeout {
		t.Errorf("invalid duration should keep default, got %v", cfg.App.LookupTimeout)
	}
	if cfg.Providers.MaxRetries != 0 || cfg.Providers.RetryBackoff != time.Second {
		t.Errorf("retry overrides not applied: %d %v", cfg.Providers.MaxRetries, cfg.Providers.RetryBackoff)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Log.Level)
	}
	if len(cfg.Providers.Enabled) != 1 || cfg.Providers.Priority[0] != "lrclib-plain" || cfg.Providers.RequestTimeout != 3*time.Second {
		t.Errorf("provider overrides not applied: %+v", cfg.Providers)
	}
	if cfg.Providers.UnisonURL != "https://unison.example/api" {
		t.Errorf("unexpected unison url %q", cfg.Providers.UnisonURL)
	}
	if cfg.Sniffer.RetryInterval != 50*time.Millisecond || cfg.Sniffer.AlbumRetries != 10 || cfg.Sniffer.LyricsRetries != DefaultRetries {
		t.Errorf("sniffer overrides not applied: %+v", cfg.Sniffer)
	}
	if cfg.Fixers.MinWordMs != 150 || cfg.Fixers.ShortSpaceMs != 100 {
		t.Errorf("fixer overrides not applied: %+v", cfg.Fixers)
	}
	if !cfg.Translation.Enabled || cfg.Translation.Backend != "tencent" || cfg.Translation.Romanize {
		t.Errorf("translation overrides not applied: %+v", cfg.Translation)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 || cfg.Redis.TTL != time.Hour {
		t.Errorf("redis overrides not applied: %+v", cfg.Redis)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[app\nsocket_path = 1"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected a decode error")
	}
}

func TestConfigPathHonorsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if got := GetConfigPath(); got != filepath.Join(dir, "lyrics-engine", "config.toml") {
		t.Errorf("unexpected config path %q", got)
	}
}
