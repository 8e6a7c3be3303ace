package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "name: desk\nport: 9000\n")

	cfg, err := NewConfig(path)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Name != "desk" || cfg.Port != 9000 {
		t.Fatalf("file values not applied: %+v", cfg.MConfig)
	}
	if cfg.Stream.Reconnect.InitialDelayMs != 3000 || cfg.Stream.Reconnect.Multiplier != 1 {
		t.Fatalf("reconnect defaults lost: %+v", cfg.Stream.Reconnect)
	}
	if len(cfg.Stream.DefaultSymbols) != 8 {
		t.Fatalf("default symbols = %v", cfg.Stream.DefaultSymbols)
	}
}

func TestNewConfigEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "name: desk\n")
	t.Setenv("DASHBOARD_STREAM_URL", "ws://feed.internal:9000/ws/market-data")
	t.Setenv("DASHBOARD_STREAM_RECONNECT_MAX_ATTEMPTS", "4")
	t.Setenv("DASHBOARD_STREAM_DEFAULT_SYMBOLS", "AAPL,MSFT")

	cfg, err := NewConfig(path)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Stream.URL != "ws://feed.internal:9000/ws/market-data" {
		t.Errorf("stream url = %q", cfg.Stream.URL)
	}
	if cfg.Stream.Reconnect.MaxAttempts != 4 {
		t.Errorf("max attempts = %d", cfg.Stream.Reconnect.MaxAttempts)
	}
	if strings.Join(cfg.Stream.DefaultSymbols, ",") != "AAPL,MSFT" {
		t.Errorf("default symbols = %v", cfg.Stream.DefaultSymbols)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"low port":         "port: 80\n",
		"zero delay":       "stream:\n  reconnect:\n    initial_delay_ms: 0\n",
		"max below init":   "stream:\n  reconnect:\n    initial_delay_ms: 5000\n    max_delay_ms: 1000\n",
		"shrinking":        "stream:\n  reconnect:\n    multiplier: 0.5\n",
		"jitter":           "stream:\n  reconnect:\n    jitter: 1.5\n",
		"negative tries":   "stream:\n  reconnect:\n    max_attempts: -1\n",
		"unknown db":       "storage:\n  db_type: mongo\n",
		"postgres no dsn":  "storage:\n  db_type: postgres\n",
		"gateway path":     "gateway:\n  path: ws\n",
		"kafka no brokers": "feed:\n  kafka:\n    enabled: true\n    brokers: []\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error for %q", body)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, "name: desk\n"))
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	cfg.Stream.Reconnect.MaxAttempts = 7

	out := filepath.Join(t.TempDir(), "saved.yaml")
	if err := cfg.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := NewConfig(out)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Stream.Reconnect.MaxAttempts != 7 || reloaded.Name != "desk" {
		t.Fatalf("reloaded = %+v", reloaded.MConfig)
	}
}

func TestNewConfigMissingFile(t *testing.T) {
	if _, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
