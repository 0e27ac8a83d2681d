package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestManagerLoadYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
logging:
  level: debug
  console: true
pushbullet:
  token_env: MY_PB_TOKEN
poller:
  enabled: true
  interval: 10m
  lookback: 72h
  timezone: America/New_York
storage:
  driver: file
  path: ./seen
searches:
  - name: keyboards
    subreddit: mechmarket
    query: ortholinear
  - name: go-jobs
    subreddit: golang
    query: hiring
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Pushbullet.TokenEnv != "MY_PB_TOKEN" {
		t.Errorf("token_env = %q", cfg.Pushbullet.TokenEnv)
	}
	if !cfg.Poller.Enabled || cfg.Poller.Interval != "10m" || cfg.Poller.Timezone != "America/New_York" {
		t.Errorf("poller = %+v", cfg.Poller)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Searches) != 2 || cfg.Searches[1].Query != "hiring" {
		t.Errorf("searches = %+v", cfg.Searches)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get() did not return the committed config")
	}
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
poller:
  enabled: true
  intervall: 10m
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestManagerSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	m := NewManager("unused")
	ch := m.Subscribe(1)
	m.publish(&Config{})
	select {
	case cfg := <-ch:
		if cfg == nil {
			t.Fatal("nil config published")
		}
	default:
		t.Fatal("no config delivered to subscriber")
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after Unsubscribe")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"5m", 5 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"-5s", 0, true},
		{"five", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDurationField("t", tc.raw)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseDurationField(%q) err = %v, wantErr=%v", tc.raw, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseDurationField(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}

	if d, err := ParseDurationOrDefault("t", "", time.Second); err != nil || d != time.Second {
		t.Errorf("ParseDurationOrDefault empty = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("t", "2s", time.Second); err != nil || d != 2*time.Second {
		t.Errorf("ParseDurationOrDefault 2s = %v, %v", d, err)
	}
}
