package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"redwatch/internal/config"
)

func validBase() *config.Config {
	return &config.Config{
		Poller: config.PollerConfig{Enabled: true, Interval: "5m"},
		Searches: []config.SearchConfig{
			{Name: "kb", Subreddit: "mechmarket", Query: "keyboard"},
		},
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"bad interval", func(c *config.Config) { c.Poller.Interval = "soon" }, "poller.interval"},
		{"bad timezone", func(c *config.Config) { c.Poller.Timezone = "Mars/Olympus" }, "poller.timezone"},
		{"negative retry", func(c *config.Config) { c.Poller.RetryMax = -1 }, "retry_max"},
		{"missing search name", func(c *config.Config) { c.Searches[0].Name = " " }, "name is required"},
		{"missing subreddit", func(c *config.Config) { c.Searches[0].Subreddit = "" }, "subreddit is required"},
		{"duplicate search name", func(c *config.Config) {
			c.Searches = append(c.Searches, config.SearchConfig{Name: "kb", Subreddit: "golang"})
		}, "duplicate name"},
		{"bad notifier duration", func(c *config.Config) {
			c.Notifier = &config.NotifierConfig{Enabled: true, DedupWindow: "nope"}
		}, "notifier.dedup_window"},
		{"bad storage retention", func(c *config.Config) {
			c.Storage = &config.StorageConfig{Driver: "file", Retention: "-1h"}
		}, "storage.retention"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validBase()
			tc.mutate(cfg)
			err := validateConfig(context.Background(), cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestPollerConfigDefaults(t *testing.T) {
	t.Parallel()

	pc, err := pollerConfig(validBase())
	if err != nil {
		t.Fatal(err)
	}
	if pc.Interval != 5*time.Minute {
		t.Errorf("interval = %v", pc.Interval)
	}
	if pc.SearchSpacing != 10*time.Second {
		t.Errorf("search_spacing = %v", pc.SearchSpacing)
	}
	if pc.Lookback != 7*24*time.Hour {
		t.Errorf("lookback = %v", pc.Lookback)
	}
	if pc.Timezone != "America/New_York" {
		t.Errorf("timezone = %q", pc.Timezone)
	}
}

func TestNotifierConfigOmittedSection(t *testing.T) {
	t.Parallel()

	nc, err := notifierConfig(validBase())
	if err != nil {
		t.Fatal(err)
	}
	if !nc.Enabled {
		t.Error("omitted notifier section should default to enabled")
	}
}

func TestStorageConfigRetentionTracksLookback(t *testing.T) {
	t.Parallel()

	cfg := validBase()
	cfg.Storage = &config.StorageConfig{Driver: "file", Path: "./seen"}
	sc, err := storageConfig(cfg, 72*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if want := 72*time.Hour + 24*time.Hour; sc.Retention != want {
		t.Errorf("retention = %v, want %v", sc.Retention, want)
	}
}

func TestResolveToken(t *testing.T) {
	cfg := validBase()

	cfg.Pushbullet.Token = "  inline-token  "
	if tok, err := resolveToken(cfg); err != nil || tok != "inline-token" {
		t.Fatalf("inline token = %q, %v", tok, err)
	}

	cfg.Pushbullet.Token = ""
	cfg.Pushbullet.TokenEnv = "REDWATCH_TEST_TOKEN"
	t.Setenv("REDWATCH_TEST_TOKEN", "env-token")
	if tok, err := resolveToken(cfg); err != nil || tok != "env-token" {
		t.Fatalf("env token = %q, %v", tok, err)
	}

	t.Setenv("REDWATCH_TEST_TOKEN", "")
	if _, err := resolveToken(cfg); err == nil {
		t.Fatal("expected error when no token is available")
	}
}

func TestSearchList(t *testing.T) {
	t.Parallel()

	cfg := validBase()
	cfg.Searches = append(cfg.Searches, config.SearchConfig{Subreddit: " golang ", Query: "generics"})
	got := searchList(cfg)
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Name != "kb" || got[0].Subreddit != "mechmarket" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Name != "golang/generics" || got[1].Subreddit != "golang" {
		t.Errorf("fallback name = %+v", got[1])
	}
}
