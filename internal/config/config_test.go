package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if !cfg.Provider.PreferZeroQuota {
		t.Fatal("PreferZeroQuota should default to true")
	}
	if !cfg.Provider.AllowMeteredFallback {
		t.Fatal("AllowMeteredFallback should default to true")
	}
	if cfg.Provider.MaxMessagesPerPoll != defaultMaxMessages {
		t.Fatalf("MaxMessagesPerPoll = %d", cfg.Provider.MaxMessagesPerPoll)
	}
	if cfg.Journal.Path != defaultJournalPath {
		t.Fatalf("Journal.Path = %q", cfg.Journal.Path)
	}
	if cfg.HTTP.Addr != defaultHTTPAddr {
		t.Fatalf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.LikeCheckInterval() != 30*time.Second {
		t.Fatalf("LikeCheckInterval = %v", cfg.LikeCheckInterval())
	}
	if cfg.DetectInterval() != time.Minute {
		t.Fatalf("DetectInterval = %v", cfg.DetectInterval())
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("YTEV_CHANNEL_ID", "UCexample")
	t.Setenv("YTEV_CHANNEL_HANDLE", "@creator")
	t.Setenv("YTEV_API_KEY", "secret-key")
	t.Setenv("YTEV_PREFER_ZERO_QUOTA", "false")
	t.Setenv("YTEV_MILESTONE_VIEWS", "250")
	t.Setenv("YTEV_HTTP_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	if cfg.Channel.ID != "UCexample" || cfg.Channel.Handle != "@creator" {
		t.Fatalf("channel = %+v", cfg.Channel)
	}
	if cfg.Provider.PreferZeroQuota {
		t.Fatal("PreferZeroQuota should be false")
	}
	if cfg.Tracker.MilestoneViews != 250 {
		t.Fatalf("MilestoneViews = %d", cfg.Tracker.MilestoneViews)
	}
	if len(cfg.HTTP.Origins) != 2 {
		t.Fatalf("Origins = %v", cfg.HTTP.Origins)
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("YTEV_MILESTONE_VIEWS", "-5")
	t.Setenv("YTEV_DETECT_INTERVAL_S", "nope")

	cfg := Load()
	if cfg.Tracker.MilestoneViews != defaultMilestoneViews {
		t.Fatalf("MilestoneViews = %d", cfg.Tracker.MilestoneViews)
	}
	if cfg.Detect.IntervalS != defaultDetectS {
		t.Fatalf("DetectIntervalS = %d", cfg.Detect.IntervalS)
	}
}

func TestResolveAPIKeyPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  file-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("YTEV_API_KEY", "env-key")
	t.Setenv("YTEV_API_KEY_FILE", path)

	cfg := Load()
	key, err := cfg.ResolveAPIKey()
	if err != nil {
		t.Fatalf("ResolveAPIKey: %v", err)
	}
	if key != "file-key" {
		t.Fatalf("key = %q", key)
	}
}

func TestRedactedMasksAPIKey(t *testing.T) {
	t.Setenv("YTEV_API_KEY", "super-secret-key")

	cfg := Load()
	out := string(cfg.RedactedJSON())
	if strings.Contains(out, "super-secret-key") {
		t.Fatal("api key leaked into redacted output")
	}
	if !strings.Contains(out, "REDACTED") {
		t.Fatal("expected redaction marker")
	}
}
