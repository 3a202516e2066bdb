// Package config reads the YTEV_* environment surface. Values are
// read once at startup; the API key file is additionally watched at
// runtime by the session layer.
package config

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Channel  ChannelConfig
	Provider ProviderConfig
	Tracker  TrackerConfig
	Detect   DetectConfig
	Journal  JournalConfig
	HTTP     HTTPConfig
}

type ChannelConfig struct {
	// ID is the UC... channel id used for the /live redirect scrape and
	// the metered search fallback.
	ID string
	// Handle is the optional @handle tried first during detection.
	Handle string
}

type ProviderConfig struct {
	APIKey     string
	APIKeyFile string
	// PreferZeroQuota tries the scrape provider before the metered one.
	PreferZeroQuota bool
	// AllowMeteredFallback permits metered connects and detection calls.
	AllowMeteredFallback bool
	MaxMessagesPerPoll   int
	// PollIntervalMS is the floor applied when a provider gives no hint.
	PollIntervalMS int
}

type TrackerConfig struct {
	LikeCheckIntervalS int
	MilestoneViews     int
}

type DetectConfig struct {
	IntervalS int
}

type JournalConfig struct {
	Path       string
	BatchSize  int
	FlushMaxMS int
}

type HTTPConfig struct {
	Addr      string
	RateRPS   int
	RateBurst int
	Origins   []string
}

const (
	defaultJournalPath    = "events.db"
	defaultBatchSize      = 1
	defaultMaxMessages    = 200
	defaultPollMS         = 3000
	defaultLikeIntervalS  = 30
	defaultMilestoneViews = 100
	defaultDetectS        = 60
	defaultHTTPAddr       = ":8080"
)

func Load() Config {
	cfg := Config{}

	cfg.Channel.ID = strings.TrimSpace(os.Getenv("YTEV_CHANNEL_ID"))
	cfg.Channel.Handle = strings.TrimSpace(os.Getenv("YTEV_CHANNEL_HANDLE"))

	cfg.Provider.APIKey = strings.TrimSpace(os.Getenv("YTEV_API_KEY"))
	cfg.Provider.APIKeyFile = strings.TrimSpace(os.Getenv("YTEV_API_KEY_FILE"))
	cfg.Provider.PreferZeroQuota = readBool("YTEV_PREFER_ZERO_QUOTA", true)
	cfg.Provider.AllowMeteredFallback = readBool("YTEV_ALLOW_METERED_FALLBACK", true)
	cfg.Provider.MaxMessagesPerPoll = readInt("YTEV_MAX_MESSAGES_PER_POLL", defaultMaxMessages)
	cfg.Provider.PollIntervalMS = readInt("YTEV_POLL_INTERVAL_MS", defaultPollMS)

	cfg.Tracker.LikeCheckIntervalS = readInt("YTEV_LIKE_CHECK_INTERVAL_S", defaultLikeIntervalS)
	cfg.Tracker.MilestoneViews = readInt("YTEV_MILESTONE_VIEWS", defaultMilestoneViews)

	cfg.Detect.IntervalS = readInt("YTEV_DETECT_INTERVAL_S", defaultDetectS)

	cfg.Journal.Path = strings.TrimSpace(os.Getenv("YTEV_JOURNAL_PATH"))
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = defaultJournalPath
	}
	cfg.Journal.BatchSize = readInt("YTEV_JOURNAL_BATCH_SIZE", defaultBatchSize)
	cfg.Journal.FlushMaxMS = readInt("YTEV_JOURNAL_FLUSH_MAX_MS", 0)

	cfg.HTTP.Addr = strings.TrimSpace(os.Getenv("YTEV_HTTP_ADDR"))
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = defaultHTTPAddr
	}
	cfg.HTTP.RateRPS = readInt("YTEV_HTTP_RATE_RPS", 0)
	cfg.HTTP.RateBurst = readInt("YTEV_HTTP_RATE_BURST", 0)
	cfg.HTTP.Origins = splitList(os.Getenv("YTEV_HTTP_ORIGINS"))

	return cfg
}

// ResolveAPIKey returns the configured key, preferring the key file
// when set.
func (c Config) ResolveAPIKey() (string, error) {
	if c.Provider.APIKeyFile != "" {
		data, err := os.ReadFile(c.Provider.APIKeyFile)
		if err != nil {
			return "", err
		}
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	}
	return c.Provider.APIKey, nil
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Provider.PollIntervalMS) * time.Millisecond
}

func (c Config) LikeCheckInterval() time.Duration {
	return time.Duration(c.Tracker.LikeCheckIntervalS) * time.Second
}

func (c Config) DetectInterval() time.Duration {
	return time.Duration(c.Detect.IntervalS) * time.Second
}

func (c Config) FlushInterval() time.Duration {
	if c.Journal.FlushMaxMS <= 0 {
		return 0
	}
	return time.Duration(c.Journal.FlushMaxMS) * time.Millisecond
}

// Redacted returns a loggable view with the API key masked.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"channel": map[string]any{
			"id":     c.Channel.ID,
			"handle": c.Channel.Handle,
		},
		"provider": map[string]any{
			"api_key":                redactString(c.Provider.APIKey),
			"api_key_file":           c.Provider.APIKeyFile,
			"prefer_zero_quota":      c.Provider.PreferZeroQuota,
			"allow_metered_fallback": c.Provider.AllowMeteredFallback,
			"max_messages_per_poll":  c.Provider.MaxMessagesPerPoll,
			"poll_interval_ms":       c.Provider.PollIntervalMS,
		},
		"tracker": map[string]any{
			"like_check_interval_s": c.Tracker.LikeCheckIntervalS,
			"milestone_views":       c.Tracker.MilestoneViews,
		},
		"detect": map[string]any{
			"interval_s": c.Detect.IntervalS,
		},
		"journal": map[string]any{
			"path":         c.Journal.Path,
			"batch_size":   c.Journal.BatchSize,
			"flush_max_ms": c.Journal.FlushMaxMS,
		},
		"http": map[string]any{
			"addr":       c.HTTP.Addr,
			"rate_rps":   c.HTTP.RateRPS,
			"rate_burst": c.HTTP.RateBurst,
			"origins":    append([]string(nil), c.HTTP.Origins...),
		},
	}
}

func (c Config) RedactedJSON() []byte {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return data
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "***REDACTED*** (len=" + strconv.Itoa(len(value)) + ")"
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\n':
			return true
		}
		return false
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return dedupe(out)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(v))
	}
	sort.Strings(out)
	return out
}

func readInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func readBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
