package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Arkyalys/YouTubeEvent/internal/config"
	"github.com/Arkyalys/YouTubeEvent/internal/dataapi"
	"github.com/Arkyalys/YouTubeEvent/internal/httpapi"
	"github.com/Arkyalys/YouTubeEvent/internal/innertube"
	"github.com/Arkyalys/YouTubeEvent/internal/provider"
	"github.com/Arkyalys/YouTubeEvent/internal/session"
	"github.com/Arkyalys/YouTubeEvent/internal/sink"
	"github.com/Arkyalys/YouTubeEvent/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		versionFlag   bool
		channelID     string
		channelHandle string
		apiKeyFile    string
		journalPath   string
		httpAddr      string
		detectSecs    int
		likeSecs      int
		milestone     int
		httpRateRPS   int
		httpRateBurst int
		httpOrigins   string
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.StringVar(&channelID, "channel-id", "", "Channel id (UC...) to watch")
	flag.StringVar(&channelHandle, "channel-handle", "", "Channel @handle tried first during detection")
	flag.StringVar(&apiKeyFile, "api-key-file", "", "Path to a file containing the API key")
	flag.StringVar(&journalPath, "journal", "", "Path to the sqlite event journal")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address (e.g., :8080)")
	flag.IntVar(&detectSecs, "detect-interval", 0, "Seconds between live detection checks")
	flag.IntVar(&likeSecs, "like-interval", 0, "Seconds between engagement stat checks")
	flag.IntVar(&milestone, "milestone-views", 0, "View count bracket size for milestone events")
	flag.IntVar(&httpRateRPS, "http-rate-rps", 0, "Maximum HTTP requests per second per client")
	flag.IntVar(&httpRateBurst, "http-rate-burst", 0, "Burst size for HTTP rate limiter")
	flag.StringVar(&httpOrigins, "http-cors-origins", "", "Comma-separated list of allowed CORS origins")
	flag.Parse()

	if versionFlag {
		fmt.Printf(
			"eventcast version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		os.Exit(0)
	}

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})

	cfg := config.Load()

	if overrides["channel-id"] {
		cfg.Channel.ID = strings.TrimSpace(channelID)
	}
	if overrides["channel-handle"] {
		cfg.Channel.Handle = strings.TrimSpace(channelHandle)
	}
	if overrides["api-key-file"] {
		cfg.Provider.APIKeyFile = strings.TrimSpace(apiKeyFile)
	}
	if overrides["journal"] {
		cfg.Journal.Path = strings.TrimSpace(journalPath)
	}
	if overrides["http-addr"] {
		cfg.HTTP.Addr = strings.TrimSpace(httpAddr)
	}
	if overrides["detect-interval"] && detectSecs > 0 {
		cfg.Detect.IntervalS = detectSecs
	}
	if overrides["like-interval"] && likeSecs > 0 {
		cfg.Tracker.LikeCheckIntervalS = likeSecs
	}
	if overrides["milestone-views"] && milestone > 0 {
		cfg.Tracker.MilestoneViews = milestone
	}
	if overrides["http-rate-rps"] {
		cfg.HTTP.RateRPS = httpRateRPS
	}
	if overrides["http-rate-burst"] {
		cfg.HTTP.RateBurst = httpRateBurst
	}
	if overrides["http-cors-origins"] {
		cfg.HTTP.Origins = nil
		for _, origin := range strings.Split(httpOrigins, ",") {
			if o := strings.TrimSpace(origin); o != "" {
				cfg.HTTP.Origins = append(cfg.HTTP.Origins, o)
			}
		}
	}

	if cfg.Channel.ID == "" && cfg.Channel.Handle == "" {
		log.Fatal("eventcast: channel-id or channel-handle is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)
	log.Printf("eventcast: config %s", cfg.RedactedJSON())

	apiKey, err := cfg.ResolveAPIKey()
	if err != nil {
		log.Printf("eventcast: api key file: %v", err)
		apiKey = cfg.Provider.APIKey
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("eventcast: received %s, shutting down", sig)
		cancel()
	}()

	// Event pipeline: journal (optionally buffered) plus the HTTP stream.
	journal, err := sink.OpenJournal(cfg.Journal.Path)
	if err != nil {
		log.Fatalf("eventcast: open journal: %v", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			log.Printf("eventcast: closing journal: %v", err)
		}
	}()

	var journalSink sink.Sink = journal
	if cfg.Journal.BatchSize > 1 || cfg.FlushInterval() > 0 {
		buffered := sink.NewBufferedSink(journal, sink.BufferedOptions{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.FlushInterval(),
		})
		defer func() {
			if err := buffered.Close(); err != nil {
				log.Printf("eventcast: flush journal: %v", err)
			}
		}()
		journalSink = buffered
	}

	clock := clockwork.NewRealClock()
	backoff := provider.NewQuotaBackoff(clock)

	zero := innertube.New(innertube.Config{})
	metered := dataapi.New(dataapi.Config{
		APIKey:      apiKey,
		MaxMessages: int64(cfg.Provider.MaxMessagesPerPoll),
		Logger:      logger,
	})

	negotiator := provider.NewNegotiator(zero, metered, backoff, provider.Options{
		PreferZeroQuota:      cfg.Provider.PreferZeroQuota,
		AllowMeteredFallback: cfg.Provider.AllowMeteredFallback,
	}, logger)

	httpMetrics := httpapi.NewMetrics()
	ingestMetrics := session.NewMetrics(httpMetrics.Registry())
	httpMetrics.Registry().MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "ytev",
		Name:      "quota_backoff_active",
		Help:      "1 while the metered path is disabled by quota backoff",
	}, func() float64 {
		if backoff.Exceeded() {
			return 1
		}
		return 0
	}))

	resolver := innertube.NewResolver(zero)

	build := httpapi.BuildInfo{Version: version.Version, Revision: version.Commit}
	if version.BuildTime != "" && version.BuildTime != "unknown" {
		if t, err := time.Parse(time.RFC3339, version.BuildTime); err == nil {
			build.BuiltAt = t
		}
	}

	// The API server is itself a sink; wiring it into the fanout gives
	// stream clients the same events the journal records.
	var events sink.Sink
	poller := session.NewPoller(negotiator, nil, clock, logger, ingestMetrics)
	poller.SetFallbackInterval(cfg.PollInterval())
	tracker := session.NewTracker(resolver, nil, clock, logger, ingestMetrics, cfg.LikeCheckInterval(), int64(cfg.Tracker.MilestoneViews))
	manager := session.NewManager(poller, tracker, clock, logger)

	api := httpapi.New(manager, journal, httpMetrics, logger, httpapi.Options{
		Addr:      cfg.HTTP.Addr,
		RateRPS:   cfg.HTTP.RateRPS,
		RateBurst: cfg.HTTP.RateBurst,
		Origins:   cfg.HTTP.Origins,
		Build:     build,
	})
	events = sink.NewFanout(journalSink, api)
	poller.SetEvents(events)
	tracker.SetEvents(events)

	if cfg.Provider.APIKeyFile != "" {
		if err := session.WatchKeyFile(cfg.Provider.APIKeyFile, logger, metered.UpdateKey); err != nil {
			logger.Error("watch api key file", "err", err)
		}
	}

	detector := session.NewDetector(resolver, metered, backoff, manager, clock, logger, ingestMetrics, session.DetectorConfig{
		ChannelID:    cfg.Channel.ID,
		Handle:       cfg.Channel.Handle,
		Interval:     cfg.DetectInterval(),
		AllowMetered: cfg.Provider.AllowMeteredFallback,
	})

	go func() {
		if err := api.Start(); err != nil {
			log.Fatalf("eventcast: http api: %v", err)
		}
	}()

	go detector.Run(ctx)
	log.Printf("eventcast: watching channel id=%q handle=%q", cfg.Channel.ID, cfg.Channel.Handle)

	<-ctx.Done()

	manager.StopDetected()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Printf("eventcast: http api shutdown: %v", err)
	}
	cancelShutdown()

	log.Printf("eventcast: shutdown complete")
}
