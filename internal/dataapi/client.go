// Package dataapi implements the metered chat provider on the official
// YouTube Data API v3. Structurally more reliable than the scraping
// path (typed kinds, explicit amount micros and currency), but every
// call consumes the finite daily quota; quota exhaustion is detected
// from the structured error payload and surfaced as
// provider.ErrQuotaExceeded for the backoff machinery.
package dataapi

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
	"github.com/Arkyalys/YouTubeEvent/internal/provider"
)

const (
	defaultMaxMessages  = 200
	defaultIntervalHint = 3 * time.Second
)

// Config tunes the client.
type Config struct {
	// APIKey authenticates every call. Empty key makes the provider
	// unusable until UpdateKey supplies one.
	APIKey string
	// MaxMessages caps results per poll call.
	MaxMessages int64
	// Options are appended when building the service, for tests
	// (endpoint and transport overrides).
	Options []option.ClientOption
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Client is the metered chat provider.
type Client struct {
	maxMessages int64
	extraOpts   []option.ClientOption
	log         *slog.Logger

	// apiKey and the built service are swapped by the key-file watcher,
	// hence the lock; session state below is confined to the polling owner.
	mu         sync.Mutex
	apiKey     string
	svc        *youtube.Service
	authLogged bool

	videoID    string
	liveChatID string
	pageToken  string
	hint       time.Duration
	connected  bool
	seen       *provider.SeenSet
}

var _ provider.ChatProvider = (*Client)(nil)

func New(cfg Config) *Client {
	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		maxMessages: maxMessages,
		extraOpts:   cfg.Options,
		log:         logger,
		apiKey:      cfg.APIKey,
		hint:        defaultIntervalHint,
		seen:        provider.NewSeenSet(0),
	}
}

func (c *Client) Name() string { return "dataapi" }

func (c *Client) MeteredQuota() bool { return true }

func (c *Client) Connected() bool { return c.connected }

func (c *Client) IntervalHint() time.Duration { return c.hint }

// UpdateKey replaces the API key, drops the cached service and clears
// the one-shot auth-error latch so a fixed key is logged fresh.
func (c *Client) UpdateKey(apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if apiKey == c.apiKey {
		return
	}
	c.apiKey = apiKey
	c.svc = nil
	c.authLogged = false
	c.log.Info("dataapi: api key updated")
}

// Connect resolves the video's active live chat id with one metered
// videos.list call.
func (c *Client) Connect(ctx context.Context, videoID string) error {
	c.Disconnect()

	svc, err := c.service(ctx)
	if err != nil {
		return err
	}

	resp, err := svc.Videos.List([]string{"liveStreamingDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return c.classify("resolve live chat id", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].LiveStreamingDetails == nil ||
		resp.Items[0].LiveStreamingDetails.ActiveLiveChatId == "" {
		return errors.Wrapf(provider.ErrNoActiveChat, "video %s", videoID)
	}

	c.videoID = videoID
	c.liveChatID = resp.Items[0].LiveStreamingDetails.ActiveLiveChatId
	c.connected = true
	c.log.Info("dataapi: connected", "video", videoID)
	return nil
}

// Disconnect clears all session state.
func (c *Client) Disconnect() {
	c.videoID = ""
	c.liveChatID = ""
	c.pageToken = ""
	c.hint = defaultIntervalHint
	c.connected = false
	c.seen.Reset()
}

// Poll lists the next page of chat messages and advances the stored
// page token and polling hint.
func (c *Client) Poll(ctx context.Context) ([]core.ChatMessage, error) {
	if !c.connected || c.liveChatID == "" {
		return nil, provider.ErrNotConnected
	}

	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	call := svc.LiveChatMessages.List(c.liveChatID, []string{"snippet", "authorDetails"}).
		MaxResults(c.maxMessages).
		Context(ctx)
	if c.pageToken != "" {
		call = call.PageToken(c.pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, c.classify("list chat messages", err)
	}

	if resp.NextPageToken != "" {
		c.pageToken = resp.NextPageToken
	}
	if resp.PollingIntervalMillis > 0 {
		c.hint = time.Duration(resp.PollingIntervalMillis) * time.Millisecond
	}

	var fresh []core.ChatMessage
	for _, item := range resp.Items {
		msg, ok := mapMessage(item)
		if !ok {
			continue
		}
		if c.seen.Observe(msg.ID) {
			continue
		}
		fresh = append(fresh, msg)
	}
	return fresh, nil
}

// FindActiveLive searches for the channel's current broadcast. This is
// the most expensive call on the metered path (100 quota units) and is
// only reached when both scrape detections fail.
func (c *Client) FindActiveLive(ctx context.Context, channelID string) (string, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return "", err
	}
	resp, err := svc.Search.List([]string{"id"}).
		ChannelId(channelID).
		EventType("live").
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", c.classify("search live", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Id == nil || resp.Items[0].Id.VideoId == "" {
		return "", provider.ErrNoActiveChat
	}
	return resp.Items[0].Id.VideoId, nil
}

func (c *Client) service(ctx context.Context) (*youtube.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.svc != nil {
		return c.svc, nil
	}
	if c.apiKey == "" {
		c.logAuthOnceLocked("dataapi: no api key configured")
		return nil, errors.Wrap(provider.ErrAuthFailed, "api key not configured")
	}
	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.extraOpts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "dataapi: build service")
	}
	c.svc = svc
	return svc, nil
}

func (c *Client) logAuthOnceLocked(msg string) {
	if c.authLogged {
		return
	}
	c.authLogged = true
	c.log.Warn(msg)
}
