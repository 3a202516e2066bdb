// Package innertube implements the zero-quota chat provider. It mimics a
// browser against public YouTube pages: the watch page yields an API key,
// client version and an initial continuation cursor, after which the
// internal get_live_chat endpoint is polled with that cursor. The page
// and response shapes are undocumented and may change without notice;
// a malformed item is skipped, never treated as a session failure.
package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
	"github.com/Arkyalys/YouTubeEvent/internal/provider"
)

const (
	defaultBase         = "https://www.youtube.com"
	defaultIntervalHint = 3 * time.Second
	userAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	consentCookie       = "CONSENT=YES+cb.20210420-15-p1.en-GB+FX+634"

	maxPageBytes = 5 << 20
	maxPollBytes = 4 << 20
)

// Config tunes the client. Zero values use production endpoints and a
// 15s request timeout.
type Config struct {
	// Base overrides the YouTube origin, for tests.
	Base string
	// HTTPClient overrides the transport, for tests.
	HTTPClient *http.Client
	// SeenCapacity bounds the per-session dedup set.
	SeenCapacity int
}

// Client is the zero-quota chat provider.
type Client struct {
	base string
	http *http.Client

	videoID       string
	apiKey        string
	clientVersion string
	continuation  string
	hint          time.Duration
	connected     bool
	seen          *provider.SeenSet
}

var _ provider.ChatProvider = (*Client)(nil)

func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.Base, "/")
	if base == "" {
		base = defaultBase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		base: base,
		http: httpClient,
		hint: defaultIntervalHint,
		seen: provider.NewSeenSet(cfg.SeenCapacity),
	}
}

func (c *Client) Name() string                { return "innertube" }
func (c *Client) MeteredQuota() bool          { return false }
func (c *Client) Connected() bool             { return c.connected }
func (c *Client) IntervalHint() time.Duration { return c.hint }

// Connect fetches the watch page for videoID and extracts the identity
// fields plus the initial live chat continuation.
func (c *Client) Connect(ctx context.Context, videoID string) error {
	c.Disconnect()

	page, err := c.fetchPage(ctx, c.base+"/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return errors.Wrap(err, "innertube: fetch watch page")
	}

	apiKey := extractString(page, `"INNERTUBE_API_KEY":"`)
	clientVersion := extractString(page, `"INNERTUBE_CLIENT_VERSION":"`)
	if apiKey == "" || clientVersion == "" {
		return errors.New("innertube: api key or client version not found in page")
	}

	initial, err := initialDataBlob(page)
	if err != nil {
		return err
	}
	continuation := findInitialContinuation(initial)
	if continuation == "" {
		return provider.ErrNoActiveChat
	}

	c.videoID = videoID
	c.apiKey = apiKey
	c.clientVersion = clientVersion
	c.continuation = continuation
	c.connected = true
	log.Printf("innertube: connected (version=%s)", clientVersion)
	return nil
}

// Disconnect clears all session state.
func (c *Client) Disconnect() {
	c.videoID = ""
	c.apiKey = ""
	c.clientVersion = ""
	c.continuation = ""
	c.hint = defaultIntervalHint
	c.connected = false
	c.seen.Reset()
}

// Poll issues one continuation request, returning new messages and
// advancing the cursor and interval hint from the response.
func (c *Client) Poll(ctx context.Context) ([]core.ChatMessage, error) {
	if !c.connected || c.continuation == "" {
		return nil, provider.ErrNotConnected
	}

	payload := map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    "WEB",
				"clientVersion": c.clientVersion,
				"hl":            "en",
			},
		},
		"continuation": c.continuation,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "innertube: marshal poll request")
	}

	endpoint := fmt.Sprintf("%s/youtubei/v1/live_chat/get_live_chat?key=%s", c.base, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Origin", c.base)
	req.Header.Set("Referer", c.base+"/watch?v="+url.QueryEscape(c.videoID))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "innertube: poll")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, errors.Errorf("innertube: poll status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPollBytes))
	if err != nil {
		return nil, errors.Wrap(err, "innertube: read poll response")
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, "innertube: decode poll response")
	}

	if next, timeoutMS := extractContinuation(parsed); next != "" {
		c.continuation = next
		if timeoutMS > 0 {
			c.hint = time.Duration(timeoutMS) * time.Millisecond
		}
	}

	var fresh []core.ChatMessage
	for _, msg := range extractMessages(parsed) {
		if c.seen.Observe(msg.ID) {
			continue
		}
		fresh = append(fresh, msg)
	}
	return fresh, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cookie", consentCookie)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func initialDataBlob(page string) (map[string]any, error) {
	markers := []string{
		`var ytInitialData = `,
		`window["ytInitialData"] = `,
		`ytInitialData"] = `,
		`ytInitialData = `,
		`ytInitialData":`,
	}
	var blob string
	for _, marker := range markers {
		blob = extractJSONObject(page, marker)
		if blob != "" {
			break
		}
	}
	if blob == "" {
		return nil, errors.New("innertube: initial data not found in page")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, errors.Wrap(err, "innertube: parse initial data")
	}
	return data, nil
}
