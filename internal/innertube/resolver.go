package innertube

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/Arkyalys/YouTubeEvent/internal/provider"
)

const videoIDLen = 11

// Resolver locates a channel's active broadcast by scraping public
// pages, without touching the metered API.
type Resolver struct {
	client *Client
}

func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// ResolveHandle checks the channel page for an @handle. The page marks
// an active broadcast with a LIVE badge node; the video id comes from
// the embedded player JSON or the canonical link.
func (r *Resolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "", errors.New("innertube: empty handle")
	}
	page, err := r.client.fetchPage(ctx, r.client.base+"/@"+handle)
	if err != nil {
		return "", errors.Wrap(err, "innertube: fetch handle page")
	}
	if !strings.Contains(page, `"text":"LIVE"`) {
		return "", provider.ErrNoActiveChat
	}
	if id := videoIDFromPage(page); id != "" {
		return id, nil
	}
	return "", errors.New("innertube: live badge present but video id not found")
}

// ResolveChannelLive follows the channel's /live redirect page. When a
// broadcast is active the page canonicalizes to its watch URL.
func (r *Resolver) ResolveChannelLive(ctx context.Context, channelID string) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", errors.New("innertube: empty channel id")
	}
	page, err := r.client.fetchPage(ctx, r.client.base+"/channel/"+channelID+"/live")
	if err != nil {
		return "", errors.Wrap(err, "innertube: fetch channel live page")
	}
	if id := canonicalWatchID(page); id != "" {
		return id, nil
	}
	// Older layouts only expose the live thumbnail marker.
	if strings.Contains(page, "hqdefault_live.jpg") {
		if id := embeddedVideoID(page); id != "" {
			return id, nil
		}
	}
	return "", provider.ErrNoActiveChat
}

// canonicalWatchID extracts the video id from the page's canonical link.
func canonicalWatchID(page string) string {
	idx := strings.Index(page, `<link rel="canonical"`)
	if idx == -1 {
		return ""
	}
	href := extractString(page[idx:], `href="`)
	if href == "" {
		return ""
	}
	marker := "watch?v="
	pos := strings.Index(href, marker)
	if pos == -1 {
		return ""
	}
	id := href[pos+len(marker):]
	if amp := strings.IndexByte(id, '&'); amp != -1 {
		id = id[:amp]
	}
	if len(id) != videoIDLen {
		return ""
	}
	return id
}

// embeddedVideoID finds the first 11-character videoId field in the
// page JSON.
func embeddedVideoID(page string) string {
	id := extractString(page, `"videoId":"`)
	if len(id) != videoIDLen {
		return ""
	}
	return id
}

func videoIDFromPage(page string) string {
	if id := embeddedVideoID(page); id != "" {
		return id
	}
	return canonicalWatchID(page)
}
