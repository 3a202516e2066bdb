package innertube

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Stats are the raw engagement counters scraped from a watch page.
type Stats struct {
	Likes int64
	Views int64
}

// FetchStats scrapes the watch page for videoID and extracts the like
// and view counters from its embedded data. Like extraction has two
// fallbacks because the field moves between page revisions; a page with
// a readable view count but no like count reports likes as zero rather
// than failing the fetch.
func (r *Resolver) FetchStats(ctx context.Context, videoID string) (Stats, error) {
	page, err := r.client.fetchPage(ctx, r.client.base+"/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return Stats{}, errors.Wrap(err, "innertube: fetch stats page")
	}

	views, ok := scrapeViewCount(page)
	if !ok {
		return Stats{}, errors.New("innertube: view count not found in page")
	}
	likes, _ := scrapeLikeCount(page)
	return Stats{Likes: likes, Views: views}, nil
}

func scrapeViewCount(page string) (int64, bool) {
	raw := extractString(page, `"viewCount":"`)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func scrapeLikeCount(page string) (int64, bool) {
	// Primary: a likeCount field, quoted or bare.
	if idx := strings.Index(page, `"likeCount"`); idx != -1 {
		rest := page[idx+len(`"likeCount"`):]
		if n, ok := leadingNumber(rest); ok {
			return n, true
		}
	}
	// Fallback: the accessibility label "N likes".
	if idx := strings.Index(page, ` likes"`); idx != -1 {
		start := idx - 40
		if start < 0 {
			start = 0
		}
		if n, ok := trailingNumber(page[start:idx]); ok {
			return n, true
		}
	}
	return 0, false
}

// leadingNumber parses the first digit run after a JSON key, skipping
// separators, quotes and nested text wrappers.
func leadingNumber(s string) (int64, bool) {
	var digits strings.Builder
	started := false
	for i := 0; i < len(s) && i < 64; i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9':
			digits.WriteByte(ch)
			started = true
		case ch == ',' && started:
			// grouping separator inside the number
		case started:
			return parseDigits(digits.String())
		}
	}
	return parseDigits(digits.String())
}

// trailingNumber parses the last digit run in s.
func trailingNumber(s string) (int64, bool) {
	end := len(s)
	for end > 0 && !isDigit(s[end-1]) && s[end-1] != ',' {
		end--
	}
	start := end
	for start > 0 && (isDigit(s[start-1]) || s[start-1] == ',') {
		start--
	}
	return parseDigits(strings.ReplaceAll(s[start:end], ",", ""))
}

func parseDigits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
