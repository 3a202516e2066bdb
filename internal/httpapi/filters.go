package httpapi

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
	"github.com/Arkyalys/YouTubeEvent/internal/sink"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

var knownKinds = map[core.EventKind]struct{}{
	core.EventLikeDelta:       {},
	core.EventViewMilestone:   {},
	core.EventConnectionState: {},
}

// parseEventQuery parses query parameters into a journal query.
// Supported: kind (repeatable or comma separated), video, since
// (RFC3339 or unix seconds), limit.
func parseEventQuery(values url.Values) (sink.Query, error) {
	q := sink.Query{Limit: defaultLimit}

	for _, raw := range values["kind"] {
		for _, part := range strings.Split(raw, ",") {
			kind := core.EventKind(strings.TrimSpace(part))
			if kind == "" {
				continue
			}
			if _, ok := knownKinds[kind]; !ok {
				return sink.Query{}, errors.New("unknown event kind: " + string(kind))
			}
			q.Kinds = append(q.Kinds, kind)
		}
	}

	q.VideoID = strings.TrimSpace(values.Get("video"))

	if raw := values.Get("since"); raw != "" {
		ts, err := parseSince(raw)
		if err != nil {
			return sink.Query{}, err
		}
		q.Since = &ts
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return sink.Query{}, errors.New("limit must be a positive integer")
		}
		if n > maxLimit {
			n = maxLimit
		}
		q.Limit = n
	}

	return q, nil
}

func parseSince(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, errors.New("since must be RFC3339 or unix seconds")
}
