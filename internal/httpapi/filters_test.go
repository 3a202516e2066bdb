package httpapi

import (
	"net/url"
	"testing"
	"time"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

func TestParseEventQueryDefaults(t *testing.T) {
	q, err := parseEventQuery(url.Values{})
	if err != nil {
		t.Fatalf("parseEventQuery: %v", err)
	}
	if q.Limit != defaultLimit || len(q.Kinds) != 0 || q.Since != nil {
		t.Fatalf("q = %+v", q)
	}
}

func TestParseEventQueryKinds(t *testing.T) {
	q, err := parseEventQuery(url.Values{"kind": {"like_delta,view_milestone"}})
	if err != nil {
		t.Fatalf("parseEventQuery: %v", err)
	}
	if len(q.Kinds) != 2 || q.Kinds[0] != core.EventLikeDelta || q.Kinds[1] != core.EventViewMilestone {
		t.Fatalf("kinds = %v", q.Kinds)
	}

	if _, err := parseEventQuery(url.Values{"kind": {"bogus"}}); err == nil {
		t.Fatal("unknown kind should be rejected")
	}
}

func TestParseEventQuerySince(t *testing.T) {
	q, err := parseEventQuery(url.Values{"since": {"2026-08-28T12:00:00Z"}})
	if err != nil {
		t.Fatalf("parse RFC3339: %v", err)
	}
	want := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	if q.Since == nil || !q.Since.Equal(want) {
		t.Fatalf("since = %v", q.Since)
	}

	q, err = parseEventQuery(url.Values{"since": {"1724845000"}})
	if err != nil {
		t.Fatalf("parse unix: %v", err)
	}
	if q.Since == nil || q.Since.Unix() != 1724845000 {
		t.Fatalf("since = %v", q.Since)
	}

	if _, err := parseEventQuery(url.Values{"since": {"yesterday"}}); err == nil {
		t.Fatal("bad since should be rejected")
	}
}

func TestParseEventQueryLimit(t *testing.T) {
	q, err := parseEventQuery(url.Values{"limit": {"5000"}})
	if err != nil {
		t.Fatalf("parseEventQuery: %v", err)
	}
	if q.Limit != maxLimit {
		t.Fatalf("limit = %d, want clamp to %d", q.Limit, maxLimit)
	}

	if _, err := parseEventQuery(url.Values{"limit": {"-1"}}); err == nil {
		t.Fatal("negative limit should be rejected")
	}
}
