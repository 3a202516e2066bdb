package innertube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const watchPage = `<html><script>
{"INNERTUBE_API_KEY":"test-key","INNERTUBE_CLIENT_VERSION":"2.20240101.00.00"}
var ytInitialData = {"contents":{"twoColumnWatchNextResults":{"conversationBar":{"liveChatRenderer":{"continuations":[{"reloadContinuationData":{"continuation":"cursor-0"}}]}}}}};</script>
</html>`

func textAction(id, text string) string {
	return fmt.Sprintf(`{"addChatItemAction":{"item":{"liveChatTextMessageRenderer":{
		"id": %q,
		"authorExternalChannelId": "UCx",
		"authorName": {"simpleText": "user"},
		"message": {"simpleText": %q},
		"timestampUsec": "1700000000000000"
	}}}}`, id, text)
}

func pollResponse(cursor string, timeoutMS int, actions ...string) string {
	return fmt.Sprintf(`{"continuationContents":{"liveChatContinuation":{
		"continuations":[{"timedContinuationData":{"continuation":%q,"timeoutMs":%d}}],
		"actions":[%s]
	}}}`, cursor, timeoutMS, strings.Join(actions, ","))
}

func newChatServer(t *testing.T, polls []string) (*httptest.Server, *[]string) {
	t.Helper()
	var cursors []string
	pollIdx := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/watch"):
			fmt.Fprint(w, watchPage)
		case strings.HasPrefix(r.URL.Path, "/youtubei/v1/live_chat/get_live_chat"):
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode poll body: %v", err)
			}
			cursor, _ := body["continuation"].(string)
			cursors = append(cursors, cursor)
			if pollIdx >= len(polls) {
				fmt.Fprint(w, pollResponse("cursor-end", 1500))
				return
			}
			fmt.Fprint(w, polls[pollIdx])
			pollIdx++
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &cursors
}

func TestClientConnectExtractsSessionState(t *testing.T) {
	srv, _ := newChatServer(t, nil)
	c := New(Config{Base: srv.URL})

	if err := c.Connect(context.Background(), "abc12345678"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !c.Connected() {
		t.Fatalf("expected connected state")
	}
	if c.apiKey != "test-key" || c.continuation != "cursor-0" {
		t.Fatalf("session state wrong: key=%q cursor=%q", c.apiKey, c.continuation)
	}
	if c.MeteredQuota() {
		t.Fatalf("innertube must report zero quota")
	}
}

func TestClientPollDeduplicatesAcrossCalls(t *testing.T) {
	polls := []string{
		pollResponse("cursor-1", 2000, textAction("m1", "a"), textAction("m2", "b"), textAction("m3", "c")),
		pollResponse("cursor-2", 2000, textAction("m2", "b"), textAction("m3", "c"), textAction("m4", "d")),
	}
	srv, cursors := newChatServer(t, polls)
	c := New(Config{Base: srv.URL})

	if err := c.Connect(context.Background(), "abc12345678"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	first, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first poll returned %d messages, want 3", len(first))
	}

	second, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if len(second) != 1 || second[0].ID != "m4" {
		t.Fatalf("overlap not deduplicated: %+v", second)
	}

	if want := []string{"cursor-0", "cursor-1"}; len(*cursors) != 2 || (*cursors)[0] != want[0] || (*cursors)[1] != want[1] {
		t.Fatalf("cursor chain wrong: %v", *cursors)
	}
	if c.IntervalHint() != 2*time.Second {
		t.Fatalf("interval hint not updated: %v", c.IntervalHint())
	}
}

func TestClientPollWithoutConnect(t *testing.T) {
	c := New(Config{Base: "http://unused.invalid"})
	if _, err := c.Poll(context.Background()); err == nil {
		t.Fatalf("expected error when polling unconnected client")
	}
}

func TestClientDisconnectClearsState(t *testing.T) {
	srv, _ := newChatServer(t, nil)
	c := New(Config{Base: srv.URL})
	if err := c.Connect(context.Background(), "abc12345678"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	c.Disconnect()
	if c.Connected() || c.continuation != "" || c.apiKey != "" {
		t.Fatalf("disconnect left state behind")
	}
	// Reconnect after disconnect must work.
	if err := c.Connect(context.Background(), "abc12345678"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
}

func TestClientConnectNoLiveChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>{"INNERTUBE_API_KEY":"k","INNERTUBE_CLIENT_VERSION":"v"}
var ytInitialData = {"contents":{}};</script></html>`)
	}))
	defer srv.Close()

	c := New(Config{Base: srv.URL})
	if err := c.Connect(context.Background(), "abc12345678"); err == nil {
		t.Fatalf("expected connect failure without live chat continuation")
	}
	if c.Connected() {
		t.Fatalf("failed connect left connected state")
	}
}
