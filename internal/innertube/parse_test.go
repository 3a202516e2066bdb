package innertube

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

func decodePayload(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload
}

func TestExtractMessagesTextRenderer(t *testing.T) {
	payload := decodePayload(t, `{
		"continuationContents": {"liveChatContinuation": {"actions": [
			{"addChatItemAction": {"item": {"liveChatTextMessageRenderer": {
				"id": "m1",
				"authorExternalChannelId": "UCauthor",
				"authorName": {"simpleText": "Alice"},
				"authorPhoto": {"thumbnails": [{"url": "https://example.invalid/a.jpg"}]},
				"message": {"runs": [{"text": "hello "}, {"emoji": {"shortcuts": [":wave:"]}}]},
				"timestampUsec": "1700000000000000",
				"authorBadges": [{"liveChatAuthorBadgeRenderer": {"icon": {"iconType": "MODERATOR"}}}]
			}}}}
		]}}
	}`)

	msgs := extractMessages(payload)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	msg := msgs[0]
	if msg.ID != "m1" || msg.Kind != core.KindText {
		t.Fatalf("unexpected id/kind: %q %q", msg.ID, msg.Kind)
	}
	if msg.Body != "hello :wave:" {
		t.Fatalf("unexpected body %q", msg.Body)
	}
	if !msg.IsModerator || msg.IsOwner {
		t.Fatalf("badge flags wrong: mod=%v owner=%v", msg.IsModerator, msg.IsOwner)
	}
	if msg.AuthorName != "Alice" || msg.AuthorID != "UCauthor" {
		t.Fatalf("author fields wrong: %q %q", msg.AuthorName, msg.AuthorID)
	}
	want := time.Unix(0, 1700000000000000*1000).UTC()
	if !msg.PublishedAt.Equal(want) {
		t.Fatalf("timestamp %v, want %v", msg.PublishedAt, want)
	}
	if msg.AmountMicros != 0 || msg.AmountDisplay != "" {
		t.Fatalf("text message must not carry monetary fields")
	}
}

func TestExtractMessagesPaidRenderers(t *testing.T) {
	payload := decodePayload(t, `{
		"continuationContents": {"liveChatContinuation": {"actions": [
			{"addChatItemAction": {"item": {"liveChatPaidMessageRenderer": {
				"id": "sc1",
				"authorExternalChannelId": "UCrich",
				"authorName": {"simpleText": "Bob"},
				"message": {"runs": [{"text": "take my money"}]},
				"purchaseAmountText": {"simpleText": "€5.00"},
				"timestampUsec": "1700000000000000"
			}}}},
			{"addChatItemAction": {"item": {"liveChatPaidStickerRenderer": {
				"id": "ss1",
				"authorExternalChannelId": "UCsticker",
				"authorName": {"simpleText": "Carol"},
				"purchaseAmountText": {"simpleText": "$2.00"},
				"timestampUsec": "1700000000000000"
			}}}},
			{"addChatItemAction": {"item": {"liveChatMembershipItemRenderer": {
				"id": "nm1",
				"authorExternalChannelId": "UCnew",
				"authorName": {"simpleText": "Dave"},
				"timestampUsec": "1700000000000000"
			}}}}
		]}}
	}`)

	msgs := extractMessages(payload)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	sc := msgs[0]
	if sc.Kind != core.KindSuperChat || sc.AmountMicros != 5_000_000 || sc.CurrencyCode != "EUR" {
		t.Fatalf("superchat fields wrong: %+v", sc)
	}
	if sc.Body != "take my money" {
		t.Fatalf("superchat body %q", sc.Body)
	}

	ss := msgs[1]
	if ss.Kind != core.KindSuperSticker || ss.AmountMicros != 2_000_000 || ss.CurrencyCode != "USD" {
		t.Fatalf("sticker fields wrong: %+v", ss)
	}
	if ss.Body != "" {
		t.Fatalf("sticker body should be empty, got %q", ss.Body)
	}

	nm := msgs[2]
	if nm.Kind != core.KindNewMember || !nm.IsSponsor {
		t.Fatalf("member fields wrong: %+v", nm)
	}
	if nm.AmountMicros != 0 {
		t.Fatalf("member must not carry monetary fields")
	}
}

func TestExtractMessagesSkipsUnknownRenderer(t *testing.T) {
	payload := decodePayload(t, `{
		"continuationContents": {"liveChatContinuation": {"actions": [
			{"addChatItemAction": {"item": {"liveChatPlaceholderItemRenderer": {"id": "x"}}}},
			{"addChatItemAction": {"item": {"liveChatTextMessageRenderer": {
				"id": "m2", "authorExternalChannelId": "UC2",
				"authorName": {"simpleText": "Eve"},
				"message": {"simpleText": "ok"},
				"timestampUsec": "1700000000000000"
			}}}}
		]}}
	}`)

	msgs := extractMessages(payload)
	if len(msgs) != 1 || msgs[0].ID != "m2" {
		t.Fatalf("unknown renderer not skipped cleanly: %+v", msgs)
	}
}

func TestExtractContinuation(t *testing.T) {
	payload := decodePayload(t, `{
		"continuationContents": {"liveChatContinuation": {"continuations": [
			{"timedContinuationData": {"continuation": "next-token", "timeoutMs": 2500}}
		]}}
	}`)
	cont, timeout := extractContinuation(payload)
	if cont != "next-token" {
		t.Fatalf("continuation %q", cont)
	}
	if timeout != 2500 {
		t.Fatalf("timeout %d", timeout)
	}
}

func TestExtractContinuationStringTimeout(t *testing.T) {
	payload := decodePayload(t, `{
		"continuationContents": {"liveChatContinuation": {"continuations": [
			{"invalidationContinuationData": {"continuation": "tok2", "timeoutMs": "4000"}}
		]}}
	}`)
	cont, timeout := extractContinuation(payload)
	if cont != "tok2" || timeout != 4000 {
		t.Fatalf("got %q %d", cont, timeout)
	}
}

func TestFindInitialContinuationConversationBar(t *testing.T) {
	payload := decodePayload(t, `{
		"contents": {"twoColumnWatchNextResults": {"conversationBar": {"liveChatRenderer": {
			"continuations": [{"reloadContinuationData": {"continuation": "initial-cursor"}}]
		}}}}
	}`)
	if cont := findInitialContinuation(payload); cont != "initial-cursor" {
		t.Fatalf("continuation %q", cont)
	}
}

func TestFindInitialContinuationDeepScan(t *testing.T) {
	payload := decodePayload(t, `{
		"somewhere": {"liveChatRenderer": {
			"continuationEndpoint": {"continuationCommand": {"token": "deep-token"}}
		}}
	}`)
	if cont := findInitialContinuation(payload); cont != "deep-token" {
		t.Fatalf("continuation %q", cont)
	}
}

func TestExtractJSONObjectBalancesStrings(t *testing.T) {
	page := `var ytInitialData = {"a": "brace } in string", "b": {"c": 1}};</script>`
	blob := extractJSONObject(page, `var ytInitialData = `)
	var decoded map[string]any
	if err := json.Unmarshal([]byte(blob), &decoded); err != nil {
		t.Fatalf("blob not valid JSON: %v (%q)", err, blob)
	}
	if decoded["a"] != "brace } in string" {
		t.Fatalf("string content mangled: %v", decoded["a"])
	}
}
