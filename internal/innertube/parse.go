package innertube

import (
	"strconv"
	"strings"
	"time"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

// extractMessages walks the poll response's action lists and maps each
// recognized renderer to a canonical message. Unknown renderer shapes
// are skipped silently.
func extractMessages(payload map[string]any) []core.ChatMessage {
	var messages []core.ChatMessage
	for _, action := range gatherActions(payload) {
		item := digMap(action, "addChatItemAction", "item")
		if item == nil {
			// Replayed broadcasts nest the add action one level deeper.
			if replay := digMap(action, "replayChatItemAction"); replay != nil {
				if acts, ok := replay["actions"].([]any); ok && len(acts) > 0 {
					if first, ok := acts[0].(map[string]any); ok {
						item = digMap(first, "addChatItemAction", "item")
					}
				}
			}
		}
		if item == nil {
			continue
		}
		if msg, ok := buildMessage(item); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}

func gatherActions(payload map[string]any) []map[string]any {
	var out []map[string]any
	collect := func(arr []any) {
		for _, item := range arr {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
	}
	if arr, ok := payload["actions"].([]any); ok {
		collect(arr)
	}
	if lc := digMap(payload, "continuationContents", "liveChatContinuation"); lc != nil {
		if arr, ok := lc["actions"].([]any); ok {
			collect(arr)
		}
	}
	return out
}

// buildMessage maps one chat item to the canonical shape. The four
// renderer keys cover text, paid message, paid sticker and membership.
func buildMessage(item map[string]any) (core.ChatMessage, bool) {
	if r, ok := item["liveChatTextMessageRenderer"].(map[string]any); ok {
		msg := baseMessage(r, core.KindText)
		msg.Body = textField(r, "message")
		return msg, msg.ID != ""
	}
	if r, ok := item["liveChatPaidMessageRenderer"].(map[string]any); ok {
		msg := baseMessage(r, core.KindSuperChat)
		msg.Body = textField(r, "message")
		applyPurchase(&msg, r)
		return msg, msg.ID != ""
	}
	if r, ok := item["liveChatPaidStickerRenderer"].(map[string]any); ok {
		msg := baseMessage(r, core.KindSuperSticker)
		applyPurchase(&msg, r)
		return msg, msg.ID != ""
	}
	if r, ok := item["liveChatMembershipItemRenderer"].(map[string]any); ok {
		msg := baseMessage(r, core.KindNewMember)
		msg.IsSponsor = true
		return msg, msg.ID != ""
	}
	return core.ChatMessage{}, false
}

func baseMessage(r map[string]any, kind core.MessageKind) core.ChatMessage {
	return core.ChatMessage{
		ID:              stringField(r, "id"),
		AuthorID:        stringField(r, "authorExternalChannelId"),
		AuthorName:      textField(r, "authorName"),
		AuthorAvatarURL: thumbnailURL(r, "authorPhoto"),
		Kind:            kind,
		PublishedAt:     timestampUsec(r),
		IsOwner:         hasBadge(r, "OWNER"),
		IsModerator:     hasBadge(r, "MODERATOR"),
		IsSponsor:       hasBadge(r, "MEMBER") || hasBadge(r, "SPONSOR"),
	}
}

// applyPurchase fills the monetary fields from the rendered purchase
// text. There is no machine-readable amount on this path; the display
// string is all we get.
func applyPurchase(msg *core.ChatMessage, r map[string]any) {
	display := textField(r, "purchaseAmountText")
	msg.AmountDisplay = display
	msg.AmountMicros = parseAmountMicros(display)
	msg.CurrencyCode = currencyFromDisplay(display)
}

// extractContinuation pulls the next cursor and the backend's timeout
// hint from the response. The cursor may arrive under several container
// keys depending on broadcast state.
func extractContinuation(payload map[string]any) (string, int) {
	lc := digMap(payload, "continuationContents", "liveChatContinuation")
	if lc == nil {
		return "", 0
	}
	arr, ok := lc["continuations"].([]any)
	if !ok || len(arr) == 0 {
		return "", 0
	}
	for _, elem := range arr {
		m, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"invalidationContinuationData", "timedContinuationData", "reloadContinuationData"} {
			data := digMap(m, key)
			if data == nil {
				continue
			}
			cont, _ := data["continuation"].(string)
			if cont == "" {
				continue
			}
			timeout := 0
			switch tm := data["timeoutMs"].(type) {
			case float64:
				timeout = int(tm)
			case string:
				if n, err := strconv.Atoi(tm); err == nil {
					timeout = n
				}
			}
			return cont, timeout
		}
	}
	return "", 0
}

// findInitialContinuation locates the live chat continuation inside the
// watch page's initial data blob. The known location is the
// conversation bar's liveChatRenderer; a breadth-first scan of
// livechat-keyed subtrees covers layout drift.
func findInitialContinuation(data map[string]any) string {
	if renderer := digMap(data, "contents", "twoColumnWatchNextResults", "conversationBar", "liveChatRenderer"); renderer != nil {
		if cont := continuationFromNode(renderer); cont != "" {
			return cont
		}
	}

	type queueItem struct {
		value      any
		inLiveChat bool
	}
	queue := []queueItem{{value: data}}
	for len(queue) > 0 {
		var item queueItem
		item, queue = queue[0], queue[1:]
		switch v := item.value.(type) {
		case map[string]any:
			current := item.inLiveChat || mapHasLiveChatKey(v)
			if current {
				if cont := continuationFromNode(v); cont != "" {
					return cont
				}
			}
			for key, child := range v {
				queue = append(queue, queueItem{value: child, inLiveChat: current || isLiveChatKey(key)})
			}
		case []any:
			for _, child := range v {
				queue = append(queue, queueItem{value: child, inLiveChat: item.inLiveChat})
			}
		}
	}
	return ""
}

func continuationFromNode(node map[string]any) string {
	if arr, ok := node["continuations"].([]any); ok {
		for _, elem := range arr {
			m, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			for _, key := range []string{"reloadContinuationData", "invalidationContinuationData", "timedContinuationData"} {
				if data := digMap(m, key); data != nil {
					if s, ok := data["continuation"].(string); ok && s != "" {
						return s
					}
				}
			}
		}
	}
	if endpoint := digMap(node, "continuationEndpoint", "continuationCommand"); endpoint != nil {
		if s, ok := endpoint["token"].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func isLiveChatKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "livechat")
}

func mapHasLiveChatKey(m map[string]any) bool {
	for key := range m {
		if isLiveChatKey(key) {
			return true
		}
	}
	return false
}

/***************
 * Field helpers
 ***************/

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// textField flattens YouTube's text containers: either a simpleText
// string or a list of runs whose text (or emoji shortcut) segments are
// concatenated.
func textField(m map[string]any, key string) string {
	nested, ok := m[key].(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := nested["simpleText"].(string); ok {
		return s
	}
	runs, ok := nested["runs"].([]any)
	if !ok {
		return ""
	}
	var builder strings.Builder
	for _, run := range runs {
		part, ok := run.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := part["text"].(string); ok {
			builder.WriteString(text)
			continue
		}
		if emoji, ok := part["emoji"].(map[string]any); ok {
			if shortcuts, ok := emoji["shortcuts"].([]any); ok && len(shortcuts) > 0 {
				if s, ok := shortcuts[0].(string); ok {
					builder.WriteString(s)
					continue
				}
			}
			builder.WriteString("[emoji]")
		}
	}
	return builder.String()
}

func thumbnailURL(m map[string]any, key string) string {
	photo, ok := m[key].(map[string]any)
	if !ok {
		return ""
	}
	thumbs, ok := photo["thumbnails"].([]any)
	if !ok || len(thumbs) == 0 {
		return ""
	}
	if first, ok := thumbs[0].(map[string]any); ok {
		if u, ok := first["url"].(string); ok {
			return u
		}
	}
	return ""
}

// hasBadge checks the author badge annotations for a badge type, by
// icon type first, tooltip text second.
func hasBadge(r map[string]any, badgeType string) bool {
	badges, ok := r["authorBadges"].([]any)
	if !ok {
		return false
	}
	for _, badge := range badges {
		m, ok := badge.(map[string]any)
		if !ok {
			continue
		}
		renderer := digMap(m, "liveChatAuthorBadgeRenderer")
		if renderer == nil {
			continue
		}
		if icon := digMap(renderer, "icon"); icon != nil {
			if iconType, ok := icon["iconType"].(string); ok && strings.Contains(iconType, badgeType) {
				return true
			}
		}
		if tooltip, ok := renderer["tooltip"].(string); ok && strings.Contains(strings.ToUpper(tooltip), badgeType) {
			return true
		}
	}
	return false
}

func timestampUsec(r map[string]any) time.Time {
	switch v := r["timestampUsec"].(type) {
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return time.Unix(0, n*1000).UTC()
		}
	case float64:
		if v > 0 {
			return time.Unix(0, int64(v)*1000).UTC()
		}
	}
	return time.Now().UTC()
}

func digMap(m map[string]any, keys ...string) map[string]any {
	current := m
	for _, key := range keys {
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current
}

// extractString returns the text between marker and the next quote.
func extractString(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx == -1 {
		return ""
	}
	start := idx + len(marker)
	end := strings.Index(text[start:], `"`)
	if end == -1 {
		return ""
	}
	return text[start : start+end]
}

// extractJSONObject returns the balanced JSON object following marker.
func extractJSONObject(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx == -1 {
		return ""
	}
	start := idx + len(marker)
	for start < len(text) && (text[start] == ' ' || text[start] == '\n' || text[start] == '\r' || text[start] == '\t') {
		start++
	}
	if start >= len(text) || text[start] != '{' {
		return ""
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			if escape {
				escape = false
			} else if ch == '\\' {
				escape = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
