package core

import "time"

// EventKind names the outbound event types delivered to collaborators.
type EventKind string

const (
	EventChatMessage     EventKind = "chat_message"
	EventLikeDelta       EventKind = "like_delta"
	EventViewMilestone   EventKind = "view_milestone"
	EventConnectionState EventKind = "connection_state"
)

// ConnState is the chat session connection state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// LikeDelta reports newly accepted likes above the session high-water mark.
// NewLikes is always positive; raw count drops never produce a delta.
type LikeDelta struct {
	NewLikes   int64 `json:"new_likes"`
	TotalLikes int64 `json:"total_likes"`
}

// ViewMilestone reports a crossed view-count bracket. Threshold is the
// configured bracket size; ViewCount is the raw count that crossed it.
// One event fires per tracker tick even when several brackets were
// crossed at once.
type ViewMilestone struct {
	ViewCount int64 `json:"view_count"`
	Threshold int64 `json:"threshold"`
}

// ConnectionChange reports a chat session state transition.
type ConnectionChange struct {
	State    ConnState `json:"state"`
	Provider string    `json:"provider,omitempty"`
	VideoID  string    `json:"video_id,omitempty"`
}

// Event is the envelope handed to sinks. Exactly one payload pointer is
// set, matching Kind.
type Event struct {
	Kind       EventKind         `json:"kind"`
	At         time.Time         `json:"at"`
	VideoID    string            `json:"video_id,omitempty"`
	Message    *ChatMessage      `json:"message,omitempty"`
	Likes      *LikeDelta        `json:"likes,omitempty"`
	Milestone  *ViewMilestone    `json:"milestone,omitempty"`
	Connection *ConnectionChange `json:"connection,omitempty"`
}

func MessageEvent(videoID string, at time.Time, msg ChatMessage) Event {
	return Event{Kind: EventChatMessage, At: at, VideoID: videoID, Message: &msg}
}

func LikeEvent(videoID string, at time.Time, newLikes, total int64) Event {
	return Event{Kind: EventLikeDelta, At: at, VideoID: videoID, Likes: &LikeDelta{NewLikes: newLikes, TotalLikes: total}}
}

func MilestoneEvent(videoID string, at time.Time, views, threshold int64) Event {
	return Event{Kind: EventViewMilestone, At: at, VideoID: videoID, Milestone: &ViewMilestone{ViewCount: views, Threshold: threshold}}
}

func ConnectionEvent(videoID string, at time.Time, state ConnState, provider string) Event {
	return Event{Kind: EventConnectionState, At: at, VideoID: videoID, Connection: &ConnectionChange{State: state, Provider: provider, VideoID: videoID}}
}
