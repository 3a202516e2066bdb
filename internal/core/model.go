package core

import "time"

// MessageKind classifies a live chat event.
type MessageKind string

const (
	KindText         MessageKind = "text"
	KindSuperChat    MessageKind = "superchat"
	KindSuperSticker MessageKind = "supersticker"
	KindNewMember    MessageKind = "newmember"
)

// Paid reports whether the kind carries monetary fields.
func (k MessageKind) Paid() bool {
	return k == KindSuperChat || k == KindSuperSticker
}

// ChatMessage is the provider-agnostic representation of one chat event.
// Both providers normalize their backend's shape into this struct; it is
// never mutated after construction.
type ChatMessage struct {
	ID              string      `json:"id"`
	AuthorID        string      `json:"author_id"`
	AuthorName      string      `json:"author_name"`
	AuthorAvatarURL string      `json:"author_avatar_url,omitempty"`
	Kind            MessageKind `json:"kind"`
	Body            string      `json:"body,omitempty"`
	PublishedAt     time.Time   `json:"published_at"`

	// Populated only when Kind.Paid().
	AmountDisplay string `json:"amount_display,omitempty"`
	AmountMicros  int64  `json:"amount_micros,omitempty"`
	CurrencyCode  string `json:"currency_code,omitempty"`

	IsOwner     bool `json:"is_owner"`
	IsModerator bool `json:"is_moderator"`
	IsSponsor   bool `json:"is_sponsor"`
}
