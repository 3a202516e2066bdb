package dataapi

import (
	"time"

	youtube "google.golang.org/api/youtube/v3"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
)

// mapMessage converts one API resource into the wire-neutral model.
// Unknown snippet types (polls, deletions, bans) are skipped.
func mapMessage(item *youtube.LiveChatMessage) (core.ChatMessage, bool) {
	if item == nil || item.Snippet == nil {
		return core.ChatMessage{}, false
	}
	sn := item.Snippet

	msg := core.ChatMessage{
		ID:   item.Id,
		Body: sn.DisplayMessage,
	}
	if ts, err := time.Parse(time.RFC3339, sn.PublishedAt); err == nil {
		msg.PublishedAt = ts
	}
	if au := item.AuthorDetails; au != nil {
		msg.AuthorID = au.ChannelId
		msg.AuthorName = au.DisplayName
		msg.AuthorAvatarURL = au.ProfileImageUrl
		msg.IsOwner = au.IsChatOwner
		msg.IsModerator = au.IsChatModerator
		msg.IsSponsor = au.IsChatSponsor
	}

	switch sn.Type {
	case "textMessageEvent":
		msg.Kind = core.KindText
		if sn.TextMessageDetails != nil {
			msg.Body = sn.TextMessageDetails.MessageText
		}
	case "superChatEvent":
		msg.Kind = core.KindSuperChat
		if d := sn.SuperChatDetails; d != nil {
			msg.Body = d.UserComment
			msg.AmountDisplay = d.AmountDisplayString
			msg.AmountMicros = int64(d.AmountMicros)
			msg.CurrencyCode = d.Currency
		}
	case "superStickerEvent":
		msg.Kind = core.KindSuperSticker
		if d := sn.SuperStickerDetails; d != nil {
			msg.AmountDisplay = d.AmountDisplayString
			msg.AmountMicros = int64(d.AmountMicros)
			msg.CurrencyCode = d.Currency
			if d.SuperStickerMetadata != nil && msg.Body == "" {
				msg.Body = d.SuperStickerMetadata.AltText
			}
		}
	case "newSponsorEvent", "memberMilestoneChatEvent":
		msg.Kind = core.KindNewMember
		msg.IsSponsor = true
		if d := sn.MemberMilestoneChatDetails; d != nil && d.UserComment != "" {
			msg.Body = d.UserComment
		}
	default:
		return core.ChatMessage{}, false
	}

	return msg, true
}
