package notify

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
)

const previewLimit = 80

// Notification is the payload handed to the external push sender.
type Notification struct {
	MemberID string `json:"memberId"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
	TribeID  string `json:"tribeId"`
}

// Sender dispatches one notification to the external push service.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Presence reports which members currently hold a live session in a room.
// Implemented by realtime.PresenceTracker.
type Presence interface {
	PresentMembers(tribeID string) []string
}

// Bridge alerts members without a live session about new messages.
// Delivery is best-effort and at-most-once: failures are logged, never
// propagated, and message durability is independent of dispatch.
type Bridge struct {
	store    store.Store
	presence Presence
	sender   Sender
	log      zerolog.Logger
	timeout  time.Duration
}

func NewBridge(s store.Store, p Presence, sender Sender, log zerolog.Logger) *Bridge {
	return &Bridge{store: s, presence: p, sender: sender, log: log, timeout: 10 * time.Second}
}

// MessagePersisted implements chat.Notifier. It computes the set difference
// between the tribe's ACTIVE members and the members present in the room,
// then dispatches one notification per absent member. The presence snapshot
// may lag actual connection state; a redundant notification is acceptable.
func (b *Bridge) MessagePersisted(_ context.Context, msg *model.Message) {
	go b.dispatch(msg)
}

func (b *Bridge) dispatch(msg *model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	members, err := b.store.Memberships().ListActive(ctx, msg.TribeID)
	if err != nil {
		b.log.Error().Stack().Err(err).Str("tribe", msg.TribeID).Msg("notification fan-out: listing members failed")
		return
	}

	present := make(map[string]struct{})
	for _, id := range b.presence.PresentMembers(msg.TribeID) {
		present[id] = struct{}{}
	}

	n := Notification{
		Title:    "New message in your tribe",
		Body:     preview(msg.Content),
		Priority: "normal",
		TribeID:  msg.TribeID,
	}
	for _, m := range members {
		if msg.MemberID != nil && m.MemberID == *msg.MemberID {
			continue
		}
		if _, ok := present[m.MemberID]; ok {
			continue
		}
		n.MemberID = m.MemberID
		if err := b.sender.Send(ctx, n); err != nil {
			b.log.Warn().Err(err).Str("tribe", msg.TribeID).Str("member", m.MemberID).Msg("notification dispatch failed")
		}
	}
}

// NopSender discards notifications; used when dispatch is disabled.
type NopSender struct{}

func (NopSender) Send(context.Context, Notification) error { return nil }

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLimit-1]) + "…"
}
