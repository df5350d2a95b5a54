package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
)

// Coordinator gates admission of connections into a tribe's room and relays
// ephemeral signaling. It owns no global state: the presence registry is
// passed in at construction and lives for the process.
type Coordinator struct {
	presence *PresenceTracker
	store    store.Store
	log      zerolog.Logger
}

func NewCoordinator(p *PresenceTracker, s store.Store, log zerolog.Logger) *Coordinator {
	return &Coordinator{presence: p, store: s, log: log}
}

// Presence exposes the tracker for collaborators (notification bridge).
func (co *Coordinator) Presence() *PresenceTracker { return co.presence }

// Join admits the connection into its room. Only an ACTIVE membership is
// admitted; anything else, including an unknown tribe, is ErrForbidden so
// tribe existence never leaks to non-members.
func (co *Coordinator) Join(ctx context.Context, c *Client) error {
	m, err := co.store.Memberships().Get(ctx, c.tribeID, c.memberID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrForbidden
		}
		return err
	}
	if m.Status != model.MembershipActive {
		return model.ErrForbidden
	}

	co.presence.Register(c)
	co.relayToOthers(c, memberJoinedFrame(c.memberID))

	// Best-effort, off the join path.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := co.store.Memberships().TouchLastActive(ctx, c.tribeID, c.memberID, time.Now().UTC()); err != nil {
			co.log.Warn().Err(err).Str("tribe", c.tribeID).Str("member", c.memberID).Msg("touch last-active on join failed")
		}
	}()
	return nil
}

// Leave deregisters the connection and tells the room. Abrupt disconnects
// take the same path via the client's read pump teardown.
func (co *Coordinator) Leave(c *Client) {
	if !co.presence.Unregister(c) {
		return
	}
	// Only announce departure when the member's last session is gone.
	if !co.presence.IsPresent(c.tribeID, c.memberID) {
		co.broadcast(c.tribeID, memberLeftFrame(c.memberID))
	}
}

// Typing relays a transient signal to the other present connections.
// Nothing is persisted and no ordering is guaranteed beyond send order.
func (co *Coordinator) Typing(c *Client, isTyping bool) {
	co.relayToOthers(c, typingFrame(c.memberID, isTyping))
}

// BroadcastNewMessage implements chat.Broadcaster.
func (co *Coordinator) BroadcastNewMessage(msg *model.Message) {
	co.broadcast(msg.TribeID, newMessageFrame(msg))
}

// BroadcastMessageDeleted implements chat.Broadcaster.
func (co *Coordinator) BroadcastMessageDeleted(tribeID, messageID string) {
	co.broadcast(tribeID, messageDeletedFrame(messageID))
}

// BroadcastReadReceipt implements chat.Broadcaster.
func (co *Coordinator) BroadcastReadReceipt(tribeID, memberID string, messageIDs []string) {
	co.broadcast(tribeID, readReceiptFrame(memberID, messageIDs))
}

func (co *Coordinator) broadcast(tribeID string, frame []byte) {
	for _, c := range co.presence.Clients(tribeID) {
		co.deliver(c, frame)
	}
}

func (co *Coordinator) relayToOthers(sender *Client, frame []byte) {
	for _, c := range co.presence.Clients(sender.tribeID) {
		if c == sender {
			continue
		}
		co.deliver(c, frame)
	}
}

// deliver enqueues without blocking; a client that cannot keep up is
// evicted rather than allowed to stall the room. Clients that departed
// between the presence snapshot and delivery are skipped.
func (co *Coordinator) deliver(c *Client, frame []byte) {
	if c.trySend(frame) {
		return
	}
	co.log.Warn().Str("tribe", c.tribeID).Str("member", c.memberID).Msg("send buffer full, evicting client")
	co.presence.Unregister(c)
	c.closeSend()
}
