package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/events"
	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
)

// Broadcaster fans a persisted event out to the room's live connections.
// Implemented by the realtime coordinator.
type Broadcaster interface {
	BroadcastNewMessage(msg *model.Message)
	BroadcastMessageDeleted(tribeID, messageID string)
	BroadcastReadReceipt(tribeID, memberID string, messageIDs []string)
}

// Notifier alerts members without a live session about a persisted message.
// Implemented by the notification bridge.
type Notifier interface {
	MessagePersisted(ctx context.Context, msg *model.Message)
}

// Service is the message pipeline: it validates, persists, and fans out
// messages, and maintains per-member read state.
type Service struct {
	store       store.Store
	bus         *events.Bus
	broadcaster Broadcaster
	notifier    Notifier
	log         zerolog.Logger
	maxContent  int
}

func NewService(s store.Store, bus *events.Bus, b Broadcaster, n Notifier, log zerolog.Logger, maxContentBytes int) *Service {
	if maxContentBytes <= 0 {
		maxContentBytes = 4096
	}
	return &Service{store: s, bus: bus, broadcaster: b, notifier: n, log: log, maxContent: maxContentBytes}
}

// requireActiveMembership returns ErrForbidden unless (tribeID, memberID)
// has an ACTIVE membership. A missing tribe or membership is reported as
// ErrForbidden as well, so non-members cannot probe tribe existence.
func (s *Service) requireActiveMembership(ctx context.Context, tribeID, memberID string) (*model.Membership, error) {
	m, err := s.store.Memberships().Get(ctx, tribeID, memberID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrForbidden
		}
		return nil, err
	}
	if m.Status != model.MembershipActive {
		return nil, model.ErrForbidden
	}
	return m, nil
}

// Send persists and fans out a new message from memberID to the tribe.
func (s *Service) Send(ctx context.Context, tribeID, memberID, content string, typ model.MessageType, metadata map[string]interface{}) (*model.Message, error) {
	if tribeID == "" || memberID == "" {
		return nil, fmt.Errorf("tribeId and memberId are required: %w", model.ErrValidation)
	}
	if content == "" {
		return nil, fmt.Errorf("content is required: %w", model.ErrValidation)
	}
	if len(content) > s.maxContent {
		return nil, fmt.Errorf("content exceeds %d bytes: %w", s.maxContent, model.ErrValidation)
	}
	if typ == "" {
		typ = model.MessageText
	}
	if !model.ValidMessageType(typ) {
		return nil, fmt.Errorf("unknown message type %q: %w", typ, model.ErrValidation)
	}
	if _, err := s.requireActiveMembership(ctx, tribeID, memberID); err != nil {
		return nil, err
	}

	msg, err := s.store.Messages().Create(ctx, &model.Message{
		TribeID:  tribeID,
		MemberID: &memberID,
		Content:  content,
		Type:     typ,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	// Everything past persistence is best-effort: the message is durable and
	// returned to the caller regardless.
	if err := s.store.Memberships().TouchLastActive(ctx, tribeID, memberID, msg.SentAt); err != nil {
		s.log.Warn().Err(err).Str("tribe", tribeID).Str("member", memberID).Msg("touch membership last-active failed")
	}
	if _, err := s.store.Activities().Append(ctx, &model.Activity{
		TribeID:     tribeID,
		MemberID:    &memberID,
		Type:        model.ActivityMessageSent,
		Description: "member sent a message",
	}); err != nil {
		s.log.Warn().Err(err).Str("tribe", tribeID).Msg("activity append failed")
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastNewMessage(msg)
	}
	if s.notifier != nil {
		s.notifier.MessagePersisted(ctx, msg)
	}
	if s.bus != nil {
		if !s.bus.Publish(events.Event{Kind: events.KindMessageSent, TribeID: tribeID, MemberID: memberID}) {
			s.log.Debug().Str("tribe", tribeID).Msg("event bus full, message event dropped")
		}
	}
	return msg, nil
}

// SendSystem persists a system-originated message (AI prompts, events).
func (s *Service) SendSystem(ctx context.Context, tribeID, content string, typ model.MessageType, metadata map[string]interface{}) (*model.Message, error) {
	if tribeID == "" || content == "" {
		return nil, fmt.Errorf("tribeId and content are required: %w", model.ErrValidation)
	}
	if typ == "" {
		typ = model.MessageSystem
	}
	msg, err := s.store.Messages().Create(ctx, &model.Message{
		TribeID:  tribeID,
		Content:  content,
		Type:     typ,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastNewMessage(msg)
	}
	if s.notifier != nil {
		s.notifier.MessagePersisted(ctx, msg)
	}
	return msg, nil
}

// Get fetches a message by identity.
func (s *Service) Get(ctx context.Context, messageID string) (*model.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageId is required: %w", model.ErrValidation)
	}
	return s.store.Messages().Get(ctx, messageID)
}

// List returns messages, newest first regardless of pagination mode. In
// AfterID cursor mode the store fetches ascending and the result is
// re-reversed here so consumers always see descending order.
func (s *Service) List(ctx context.Context, req model.ListMessagesRequest) ([]*model.Message, error) {
	if req.TribeID == "" {
		return nil, fmt.Errorf("tribeId is required: %w", model.ErrValidation)
	}
	if req.BeforeID != "" && req.AfterID != "" {
		return nil, fmt.Errorf("beforeId and afterId are mutually exclusive: %w", model.ErrValidation)
	}
	msgs, err := s.store.Messages().List(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.AfterID != "" {
		reverse(msgs)
	}
	return msgs, nil
}

// Search matches content case-insensitively, with List's pagination rules.
func (s *Service) Search(ctx context.Context, tribeID, query string, req model.ListMessagesRequest) ([]*model.Message, error) {
	if tribeID == "" {
		return nil, fmt.Errorf("tribeId is required: %w", model.ErrValidation)
	}
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", model.ErrValidation)
	}
	req.TribeID = tribeID
	msgs, err := s.store.Messages().Search(ctx, query, req)
	if err != nil {
		return nil, err
	}
	if req.AfterID != "" {
		reverse(msgs)
	}
	return msgs, nil
}

func reverse(msgs []*model.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// MarkRead marks the given messages as read for memberID. Own messages are
// skipped and re-marking is a no-op; both silently.
func (s *Service) MarkRead(ctx context.Context, tribeID, memberID string, messageIDs []string) error {
	if tribeID == "" || memberID == "" {
		return fmt.Errorf("tribeId and memberId are required: %w", model.ErrValidation)
	}
	n, err := s.store.Messages().MarkRead(ctx, tribeID, memberID, messageIDs)
	if err != nil {
		return err
	}
	if n > 0 && s.broadcaster != nil {
		s.broadcaster.BroadcastReadReceipt(tribeID, memberID, messageIDs)
	}
	return nil
}

// MarkAllRead marks every eligible message in the tribe as read for memberID.
func (s *Service) MarkAllRead(ctx context.Context, tribeID, memberID string) error {
	if tribeID == "" || memberID == "" {
		return fmt.Errorf("tribeId and memberId are required: %w", model.ErrValidation)
	}
	n, err := s.store.Messages().MarkAllRead(ctx, tribeID, memberID)
	if err != nil {
		return err
	}
	if n > 0 && s.broadcaster != nil {
		s.broadcaster.BroadcastReadReceipt(tribeID, memberID, nil)
	}
	return nil
}

// UnreadCount counts other members' messages not yet read by memberID.
func (s *Service) UnreadCount(ctx context.Context, tribeID, memberID string) (int, error) {
	if tribeID == "" || memberID == "" {
		return 0, fmt.Errorf("tribeId and memberId are required: %w", model.ErrValidation)
	}
	return s.store.Messages().UnreadCount(ctx, tribeID, memberID)
}

// Delete removes a message when requesterID is its sender. The boolean is
// false both for a missing message and for one owned by someone else, so a
// failed delete does not reveal whether the message exists.
func (s *Service) Delete(ctx context.Context, messageID, requesterID string) (bool, error) {
	if messageID == "" || requesterID == "" {
		return false, fmt.Errorf("messageId and requesterId are required: %w", model.ErrValidation)
	}
	// Resolve the tribe before deleting so the removal can be fanned out.
	msg, err := s.store.Messages().Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	ok, err := s.store.Messages().DeleteOwned(ctx, messageID, requesterID)
	if err != nil || !ok {
		return ok, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessageDeleted(msg.TribeID, messageID)
	}
	return true, nil
}

// TouchMemberActivity advances a membership's last-active marker.
// Used by the room coordinator on join; failures are the caller's to log.
func (s *Service) TouchMemberActivity(ctx context.Context, tribeID, memberID string, at time.Time) error {
	return s.store.Memberships().TouchLastActive(ctx, tribeID, memberID, at)
}
