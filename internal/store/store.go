package store

import (
	"context"
	"time"

	"github.com/tribeapp/tribe-server/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Tribes() Tribes
	Memberships() Memberships
	Messages() Messages
	Activities() Activities
	Engagements() Engagements
}

type Tribes interface {
	Create(ctx context.Context, t *model.Tribe) (*model.Tribe, error)
	Get(ctx context.Context, tribeID string) (*model.Tribe, error)
	// List returns tribes filtered by status; an empty filter returns all.
	List(ctx context.Context, statuses []model.TribeStatus) ([]*model.Tribe, error)
	// UpdateStatus applies a compare-and-set transition. Returns
	// model.ErrConflict if the current status no longer matches from.
	UpdateStatus(ctx context.Context, tribeID string, from, to model.TribeStatus) error
	// TouchActivity advances the tribe's last-activity timestamp.
	TouchActivity(ctx context.Context, tribeID string, at time.Time) error
	Delete(ctx context.Context, tribeID string) error
}

type Memberships interface {
	// Create inserts a membership row. Returns model.ErrConflict when a row
	// for (tribe, member) already exists or the tribe is at capacity.
	Create(ctx context.Context, m *model.Membership) (*model.Membership, error)
	Get(ctx context.Context, tribeID, memberID string) (*model.Membership, error)
	ListActive(ctx context.Context, tribeID string) ([]*model.Membership, error)
	CountActive(ctx context.Context, tribeID string) (int, error)
	UpdateStatus(ctx context.Context, tribeID, memberID string, status model.MembershipStatus) error
	TouchLastActive(ctx context.Context, tribeID, memberID string, at time.Time) error
}

type Messages interface {
	// Create persists a message, assigning Seq atomically per tribe and
	// advancing the tribe's last-activity timestamp in the same transaction.
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	Get(ctx context.Context, messageID string) (*model.Message, error)
	// List returns messages ordered by Seq descending, except in AfterID
	// cursor mode where results come back ascending and the caller reverses.
	List(ctx context.Context, req model.ListMessagesRequest) ([]*model.Message, error)
	// Search is List with a case-insensitive substring match over content.
	Search(ctx context.Context, query string, req model.ListMessagesRequest) ([]*model.Message, error)
	// DeleteOwned removes the message only when requesterID is the sender.
	// The boolean reports whether a row was removed; missing and not-owned
	// are indistinguishable so existence is not leaked.
	DeleteOwned(ctx context.Context, messageID, requesterID string) (bool, error)
	// MarkRead records read marks for the given messages on behalf of
	// memberID, skipping the member's own messages. Idempotent; returns the
	// number of newly marked messages.
	MarkRead(ctx context.Context, tribeID, memberID string, messageIDs []string) (int, error)
	// MarkAllRead marks every eligible message in the tribe as read.
	MarkAllRead(ctx context.Context, tribeID, memberID string) (int, error)
	// UnreadCount counts other members' messages sent since the member
	// joined that carry no read mark for this member.
	UnreadCount(ctx context.Context, tribeID, memberID string) (int, error)
	// CountSince counts messages in a tribe sent at or after the given time.
	CountSince(ctx context.Context, tribeID string, since time.Time) (int, error)
}

type Activities interface {
	Append(ctx context.Context, a *model.Activity) (*model.Activity, error)
	ListRecent(ctx context.Context, tribeID string, limit int) ([]*model.Activity, error)
	// DeleteByTribe bulk-removes a tribe's activity log. Individual entries
	// are never deleted.
	DeleteByTribe(ctx context.Context, tribeID string) error
}

type Engagements interface {
	Create(ctx context.Context, e *model.EngagementRecord) (*model.EngagementRecord, error)
	ListRecent(ctx context.Context, tribeID string, limit int) ([]*model.EngagementRecord, error)
	// RecordResponse increments the response counter for an engagement.
	RecordResponse(ctx context.Context, engagementID string) error
	// MarkDelivered stamps the delivery time once the engagement's prompt
	// has been posted into the room.
	MarkDelivered(ctx context.Context, engagementID string, at time.Time) error
	// LastMeetupAt returns the delivery time of the most recent meetup
	// engagement, or nil when none has been delivered.
	LastMeetupAt(ctx context.Context, tribeID string) (*time.Time, error)
	// HasScheduledMeetup reports whether a meetup engagement exists that has
	// not yet been delivered.
	HasScheduledMeetup(ctx context.Context, tribeID string) (bool, error)
}
