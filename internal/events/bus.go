package events

// Kind represents the type of domain event produced by the chat and
// membership paths. Consumers re-evaluate tribe lifecycle and engagement.
type Kind string

const (
	KindMessageSent      Kind = "message_sent"
	KindMembershipChange Kind = "membership_change"
	KindEngagement       Kind = "engagement"
)

// Event carries the minimum data consumers need; they query full records
// from the store.
type Event struct {
	Kind     Kind
	TribeID  string
	MemberID string // empty for system events
}

// Bus is a lightweight in-process pub-sub backed by a buffered channel.
// It is constructed once and passed by reference; there is no package-level
// singleton.
type Bus struct {
	ch chan Event
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan Event, buffer)}
}

// Publish attempts to enqueue the event without blocking.
// Returns true if published, false if the buffer is full.
func (b *Bus) Publish(evt Event) bool {
	select {
	case b.ch <- evt:
		return true
	default:
		return false
	}
}

// Subscribe returns a read-only channel for consumers.
func (b *Bus) Subscribe() <-chan Event {
	return b.ch
}
