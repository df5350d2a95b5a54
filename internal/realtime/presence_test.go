package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceTracker_RegisterUnregister(t *testing.T) {
	p := NewPresenceTracker()
	c1 := &Client{tribeID: "t1", memberID: "alice"}
	c2 := &Client{tribeID: "t1", memberID: "bob"}

	p.Register(c1)
	p.Register(c2)
	assert.Len(t, p.Clients("t1"), 2)
	assert.True(t, p.IsPresent("t1", "alice"))
	assert.False(t, p.IsPresent("t1", "carol"))
	assert.False(t, p.IsPresent("t2", "alice"))

	assert.True(t, p.Unregister(c1))
	assert.False(t, p.IsPresent("t1", "alice"))

	// A second unregister of the same connection is a no-op.
	assert.False(t, p.Unregister(c1))

	assert.True(t, p.Unregister(c2))
	assert.Empty(t, p.Clients("t1"))
}

func TestPresenceTracker_MultipleSessionsPerMember(t *testing.T) {
	p := NewPresenceTracker()
	phone := &Client{tribeID: "t1", memberID: "alice"}
	laptop := &Client{tribeID: "t1", memberID: "alice"}

	p.Register(phone)
	p.Register(laptop)

	// Two sessions, one distinct member.
	assert.Len(t, p.Clients("t1"), 2)
	assert.Equal(t, []string{"alice"}, p.PresentMembers("t1"))

	// The member stays present until the last session closes.
	p.Unregister(phone)
	assert.True(t, p.IsPresent("t1", "alice"))
	p.Unregister(laptop)
	assert.False(t, p.IsPresent("t1", "alice"))
}

func TestPresenceTracker_RoomsAreIndependent(t *testing.T) {
	p := NewPresenceTracker()
	p.Register(&Client{tribeID: "t1", memberID: "alice"})
	p.Register(&Client{tribeID: "t2", memberID: "alice"})

	assert.Len(t, p.Clients("t1"), 1)
	assert.Len(t, p.Clients("t2"), 1)
	assert.Empty(t, p.Clients("t3"))
	assert.Empty(t, p.PresentMembers("t3"))
}
