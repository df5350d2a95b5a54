package realtime

import "sync"

// PresenceTracker maps each room to its set of live connections. A member
// may hold several sessions at once (multiple devices). Entries are removed
// deterministically when a connection closes, whether or not the client sent
// an explicit leave.
type PresenceTracker struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{rooms: make(map[string]map[*Client]struct{})}
}

// Register adds a connection to its room.
func (p *PresenceTracker) Register(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.rooms[c.tribeID]
	if !ok {
		room = make(map[*Client]struct{})
		p.rooms[c.tribeID] = room
	}
	room[c] = struct{}{}
}

// Unregister removes a connection; empty rooms are dropped. Returns whether
// the connection was present.
func (p *PresenceTracker) Unregister(c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.rooms[c.tribeID]
	if !ok {
		return false
	}
	if _, ok := room[c]; !ok {
		return false
	}
	delete(room, c)
	if len(room) == 0 {
		delete(p.rooms, c.tribeID)
	}
	return true
}

// Clients returns a snapshot of the connections in a room.
func (p *PresenceTracker) Clients(tribeID string) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	room := p.rooms[tribeID]
	out := make([]*Client, 0, len(room))
	for c := range room {
		out = append(out, c)
	}
	return out
}

// PresentMembers returns the distinct member IDs with at least one live
// session in the room.
func (p *PresenceTracker) PresentMembers(tribeID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for c := range p.rooms[tribeID] {
		if _, ok := seen[c.memberID]; ok {
			continue
		}
		seen[c.memberID] = struct{}{}
		out = append(out, c.memberID)
	}
	return out
}

// IsPresent reports whether the member has any live session in the room.
func (p *PresenceTracker) IsPresent(tribeID, memberID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for c := range p.rooms[tribeID] {
		if c.memberID == memberID {
			return true
		}
	}
	return false
}
