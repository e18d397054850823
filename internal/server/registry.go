package server

import (
	"sort"
	"sync"
)

// Registry is the process-wide session and room state. One mutex guards
// everything; hold times are bounded to map manipulation, never I/O.
// Client ids and per-room chat sequences are issued here and are
// monotonic for the process lifetime.
type Registry struct {
	mu        sync.Mutex
	sessions  map[int]*Session
	rooms     map[string]map[int]struct{}
	sequences map[string]int
	nextID    int
	messages  int64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[int]*Session),
		rooms:     make(map[string]map[int]struct{}),
		sequences: make(map[string]int),
	}
}

// IssueID returns the next client id. Ids are never reused.
func (r *Registry) IssueID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

// Insert registers a session in both maps.
func (r *Registry) Insert(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ClientID] = s
	members, ok := r.rooms[s.Room]
	if !ok {
		members = make(map[int]struct{})
		r.rooms[s.Room] = members
	}
	members[s.ClientID] = struct{}{}
	metricConnectedClients.Set(float64(len(r.sessions)))
	metricActiveRooms.Set(float64(len(r.rooms)))
}

// Remove pops a session from both maps, deleting its room entry when it
// becomes empty. Returns nil if the id is unknown.
func (r *Registry) Remove(clientID int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[clientID]
	if !ok {
		return nil
	}
	delete(r.sessions, clientID)
	if members, ok := r.rooms[s.Room]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(r.rooms, s.Room)
		}
	}
	metricConnectedClients.Set(float64(len(r.sessions)))
	metricActiveRooms.Set(float64(len(r.rooms)))
	return s
}

// Lookup returns the session for clientID, or nil.
func (r *Registry) Lookup(clientID int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[clientID]
}

// MembersOf snapshots the sessions in a room. Callers iterate the copy
// without the lock, so broadcasts never hold it across I/O. The snapshot
// is ordered by client id so fan-out order is deterministic per call.
func (r *Registry) MembersOf(room string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids, ok := r.rooms[room]
	if !ok {
		return nil
	}
	out := make([]*Session, 0, len(ids))
	for id := range ids {
		if s, ok := r.sessions[id]; ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Move transfers a session to newRoom and returns the old room. Same
// room is a no-op.
func (r *Registry) Move(s *Session, newRoom string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	oldRoom := s.Room
	if oldRoom == newRoom {
		return oldRoom
	}
	if members, ok := r.rooms[oldRoom]; ok {
		delete(members, s.ClientID)
		if len(members) == 0 {
			delete(r.rooms, oldRoom)
		}
	}
	members, ok := r.rooms[newRoom]
	if !ok {
		members = make(map[int]struct{})
		r.rooms[newRoom] = members
	}
	members[s.ClientID] = struct{}{}
	s.Room = newRoom
	metricActiveRooms.Set(float64(len(r.rooms)))
	return oldRoom
}

// NextSequence assigns the next chat sequence for a room. Sequences are
// contiguous per room within one server run.
func (r *Registry) NextSequence(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequences[room]++
	return r.sequences[room]
}

// IncrementMessages bumps the process-wide delivered-chat counter.
func (r *Registry) IncrementMessages() {
	r.mu.Lock()
	r.messages++
	r.mu.Unlock()
	metricMessagesDelivered.Inc()
}

// Messages returns the delivered-chat count.
func (r *Registry) Messages() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages
}

// SessionCount returns the number of registered sessions.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RoomCount returns the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// RoomNames returns the active room ids.
func (r *Registry) RoomNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rooms))
	for room := range r.rooms {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}
