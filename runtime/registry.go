// Package runtime drives room state from inbound events and computes the
// outbound notification sets. It orchestrates the domain without containing
// wire-format or connection logic.
package runtime

import (
	"sync"

	"muc-lab/domain"
	"muc-lab/errors"
)

// Registry maps a bare room address to its RoomState. Creation happens on
// the first join and is atomic: two racing first-joins observe the same
// RoomState. Rooms are never removed, matching the reference behavior; an
// empty room stays registered for the process lifetime (the inspector
// exposes the count so the growth is visible).
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.Address]*domain.RoomState
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.Address]*domain.RoomState)}
}

// GetOrCreate returns the room's state, creating it exactly once per address.
func (r *Registry) GetOrCreate(room domain.Address) *domain.RoomState {
	bare := room.Bare()

	r.mu.RLock()
	state, ok := r.rooms[bare]
	r.mu.RUnlock()
	if ok {
		return state
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.rooms[bare]; ok {
		return state
	}
	state = domain.NewRoomState(bare)
	r.rooms[bare] = state
	return state
}

// Get returns the room's state without creating it. The message path must
// not bring rooms into existence.
func (r *Registry) Get(room domain.Address) (*domain.RoomState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.rooms[room.Bare()]
	if !ok {
		return nil, errors.ErrRoomNotFound
	}
	return state, nil
}

// Rooms snapshots every registered room for the inspector.
func (r *Registry) Rooms() []*domain.RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	states := make([]*domain.RoomState, 0, len(r.rooms))
	for _, state := range r.rooms {
		states = append(states, state)
	}
	return states
}
