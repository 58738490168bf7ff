package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/rmiyoshi/setlist/internal/domain/playlist"
)

// Snapshot is an immutable capture of the full entity and order state at
// one point in time. Every snapshot is a structural copy: later live
// mutations can never retroactively alter it.
type Snapshot struct {
	ID          string
	Entities    map[string]*playlist.Playlist
	Order       []string
	Timestamp   time.Time
	Description string
}

// Capture returns a snapshot of the current state.
func (s *Store) Capture(description string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities := make(map[string]*playlist.Playlist, len(s.entities))
	for id, p := range s.entities {
		entities[id] = p.Clone()
	}
	order := make([]string, len(s.order))
	copy(order, s.order)

	return Snapshot{
		ID:          uuid.New().String(),
		Entities:    entities,
		Order:       order,
		Timestamp:   time.Now(),
		Description: description,
	}
}

// Restore resets the store to the snapshot's content and clears all dirty
// flags. The selection is kept if the selected playlist still exists, and
// cleared otherwise. The snapshot itself stays untouched: the store takes
// deep copies going in as well as coming out.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities := make(map[string]*playlist.Playlist, len(snap.Entities))
	for id, p := range snap.Entities {
		entities[id] = p.Clone()
	}
	order := make([]string, len(snap.Order))
	copy(order, snap.Order)

	s.entities = entities
	s.order = order
	s.dirty = make(map[string]bool)
	if _, ok := s.entities[s.selected]; !ok {
		s.selected = ""
	}
}

// Equal reports whether two snapshots capture the same entities and order.
// Snapshot identity (ID, timestamp, description) is ignored.
func (snap Snapshot) Equal(other Snapshot) bool {
	if len(snap.Order) != len(other.Order) || len(snap.Entities) != len(other.Entities) {
		return false
	}
	for i, id := range snap.Order {
		if other.Order[i] != id {
			return false
		}
	}
	for id, p := range snap.Entities {
		q, ok := other.Entities[id]
		if !ok {
			return false
		}
		if !playlistEqual(p, q) {
			return false
		}
	}
	return true
}

func playlistEqual(a, b *playlist.Playlist) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Description != b.Description ||
		a.CanEdit != b.CanEdit || a.IsPublic != b.IsPublic ||
		len(a.Tracks) != len(b.Tracks) {
		return false
	}
	for i := range a.Tracks {
		if a.Tracks[i].ID != b.Tracks[i].ID {
			return false
		}
	}
	return true
}
