// Package store provides the canonical in-memory playlist collection.
package store

import (
	"sync"
	"time"

	"github.com/rmiyoshi/setlist/internal/domain/playlist"
	"github.com/rmiyoshi/setlist/internal/domain/track"
)

// Store holds the playlist entities, their display order, the current
// selection and per-playlist dirty flags.
//
// All structural primitives are total: a missing playlist ID on an
// update or delete is a no-op, not an error, so replay and history
// restoration are always safe.
type Store struct {
	mu sync.RWMutex

	entities map[string]*playlist.Playlist
	order    []string
	selected string // "" means no selection

	// dirty marks playlists with local edits not yet confirmed remotely.
	// generation increments on every dirty-setting mutation, so a sync
	// in flight can tell whether new edits arrived while it was out.
	dirty      map[string]bool
	generation map[string]uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entities:   make(map[string]*playlist.Playlist),
		order:      make([]string, 0),
		dirty:      make(map[string]bool),
		generation: make(map[string]uint64),
	}
}

// InsertPlaylist adds or wholesale-replaces a playlist. The ID is appended
// to the display order if absent. The playlist starts clean.
func (s *Store) InsertPlaylist(p *playlist.Playlist) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := p.Clone()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if _, exists := s.entities[cp.ID]; !exists {
		s.order = append(s.order, cp.ID)
	}
	s.entities[cp.ID] = cp
	delete(s.dirty, cp.ID)
}

// UpdatePlaylistAttributes merges the non-nil fields into the playlist's
// metadata and marks it dirty. No-op if the playlist is unknown.
func (s *Store) UpdatePlaylistAttributes(id string, attrs playlist.Attributes) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entities[id]
	if !ok {
		return
	}
	p.Apply(attrs)
	s.markDirtyLocked(id, p)
}

// DeletePlaylist removes the playlist from the entities, order and dirty
// maps. The selection is cleared if it pointed at the playlist.
func (s *Store) DeletePlaylist(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entities, id)
	delete(s.dirty, id)
	delete(s.generation, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.selected == id {
		s.selected = ""
	}
}

// InsertTrack inserts a track at the given index, or appends when at is
// negative or past the end. No-op if the playlist is unknown.
func (s *Store) InsertTrack(playlistID string, t track.Track, at int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entities[playlistID]
	if !ok {
		return
	}
	cp := t.Clone()
	if at < 0 || at >= len(p.Tracks) {
		p.Tracks = append(p.Tracks, cp)
	} else {
		p.Tracks = append(p.Tracks, track.Track{})
		copy(p.Tracks[at+1:], p.Tracks[at:])
		p.Tracks[at] = cp
	}
	s.markDirtyLocked(playlistID, p)
}

// RemoveTrack removes the first track with the given ID. Duplicates are
// allowed in a playlist, so only the first occurrence is affected.
// No-op if the playlist or the track is unknown.
func (s *Store) RemoveTrack(playlistID, trackID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entities[playlistID]
	if !ok {
		return
	}
	idx := p.IndexOfTrack(trackID)
	if idx < 0 {
		return
	}
	p.Tracks = append(p.Tracks[:idx], p.Tracks[idx+1:]...)
	s.markDirtyLocked(playlistID, p)
}

// MoveTrack removes the element at from and reinserts it at to, clamped to
// the valid range. No-op if the playlist is unknown or from is out of range.
func (s *Store) MoveTrack(playlistID string, from, to int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entities[playlistID]
	if !ok {
		return
	}
	if from < 0 || from >= len(p.Tracks) {
		return
	}
	t := p.Tracks[from]
	p.Tracks = append(p.Tracks[:from], p.Tracks[from+1:]...)
	if to < 0 {
		to = 0
	}
	if to > len(p.Tracks) {
		to = len(p.Tracks)
	}
	p.Tracks = append(p.Tracks, track.Track{})
	copy(p.Tracks[to+1:], p.Tracks[to:])
	p.Tracks[to] = t
	s.markDirtyLocked(playlistID, p)
}

// GetPlaylist returns a deep copy of the playlist, if present.
func (s *Store) GetPlaylist(id string) (*playlist.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// ListOrder returns a copy of the display order.
func (s *Store) ListOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Select sets the current selection. Selecting an unknown ID clears it.
func (s *Store) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[id]; !ok {
		s.selected = ""
		return
	}
	s.selected = id
}

// Selected returns the currently selected playlist ID, or "" if none.
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// IsDirty reports whether the playlist has unsynced local edits.
// Absence from the dirty map means clean.
func (s *Store) IsDirty(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty[id]
}

// DirtyIDs returns the IDs of all dirty playlists in display order.
func (s *Store) DirtyIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.dirty))
	for _, id := range s.order {
		if s.dirty[id] {
			out = append(out, id)
		}
	}
	return out
}

// Generation returns the mutation generation counter for the playlist.
func (s *Store) Generation(id string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation[id]
}

// ClearDirty unconditionally clears the dirty flag for the playlist.
func (s *Store) ClearDirty(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, id)
}

// ClearDirtyIfGeneration clears the dirty flag only if no mutation has
// touched the playlist since the given generation was observed. Returns
// true if the flag was cleared.
func (s *Store) ClearDirtyIfGeneration(id string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation[id] != gen {
		return false
	}
	delete(s.dirty, id)
	return true
}

// MarkDirty flags the playlist as locally edited without structurally
// changing it. Used when restoring a persisted session. No-op if the
// playlist is unknown.
func (s *Store) MarkDirty(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[id]; !ok {
		return
	}
	s.dirty[id] = true
	s.generation[id]++
}

// ClearAllDirty clears every dirty flag. Used after history restoration,
// where dirty tracking is recomputed against the restored baseline.
func (s *Store) ClearAllDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = make(map[string]bool)
}

// markDirtyLocked flags a playlist as locally edited.
// Must be called with s.mu held.
func (s *Store) markDirtyLocked(id string, p *playlist.Playlist) {
	p.ModifiedAt = time.Now()
	s.dirty[id] = true
	s.generation[id]++
}
