package session

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rmiyoshi/setlist/internal/app/history"
	"github.com/rmiyoshi/setlist/internal/app/store"
	"github.com/rmiyoshi/setlist/internal/domain/playlist"
	"github.com/rmiyoshi/setlist/internal/domain/track"
)

// persistedState is the JSON layout of the state blob: the entities, the
// display order, the history with its cursor, the selection and the dirty
// flags, all under one key.
type persistedState struct {
	Entities     map[string]persistedPlaylist `json:"entities"`
	Order        []string                     `json:"order"`
	Selected     string                       `json:"selected,omitempty"`
	Dirty        map[string]bool              `json:"dirty,omitempty"`
	History      []persistedSnapshot          `json:"history"`
	HistoryIndex int                          `json:"historyIndex"`
}

type persistedPlaylist struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	CanEdit     bool             `json:"canEdit"`
	IsPublic    bool             `json:"isPublic"`
	CreatedAt   time.Time        `json:"createdAt"`
	ModifiedAt  time.Time        `json:"modifiedAt"`
	Tracks      []persistedTrack `json:"tracks"`
}

type persistedTrack struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists,omitempty"`
	Album      string   `json:"album,omitempty"`
	DurationMs int64    `json:"durationMs"`
	Artwork    *struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"artwork,omitempty"`
}

type persistedSnapshot struct {
	ID          string                       `json:"id"`
	Timestamp   time.Time                    `json:"timestamp"`
	Description string                       `json:"description"`
	Entities    map[string]persistedPlaylist `json:"entities"`
	Order       []string                     `json:"order"`
}

// encodeState serializes the live store and history into one blob.
func encodeState(s *store.Store, h *history.Manager) ([]byte, error) {
	live := s.Capture("persist")

	ps := persistedState{
		Entities:     toPersistedEntities(live.Entities),
		Order:        live.Order,
		Selected:     s.Selected(),
		Dirty:        make(map[string]bool),
		HistoryIndex: h.Cursor(),
	}
	for _, id := range s.DirtyIDs() {
		ps.Dirty[id] = true
	}
	for _, snap := range h.Snapshots() {
		ps.History = append(ps.History, persistedSnapshot{
			ID:          snap.ID,
			Timestamp:   snap.Timestamp,
			Description: snap.Description,
			Entities:    toPersistedEntities(snap.Entities),
			Order:       snap.Order,
		})
	}

	return json.Marshal(ps)
}

// decodeState parses a state blob.
func decodeState(data []byte) (*persistedState, error) {
	var ps persistedState
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, errors.Wrap(err, "failed to decode state blob")
	}
	return &ps, nil
}

// applyTo loads the persisted entities, order, selection and dirty flags
// into an empty store.
func (ps *persistedState) applyTo(s *store.Store) {
	for _, id := range ps.Order {
		pp, ok := ps.Entities[id]
		if !ok {
			continue
		}
		s.InsertPlaylist(fromPersistedPlaylist(pp))
	}
	if ps.Selected != "" {
		s.Select(ps.Selected)
	}
	for id, dirty := range ps.Dirty {
		if dirty {
			s.MarkDirty(id)
		}
	}
}

// historySnapshots rebuilds the snapshot sequence for the history manager.
func (ps *persistedState) historySnapshots() []store.Snapshot {
	snaps := make([]store.Snapshot, 0, len(ps.History))
	for _, snap := range ps.History {
		entities := make(map[string]*playlist.Playlist, len(snap.Entities))
		for id, pp := range snap.Entities {
			entities[id] = fromPersistedPlaylist(pp)
		}
		snaps = append(snaps, store.Snapshot{
			ID:          snap.ID,
			Timestamp:   snap.Timestamp,
			Description: snap.Description,
			Entities:    entities,
			Order:       snap.Order,
		})
	}
	return snaps
}

func toPersistedEntities(entities map[string]*playlist.Playlist) map[string]persistedPlaylist {
	out := make(map[string]persistedPlaylist, len(entities))
	for id, p := range entities {
		out[id] = toPersistedPlaylist(p)
	}
	return out
}

func toPersistedPlaylist(p *playlist.Playlist) persistedPlaylist {
	pp := persistedPlaylist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CanEdit:     p.CanEdit,
		IsPublic:    p.IsPublic,
		CreatedAt:   p.CreatedAt,
		ModifiedAt:  p.ModifiedAt,
		Tracks:      make([]persistedTrack, len(p.Tracks)),
	}
	for i, t := range p.Tracks {
		pt := persistedTrack{
			ID:         t.ID,
			Name:       t.Name,
			Artists:    t.Artists,
			Album:      t.Album,
			DurationMs: t.Duration.Milliseconds(),
		}
		if t.Artwork != nil {
			pt.Artwork = &struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			}{URL: t.Artwork.URL, Width: t.Artwork.Width, Height: t.Artwork.Height}
		}
		pp.Tracks[i] = pt
	}
	return pp
}

func fromPersistedPlaylist(pp persistedPlaylist) *playlist.Playlist {
	p := &playlist.Playlist{
		ID:          pp.ID,
		Name:        pp.Name,
		Description: pp.Description,
		CanEdit:     pp.CanEdit,
		IsPublic:    pp.IsPublic,
		CreatedAt:   pp.CreatedAt,
		ModifiedAt:  pp.ModifiedAt,
		Tracks:      make([]track.Track, len(pp.Tracks)),
	}
	for i, pt := range pp.Tracks {
		t := track.Track{
			ID:       pt.ID,
			Name:     pt.Name,
			Artists:  pt.Artists,
			Album:    pt.Album,
			Duration: time.Duration(pt.DurationMs) * time.Millisecond,
		}
		if pt.Artwork != nil {
			t.Artwork = &track.Artwork{URL: pt.Artwork.URL, Width: pt.Artwork.Width, Height: pt.Artwork.Height}
		}
		p.Tracks[i] = t
	}
	return p
}
