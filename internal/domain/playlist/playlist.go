// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/rmiyoshi/setlist/internal/domain/track"
)

// Playlist represents a user playlist.
// The track sequence is ordered and user-visible; the same track ID may
// appear more than once.
type Playlist struct {
	ID          string        // Playlist ID
	Name        string        // Playlist name
	Description string        // Playlist description
	CanEdit     bool          // Whether the current user may edit it
	IsPublic    bool          // Whether the playlist is public
	CreatedAt   time.Time     // Creation time
	ModifiedAt  time.Time     // Last local modification time
	Tracks      []track.Track // Tracks in playlist order
}

// Attributes is a partial update of playlist metadata.
// Nil fields are left unchanged when applied.
type Attributes struct {
	Name        *string
	Description *string
	IsPublic    *bool
}

// Apply merges the non-nil attribute fields into the playlist.
func (p *Playlist) Apply(a Attributes) {
	if a.Name != nil {
		p.Name = *a.Name
	}
	if a.Description != nil {
		p.Description = *a.Description
	}
	if a.IsPublic != nil {
		p.IsPublic = *a.IsPublic
	}
}

// Clone returns a deep copy of the playlist.
// Later mutations of the original never show through the copy.
func (p *Playlist) Clone() *Playlist {
	c := *p
	c.Tracks = make([]track.Track, len(p.Tracks))
	for i, t := range p.Tracks {
		c.Tracks[i] = t.Clone()
	}
	return &c
}

// TrackIDs returns all track IDs in playlist order.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the total duration of all tracks.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// IndexOfTrack returns the index of the first track with the given ID,
// or -1 if the playlist does not contain it.
func (p *Playlist) IndexOfTrack(trackID string) int {
	for i, t := range p.Tracks {
		if t.ID == trackID {
			return i
		}
	}
	return -1
}
