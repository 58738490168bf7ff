// Package track provides the Track domain entity.
package track

import "time"

// Artwork references a piece of album art with its intrinsic size.
type Artwork struct {
	URL    string // Image URL
	Width  int    // Intrinsic width in pixels
	Height int    // Intrinsic height in pixels
}

// Track represents a catalog track.
// Tracks are value objects: immutable once constructed, and two playlists
// referencing the "same" track share no mutable state.
type Track struct {
	ID       string        // Catalog track ID
	Name     string        // Track name
	Artists  []string      // Artist names
	Album    string        // Album name
	Duration time.Duration // Track duration
	Artwork  *Artwork      // Album art (nil if unavailable)
}

// Artist returns the main (first) artist name, or "" if none is known.
func (t *Track) Artist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Clone returns a deep copy of the track.
func (t Track) Clone() Track {
	c := t
	if t.Artists != nil {
		c.Artists = make([]string, len(t.Artists))
		copy(c.Artists, t.Artists)
	}
	if t.Artwork != nil {
		art := *t.Artwork
		c.Artwork = &art
	}
	return c
}
