// Package suggest provides AI-backed playlist suggestions.
package suggest

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/rmiyoshi/setlist/internal/domain/track"
)

// ErrNotConfigured is returned when the suggester credential is missing.
// It is surfaced immediately and never retried.
var ErrNotConfigured = errors.New("suggester is not configured")

// Mode selects the kind of suggestion requested.
type Mode int

const (
	ModeName      Mode = iota // Suggest playlist names
	ModeGroup                 // Suggest groupings of the tracks into playlists
	ModeRecommend             // Suggest additional tracks
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeName:
		return "name"
	case ModeGroup:
		return "group"
	case ModeRecommend:
		return "recommend"
	default:
		return "unknown"
	}
}

// Grouping is a suggested split of tracks into a named playlist.
type Grouping struct {
	PlaylistName string
	TrackIDs     []string
}

// Result carries the outcome of a suggestion request. Only the field
// matching the requested mode is populated.
type Result struct {
	Names           []string
	Groupings       []Grouping
	Recommendations []track.Track
}

// Suggester is the capability contract for the AI suggestion engine.
// Implementations take a batch of tracks and a mode and return name
// suggestions, grouping mutations, or recommended tracks.
type Suggester interface {
	Suggest(ctx context.Context, mode Mode, tracks []track.Track, contextHint string) (*Result, error)
}
