// Package mutation provides the edit-intent variants applied to playlists.
package mutation

import (
	"fmt"

	"github.com/rmiyoshi/setlist/internal/domain/track"
)

// Op identifies the kind of a mutation.
type Op int

const (
	OpAdd    Op = iota // Append tracks to the playlist
	OpRemove           // Remove the first occurrence of a track
	OpMove             // Move a track between positions
	OpRename           // Rename the playlist
)

// String returns the string representation of the op.
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpMove:
		return "move"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Mutation is one atomic edit intent, independent of any particular
// playlist; the target playlist is supplied by the caller applying a batch.
// The same ordered batch applied to the same starting state always yields
// the same ending state.
type Mutation struct {
	Op Op

	Tracks    []track.Track // OpAdd
	TrackID   string        // OpRemove, OpMove
	FromIndex int           // OpMove
	ToIndex   int           // OpMove
	Name      string        // OpRename
}

// Add builds a mutation that appends the given tracks.
func Add(tracks ...track.Track) Mutation {
	return Mutation{Op: OpAdd, Tracks: tracks}
}

// Remove builds a mutation that removes the first occurrence of trackID.
func Remove(trackID string) Mutation {
	return Mutation{Op: OpRemove, TrackID: trackID}
}

// Move builds a mutation that moves trackID from one index to another.
func Move(trackID string, from, to int) Mutation {
	return Mutation{Op: OpMove, TrackID: trackID, FromIndex: from, ToIndex: to}
}

// Rename builds a mutation that renames the playlist.
func Rename(name string) Mutation {
	return Mutation{Op: OpRename, Name: name}
}

// Describe returns a short human-readable description of the mutation.
func (m Mutation) Describe() string {
	switch m.Op {
	case OpAdd:
		return fmt.Sprintf("add %d track(s)", len(m.Tracks))
	case OpRemove:
		return fmt.Sprintf("remove track %s", m.TrackID)
	case OpMove:
		return fmt.Sprintf("move track %s from %d to %d", m.TrackID, m.FromIndex, m.ToIndex)
	case OpRename:
		return fmt.Sprintf("rename to %q", m.Name)
	default:
		return "unknown mutation"
	}
}
