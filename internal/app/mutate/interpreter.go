// Package mutate applies ordered mutation batches against the store.
package mutate

import (
	"fmt"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/rmiyoshi/setlist/internal/app/history"
	"github.com/rmiyoshi/setlist/internal/app/store"
	"github.com/rmiyoshi/setlist/internal/domain/mutation"
	"github.com/rmiyoshi/setlist/internal/domain/playlist"
)

// Interpreter translates mutation batches into store primitives for one
// playlist, as a single logical transaction producing one snapshot.
//
// Mutations are processed strictly in batch order: Move and Remove are
// positionally sensitive, and later mutations may depend on the effect of
// earlier ones in the same batch. The interpreter never suspends between
// the first and last primitive call of a batch.
type Interpreter struct {
	store   *store.Store
	history *history.Manager
}

// New creates an interpreter over the given store and history.
func New(s *store.Store, h *history.Manager) *Interpreter {
	return &Interpreter{store: s, history: h}
}

// Apply dispatches each mutation in order, then commits exactly one
// snapshot for the batch. Malformed or unknown mutations are logged and
// skipped; they never abort the batch and already-applied mutations are
// not rolled back.
func (i *Interpreter) Apply(playlistID string, batch []mutation.Mutation) {
	applied := 0
	for _, m := range batch {
		if err := validate(m); err != nil {
			zlog.Warn().Msgf("skipping invalid mutation: playlist=%s mutation=%q error=%v", playlistID, m.Describe(), err)
			continue
		}

		switch m.Op {
		case mutation.OpAdd:
			for _, t := range m.Tracks {
				i.store.InsertTrack(playlistID, t, -1)
			}
		case mutation.OpRemove:
			i.store.RemoveTrack(playlistID, m.TrackID)
		case mutation.OpMove:
			i.store.MoveTrack(playlistID, m.FromIndex, m.ToIndex)
		case mutation.OpRename:
			name := m.Name
			i.store.UpdatePlaylistAttributes(playlistID, playlist.Attributes{Name: &name})
		}
		applied++
	}

	i.history.Commit(fmt.Sprintf("Applied %d mutation(s) to %s", applied, playlistID))
}

// validate rejects mutations that carry no usable payload for their op.
func validate(m mutation.Mutation) error {
	switch m.Op {
	case mutation.OpAdd:
		if len(m.Tracks) == 0 {
			return errNoTracks
		}
		for _, t := range m.Tracks {
			if t.ID == "" {
				return errEmptyTrackID
			}
		}
	case mutation.OpRemove:
		if m.TrackID == "" {
			return errEmptyTrackID
		}
	case mutation.OpMove:
		if m.TrackID == "" {
			return errEmptyTrackID
		}
		if m.FromIndex < 0 {
			return errNegativeIndex
		}
	case mutation.OpRename:
		if m.Name == "" {
			return errEmptyName
		}
	default:
		return errors.Newf("unknown mutation op %d", int(m.Op))
	}
	return nil
}

var (
	errNoTracks      = errors.New("add mutation carries no tracks")
	errEmptyTrackID  = errors.New("empty track ID")
	errNegativeIndex = errors.New("negative source index")
	errEmptyName     = errors.New("empty playlist name")
)
