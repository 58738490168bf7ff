package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/rmiyoshi/setlist/internal/app/history"
	"github.com/rmiyoshi/setlist/internal/app/store"
	"github.com/rmiyoshi/setlist/internal/domain/playlist"
)

// ErrSyncInProgress is returned when a push is requested for a playlist
// that already has one in flight. The request is rejected, never silently
// dropped.
var ErrSyncInProgress = errors.New("sync already in progress for this playlist")

// Coordinator reconciles the local store against the remote library.
//
// Pull overwrites local state with remote state (last-writer-wins against
// local edits) and clears the dirty flag. Push derives the minimal remote
// calls from the divergence between the last confirmed remote state and
// the current local state. The coordinator never retries on its own;
// failures are classified and surfaced to the caller.
type Coordinator struct {
	library Library
	store   *store.Store
	history *history.Manager

	mu       sync.Mutex
	base     map[string]*playlist.Playlist // last confirmed remote state per playlist
	deleted  map[string]bool               // local deletes awaiting a remote delete
	inflight map[string]bool               // playlists with a push in flight
}

// NewCoordinator creates a coordinator over the given collaborators.
// The library is injected so tests can substitute a fake.
func NewCoordinator(lib Library, s *store.Store, h *history.Manager) *Coordinator {
	return &Coordinator{
		library:  lib,
		store:    s,
		history:  h,
		base:     make(map[string]*playlist.Playlist),
		deleted:  make(map[string]bool),
		inflight: make(map[string]bool),
	}
}

// Pull fetches the playlist from the remote library and replaces the local
// entry wholesale, discarding local edits and clearing the dirty flag.
// A successful pull commits one snapshot. On failure the local state is
// left untouched and the classified error is returned.
func (c *Coordinator) Pull(ctx context.Context, playlistID string) error {
	p, err := c.library.GetPlaylist(ctx, playlistID)
	if err != nil {
		return errors.Wrapf(err, "pull %s", playlistID)
	}

	c.store.InsertPlaylist(p)
	c.setBase(p)
	c.history.Commit(fmt.Sprintf("Pulled %q from remote", p.Name))
	zlog.Info().Msgf("pulled playlist: id=%s name=%q tracks=%d", p.ID, p.Name, len(p.Tracks))
	return nil
}

// PullAll fetches every playlist from the remote account and seeds the
// local store, committing a single snapshot for the whole operation.
func (c *Coordinator) PullAll(ctx context.Context) (int, error) {
	playlists, err := c.library.ListPlaylists(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "pull all")
	}

	for _, p := range playlists {
		c.store.InsertPlaylist(p)
		c.setBase(p)
	}
	c.history.Commit(fmt.Sprintf("Pulled %d playlist(s) from remote", len(playlists)))
	zlog.Info().Msgf("pulled all playlists: count=%d", len(playlists))
	return len(playlists), nil
}

// Revert discards local edits by re-pulling the remote state.
func (c *Coordinator) Revert(ctx context.Context, playlistID string) error {
	return c.Pull(ctx, playlistID)
}

// MarkDeleted records that a previously synced playlist was deleted
// locally, so the next push for its ID issues a remote delete.
func (c *Coordinator) MarkDeleted(playlistID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.base[playlistID]; ok {
		c.deleted[playlistID] = true
	}
}

// Push applies local dirty edits to the remote library. No-op if the
// playlist is clean. At most one push per playlist may be in flight;
// concurrent requests get ErrSyncInProgress.
//
// The push reads a point-in-time copy of the local state; edits committed
// after the copy was captured are not covered and keep the playlist dirty
// for a subsequent push (at-least-once semantics). Remote calls that
// already succeeded are not rolled back on a mid-batch failure; retrying
// the push is safe because the remote operations are idempotent by
// playlist ID, track ID and index.
func (c *Coordinator) Push(ctx context.Context, playlistID string) error {
	c.mu.Lock()
	if c.inflight[playlistID] {
		c.mu.Unlock()
		return ErrSyncInProgress
	}
	c.inflight[playlistID] = true
	pendingDelete := c.deleted[playlistID]
	base := c.base[playlistID]
	if base != nil {
		base = base.Clone()
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, playlistID)
		c.mu.Unlock()
	}()

	// The generation is read before the state copy. Any edit landing after
	// this point bumps the generation, so the final generation check fails
	// and the playlist stays dirty for a follow-up push.
	gen := c.store.Generation(playlistID)

	local, exists := c.store.GetPlaylist(playlistID)
	if !exists {
		if pendingDelete {
			return c.pushDelete(ctx, playlistID)
		}
		zlog.Warn().Msgf("push requested for unknown playlist: id=%s", playlistID)
		return nil
	}

	if !c.store.IsDirty(playlistID) {
		return nil
	}

	if base == nil {
		return c.pushCreate(ctx, playlistID, local, gen)
	}
	return c.pushDiff(ctx, base, local, gen)
}

// pushDelete issues the remote delete implied by a local delete.
func (c *Coordinator) pushDelete(ctx context.Context, playlistID string) error {
	if err := c.library.DeletePlaylist(ctx, playlistID); err != nil {
		return errors.Wrapf(err, "push delete %s", playlistID)
	}
	c.mu.Lock()
	delete(c.base, playlistID)
	delete(c.deleted, playlistID)
	c.mu.Unlock()
	zlog.Info().Msgf("pushed playlist delete: id=%s", playlistID)
	return nil
}

// pushCreate publishes a locally created playlist. The provisional local
// entry is replaced by the remote-assigned one under its new ID.
func (c *Coordinator) pushCreate(ctx context.Context, playlistID string, local *playlist.Playlist, gen uint64) error {
	created, err := c.library.CreatePlaylist(ctx, local.Name, local.Description, local.TrackIDs())
	if err != nil {
		return errors.Wrapf(err, "push create %q", local.Name)
	}

	if created.ID != playlistID {
		c.store.DeletePlaylist(playlistID)
		c.store.InsertPlaylist(created)
		c.history.Commit(fmt.Sprintf("Linked %q to remote", created.Name))
	} else {
		c.store.ClearDirtyIfGeneration(playlistID, gen)
	}
	c.setBase(created)
	zlog.Info().Msgf("pushed new playlist: local=%s remote=%s name=%q", playlistID, created.ID, created.Name)
	return nil
}

// pushDiff derives the minimal remote calls from the divergence between
// the base revision and the local state, and applies them sequentially.
// Removals run before additions: removing a track clears every remote
// occurrence, and the additions re-establish the occurrences the local
// state keeps.
func (c *Coordinator) pushDiff(ctx context.Context, base, local *playlist.Playlist, gen uint64) error {
	id := local.ID

	if base.Name != local.Name {
		if err := c.library.RenamePlaylist(ctx, id, local.Name); err != nil {
			return errors.Wrapf(err, "push rename %s", id)
		}
	}

	removals, additions := diffTracks(base.TrackIDs(), local.TrackIDs())
	for _, trackID := range removals {
		if err := c.library.RemoveTrack(ctx, id, trackID); err != nil {
			return errors.Wrapf(err, "push remove track %s from %s", trackID, id)
		}
	}
	if len(additions) > 0 {
		if err := c.library.AddTracks(ctx, id, additions); err != nil {
			return errors.Wrapf(err, "push add tracks to %s", id)
		}
	}

	if base.Name == local.Name && len(removals) == 0 && len(additions) == 0 {
		// Order-only divergence: the remote capability set has no move
		// operation, so the local order is accepted as applied.
		zlog.Debug().Msgf("push found order-only divergence: id=%s", id)
	}

	c.setBase(local)
	if !c.store.ClearDirtyIfGeneration(id, gen) {
		zlog.Info().Msgf("playlist edited during push, staying dirty: id=%s", id)
	}
	zlog.Info().Msgf("pushed playlist: id=%s removed=%d added=%d", id, len(removals), len(additions))
	return nil
}

// setBase records the last confirmed remote state for a playlist.
func (c *Coordinator) setBase(p *playlist.Playlist) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base[p.ID] = p.Clone()
	delete(c.deleted, p.ID)
}

// diffTracks derives the remote calls that reconcile the base track list
// with the local one, compared as multisets. A remote removal takes out
// every occurrence of the ID, so removals carry each over-represented ID
// at most once, and every surviving local occurrence of a removed ID is
// re-added. Additions are per occurrence, in local order.
func diffTracks(base, local []string) (removals, additions []string) {
	baseCount := make(map[string]int, len(base))
	for _, id := range base {
		baseCount[id]++
	}
	localCount := make(map[string]int, len(local))
	for _, id := range local {
		localCount[id]++
	}

	removed := make(map[string]bool)
	for _, id := range base {
		if baseCount[id] > localCount[id] && !removed[id] {
			removed[id] = true
			removals = append(removals, id)
		}
	}
	for _, id := range local {
		switch {
		case removed[id]:
			additions = append(additions, id)
		case localCount[id] > baseCount[id]:
			additions = append(additions, id)
			localCount[id]--
		}
	}
	return removals, additions
}
