// Package session wires the playlist state core into one editing session.
package session

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/rmiyoshi/setlist/internal/app/history"
	"github.com/rmiyoshi/setlist/internal/app/mutate"
	"github.com/rmiyoshi/setlist/internal/app/remote"
	"github.com/rmiyoshi/setlist/internal/app/store"
	"github.com/rmiyoshi/setlist/internal/app/suggest"
	"github.com/rmiyoshi/setlist/internal/domain/mutation"
	"github.com/rmiyoshi/setlist/internal/domain/playlist"
	"github.com/rmiyoshi/setlist/internal/domain/track"
)

// BlobStore is the persistence capability the session writes its state to.
type BlobStore interface {
	Save(key string, value []byte) error
	Load(key string) ([]byte, bool, error)
}

// Options configures a session manager.
type Options struct {
	Library   remote.Library    // Required
	Suggester suggest.Suggester // Optional; Suggest fails with ErrNotConfigured when nil
	Blobs     BlobStore         // Optional; no persistence when nil
	BlobKey   string            // Key for the persisted state blob
	MaxDepth  int               // History cap; 0 means the default
}

// Manager is the exposed surface of the playlist state core: read
// accessors, the mutation entry point, history, and sync entry points.
// State is persisted as one blob after every committed change.
type Manager struct {
	id string

	store       *store.Store
	history     *history.Manager
	interpreter *mutate.Interpreter
	coordinator *remote.Coordinator
	library     remote.Library
	suggester   suggest.Suggester

	blobs   BlobStore
	blobKey string
}

// NewManager creates a session over the given collaborators and restores
// the persisted state blob if one exists. A corrupt or missing blob
// degrades to an empty session with a warning, never an error.
func NewManager(opts Options) (*Manager, error) {
	if opts.Library == nil {
		return nil, errors.New("remote library is required")
	}
	if opts.BlobKey == "" {
		opts.BlobKey = "session"
	}

	s := store.New()
	m := &Manager{
		id:        uuid.New().String(),
		store:     s,
		library:   opts.Library,
		suggester: opts.Suggester,
		blobs:     opts.Blobs,
		blobKey:   opts.BlobKey,
	}

	var persisted *persistedState
	if opts.Blobs != nil {
		data, ok, err := opts.Blobs.Load(opts.BlobKey)
		if err != nil {
			zlog.Warn().Msgf("failed to load persisted state, starting empty: %v", err)
		} else if ok {
			ps, err := decodeState(data)
			if err != nil {
				zlog.Warn().Msgf("persisted state is corrupt, starting empty: %v", err)
			} else {
				persisted = ps
			}
		}
	}

	if persisted != nil {
		persisted.applyTo(s)
	}
	m.history = history.New(s, opts.MaxDepth)
	if persisted != nil {
		m.history.Load(persisted.historySnapshots(), persisted.HistoryIndex)
	}

	m.interpreter = mutate.New(s, m.history)
	m.coordinator = remote.NewCoordinator(opts.Library, s, m.history)

	zlog.Debug().Msgf("session started: id=%s playlists=%d", m.id, len(s.ListOrder()))
	return m, nil
}

// GetPlaylist returns a deep copy of the playlist, if present.
func (m *Manager) GetPlaylist(id string) (*playlist.Playlist, bool) {
	return m.store.GetPlaylist(id)
}

// ListOrder returns the playlist display order.
func (m *Manager) ListOrder() []string {
	return m.store.ListOrder()
}

// GetDirty reports whether the playlist has unsynced local edits.
func (m *Manager) GetDirty(id string) bool {
	return m.store.IsDirty(id)
}

// Select sets the current selection.
func (m *Manager) Select(id string) {
	m.store.Select(id)
	m.autosave()
}

// Selected returns the currently selected playlist ID, or "".
func (m *Manager) Selected() string {
	return m.store.Selected()
}

// ApplyMutations applies an ordered batch of mutations to one playlist as
// a single transaction producing one snapshot.
func (m *Manager) ApplyMutations(playlistID string, batch []mutation.Mutation) {
	m.interpreter.Apply(playlistID, batch)
	m.autosave()
}

// CreatePlaylist creates a local playlist with a provisional ID. It is
// dirty from the start; the first push publishes it and swaps in the
// remote-assigned ID.
func (m *Manager) CreatePlaylist(name string) *playlist.Playlist {
	p := &playlist.Playlist{
		ID:      "local-" + uuid.New().String(),
		Name:    name,
		CanEdit: true,
	}
	m.store.InsertPlaylist(p)
	m.store.MarkDirty(p.ID)
	m.history.Commit(fmt.Sprintf("Created playlist %q", name))
	m.autosave()

	created, _ := m.store.GetPlaylist(p.ID)
	return created
}

// DeletePlaylist removes the playlist locally. If it was synced before,
// the next push for its ID issues the remote delete.
func (m *Manager) DeletePlaylist(id string) {
	m.coordinator.MarkDeleted(id)
	m.store.DeletePlaylist(id)
	m.history.Commit(fmt.Sprintf("Deleted playlist %s", id))
	m.autosave()
}

// Undo steps the history cursor back. Returns false at the oldest state.
func (m *Manager) Undo() bool {
	ok := m.history.Undo()
	if ok {
		m.autosave()
	}
	return ok
}

// Redo steps the history cursor forward. Returns false at the newest state.
func (m *Manager) Redo() bool {
	ok := m.history.Redo()
	if ok {
		m.autosave()
	}
	return ok
}

// CanUndo reports whether an undo would change state.
func (m *Manager) CanUndo() bool { return m.history.CanUndo() }

// CanRedo reports whether a redo would change state.
func (m *Manager) CanRedo() bool { return m.history.CanRedo() }

// Pull overwrites the local playlist with the remote state.
func (m *Manager) Pull(ctx context.Context, id string) error {
	err := m.coordinator.Pull(ctx, id)
	if err == nil {
		m.autosave()
	}
	return err
}

// PullAll seeds the local store from the whole remote account.
func (m *Manager) PullAll(ctx context.Context) (int, error) {
	n, err := m.coordinator.PullAll(ctx)
	if err == nil {
		m.autosave()
	}
	return n, err
}

// Push applies local dirty edits to the remote service.
func (m *Manager) Push(ctx context.Context, id string) error {
	err := m.coordinator.Push(ctx, id)
	if err == nil {
		m.autosave()
	}
	return err
}

// Revert discards local edits by re-pulling the remote state.
func (m *Manager) Revert(ctx context.Context, id string) error {
	err := m.coordinator.Revert(ctx, id)
	if err == nil {
		m.autosave()
	}
	return err
}

// Search searches the remote catalog.
func (m *Manager) Search(ctx context.Context, term string, limit int) ([]track.Track, error) {
	return m.library.SearchCatalog(ctx, term, limit)
}

// Suggest invokes the AI engine for the playlist's tracks.
func (m *Manager) Suggest(ctx context.Context, mode suggest.Mode, playlistID, contextHint string) (*suggest.Result, error) {
	if m.suggester == nil {
		return nil, suggest.ErrNotConfigured
	}
	p, ok := m.store.GetPlaylist(playlistID)
	if !ok {
		return nil, errors.Newf("unknown playlist %s", playlistID)
	}
	return m.suggester.Suggest(ctx, mode, p.Tracks, contextHint)
}

// ApplyGroupings turns a Group-mode suggestion into new local playlists
// populated from the source playlist's tracks, committing one snapshot
// for the whole operation.
func (m *Manager) ApplyGroupings(sourceID string, groupings []suggest.Grouping) ([]string, error) {
	src, ok := m.store.GetPlaylist(sourceID)
	if !ok {
		return nil, errors.Newf("unknown playlist %s", sourceID)
	}

	byID := make(map[string]track.Track, len(src.Tracks))
	for _, t := range src.Tracks {
		byID[t.ID] = t
	}

	created := make([]string, 0, len(groupings))
	for _, g := range groupings {
		p := &playlist.Playlist{
			ID:      "local-" + uuid.New().String(),
			Name:    g.PlaylistName,
			CanEdit: true,
		}
		m.store.InsertPlaylist(p)
		for _, id := range g.TrackIDs {
			t, ok := byID[id]
			if !ok {
				zlog.Warn().Msgf("grouping references track missing from source: id=%s", id)
				continue
			}
			m.store.InsertTrack(p.ID, t, -1)
		}
		created = append(created, p.ID)
	}

	m.history.Commit(fmt.Sprintf("Grouped %q into %d playlist(s)", src.Name, len(created)))
	m.autosave()
	return created, nil
}

// Save writes the current state blob. Normally the session autosaves;
// Save exists for explicit flushes at shutdown.
func (m *Manager) Save() error {
	if m.blobs == nil {
		return nil
	}
	data, err := encodeState(m.store, m.history)
	if err != nil {
		return errors.Wrap(err, "failed to encode session state")
	}
	if err := m.blobs.Save(m.blobKey, data); err != nil {
		return errors.Wrap(err, "failed to persist session state")
	}
	return nil
}

// autosave persists best-effort; persistence failures never fail an edit.
func (m *Manager) autosave() {
	if err := m.Save(); err != nil {
		zlog.Warn().Msgf("autosave failed: %v", err)
	}
}
