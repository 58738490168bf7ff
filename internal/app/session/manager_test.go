package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/rmiyoshi/setlist/internal/app/remote"
	"github.com/rmiyoshi/setlist/internal/app/suggest"
	"github.com/rmiyoshi/setlist/internal/domain/mutation"
	"github.com/rmiyoshi/setlist/internal/domain/playlist"
	"github.com/rmiyoshi/setlist/internal/domain/track"
)

// stubLibrary satisfies remote.Library for sessions that never hit the
// remote during the test.
type stubLibrary struct {
	playlists map[string]*playlist.Playlist
}

func (l *stubLibrary) ListPlaylists(ctx context.Context) ([]*playlist.Playlist, error) {
	return nil, nil
}

func (l *stubLibrary) GetPlaylist(ctx context.Context, id string) (*playlist.Playlist, error) {
	if p, ok := l.playlists[id]; ok {
		return p.Clone(), nil
	}
	return nil, remote.NewError(remote.KindNotFound, "playlist "+id, nil)
}

func (l *stubLibrary) CreatePlaylist(ctx context.Context, name, description string, trackIDs []string) (*playlist.Playlist, error) {
	return nil, remote.NewError(remote.KindUnknown, "not scripted", nil)
}

func (l *stubLibrary) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	return nil
}

func (l *stubLibrary) RemoveTrack(ctx context.Context, playlistID, trackID string) error {
	return nil
}

func (l *stubLibrary) RenamePlaylist(ctx context.Context, playlistID, name string) error {
	return nil
}

func (l *stubLibrary) DeletePlaylist(ctx context.Context, playlistID string) error {
	return nil
}

func (l *stubLibrary) SearchCatalog(ctx context.Context, term string, limit int) ([]track.Track, error) {
	return nil, nil
}

// mapBlobStore is an in-memory BlobStore.
type mapBlobStore struct {
	blobs map[string][]byte
	err   error
}

func newMapBlobStore() *mapBlobStore {
	return &mapBlobStore{blobs: make(map[string][]byte)}
}

func (m *mapBlobStore) Save(key string, value []byte) error {
	if m.err != nil {
		return m.err
	}
	m.blobs[key] = value
	return nil
}

func (m *mapBlobStore) Load(key string) ([]byte, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.blobs[key]
	return v, ok, nil
}

func newTestManager(t *testing.T, blobs BlobStore) *Manager {
	t.Helper()
	m, err := NewManager(Options{Library: &stubLibrary{}, Blobs: blobs})
	assert.NoError(t, err)
	return m
}

func TestNewManager_RequiresLibrary(t *testing.T) {
	_, err := NewManager(Options{})
	assert.Error(t, err)
}

func TestManager_CreatePlaylist(t *testing.T) {
	m := newTestManager(t, nil)

	p := m.CreatePlaylist("Fresh Cuts")
	assert.True(t, strings.HasPrefix(p.ID, "local-"), "provisional ID until the first push")
	assert.Equal(t, "Fresh Cuts", p.Name)
	assert.True(t, m.GetDirty(p.ID), "a new local playlist starts dirty")
	assert.True(t, m.CanUndo())
}

func TestManager_ApplyMutationsAndUndo(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.CreatePlaylist("Fresh Cuts")

	m.ApplyMutations(p.ID, []mutation.Mutation{
		mutation.Add(track.Track{ID: "t1"}, track.Track{ID: "t2"}),
	})

	got, _ := m.GetPlaylist(p.ID)
	assert.Equal(t, []string{"t1", "t2"}, got.TrackIDs())

	assert.True(t, m.Undo())
	got, _ = m.GetPlaylist(p.ID)
	assert.Empty(t, got.TrackIDs())

	assert.True(t, m.Redo())
	got, _ = m.GetPlaylist(p.ID)
	assert.Equal(t, []string{"t1", "t2"}, got.TrackIDs())
}

func TestManager_SuggestWithoutProvider(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.CreatePlaylist("Fresh Cuts")

	_, err := m.Suggest(context.Background(), suggest.ModeName, p.ID, "")
	assert.True(t, errors.Is(err, suggest.ErrNotConfigured))
}

func TestManager_ApplyGroupings(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.CreatePlaylist("Everything")
	m.ApplyMutations(p.ID, []mutation.Mutation{
		mutation.Add(
			track.Track{ID: "t1", Name: "One"},
			track.Track{ID: "t2", Name: "Two"},
			track.Track{ID: "t3", Name: "Three"},
		),
	})

	created, err := m.ApplyGroupings(p.ID, []suggest.Grouping{
		{PlaylistName: "Mellow", TrackIDs: []string{"t1", "t3"}},
		{PlaylistName: "Upbeat", TrackIDs: []string{"t2", "unknown"}},
	})
	assert.NoError(t, err)
	assert.Len(t, created, 2)

	mellow, ok := m.GetPlaylist(created[0])
	assert.True(t, ok)
	assert.Equal(t, "Mellow", mellow.Name)
	assert.Equal(t, []string{"t1", "t3"}, mellow.TrackIDs())

	upbeat, _ := m.GetPlaylist(created[1])
	assert.Equal(t, []string{"t2"}, upbeat.TrackIDs(), "unknown track IDs are skipped")

	// The whole grouping is one transaction.
	assert.True(t, m.Undo())
	_, ok = m.GetPlaylist(created[0])
	assert.False(t, ok)
	_, ok = m.GetPlaylist(created[1])
	assert.False(t, ok)

	_, err = m.ApplyGroupings("ghost", nil)
	assert.Error(t, err)
}

func TestManager_PersistenceRoundTrip(t *testing.T) {
	blobs := newMapBlobStore()

	m := newTestManager(t, blobs)
	p := m.CreatePlaylist("Fresh Cuts")
	m.ApplyMutations(p.ID, []mutation.Mutation{
		mutation.Add(track.Track{
			ID:       "t1",
			Name:     "Song One",
			Artists:  []string{"Artist A", "Artist B"},
			Album:    "Album",
			Duration: 3*time.Minute + 14*time.Second,
			Artwork:  &track.Artwork{URL: "http://img", Width: 300, Height: 300},
		}),
	})
	m.Select(p.ID)

	// A fresh session over the same blob store resumes where we left off.
	restored := newTestManager(t, blobs)

	assert.Equal(t, []string{p.ID}, restored.ListOrder())
	assert.Equal(t, p.ID, restored.Selected())
	assert.True(t, restored.GetDirty(p.ID), "dirty flags survive a restart")
	assert.True(t, restored.CanUndo(), "history survives a restart")

	got, ok := restored.GetPlaylist(p.ID)
	assert.True(t, ok)
	assert.Equal(t, "Fresh Cuts", got.Name)
	assert.Len(t, got.Tracks, 1)
	assert.Equal(t, []string{"Artist A", "Artist B"}, got.Tracks[0].Artists)
	assert.Equal(t, 3*time.Minute+14*time.Second, got.Tracks[0].Duration)
	assert.Equal(t, 300, got.Tracks[0].Artwork.Width)

	// Undo in the restored session walks the persisted history.
	assert.True(t, restored.Undo())
	got, _ = restored.GetPlaylist(p.ID)
	assert.Empty(t, got.TrackIDs())
}

func TestManager_CorruptBlobStartsEmpty(t *testing.T) {
	blobs := newMapBlobStore()
	blobs.blobs["session"] = []byte("{not json")

	m := newTestManager(t, blobs)
	assert.Empty(t, m.ListOrder())
}

func TestManager_SaveFailureDoesNotFailEdits(t *testing.T) {
	blobs := newMapBlobStore()
	m := newTestManager(t, blobs)
	blobs.err = errors.New("disk full")

	p := m.CreatePlaylist("Still Works")
	_, ok := m.GetPlaylist(p.ID)
	assert.True(t, ok, "edits land even when autosave fails")
	assert.Error(t, m.Save())
}

func TestEncodeDecodeState(t *testing.T) {
	blobs := newMapBlobStore()
	m := newTestManager(t, blobs)
	p := m.CreatePlaylist("Round Trip")
	m.ApplyMutations(p.ID, []mutation.Mutation{
		mutation.Add(track.Track{ID: "t1", Name: "Song"}),
	})

	data, ok, err := blobs.Load("session")
	assert.NoError(t, err)
	assert.True(t, ok)

	ps, err := decodeState(data)
	assert.NoError(t, err)
	assert.Equal(t, []string{p.ID}, ps.Order)
	assert.Len(t, ps.History, 3, "baseline plus two commits")
	assert.Equal(t, 2, ps.HistoryIndex)
	assert.Equal(t, "Song", ps.Entities[p.ID].Tracks[0].Name)
}
