package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rmiyoshi/setlist/internal/app/store"
	"github.com/rmiyoshi/setlist/internal/domain/playlist"
	"github.com/rmiyoshi/setlist/internal/domain/track"
)

func newStoreWithPlaylist(trackIDs ...string) *store.Store {
	s := store.New()
	p := &playlist.Playlist{ID: "p1", Name: "Rock", CanEdit: true}
	for _, id := range trackIDs {
		p.Tracks = append(p.Tracks, track.Track{ID: id})
	}
	s.InsertPlaylist(p)
	return s
}

func currentTrackIDs(t *testing.T, s *store.Store) []string {
	t.Helper()
	p, ok := s.GetPlaylist("p1")
	assert.True(t, ok)
	return p.TrackIDs()
}

func TestManager_UndoRedoRoundTrip(t *testing.T) {
	s := newStoreWithPlaylist("a")
	h := New(s, 0)

	s.InsertTrack("p1", track.Track{ID: "b"}, -1)
	h.Commit("added b")
	s.InsertTrack("p1", track.Track{ID: "c"}, -1)
	h.Commit("added c")

	assert.Equal(t, []string{"a", "b", "c"}, currentTrackIDs(t, s))

	assert.True(t, h.Undo())
	assert.Equal(t, []string{"a", "b"}, currentTrackIDs(t, s))

	assert.True(t, h.Undo())
	assert.Equal(t, []string{"a"}, currentTrackIDs(t, s))

	// At the baseline, undo is a no-op.
	assert.False(t, h.CanUndo())
	assert.False(t, h.Undo())
	assert.Equal(t, []string{"a"}, currentTrackIDs(t, s))

	assert.True(t, h.Redo())
	assert.True(t, h.Redo())
	assert.Equal(t, []string{"a", "b", "c"}, currentTrackIDs(t, s))

	assert.False(t, h.CanRedo())
	assert.False(t, h.Redo())
}

func TestManager_CommitTruncatesRedoTail(t *testing.T) {
	s := newStoreWithPlaylist("a")
	h := New(s, 0)

	s.InsertTrack("p1", track.Track{ID: "b"}, -1)
	h.Commit("added b")
	s.InsertTrack("p1", track.Track{ID: "c"}, -1)
	h.Commit("added c")

	assert.True(t, h.Undo())
	assert.True(t, h.CanRedo())

	// Committing from the middle of the history discards the redo tail.
	s.InsertTrack("p1", track.Track{ID: "x"}, -1)
	h.Commit("added x")

	assert.False(t, h.CanRedo())
	assert.Equal(t, []string{"a", "b", "x"}, currentTrackIDs(t, s))

	assert.True(t, h.Undo())
	assert.Equal(t, []string{"a", "b"}, currentTrackIDs(t, s))
	assert.True(t, h.Redo())
	assert.Equal(t, []string{"a", "b", "x"}, currentTrackIDs(t, s))
}

func TestManager_CapacityEviction(t *testing.T) {
	s := newStoreWithPlaylist()
	h := New(s, 3)

	for i := 1; i <= 5; i++ {
		s.InsertTrack("p1", track.Track{ID: fmt.Sprintf("t%d", i)}, -1)
		h.Commit(fmt.Sprintf("commit %d", i))
	}

	// Baseline plus five commits, capped at three snapshots.
	assert.Equal(t, 3, h.Depth())
	snaps := h.Snapshots()
	assert.Equal(t, "commit 3", snaps[0].Description, "oldest snapshots evicted first")
	assert.Equal(t, "commit 5", snaps[2].Description)

	// Undo bottoms out at the oldest retained snapshot.
	assert.True(t, h.Undo())
	assert.True(t, h.Undo())
	assert.False(t, h.Undo())
	assert.Equal(t, []string{"t1", "t2", "t3"}, currentTrackIDs(t, s))
}

func TestManager_UndoRedoClearsDirty(t *testing.T) {
	s := newStoreWithPlaylist("a")
	h := New(s, 0)

	s.InsertTrack("p1", track.Track{ID: "b"}, -1)
	h.Commit("added b")
	assert.True(t, s.IsDirty("p1"))

	assert.True(t, h.Undo())
	assert.False(t, s.IsDirty("p1"))

	assert.True(t, h.Redo())
	assert.False(t, s.IsDirty("p1"))
}

func TestManager_Load(t *testing.T) {
	s := newStoreWithPlaylist("a")
	h := New(s, 0)

	s.InsertTrack("p1", track.Track{ID: "b"}, -1)
	h.Commit("added b")
	snaps := h.Snapshots()

	restored := New(store.New(), 0)
	restored.Load(snaps, 1)
	assert.Equal(t, 2, restored.Depth())
	assert.Equal(t, 1, restored.Cursor())
	assert.True(t, restored.CanUndo())
	assert.False(t, restored.CanRedo())

	// Invalid input leaves the current history untouched.
	restored.Load(nil, 0)
	assert.Equal(t, 2, restored.Depth())
	restored.Load(snaps, 5)
	assert.Equal(t, 1, restored.Cursor())
}

func TestManager_LoadTrimsToMaxDepth(t *testing.T) {
	s := newStoreWithPlaylist()
	h := New(s, 0)
	for i := 1; i <= 4; i++ {
		s.InsertTrack("p1", track.Track{ID: fmt.Sprintf("t%d", i)}, -1)
		h.Commit(fmt.Sprintf("commit %d", i))
	}

	restored := New(store.New(), 2)
	restored.Load(h.Snapshots(), 4)

	assert.Equal(t, 2, restored.Depth())
	assert.Equal(t, 1, restored.Cursor())
	snaps := restored.Snapshots()
	assert.Equal(t, "commit 4", snaps[1].Description)
}
