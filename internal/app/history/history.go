// Package history provides linear undo/redo over store snapshots.
package history

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/rmiyoshi/setlist/internal/app/store"
)

// DefaultMaxDepth is the default maximum number of retained snapshots.
const DefaultMaxDepth = 50

// Manager maintains an ordered sequence of snapshots and a cursor.
// Undo and redo move the cursor and restore the store from the snapshot
// at the new position. Committing while the cursor is not at the end
// discards every snapshot after it (linear-undo semantics).
type Manager struct {
	store     *store.Store
	snapshots []store.Snapshot
	cursor    int
	maxDepth  int
}

// New creates a history manager over the given store. A maxDepth of zero
// or less falls back to DefaultMaxDepth. The manager starts with a single
// baseline snapshot of the store's current state, so the first undo always
// has somewhere to go back to.
func New(s *store.Store, maxDepth int) *Manager {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	m := &Manager{
		store:    s,
		maxDepth: maxDepth,
	}
	m.snapshots = []store.Snapshot{s.Capture("initial state")}
	m.cursor = 0
	return m
}

// Commit captures the current store state as a new snapshot, truncates any
// snapshots beyond the cursor, appends, and advances the cursor to the new
// last index. The oldest snapshot is evicted when the cap is exceeded, with
// the cursor decremented so relative position is preserved.
func (m *Manager) Commit(description string) {
	snap := m.store.Capture(description)

	// Divergent write: drop the redo tail.
	if m.cursor < len(m.snapshots)-1 {
		m.snapshots = m.snapshots[:m.cursor+1]
	}

	m.snapshots = append(m.snapshots, snap)
	m.cursor = len(m.snapshots) - 1

	if len(m.snapshots) > m.maxDepth {
		evicted := len(m.snapshots) - m.maxDepth
		m.snapshots = m.snapshots[evicted:]
		m.cursor -= evicted
	}

	zlog.Debug().Msgf("history commit: description=%q cursor=%d depth=%d", description, m.cursor, len(m.snapshots))
}

// Undo moves the cursor one snapshot back and restores the store.
// All dirty flags are cleared: the restored state is by definition the
// state at the time that snapshot was taken, and dirty tracking is
// recomputed relative to that baseline. No-op at the oldest snapshot;
// returns false in that case.
func (m *Manager) Undo() bool {
	if !m.CanUndo() {
		return false
	}
	m.cursor--
	m.store.Restore(m.snapshots[m.cursor])
	zlog.Debug().Msgf("history undo: cursor=%d description=%q", m.cursor, m.snapshots[m.cursor].Description)
	return true
}

// Redo moves the cursor one snapshot forward and restores the store,
// clearing all dirty flags. No-op at the newest snapshot; returns false
// in that case.
func (m *Manager) Redo() bool {
	if !m.CanRedo() {
		return false
	}
	m.cursor++
	m.store.Restore(m.snapshots[m.cursor])
	zlog.Debug().Msgf("history redo: cursor=%d description=%q", m.cursor, m.snapshots[m.cursor].Description)
	return true
}

// CanUndo reports whether an undo would move the cursor.
func (m *Manager) CanUndo() bool {
	return m.cursor > 0
}

// CanRedo reports whether a redo would move the cursor.
func (m *Manager) CanRedo() bool {
	return m.cursor < len(m.snapshots)-1
}

// Depth returns the number of retained snapshots.
func (m *Manager) Depth() int {
	return len(m.snapshots)
}

// Cursor returns the current cursor position.
func (m *Manager) Cursor() int {
	return m.cursor
}

// Snapshots returns the retained snapshots, oldest first. The returned
// slice is a copy of the sequence; the snapshots themselves are immutable.
func (m *Manager) Snapshots() []store.Snapshot {
	out := make([]store.Snapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}

// Load replaces the retained history, typically when restoring a persisted
// session. Invalid input (empty snapshots, cursor out of range) is ignored
// and the current history kept.
func (m *Manager) Load(snapshots []store.Snapshot, cursor int) {
	if len(snapshots) == 0 || cursor < 0 || cursor >= len(snapshots) {
		zlog.Warn().Msgf("ignoring invalid history load: depth=%d cursor=%d", len(snapshots), cursor)
		return
	}
	if len(snapshots) > m.maxDepth {
		drop := len(snapshots) - m.maxDepth
		snapshots = snapshots[drop:]
		cursor -= drop
		if cursor < 0 {
			cursor = 0
		}
	}
	m.snapshots = snapshots
	m.cursor = cursor
}
