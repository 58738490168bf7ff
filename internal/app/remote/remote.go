// Package remote defines the remote library capability and reconciles
// local state against it.
package remote

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/rmiyoshi/setlist/internal/domain/playlist"
	"github.com/rmiyoshi/setlist/internal/domain/track"
)

// Library is the capability contract the sync coordinator consumes.
// Implementations adapt a concrete music-service SDK; all failures are
// reported as *Error values carrying a Kind classification.
type Library interface {
	ListPlaylists(ctx context.Context) ([]*playlist.Playlist, error)
	GetPlaylist(ctx context.Context, id string) (*playlist.Playlist, error)
	CreatePlaylist(ctx context.Context, name, description string, trackIDs []string) (*playlist.Playlist, error)
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
	// RemoveTrack removes every occurrence of the track from the playlist,
	// not just the first. Callers that want to keep some occurrences must
	// re-add them afterwards.
	RemoveTrack(ctx context.Context, playlistID, trackID string) error
	RenamePlaylist(ctx context.Context, playlistID, name string) error
	DeletePlaylist(ctx context.Context, playlistID string) error
	SearchCatalog(ctx context.Context, term string, limit int) ([]track.Track, error)
}

// Kind classifies a remote failure.
type Kind int

const (
	KindUnknown      Kind = iota // Unclassified failure
	KindUnauthorized             // Authentication required or expired
	KindForbidden                // Permission or subscription missing
	KindNotFound                 // Playlist or track does not exist remotely
	KindRateLimited              // Remote asked us to back off
	KindNetwork                  // Transport-level failure
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error is a classified remote failure. The coordinator passes these
// through to its caller untouched; it never retries on its own.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

// NewError builds a classified remote error.
func NewError(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("remote %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("remote %s", e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf extracts the classification from an error chain.
// Errors that are not remote errors classify as unknown.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// AuthState is the tri-state result of the authorization boundary.
// Expected not-yet-initialized states are values, not errors.
type AuthState int

const (
	AuthNotReady AuthState = iota // Handshake not completed yet
	AuthDenied                    // Credentials rejected
	AuthReady                     // Authorized and usable
)

// String returns the string representation of the auth state.
func (a AuthState) String() string {
	switch a {
	case AuthDenied:
		return "denied"
	case AuthReady:
		return "ready"
	default:
		return "not_ready"
	}
}

// Authorizer is the optional readiness capability a Library adapter may
// expose. AwaitReady blocks until the adapter is usable, the credentials
// are rejected, or the context expires.
type Authorizer interface {
	AuthState(ctx context.Context) AuthState
	AwaitReady(ctx context.Context) (AuthState, error)
}
