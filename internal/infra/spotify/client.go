// Package spotify adapts the Spotify Web API to the remote library
// capability consumed by the sync coordinator.
package spotify

import (
	"context"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/rmiyoshi/setlist/internal/app/remote"
	"github.com/rmiyoshi/setlist/internal/domain/playlist"
	"github.com/rmiyoshi/setlist/internal/domain/track"
)

// Client is a Spotify-backed remote library.
// It implements remote.Library and remote.Authorizer.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration

	// Auth handshake state. Concurrent callers share one probe; the
	// cached user ID is read from request paths and written by the probe,
	// so it needs its own lock.
	authGroup singleflight.Group
	userMu    sync.RWMutex
	userID    string

	// tick is time.After unless a test injects a fake clock.
	tick          func(d time.Duration) <-chan time.Time
	awaitAttempts int
	awaitInterval time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// New creates a new Spotify-backed remote library.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
		),
	)

	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := auth.Client(ctx, token)

	market := cfg.Market
	if market == "" {
		market = "US"
	}

	return &Client{
		client:        spotify.New(httpClient),
		market:        market,
		maxRetries:    3,
		retryDelay:    time.Second,
		tick:          time.After,
		awaitAttempts: 5,
		awaitInterval: 2 * time.Second,
	}, nil
}

// AuthState probes the authorization boundary. Expected not-yet-ready
// states are values, never errors; concurrent callers await the same
// in-flight probe instead of issuing duplicate handshakes.
func (c *Client) AuthState(ctx context.Context) remote.AuthState {
	v, _, _ := c.authGroup.Do("auth", func() (any, error) {
		user, err := c.client.CurrentUser(ctx)
		if err != nil {
			switch classify(err).Kind {
			case remote.KindUnauthorized, remote.KindForbidden:
				return remote.AuthDenied, nil
			default:
				return remote.AuthNotReady, nil
			}
		}
		c.setUserID(user.ID)
		return remote.AuthReady, nil
	})
	return v.(remote.AuthState)
}

// AwaitReady polls the authorization boundary a bounded number of times.
// It returns the final state; an expired context is the only error case.
func (c *Client) AwaitReady(ctx context.Context) (remote.AuthState, error) {
	state := c.AuthState(ctx)
	for attempt := 1; state == remote.AuthNotReady && attempt < c.awaitAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return remote.AuthNotReady, errors.Wrap(ctx.Err(), "await ready cancelled")
		case <-c.tick(c.awaitInterval):
		}
		state = c.AuthState(ctx)
	}
	return state, nil
}

// ListPlaylists retrieves every playlist of the current user, tracks
// included, in the account's display order.
func (c *Client) ListPlaylists(ctx context.Context) ([]*playlist.Playlist, error) {
	userID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var simples []spotify.SimplePlaylist
	offset := 0
	const limit = 50
	for {
		var page *spotify.SimplePlaylistPage
		err := c.retry(func() error {
			p, err := c.client.CurrentUsersPlaylists(ctx, spotify.Limit(limit), spotify.Offset(offset))
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, classifyWrap(err, "failed to list playlists")
		}

		simples = append(simples, page.Playlists...)
		if len(page.Playlists) < limit {
			break
		}
		offset += limit
	}

	playlists := make([]*playlist.Playlist, 0, len(simples))
	for _, sp := range simples {
		tracks, err := c.getPlaylistTracks(ctx, sp.ID)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, &playlist.Playlist{
			ID:       string(sp.ID),
			Name:     sp.Name,
			CanEdit:  sp.Owner.ID == userID || sp.Collaborative,
			IsPublic: sp.IsPublic,
			Tracks:   tracks,
		})
	}
	return playlists, nil
}

// GetPlaylist retrieves one playlist with all of its tracks.
// The input may be a playlist ID, URL, or URI.
func (c *Client) GetPlaylist(ctx context.Context, id string) (*playlist.Playlist, error) {
	pid := spotify.ID(ExtractPlaylistID(id))

	var full *spotify.FullPlaylist
	err := c.retry(func() error {
		p, err := c.client.GetPlaylist(ctx, pid)
		if err != nil {
			return err
		}
		full = p
		return nil
	})
	if err != nil {
		return nil, classifyWrap(err, "failed to get playlist")
	}

	tracks, err := c.getPlaylistTracks(ctx, pid)
	if err != nil {
		return nil, err
	}

	userID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	return &playlist.Playlist{
		ID:          string(full.ID),
		Name:        full.Name,
		Description: full.Description,
		CanEdit:     full.Owner.ID == userID || full.Collaborative,
		IsPublic:    full.IsPublic,
		Tracks:      tracks,
	}, nil
}

// CreatePlaylist creates a playlist for the current user and adds the
// given tracks to it.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, trackIDs []string) (*playlist.Playlist, error) {
	userID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var full *spotify.FullPlaylist
	err = c.retry(func() error {
		p, err := c.client.CreatePlaylistForUser(ctx, userID, name, description, false, false)
		if err != nil {
			return err
		}
		full = p
		return nil
	})
	if err != nil {
		return nil, classifyWrap(err, "failed to create playlist")
	}

	if len(trackIDs) > 0 {
		if err := c.AddTracks(ctx, string(full.ID), trackIDs); err != nil {
			return nil, err
		}
	}

	return c.GetPlaylist(ctx, string(full.ID))
}

// AddTracks appends tracks to a playlist. The API takes at most 100
// tracks per request, so larger batches are chunked.
func (c *Client) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	pid := spotify.ID(ExtractPlaylistID(playlistID))
	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(ExtractTrackID(id))
	}

	for i := 0; i < len(ids); i += 100 {
		end := i + 100
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]

		err := c.retry(func() error {
			_, err := c.client.AddTracksToPlaylist(ctx, pid, batch...)
			return err
		})
		if err != nil {
			return classifyWrap(err, "failed to add tracks to playlist")
		}
	}
	return nil
}

// RemoveTrack removes all occurrences of the track from the playlist.
func (c *Client) RemoveTrack(ctx context.Context, playlistID, trackID string) error {
	pid := spotify.ID(ExtractPlaylistID(playlistID))
	tid := spotify.ID(ExtractTrackID(trackID))

	err := c.retry(func() error {
		_, err := c.client.RemoveTracksFromPlaylist(ctx, pid, tid)
		return err
	})
	if err != nil {
		return classifyWrap(err, "failed to remove track from playlist")
	}
	return nil
}

// RenamePlaylist changes the playlist name.
func (c *Client) RenamePlaylist(ctx context.Context, playlistID, name string) error {
	pid := spotify.ID(ExtractPlaylistID(playlistID))

	err := c.retry(func() error {
		return c.client.ChangePlaylistName(ctx, pid, name)
	})
	if err != nil {
		return classifyWrap(err, "failed to rename playlist")
	}
	return nil
}

// DeletePlaylist removes the playlist from the user's library.
// Spotify models deletion as unfollowing.
func (c *Client) DeletePlaylist(ctx context.Context, playlistID string) error {
	pid := spotify.ID(ExtractPlaylistID(playlistID))

	err := c.retry(func() error {
		return c.client.UnfollowPlaylist(ctx, pid)
	})
	if err != nil {
		return classifyWrap(err, "failed to delete playlist")
	}
	return nil
}

// SearchCatalog searches the track catalog.
func (c *Client) SearchCatalog(ctx context.Context, term string, limit int) ([]track.Track, error) {
	if term == "" {
		return nil, errors.New("search term is required")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	var result *spotify.SearchResult
	err := c.retry(func() error {
		r, err := c.client.Search(ctx, term, spotify.SearchTypeTrack, spotify.Limit(limit), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, classifyWrap(err, "failed to search catalog")
	}

	tracks := make([]track.Track, 0, len(result.Tracks.Tracks))
	for _, t := range result.Tracks.Tracks {
		tracks = append(tracks, convertTrack(&t))
	}
	return tracks, nil
}

// currentUserID returns the cached user ID, probing the auth boundary
// on first use.
func (c *Client) currentUserID(ctx context.Context) (string, error) {
	if id := c.cachedUserID(); id != "" {
		return id, nil
	}
	switch state := c.AuthState(ctx); state {
	case remote.AuthReady:
		return c.cachedUserID(), nil
	case remote.AuthDenied:
		return "", remote.NewError(remote.KindUnauthorized, "spotify credentials rejected", nil)
	default:
		return "", remote.NewError(remote.KindNetwork, "spotify authorization not ready", nil)
	}
}

func (c *Client) cachedUserID() string {
	c.userMu.RLock()
	defer c.userMu.RUnlock()
	return c.userID
}

func (c *Client) setUserID(id string) {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	c.userID = id
}

// getPlaylistTracks pages through all items of a playlist.
func (c *Client) getPlaylistTracks(ctx context.Context, pid spotify.ID) ([]track.Track, error) {
	var tracks []track.Track
	offset := 0
	const limit = 100

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, pid,
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, classifyWrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Episodes have no track payload and are skipped.
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				tracks = append(tracks, convertTrack(item.Track.Track))
			}
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}
	return tracks, nil
}

// convertTrack converts a Spotify FullTrack to a domain Track.
func convertTrack(t *spotify.FullTrack) track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var artwork *track.Artwork
	if len(t.Album.Images) > 0 {
		img := t.Album.Images[0]
		artwork = &track.Artwork{
			URL:    img.URL,
			Width:  int(img.Width),
			Height: int(img.Height),
		}
	}

	return track.Track{
		ID:       string(t.ID),
		Name:     t.Name,
		Artists:  artists,
		Album:    t.Album.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
		Artwork:  artwork,
	}
}

// retry retries an operation with linear backoff on retryable failures.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable reports whether an error is worth retrying.
func isRetryable(err error) bool {
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == 429 || se.Status >= 500
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classify maps an SDK or transport error to the remote error taxonomy.
func classify(err error) *remote.Error {
	var se spotify.Error
	if errors.As(err, &se) {
		switch {
		case se.Status == 401:
			return remote.NewError(remote.KindUnauthorized, se.Message, err)
		case se.Status == 403:
			return remote.NewError(remote.KindForbidden, se.Message, err)
		case se.Status == 404:
			return remote.NewError(remote.KindNotFound, se.Message, err)
		case se.Status == 429:
			return remote.NewError(remote.KindRateLimited, se.Message, err)
		default:
			return remote.NewError(remote.KindUnknown, se.Message, err)
		}
	}

	var ue *url.Error
	var ne net.Error
	if errors.As(err, &ue) || errors.As(err, &ne) {
		return remote.NewError(remote.KindNetwork, err.Error(), err)
	}
	return remote.NewError(remote.KindUnknown, err.Error(), err)
}

// classifyWrap classifies and annotates in one step.
func classifyWrap(err error, msg string) error {
	return errors.Wrap(classify(err), msg)
}

// ExtractPlaylistID extracts the playlist ID from an ID, URL, or URI.
func ExtractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// ExtractTrackID extracts the track ID from an ID, URL, or URI.
func ExtractTrackID(input string) string {
	return extractID(input, "track")
}

// extractID handles the spotify:<kind>:<id> URI form and the
// open.spotify.com/<kind>/<id> URL form; anything else is assumed to
// already be an ID.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)

	if strings.HasPrefix(input, "spotify:"+kind+":") {
		return strings.TrimPrefix(input, "spotify:"+kind+":")
	}

	marker := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, marker) {
		parts := strings.Split(input, marker)
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
