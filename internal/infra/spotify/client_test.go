package spotify

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/zmb3/spotify/v2"

	"github.com/rmiyoshi/setlist/internal/app/remote"
)

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare id", "37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
		{"uri", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
		{"url", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
		{"url with query", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123", "37i9dQZF1DXcBWIGoYBM5M"},
		{"url with trailing slash", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M/", "37i9dQZF1DXcBWIGoYBM5M"},
		{"surrounding whitespace", "  37i9dQZF1DXcBWIGoYBM5M  ", "37i9dQZF1DXcBWIGoYBM5M"},
		{"track uri passes through", "spotify:track:4iV5W9uYEdYUVa79Axb7Rh", "spotify:track:4iV5W9uYEdYUVa79Axb7Rh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractPlaylistID(tt.input))
		})
	}
}

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare id", "4iV5W9uYEdYUVa79Axb7Rh", "4iV5W9uYEdYUVa79Axb7Rh"},
		{"uri", "spotify:track:4iV5W9uYEdYUVa79Axb7Rh", "4iV5W9uYEdYUVa79Axb7Rh"},
		{"url with query", "https://open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh?si=xyz", "4iV5W9uYEdYUVa79Axb7Rh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractTrackID(tt.input))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected remote.Kind
	}{
		{"401", spotify.Error{Status: 401, Message: "invalid token"}, remote.KindUnauthorized},
		{"403", spotify.Error{Status: 403, Message: "premium required"}, remote.KindForbidden},
		{"404", spotify.Error{Status: 404, Message: "not found"}, remote.KindNotFound},
		{"429", spotify.Error{Status: 429, Message: "too many requests"}, remote.KindRateLimited},
		{"500", spotify.Error{Status: 500, Message: "server error"}, remote.KindUnknown},
		{"wrapped sdk error", errors.Wrap(spotify.Error{Status: 401}, "get playlist"), remote.KindUnauthorized},
		{"transport error", &url.Error{Op: "Get", URL: "https://api.spotify.com", Err: errors.New("connection refused")}, remote.KindNetwork},
		{"plain error", errors.New("something else"), remote.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := classify(tt.err)
			assert.Equal(t, tt.expected, re.Kind)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"429", spotify.Error{Status: 429}, true},
		{"503", spotify.Error{Status: 503}, true},
		{"401", spotify.Error{Status: 401}, false},
		{"404", spotify.Error{Status: 404}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestRetry(t *testing.T) {
	c := &Client{maxRetries: 3, retryDelay: 0}

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := c.retry(func() error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries retryable failures", func(t *testing.T) {
		calls := 0
		err := c.retry(func() error {
			calls++
			if calls < 3 {
				return spotify.Error{Status: 503}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := c.retry(func() error {
			calls++
			return spotify.Error{Status: 429}
		})
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry terminal failures", func(t *testing.T) {
		calls := 0
		err := c.retry(func() error {
			calls++
			return spotify.Error{Status: 404}
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	assert.Error(t, err)
}

func TestNew_Market(t *testing.T) {
	creds := Config{ClientID: "id", ClientSecret: "secret", RefreshToken: "token"}

	c, err := New(context.Background(), creds)
	assert.NoError(t, err)
	assert.Equal(t, "US", c.market, "market defaults when unset")

	creds.Market = "JP"
	c, err = New(context.Background(), creds)
	assert.NoError(t, err)
	assert.Equal(t, "JP", c.market)
}

func TestUserIDCache(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "", c.cachedUserID())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.setUserID("user-1")
			_ = c.cachedUserID()
		}()
	}
	wg.Wait()
	assert.Equal(t, "user-1", c.cachedUserID())
}
