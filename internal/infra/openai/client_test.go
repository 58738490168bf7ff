package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "API key is required")

	c, err := New(Config{APIKey: "sk-test"})
	assert.NoError(t, err)
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, "gpt-4o-mini", c.model)

	c, err = New(Config{APIKey: "sk-test", BaseURL: "http://localhost:1234/v1", Model: "gpt-4o"})
	assert.NoError(t, err)
	assert.Equal(t, "http://localhost:1234/v1", c.baseURL)
	assert.Equal(t, "gpt-4o", c.model)
}

func TestClient_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"content": "hello back"}}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	assert.NoError(t, err)

	reply, err := c.Complete(context.Background(), "be brief", "say hello")
	assert.NoError(t, err)
	assert.Equal(t, "hello back", reply)

	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be brief", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error payload", 401, `{"error": {"message": "invalid key", "type": "auth"}}`},
		{"unexpected status", 502, `{}`},
		{"no choices", 200, `{"choices": []}`},
		{"not json", 200, `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
			assert.NoError(t, err)

			_, err = c.Complete(context.Background(), "s", "u")
			assert.Error(t, err)
		})
	}
}
