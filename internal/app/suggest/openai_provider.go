package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/rmiyoshi/setlist/internal/domain/track"
)

// ChatClient is the interface for the chat-completions backend.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIProviderConfig holds the provider settings.
type OpenAIProviderConfig struct {
	APIKey  string `mapstructure:"api_key" validate:"required"`
	Model   string `mapstructure:"model" default:"gpt-4o-mini"`
	BaseURL string `mapstructure:"base_url"`
}

// DecodeOpenAISettings decodes and validates provider settings.
// A missing API key maps to ErrNotConfigured.
func DecodeOpenAISettings(settings map[string]any) (*OpenAIProviderConfig, error) {
	var cfg OpenAIProviderConfig
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.WithSecondaryError(ErrNotConfigured, err)
	}
	return &cfg, nil
}

// OpenAIProvider implements Suggester on top of a chat-completions client.
// Prompts ask for strict JSON so responses parse without heuristics; a
// reply wrapped in a markdown fence is unwrapped before parsing.
type OpenAIProvider struct {
	client ChatClient
}

// NewOpenAIProvider creates a provider over the given chat client.
func NewOpenAIProvider(client ChatClient) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

// Name returns the provider name (used in config).
func (p *OpenAIProvider) Name() string {
	return "openai"
}

const systemPrompt = "You are a music curation assistant. " +
	"Answer with a single JSON object and nothing else: no prose, no markdown fence."

// Suggest builds the prompt for the mode, invokes the model, and parses
// the reply into a Result.
func (p *OpenAIProvider) Suggest(ctx context.Context, mode Mode, tracks []track.Track, contextHint string) (*Result, error) {
	if len(tracks) == 0 {
		return nil, errors.New("no tracks to suggest from")
	}

	user := buildPrompt(mode, tracks, contextHint)
	reply, err := p.client.Complete(ctx, systemPrompt, user)
	if err != nil {
		return nil, errors.Wrap(err, "suggestion request failed")
	}

	result, err := parseReply(mode, reply, tracks)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse suggestion reply")
	}

	zlog.Info().Msgf("suggestion complete: mode=%s names=%d groupings=%d recommendations=%d",
		mode, len(result.Names), len(result.Groupings), len(result.Recommendations))
	return result, nil
}

// buildPrompt renders the track list and the mode-specific instruction.
func buildPrompt(mode Mode, tracks []track.Track, contextHint string) string {
	var b strings.Builder
	b.WriteString("Tracks:\n")
	for _, t := range tracks {
		fmt.Fprintf(&b, "- id=%s title=%q artist=%q album=%q\n", t.ID, t.Name, t.Artist(), t.Album)
	}
	if contextHint != "" {
		fmt.Fprintf(&b, "Context: %s\n", contextHint)
	}

	switch mode {
	case ModeName:
		b.WriteString("\nSuggest 5 short, evocative playlist names for these tracks. " +
			`Reply as {"names": ["..."]}.`)
	case ModeGroup:
		b.WriteString("\nGroup these tracks into 2-5 coherent playlists by mood, genre or era. " +
			"Every track id must appear in exactly one group. " +
			`Reply as {"groups": [{"playlist_name": "...", "track_ids": ["..."]}]}.`)
	case ModeRecommend:
		b.WriteString("\nRecommend up to 10 real songs that fit alongside these tracks, " +
			"excluding the tracks themselves. " +
			`Reply as {"recommendations": [{"title": "...", "artist": "..."}]}.`)
	}
	return b.String()
}

// replyPayload is the union of the JSON shapes the prompts ask for.
type replyPayload struct {
	Names  []string `json:"names"`
	Groups []struct {
		PlaylistName string   `json:"playlist_name"`
		TrackIDs     []string `json:"track_ids"`
	} `json:"groups"`
	Recommendations []struct {
		Title  string `json:"title"`
		Artist string `json:"artist"`
	} `json:"recommendations"`
}

// parseReply decodes the model reply for the requested mode.
// Grouping track IDs are checked against the submitted tracks; unknown IDs
// are dropped with a warning rather than failing the suggestion.
func parseReply(mode Mode, reply string, tracks []track.Track) (*Result, error) {
	var payload replyPayload
	if err := json.Unmarshal([]byte(stripFence(reply)), &payload); err != nil {
		return nil, errors.Wrap(err, "reply is not valid JSON")
	}

	result := &Result{}
	switch mode {
	case ModeName:
		if len(payload.Names) == 0 {
			return nil, errors.New("reply contains no names")
		}
		result.Names = payload.Names

	case ModeGroup:
		if len(payload.Groups) == 0 {
			return nil, errors.New("reply contains no groups")
		}
		known := make(map[string]bool, len(tracks))
		for _, t := range tracks {
			known[t.ID] = true
		}
		for _, g := range payload.Groups {
			ids := make([]string, 0, len(g.TrackIDs))
			for _, id := range g.TrackIDs {
				if !known[id] {
					zlog.Warn().Msgf("dropping unknown track id in grouping: id=%s group=%q", id, g.PlaylistName)
					continue
				}
				ids = append(ids, id)
			}
			if g.PlaylistName == "" || len(ids) == 0 {
				continue
			}
			result.Groupings = append(result.Groupings, Grouping{PlaylistName: g.PlaylistName, TrackIDs: ids})
		}
		if len(result.Groupings) == 0 {
			return nil, errors.New("reply contains no usable groups")
		}

	case ModeRecommend:
		if len(payload.Recommendations) == 0 {
			return nil, errors.New("reply contains no recommendations")
		}
		for _, r := range payload.Recommendations {
			if r.Title == "" {
				continue
			}
			result.Recommendations = append(result.Recommendations, track.Track{
				Name:    r.Title,
				Artists: []string{r.Artist},
			})
		}
	}
	return result, nil
}

// stripFence removes a surrounding markdown code fence, if present.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
