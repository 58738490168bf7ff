// Package main provides the setlist CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/rmiyoshi/setlist/internal/app/remote"
	"github.com/rmiyoshi/setlist/internal/app/session"
	"github.com/rmiyoshi/setlist/internal/app/suggest"
	"github.com/rmiyoshi/setlist/internal/domain/mutation"
	"github.com/rmiyoshi/setlist/internal/infra/config"
	"github.com/rmiyoshi/setlist/internal/infra/logger"
	"github.com/rmiyoshi/setlist/internal/infra/persist"
	"github.com/rmiyoshi/setlist/internal/infra/spotify"
)

var (
	app        = kingpin.New("setlist", "Local-first playlist editor with AI suggestions")
	configPath = app.Flag("config", "Path to config file").Default("config.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	fetchCmd = app.Command("fetch", "Pull all playlists from the remote account")

	listCmd = app.Command("list", "List local playlists")

	showCmd = app.Command("show", "Show a playlist's tracks")
	showID  = showCmd.Arg("playlist", "Playlist ID or URL").Required().String()

	addCmd   = app.Command("add", "Search the catalog and add the best match")
	addID    = addCmd.Arg("playlist", "Playlist ID or URL").Required().String()
	addQuery = addCmd.Arg("query", "Search query").Required().Strings()

	removeCmd   = app.Command("remove", "Remove a track from a playlist")
	removeID    = removeCmd.Arg("playlist", "Playlist ID or URL").Required().String()
	removeTrack = removeCmd.Arg("track", "Track ID or URL").Required().String()

	moveCmd   = app.Command("move", "Move a track between positions")
	moveID    = moveCmd.Arg("playlist", "Playlist ID or URL").Required().String()
	moveTrack = moveCmd.Arg("track", "Track ID or URL").Required().String()
	moveFrom  = moveCmd.Arg("from", "Source index").Required().Int()
	moveTo    = moveCmd.Arg("to", "Target index").Required().Int()

	renameCmd  = app.Command("rename", "Rename a playlist")
	renameID   = renameCmd.Arg("playlist", "Playlist ID or URL").Required().String()
	renameName = renameCmd.Arg("name", "New name").Required().String()

	createCmd  = app.Command("create", "Create a local playlist")
	createName = createCmd.Arg("name", "Playlist name").Required().String()

	deleteCmd = app.Command("delete", "Delete a playlist locally")
	deleteID  = deleteCmd.Arg("playlist", "Playlist ID or URL").Required().String()

	undoCmd = app.Command("undo", "Undo the last committed edit")
	redoCmd = app.Command("redo", "Redo the last undone edit")

	statusCmd = app.Command("status", "Show dirty playlists and history position")

	pullCmd = app.Command("pull", "Overwrite a local playlist with the remote state")
	pullID  = pullCmd.Arg("playlist", "Playlist ID or URL").Required().String()

	pushCmd = app.Command("push", "Apply local edits to the remote service")
	pushID  = pushCmd.Arg("playlist", "Playlist ID or URL").Required().String()

	revertCmd = app.Command("revert", "Discard local edits by re-pulling")
	revertID  = revertCmd.Arg("playlist", "Playlist ID or URL").Required().String()

	searchCmd   = app.Command("search", "Search the track catalog")
	searchLimit = searchCmd.Flag("limit", "Maximum results").Default("10").Int()
	searchQuery = searchCmd.Arg("query", "Search query").Required().Strings()

	suggestCmd     = app.Command("suggest", "Ask the AI engine for suggestions")
	suggestMode    = suggestCmd.Arg("mode", "One of: names, groups, recommend").Required().Enum("names", "groups", "recommend")
	suggestID      = suggestCmd.Arg("playlist", "Playlist ID or URL").Required().String()
	suggestContext = suggestCmd.Flag("context", "Free-form hint for the model").String()
	suggestApply   = suggestCmd.Flag("apply", "Apply grouping suggestions as local playlists").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg, command); err != nil {
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(1)
	}
}

// run wires the session and dispatches the parsed command. A separate
// function ensures defers execute before the exit code is decided.
func run(cfg *config.Config, command string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	library, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create Spotify client")
	}

	suggester, err := suggest.NewFromConfig(cfg)
	if err != nil {
		if errors.Is(err, suggest.ErrNotConfigured) {
			zlog.Debug().Msg("suggester not configured; suggest commands disabled")
			suggester = nil
		} else {
			return errors.Wrap(err, "failed to create suggester")
		}
	}

	blobs, err := persist.Open(cfg.Storage.Path)
	if err != nil {
		return errors.Wrap(err, "failed to open local storage")
	}
	defer blobs.Close()

	mgr, err := session.NewManager(session.Options{
		Library:   library,
		Suggester: suggester,
		Blobs:     blobs,
		BlobKey:   cfg.Storage.Key,
		MaxDepth:  cfg.History.MaxDepth,
	})
	if err != nil {
		return errors.Wrap(err, "failed to start session")
	}

	switch command {
	case fetchCmd.FullCommand():
		n, err := mgr.PullAll(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Fetched %d playlist(s)\n", n)
		return nil

	case listCmd.FullCommand():
		return runList(mgr)

	case showCmd.FullCommand():
		return runShow(mgr, spotify.ExtractPlaylistID(*showID))

	case addCmd.FullCommand():
		return runAdd(ctx, mgr, spotify.ExtractPlaylistID(*addID), strings.Join(*addQuery, " "))

	case removeCmd.FullCommand():
		mgr.ApplyMutations(spotify.ExtractPlaylistID(*removeID),
			[]mutation.Mutation{mutation.Remove(spotify.ExtractTrackID(*removeTrack))})
		return nil

	case moveCmd.FullCommand():
		mgr.ApplyMutations(spotify.ExtractPlaylistID(*moveID),
			[]mutation.Mutation{mutation.Move(spotify.ExtractTrackID(*moveTrack), *moveFrom, *moveTo)})
		return nil

	case renameCmd.FullCommand():
		mgr.ApplyMutations(spotify.ExtractPlaylistID(*renameID),
			[]mutation.Mutation{mutation.Rename(*renameName)})
		return nil

	case createCmd.FullCommand():
		p := mgr.CreatePlaylist(*createName)
		fmt.Printf("Created %q (%s)\n", p.Name, p.ID)
		return nil

	case deleteCmd.FullCommand():
		mgr.DeletePlaylist(spotify.ExtractPlaylistID(*deleteID))
		return nil

	case undoCmd.FullCommand():
		if !mgr.Undo() {
			fmt.Println("Nothing to undo")
		}
		return nil

	case redoCmd.FullCommand():
		if !mgr.Redo() {
			fmt.Println("Nothing to redo")
		}
		return nil

	case statusCmd.FullCommand():
		return runStatus(mgr)

	case pullCmd.FullCommand():
		return mgr.Pull(ctx, spotify.ExtractPlaylistID(*pullID))

	case pushCmd.FullCommand():
		return mgr.Push(ctx, spotify.ExtractPlaylistID(*pushID))

	case revertCmd.FullCommand():
		return mgr.Revert(ctx, spotify.ExtractPlaylistID(*revertID))

	case searchCmd.FullCommand():
		return runSearch(ctx, mgr, strings.Join(*searchQuery, " "), *searchLimit)

	case suggestCmd.FullCommand():
		return runSuggest(ctx, mgr)
	}
	return nil
}

func runList(mgr *session.Manager) error {
	order := mgr.ListOrder()
	if len(order) == 0 {
		fmt.Println("No playlists. Run `setlist fetch` to pull your account.")
		return nil
	}
	for _, id := range order {
		p, ok := mgr.GetPlaylist(id)
		if !ok {
			continue
		}
		marker := " "
		if mgr.GetDirty(id) {
			marker = "*"
		}
		fmt.Printf("%s %-36s %-30q %d track(s)\n", marker, p.ID, p.Name, len(p.Tracks))
	}
	return nil
}

func runShow(mgr *session.Manager, id string) error {
	p, ok := mgr.GetPlaylist(id)
	if !ok {
		return errors.Newf("unknown playlist %s", id)
	}
	fmt.Printf("%s (%s)\n", p.Name, p.ID)
	if p.Description != "" {
		fmt.Println(p.Description)
	}
	for i, t := range p.Tracks {
		fmt.Printf("%3d. %s - %s [%s]\n", i, t.Name, t.Artist(), t.ID)
	}
	return nil
}

func runAdd(ctx context.Context, mgr *session.Manager, playlistID, query string) error {
	tracks, err := mgr.Search(ctx, query, 1)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return errors.Newf("no catalog match for %q", query)
	}
	mgr.ApplyMutations(playlistID, []mutation.Mutation{mutation.Add(tracks[0])})
	fmt.Printf("Added %s - %s\n", tracks[0].Name, tracks[0].Artist())
	return nil
}

func runStatus(mgr *session.Manager) error {
	dirty := 0
	for _, id := range mgr.ListOrder() {
		if mgr.GetDirty(id) {
			p, _ := mgr.GetPlaylist(id)
			fmt.Printf("* %s (%s) has unsynced edits\n", p.Name, p.ID)
			dirty++
		}
	}
	if dirty == 0 {
		fmt.Println("All playlists in sync")
	}
	fmt.Printf("undo available: %v, redo available: %v\n", mgr.CanUndo(), mgr.CanRedo())
	return nil
}

func runSearch(ctx context.Context, mgr *session.Manager, query string, limit int) error {
	tracks, err := mgr.Search(ctx, query, limit)
	if err != nil {
		return err
	}
	for _, t := range tracks {
		fmt.Printf("%-24s %s - %s (%s)\n", t.ID, t.Name, t.Artist(), t.Album)
	}
	return nil
}

func runSuggest(ctx context.Context, mgr *session.Manager) error {
	var mode suggest.Mode
	switch *suggestMode {
	case "names":
		mode = suggest.ModeName
	case "groups":
		mode = suggest.ModeGroup
	case "recommend":
		mode = suggest.ModeRecommend
	}

	id := spotify.ExtractPlaylistID(*suggestID)
	result, err := mgr.Suggest(ctx, mode, id, *suggestContext)
	if err != nil {
		return err
	}

	switch mode {
	case suggest.ModeName:
		for _, name := range result.Names {
			fmt.Println(name)
		}
	case suggest.ModeGroup:
		for _, g := range result.Groupings {
			fmt.Printf("%s: %d track(s)\n", g.PlaylistName, len(g.TrackIDs))
		}
		if *suggestApply {
			created, err := mgr.ApplyGroupings(id, result.Groupings)
			if err != nil {
				return err
			}
			fmt.Printf("Created %d local playlist(s)\n", len(created))
		}
	case suggest.ModeRecommend:
		for _, t := range result.Recommendations {
			fmt.Printf("%s - %s\n", t.Name, t.Artist())
		}
	}
	return nil
}

// userMessage maps the error taxonomy to the retry guidance shown to the
// user.
func userMessage(err error) string {
	if errors.Is(err, remote.ErrSyncInProgress) {
		return "A sync for this playlist is already in progress; try again when it finishes."
	}
	if errors.Is(err, suggest.ErrNotConfigured) {
		return "AI suggestions are not configured; set OPENAI_API_KEY or suggester.settings.api_key."
	}
	switch remote.KindOf(err) {
	case remote.KindUnauthorized:
		return "Spotify authorization failed; run setlist-auth to refresh your credentials."
	case remote.KindForbidden:
		return "Spotify rejected the operation; this may require a Premium subscription or playlist ownership."
	case remote.KindRateLimited:
		return "Spotify is rate-limiting requests; wait a moment and retry."
	case remote.KindNetwork:
		return "Network error talking to Spotify; check your connection and retry."
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
