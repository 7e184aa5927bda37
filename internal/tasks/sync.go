package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/repositories"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
)

// SyncResult summarizes one sync run.
type SyncResult struct {
	PlaylistsSeen    int
	PlaylistsCreated int
	PlaylistsUpdated int
	VideosSeen       int
	VideosCreated    int
	VideosUpdated    int
	VideosSkipped    int
}

func (r *SyncResult) String() string {
	return fmt.Sprintf(
		"Synced %d playlists (%d new, %d updated) and %d videos (%d new, %d updated, %d skipped)",
		r.PlaylistsSeen, r.PlaylistsCreated, r.PlaylistsUpdated,
		r.VideosSeen, r.VideosCreated, r.VideosUpdated, r.VideosSkipped,
	)
}

// SyncEngine mirrors a user's YouTube playlists into the local library.
type SyncEngine struct {
	db              *sql.DB
	connector       Connector
	playlistIDsPath string
	logger          *log.Logger
	metrics         *SyncMetrics
}

// NewSyncEngine creates an engine that writes to db and reads extra playlist ids from playlistIDsPath.
func NewSyncEngine(db *sql.DB, connector Connector, playlistIDsPath string, logger *log.Logger) *SyncEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncEngine{
		db:              db,
		connector:       connector,
		playlistIDsPath: playlistIDsPath,
		logger:          shared.WithLogger(logger, "component", "sync"),
	}
}

// WithMetrics attaches m to the engine and returns it.
func (e *SyncEngine) WithMetrics(m *SyncMetrics) *SyncEngine {
	e.metrics = m
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

type fetchedPlaylist struct {
	playlist services.YouTubePlaylist
	items    []services.YouTubePlaylistItem
}

// Run fetches every playlist and item for user, then upserts them in a single transaction.
//
// Nothing is written when any fetch fails. Authorization failures wrap [shared.ErrAuthorizationRequired].
func (e *SyncEngine) Run(ctx context.Context, user models.User, progress chan<- ProgressUpdate) (res *SyncResult, err error) {
	start := time.Now()
	defer func() {
		e.metrics.observe(res, err, time.Since(start))
	}()

	source, err := e.connector.Connect(ctx, user)
	if err != nil {
		return nil, err
	}

	fetched, err := e.fetch(ctx, source, progress)
	if err != nil {
		return nil, err
	}

	res = &SyncResult{PlaylistsSeen: len(fetched)}
	at := time.Now().UTC().Truncate(time.Microsecond)

	err = repositories.WithinTx(e.db, func(tx *sql.Tx) error {
		playlists := repositories.NewPlaylistRepository(tx)
		videos := repositories.NewVideoRepository(tx)

		for i, f := range fetched {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.sendProgress(progress, commitUpdate(i+1, len(fetched), f.playlist.Snippet.Title))
			if err := applyPlaylist(playlists, videos, f, res, at); err != nil {
				return fmt.Errorf("playlist %s: %w", f.playlist.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync rolled back: %w", err)
	}

	e.logger.Info("sync complete", "user", user.Email, "playlists", res.PlaylistsSeen,
		"videos_created", res.VideosCreated, "videos_updated", res.VideosUpdated, "skipped", res.VideosSkipped)
	e.sendProgress(progress, committedUpdate(res))
	return res, nil
}

func (e *SyncEngine) fetch(ctx context.Context, source services.VideoSource, progress chan<- ProgressUpdate) ([]fetchedPlaylist, error) {
	e.sendProgress(progress, fetchingPlaylistsUpdate())

	mine, err := source.MyPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlists: %w", err)
	}

	ids, err := LoadPlaylistIDs(e.playlistIDsPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(mine)+len(ids))
	playlists := make([]services.YouTubePlaylist, 0, len(mine)+len(ids))
	for _, p := range mine {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		playlists = append(playlists, p)
	}

	for i, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		e.sendProgress(progress, fetchConfiguredUpdate(i+1, len(ids), id))
		p, err := source.Playlist(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch playlist %s: %w", id, err)
		}
		if p == nil {
			e.logger.Warn("configured playlist not found", "id", id)
			continue
		}
		playlists = append(playlists, *p)
	}

	fetched := make([]fetchedPlaylist, 0, len(playlists))
	for i, p := range playlists {
		e.sendProgress(progress, fetchVideosUpdate(i+1, len(playlists), p))
		items, err := source.PlaylistItems(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch items for playlist %s: %w", p.ID, err)
		}
		fetched = append(fetched, fetchedPlaylist{playlist: p, items: items})
	}
	return fetched, nil
}

// applyPlaylist upserts one playlist and its available items, touching the playlist when any item changed.
func applyPlaylist(playlists *repositories.PlaylistRepository, videos *repositories.VideoRepository, f fetchedPlaylist, res *SyncResult, at time.Time) error {
	incoming := playlistFromAPI(f.playlist)
	touched := false

	existing, err := playlists.Get(incoming.ID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		incoming.CreatedAt, incoming.UpdatedAt = at, at
		if err := playlists.Create(incoming); err != nil {
			return err
		}
		res.PlaylistsCreated++
		touched = true
	case err != nil:
		return err
	case !samePlaylist(existing, incoming):
		incoming.CreatedAt, incoming.UpdatedAt = existing.CreatedAt, at
		if err := playlists.Update(incoming); err != nil {
			return err
		}
		res.PlaylistsUpdated++
		touched = true
	}

	videosChanged := false
	for _, item := range f.items {
		res.VideosSeen++
		if !item.Available() {
			res.VideosSkipped++
			continue
		}

		changed, err := applyVideo(videos, videoFromAPI(incoming.ID, item), res, at)
		if err != nil {
			return err
		}
		videosChanged = videosChanged || changed
	}

	if videosChanged && !touched {
		return playlists.Touch(incoming.ID, at)
	}
	return nil
}

func applyVideo(videos *repositories.VideoRepository, incoming *models.Video, res *SyncResult, at time.Time) (bool, error) {
	existing, err := videos.Get(incoming.ID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		incoming.CreatedAt, incoming.UpdatedAt = at, at
		if err := videos.Create(incoming); err != nil {
			return false, err
		}
		res.VideosCreated++
		return true, nil
	case err != nil:
		return false, err
	case sameVideo(existing, incoming):
		return false, nil
	}

	incoming.CreatedAt, incoming.UpdatedAt = existing.CreatedAt, at
	if err := videos.Update(incoming); err != nil {
		return false, err
	}
	res.VideosUpdated++
	return true, nil
}

func playlistFromAPI(p services.YouTubePlaylist) *models.Playlist {
	return &models.Playlist{
		ID:           p.ID,
		Title:        p.Snippet.Title,
		Description:  p.Snippet.Description,
		PublishedAt:  p.Snippet.Published(),
		ThumbnailURL: p.Snippet.Thumbnails.Default(),
	}
}

func videoFromAPI(playlistID string, item services.YouTubePlaylistItem) *models.Video {
	videoID := item.ContentDetails.VideoID
	if videoID == "" {
		videoID = item.Snippet.ResourceID.VideoID
	}
	return &models.Video{
		ID:           item.ID,
		PlaylistID:   playlistID,
		VideoURLID:   videoID,
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		ThumbnailURL: item.Snippet.Thumbnails.Default(),
		EmbedURL:     models.EmbedURL(videoID),
		PublishedAt:  item.Snippet.Published(),
	}
}

func samePlaylist(a, b *models.Playlist) bool {
	return a.Title == b.Title &&
		a.Description == b.Description &&
		a.PublishedAt.Equal(b.PublishedAt) &&
		a.ThumbnailURL == b.ThumbnailURL
}

func sameVideo(a, b *models.Video) bool {
	return a.Title == b.Title &&
		a.Description == b.Description &&
		a.PublishedAt.Equal(b.PublishedAt) &&
		a.ThumbnailURL == b.ThumbnailURL &&
		a.VideoURLID == b.VideoURLID &&
		a.EmbedURL == b.EmbedURL
}

// LoadPlaylistIDs reads a JSON array of playlist ids. A blank path or missing file yields no ids.
func LoadPlaylistIDs(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read playlist ids: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: playlist ids in %s: %v", shared.ErrInvalidConfig, path, err)
	}
	return ids, nil
}
