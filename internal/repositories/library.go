package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/keithriordan/foyer/internal/models"
)

var (
	_ models.Repository[*models.Playlist, string] = (*PlaylistRepository)(nil)
	_ models.Repository[*models.Video, string]    = (*VideoRepository)(nil)
)

const (
	playlistColumns = `id, title, description, published_at, created_at, updated_at, thumbnail_url`
	videoColumns    = `id, playlist_id, video_url_id, title, description, thumbnail_url, embed_url, watched, published_at, created_at, updated_at`
)

// PlaylistRepository persists playlists mirrored from YouTube, keyed by the platform id.
type PlaylistRepository struct {
	db DBTX
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db DBTX) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *PlaylistRepository) WithTx(tx *sql.Tx) *PlaylistRepository {
	return &PlaylistRepository{db: tx}
}

// Create inserts a playlist. Zero CreatedAt and UpdatedAt are set to now.
func (r *PlaylistRepository) Create(p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = ts
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = ts
	}

	_, err := r.db.Exec(
		`INSERT INTO playlists (`+playlistColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, nullTime(p.PublishedAt), p.CreatedAt, p.UpdatedAt, p.ThumbnailURL,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}
	return nil
}

// Get retrieves a playlist by its platform id
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	return scanPlaylist(r.db.QueryRow(`SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id), id)
}

// Update writes every mirrored field and UpdatedAt.
func (r *PlaylistRepository) Update(p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.Exec(
		`UPDATE playlists SET title = ?, description = ?, published_at = ?, thumbnail_url = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Description, nullTime(p.PublishedAt), p.ThumbnailURL, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return requireAffected(result, "playlist", p.ID)
}

// Touch sets a playlist's updated_at without changing its fields.
func (r *PlaylistRepository) Touch(id string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE playlists SET updated_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("failed to touch playlist: %w", err)
	}
	return requireAffected(result, "playlist", id)
}

// Delete removes a playlist and its videos.
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return requireAffected(result, "playlist", id)
}

// List retrieves playlists ordered by title.
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists`
	args := []any{}

	if title, ok := criteria["title"].(string); ok && title != "" {
		query += " WHERE title LIKE ?"
		args = append(args, "%"+title+"%")
	}
	query += " ORDER BY title COLLATE NOCASE ASC, id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows, nil)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

func scanPlaylist(s scanner, id any) (*models.Playlist, error) {
	var (
		p         models.Playlist
		published sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Description, &published, &p.CreatedAt, &p.UpdatedAt, &p.ThumbnailURL); err != nil {
		return nil, notFound(err, "playlist", id)
	}
	p.PublishedAt = published.Time
	return &p, nil
}

// VideoRepository persists playlist items mirrored from YouTube.
type VideoRepository struct {
	db DBTX
}

// NewVideoRepository creates a new VideoRepository with the given database connection
func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *VideoRepository) WithTx(tx *sql.Tx) *VideoRepository {
	return &VideoRepository{db: tx}
}

// Create inserts a video. Zero CreatedAt and UpdatedAt are set to now.
func (r *VideoRepository) Create(v *models.Video) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = ts
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = ts
	}

	_, err := r.db.Exec(
		`INSERT INTO videos (`+videoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.PlaylistID, v.VideoURLID, v.Title, v.Description, v.ThumbnailURL, v.EmbedURL,
		v.Watched, nullTime(v.PublishedAt), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

// Get retrieves a video by its playlist item id
func (r *VideoRepository) Get(id string) (*models.Video, error) {
	return scanVideo(r.db.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id), id)
}

// Update writes every mirrored field and UpdatedAt. The watched flag is left alone.
func (r *VideoRepository) Update(v *models.Video) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.Exec(
		`UPDATE videos
		SET playlist_id = ?, video_url_id = ?, title = ?, description = ?, thumbnail_url = ?, embed_url = ?, published_at = ?, updated_at = ?
		WHERE id = ?`,
		v.PlaylistID, v.VideoURLID, v.Title, v.Description, v.ThumbnailURL, v.EmbedURL, nullTime(v.PublishedAt), v.UpdatedAt, v.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	return requireAffected(result, "video", v.ID)
}

// ToggleWatched flips a video's watched flag and returns the new value.
func (r *VideoRepository) ToggleWatched(id string) (bool, error) {
	result, err := r.db.Exec(`UPDATE videos SET watched = NOT watched WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to toggle watched: %w", err)
	}
	if err := requireAffected(result, "video", id); err != nil {
		return false, err
	}

	var watched bool
	if err := r.db.QueryRow(`SELECT watched FROM videos WHERE id = ?`, id).Scan(&watched); err != nil {
		return false, notFound(err, "video", id)
	}
	return watched, nil
}

// Delete removes a video by ID
func (r *VideoRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return requireAffected(result, "video", id)
}

// List retrieves videos by publish date, optionally filtered by "playlist_id" or "watched".
func (r *VideoRepository) List(criteria map[string]any) ([]*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE 1 = 1`
	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}
	if watched, ok := criteria["watched"].(bool); ok {
		query += " AND watched = ?"
		args = append(args, watched)
	}
	query += " ORDER BY published_at ASC, id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows, nil)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return videos, nil
}

func scanVideo(s scanner, id any) (*models.Video, error) {
	var (
		v         models.Video
		published sql.NullTime
	)
	err := s.Scan(&v.ID, &v.PlaylistID, &v.VideoURLID, &v.Title, &v.Description, &v.ThumbnailURL, &v.EmbedURL,
		&v.Watched, &published, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "video", id)
	}
	v.PublishedAt = published.Time
	return &v, nil
}

// CredentialRepository stores one YouTube OAuth token per user.
type CredentialRepository struct {
	db DBTX
}

// NewCredentialRepository creates a new CredentialRepository with the given database connection
func NewCredentialRepository(db DBTX) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Save inserts or replaces the token stored for c.UserID.
func (r *CredentialRepository) Save(c *models.YouTubeCredential) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	c.UpdatedAt = now()
	_, err := r.db.Exec(
		`INSERT INTO youtube_credentials (user_id, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN youtube_credentials.refresh_token ELSE excluded.refresh_token END,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at`,
		c.UserID, c.AccessToken, c.RefreshToken, c.TokenType, nullTime(c.Expiry), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Get retrieves the token stored for userID.
func (r *CredentialRepository) Get(userID int64) (*models.YouTubeCredential, error) {
	var (
		c      models.YouTubeCredential
		expiry sql.NullTime
	)
	err := r.db.QueryRow(
		`SELECT user_id, access_token, refresh_token, token_type, expiry, updated_at FROM youtube_credentials WHERE user_id = ?`,
		userID,
	).Scan(&c.UserID, &c.AccessToken, &c.RefreshToken, &c.TokenType, &expiry, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "credentials for user", userID)
	}
	c.Expiry = expiry.Time
	return &c, nil
}

// Delete removes the token stored for userID.
func (r *CredentialRepository) Delete(userID int64) error {
	result, err := r.db.Exec(`DELETE FROM youtube_credentials WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return requireAffected(result, "credentials for user", userID)
}
