package services

import (
	"context"
	"io"
)

// VideoSource reads playlist metadata for one authorized account.
type VideoSource interface {
	// MyPlaylists returns every playlist owned by the account, following page tokens.
	MyPlaylists(ctx context.Context) ([]YouTubePlaylist, error)

	// Playlist returns one playlist by id. A missing playlist yields a nil result and no error.
	Playlist(ctx context.Context, id string) (*YouTubePlaylist, error)

	// PlaylistItems returns every item of a playlist, following page tokens.
	PlaylistItems(ctx context.Context, playlistID string) ([]YouTubePlaylistItem, error)

	// Subscriptions returns the channels the account subscribes to.
	Subscriptions(ctx context.Context) ([]YouTubeSubscription, error)
}

// BlobStore stores objects in named buckets.
type BlobStore interface {
	// Put streams body to bucket/key.
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error

	// PublicURL returns the address an object is served from.
	PublicURL(bucket, key string) string
}

// Message is an outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ScreenshotSource renders a web page to an image.
type ScreenshotSource interface {
	// Capture returns the rendered image of pageURL. The caller closes the reader.
	Capture(ctx context.Context, pageURL string) (io.ReadCloser, error)
}
