// YouTube Data API v3 implementation of [VideoSource]
//
// Response types follow https://developers.google.com/youtube/v3/docs
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/keithriordan/foyer/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultYouTubeBaseURL is the public YouTube Data API root.
const DefaultYouTubeBaseURL string = "https://www.googleapis.com/youtube/v3"

const youtubePageSize = 50

// YouTubeThumbnail is one rendition of a thumbnail.
type YouTubeThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeThumbnails maps a rendition name (default, medium, high, ...) to its image.
type YouTubeThumbnails map[string]YouTubeThumbnail

// Default returns the URL of the "default" rendition, or "" when absent.
func (t YouTubeThumbnails) Default() string {
	return t["default"].URL
}

// YouTubeSnippet holds the fields shared by playlists, playlist items and subscriptions.
type YouTubeSnippet struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	PublishedAt string            `json:"publishedAt"`
	ChannelID   string            `json:"channelId"`
	Thumbnails  YouTubeThumbnails `json:"thumbnails"`
	ResourceID  struct {
		Kind      string `json:"kind"`
		ChannelID string `json:"channelId"`
		VideoID   string `json:"videoId"`
	} `json:"resourceId"`
}

// Published parses PublishedAt, returning the zero time when it is absent or malformed.
func (s YouTubeSnippet) Published() time.Time {
	t, err := time.Parse(time.RFC3339, s.PublishedAt)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// YouTubePlaylist represents a playlist resource.
type YouTubePlaylist struct {
	ID             string         `json:"id"`
	Snippet        YouTubeSnippet `json:"snippet"`
	ContentDetails struct {
		ItemCount int `json:"itemCount"`
	} `json:"contentDetails"`
}

// YouTubeItemStatus is the status part of a playlist item.
type YouTubeItemStatus struct {
	PrivacyStatus string `json:"privacyStatus"`
	UploadStatus  string `json:"uploadStatus"`
	License       string `json:"license"`
}

// YouTubePlaylistItem represents a playlistItem resource. ID is the item id, not the video id.
type YouTubePlaylistItem struct {
	ID             string         `json:"id"`
	Snippet        YouTubeSnippet `json:"snippet"`
	ContentDetails struct {
		VideoID          string `json:"videoId"`
		VideoPublishedAt string `json:"videoPublishedAt"`
	} `json:"contentDetails"`
	Status YouTubeItemStatus `json:"status"`
}

// Available reports whether the item still points at a playable video.
func (i YouTubePlaylistItem) Available() bool {
	switch {
	case i.Snippet.Title == "Deleted video":
		return false
	case i.Snippet.Description == "This video is unavailable":
		return false
	case i.Status.UploadStatus == "rejected":
		return false
	case i.Status.PrivacyStatus == "private":
		return false
	case i.Status.License == "youtube" && i.Status.UploadStatus == "deleted":
		return false
	}
	return true
}

// YouTubeSubscription represents a subscription resource.
type YouTubeSubscription struct {
	ID      string         `json:"id"`
	Snippet YouTubeSnippet `json:"snippet"`
}

type youtubeListResponse[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

type youtubeErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// YouTubeService implements [VideoSource] against the YouTube Data API.
//
// The http client is expected to attach credentials, typically one built by [oauth2.NewClient].
type YouTubeService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewYouTubeService creates a client rooted at baseURL. A nil limiter disables pacing.
func NewYouTubeService(baseURL string, client *http.Client, limiter *rate.Limiter) *YouTubeService {
	if baseURL == "" {
		baseURL = DefaultYouTubeBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &YouTubeService{
		baseURL:    baseURL,
		httpClient: client,
		limiter:    limiter,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

func (y *YouTubeService) doRequest(ctx context.Context, resource string, params url.Values, result any) error {
	if y.limiter != nil {
		if err := y.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	apiURL := y.baseURL + "/" + resource + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: token refresh failed: %v", shared.ErrAuthorizationRequired, retrieveErr)
		}
		return fmt.Errorf("%w: %s request failed: %v", shared.ErrAPIRequest, resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: youtube API returned 401", shared.ErrAuthorizationRequired)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp youtubeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
			return fmt.Errorf("%w: youtube API error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Error.Message)
		}
		return fmt.Errorf("%w: youtube API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// listAll follows nextPageToken until the last page.
func listAll[T any](ctx context.Context, y *YouTubeService, resource string, params url.Values) ([]T, error) {
	var all []T
	for {
		var page youtubeListResponse[T]
		if err := y.doRequest(ctx, resource, params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if page.NextPageToken == "" {
			return all, nil
		}
		params.Set("pageToken", page.NextPageToken)
	}
}

// MyPlaylists calls playlists.list with mine=true.
func (y *YouTubeService) MyPlaylists(ctx context.Context) ([]YouTubePlaylist, error) {
	params := url.Values{
		"part":       {"snippet,contentDetails"},
		"mine":       {"true"},
		"maxResults": {fmt.Sprint(youtubePageSize)},
	}
	return listAll[YouTubePlaylist](ctx, y, "playlists", params)
}

// Playlist calls playlists.list with a single id.
func (y *YouTubeService) Playlist(ctx context.Context, id string) (*YouTubePlaylist, error) {
	params := url.Values{
		"part": {"snippet,contentDetails"},
		"id":   {id},
	}

	var page youtubeListResponse[YouTubePlaylist]
	if err := y.doRequest(ctx, "playlists", params, &page); err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, nil
	}
	return &page.Items[0], nil
}

// PlaylistItems calls playlistItems.list for playlistID.
func (y *YouTubeService) PlaylistItems(ctx context.Context, playlistID string) ([]YouTubePlaylistItem, error) {
	params := url.Values{
		"part":       {"snippet,contentDetails,status"},
		"playlistId": {playlistID},
		"maxResults": {fmt.Sprint(youtubePageSize)},
	}
	return listAll[YouTubePlaylistItem](ctx, y, "playlistItems", params)
}

// Subscriptions calls subscriptions.list with mine=true.
func (y *YouTubeService) Subscriptions(ctx context.Context) ([]YouTubeSubscription, error) {
	params := url.Values{
		"part":       {"snippet"},
		"mine":       {"true"},
		"maxResults": {fmt.Sprint(youtubePageSize)},
		"order":      {"alphabetical"},
	}
	return listAll[YouTubeSubscription](ctx, y, "subscriptions", params)
}
