package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/shared"
)

// Subscription is one exported channel subscription.
type Subscription struct {
	ChannelID    string    `json:"channel_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url"`
	PublishedAt  time.Time `json:"published_at"`
}

// SubscriptionExport is the file written by [SyncEngine.ExportSubscriptions].
type SubscriptionExport struct {
	ExportedAt         time.Time      `json:"exported_at"`
	TotalSubscriptions int            `json:"total_subscriptions"`
	Subscriptions      []Subscription `json:"subscriptions"`
}

// ExportSubscriptions writes the user's channel subscriptions to path as pretty JSON.
func (e *SyncEngine) ExportSubscriptions(ctx context.Context, user models.User, path string, progress chan<- ProgressUpdate) (*SubscriptionExport, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: subscriptions path", shared.ErrMissingConfig)
	}

	source, err := e.connector.Connect(ctx, user)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchSubscriptionsUpdate())
	subs, err := source.Subscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}

	export := &SubscriptionExport{
		ExportedAt:         time.Now().UTC(),
		TotalSubscriptions: len(subs),
		Subscriptions:      make([]Subscription, 0, len(subs)),
	}
	for _, s := range subs {
		channelID := s.Snippet.ResourceID.ChannelID
		if channelID == "" {
			channelID = s.Snippet.ChannelID
		}
		export.Subscriptions = append(export.Subscriptions, Subscription{
			ChannelID:    channelID,
			Title:        s.Snippet.Title,
			Description:  s.Snippet.Description,
			ThumbnailURL: s.Snippet.Thumbnails.Default(),
			PublishedAt:  s.Snippet.Published(),
		})
	}

	data, err := shared.MarshalJSON(export, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subscriptions: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write subscriptions: %w", err)
	}

	e.logger.Info("exported subscriptions", "user", user.Email, "count", len(subs), "path", path)
	return export, nil
}
