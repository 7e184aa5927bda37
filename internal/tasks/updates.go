package tasks

import (
	"fmt"

	"github.com/keithriordan/foyer/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	FetchVideos
	Commit
	FetchSubscriptions
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchVideos:
		return "fetch_videos"
	case Commit:
		return "commit"
	case FetchSubscriptions:
		return "fetch_subscriptions"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func fetchingPlaylistsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    0,
		Total:   0,
		Message: "Fetching your playlists from YouTube...",
	}
}

func fetchConfiguredUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching configured playlist (%s)...", id),
	}
}

func fetchVideosUpdate(step, total int, pl services.YouTubePlaylist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchVideos,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching videos: %s", step, total, pl.Snippet.Title),
		Data:    pl,
	}
}

func commitUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Commit,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Saving %s", step, total, title),
	}
}

func committedUpdate(res *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Commit,
		Step:    res.PlaylistsSeen,
		Total:   res.PlaylistsSeen,
		Message: res.String(),
		Data:    res,
	}
}

func fetchSubscriptionsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSubscriptions,
		Message: "Fetching subscriptions from YouTube...",
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
