package tasks

import (
	"errors"
	"time"

	"github.com/keithriordan/foyer/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics counts sync runs and the rows they wrote.
type SyncMetrics struct {
	Runs      *prometheus.CounterVec
	Playlists *prometheus.CounterVec
	Videos    *prometheus.CounterVec
	Duration  prometheus.Histogram
}

// NewSyncMetrics registers the sync collectors with reg. A nil reg builds unregistered collectors.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	factory := promauto.With(reg)
	return &SyncMetrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foyer",
			Subsystem: "library",
			Name:      "sync_runs_total",
			Help:      "Library sync runs by outcome.",
		}, []string{"outcome"}),
		Playlists: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foyer",
			Subsystem: "library",
			Name:      "sync_playlists_total",
			Help:      "Playlists written by library syncs.",
		}, []string{"action"}),
		Videos: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foyer",
			Subsystem: "library",
			Name:      "sync_videos_total",
			Help:      "Videos written or skipped by library syncs.",
		}, []string{"action"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "foyer",
			Subsystem: "library",
			Name:      "sync_duration_seconds",
			Help:      "Wall time of library sync runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

func syncOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, shared.ErrAuthorizationRequired):
		return "unauthorized"
	default:
		return "error"
	}
}

func (m *SyncMetrics) observe(res *SyncResult, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.Runs.WithLabelValues(syncOutcome(err)).Inc()
	m.Duration.Observe(elapsed.Seconds())
	if err != nil || res == nil {
		return
	}

	m.Playlists.WithLabelValues("created").Add(float64(res.PlaylistsCreated))
	m.Playlists.WithLabelValues("updated").Add(float64(res.PlaylistsUpdated))
	m.Videos.WithLabelValues("created").Add(float64(res.VideosCreated))
	m.Videos.WithLabelValues("updated").Add(float64(res.VideosUpdated))
	m.Videos.WithLabelValues("skipped").Add(float64(res.VideosSkipped))
}
