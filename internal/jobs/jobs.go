// Package jobs tracks job listings and captures a full-page screenshot of each listing into object storage.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/repositories"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
)

// Manager creates and reads jobs. Screenshots and Store may be nil, in which case jobs are saved without an image.
type Manager struct {
	jobs        *repositories.JobRepository
	screenshots services.ScreenshotSource
	store       services.BlobStore
	bucket      string
	logger      *log.Logger
}

// NewManager creates a Manager that uploads screenshots to bucket.
func NewManager(db *sql.DB, screenshots services.ScreenshotSource, store services.BlobStore, bucket string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{
		jobs:        repositories.NewJobRepository(db),
		screenshots: screenshots,
		store:       store,
		bucket:      bucket,
		logger:      shared.WithLogger(logger, "component", "jobwizard"),
	}
}

// Create saves a job posted now, then tries to attach a screenshot of its listing.
//
// A screenshot failure is logged and the job is returned without a listing image.
func (m *Manager) Create(ctx context.Context, title, companyName, listingURL string) (*models.Job, error) {
	job := &models.Job{
		Title:       strings.TrimSpace(title),
		CompanyName: strings.TrimSpace(companyName),
		ListingURL:  strings.TrimSpace(listingURL),
		PostedDate:  time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := m.jobs.Create(job); err != nil {
		return nil, err
	}

	if err := m.Screenshot(ctx, job); err != nil {
		m.logger.Error("screenshot failed", "job", job.ID, "url", job.ListingURL, "err", err)
	}
	return job, nil
}

// Screenshot captures job's listing page, uploads it as a JPEG and records the object key on the job.
func (m *Manager) Screenshot(ctx context.Context, job *models.Job) error {
	if m.screenshots == nil || m.store == nil {
		return fmt.Errorf("%w: screenshot capture is not configured", shared.ErrServiceUnavailable)
	}
	if m.bucket == "" {
		return fmt.Errorf("%w: jobwizard bucket", shared.ErrMissingConfig)
	}

	body, err := m.screenshots.Capture(ctx, job.ListingURL)
	if err != nil {
		return err
	}
	defer body.Close()

	key := shared.GenerateKey("jpeg")
	if err := m.store.Put(ctx, m.bucket, key, body, services.ContentTypeFor("jpeg")); err != nil {
		return err
	}

	if err := m.jobs.SetListingImage(job.ID, key); err != nil {
		return err
	}
	job.ListingImage = key
	m.logger.Debug("stored screenshot", "job", job.ID, "key", key)
	return nil
}

// List returns every job, newest first.
func (m *Manager) List() ([]*models.Job, error) {
	return m.jobs.List(nil)
}

// Get returns the job with id.
func (m *Manager) Get(id int64) (*models.Job, error) {
	return m.jobs.Get(id)
}

// ImageURL returns the public URL of job's screenshot, or "" when it has none.
func (m *Manager) ImageURL(job *models.Job) string {
	if job.ListingImage == "" || m.store == nil {
		return ""
	}
	return m.store.PublicURL(m.bucket, job.ListingImage)
}
