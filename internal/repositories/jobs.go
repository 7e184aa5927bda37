package repositories

import (
	"fmt"

	"github.com/keithriordan/foyer/internal/models"
)

var _ models.Repository[*models.Job, int64] = (*JobRepository)(nil)

const jobColumns = `id, title, company_name, listing_url, listing_image, posted_date`

// JobRepository implements [models.Repository] for [models.Job] listings.
type JobRepository struct {
	db DBTX
}

// NewJobRepository creates a new [JobRepository] with the given database connection
func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a job, defaulting PostedDate to now.
func (r *JobRepository) Create(job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if job.PostedDate.IsZero() {
		job.PostedDate = now()
	}

	result, err := r.db.Exec(
		`INSERT INTO jobs (title, company_name, listing_url, listing_image, posted_date) VALUES (?, ?, ?, ?, ?)`,
		job.Title, job.CompanyName, job.ListingURL, job.ListingImage, job.PostedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read job id: %w", err)
	}
	job.ID = id
	return nil
}

// Get retrieves a job by ID
func (r *JobRepository) Get(id int64) (*models.Job, error) {
	return scanJob(r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id), id)
}

// Update modifies all mutable job fields.
func (r *JobRepository) Update(job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.Exec(
		`UPDATE jobs SET title = ?, company_name = ?, listing_url = ?, listing_image = ? WHERE id = ?`,
		job.Title, job.CompanyName, job.ListingURL, job.ListingImage, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return requireAffected(result, "job", job.ID)
}

// SetListingImage records the object key of a job's screenshot.
func (r *JobRepository) SetListingImage(id int64, key string) error {
	result, err := r.db.Exec(`UPDATE jobs SET listing_image = ? WHERE id = ?`, key, id)
	if err != nil {
		return fmt.Errorf("failed to update listing image: %w", err)
	}
	return requireAffected(result, "job", id)
}

// Delete removes a job by ID
func (r *JobRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return requireAffected(result, "job", id)
}

// List retrieves jobs newest first, optionally filtered by "company_name".
func (r *JobRepository) List(criteria map[string]any) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1 = 1`
	args := []any{}

	if company, ok := criteria["company_name"].(string); ok && company != "" {
		query += " AND company_name = ?"
		args = append(args, company)
	}
	query += " ORDER BY posted_date DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows, nil)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return jobs, nil
}

func scanJob(s scanner, id any) (*models.Job, error) {
	var j models.Job
	if err := s.Scan(&j.ID, &j.Title, &j.CompanyName, &j.ListingURL, &j.ListingImage, &j.PostedDate); err != nil {
		return nil, notFound(err, "job", id)
	}
	return &j, nil
}
