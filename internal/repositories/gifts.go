package repositories

import (
	"database/sql"
	"fmt"

	"github.com/keithriordan/foyer/internal/models"
)

var _ models.Repository[*models.Gift, int64] = (*GiftRepository)(nil)

const giftColumns = `id, title, body, image_url, timestamp, user_id`

// GiftRepository implements [models.Repository] for wishlist [models.Gift] persistence.
type GiftRepository struct {
	db DBTX
}

// NewGiftRepository creates a new [GiftRepository] with the given database connection
func NewGiftRepository(db DBTX) *GiftRepository {
	return &GiftRepository{db: db}
}

// Create inserts a gift. An empty ImageURL is stored as NULL.
func (r *GiftRepository) Create(gift *models.Gift) error {
	if err := gift.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if gift.Timestamp.IsZero() {
		gift.Timestamp = now()
	}

	result, err := r.db.Exec(
		`INSERT INTO gifts (title, body, image_url, timestamp, user_id) VALUES (?, ?, ?, ?, ?)`,
		gift.Title, gift.Body, imageURL(gift.ImageURL), gift.Timestamp, gift.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert gift: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read gift id: %w", err)
	}
	gift.ID = id
	return nil
}

// Get retrieves a gift by ID
func (r *GiftRepository) Get(id int64) (*models.Gift, error) {
	return scanGift(r.db.QueryRow(`SELECT `+giftColumns+` FROM gifts WHERE id = ?`, id), id)
}

// Update modifies a gift's title, body and image.
func (r *GiftRepository) Update(gift *models.Gift) error {
	if err := gift.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.Exec(
		`UPDATE gifts SET title = ?, body = ?, image_url = ? WHERE id = ?`,
		gift.Title, gift.Body, imageURL(gift.ImageURL), gift.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update gift: %w", err)
	}
	return requireAffected(result, "gift", gift.ID)
}

// Delete removes a gift by ID
func (r *GiftRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM gifts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete gift: %w", err)
	}
	return requireAffected(result, "gift", id)
}

// List retrieves gifts newest first, optionally filtered by "user_id".
func (r *GiftRepository) List(criteria map[string]any) ([]*models.Gift, error) {
	query := `SELECT ` + giftColumns + ` FROM gifts WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["user_id"].(int64); ok && userID != 0 {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY timestamp DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gifts: %w", err)
	}
	defer rows.Close()

	var gifts []*models.Gift
	for rows.Next() {
		gift, err := scanGift(rows, nil)
		if err != nil {
			return nil, err
		}
		gifts = append(gifts, gift)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return gifts, nil
}

func imageURL(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanGift(s scanner, id any) (*models.Gift, error) {
	var (
		g   models.Gift
		img sql.NullString
	)
	if err := s.Scan(&g.ID, &g.Title, &g.Body, &img, &g.Timestamp, &g.UserID); err != nil {
		return nil, notFound(err, "gift", id)
	}
	g.ImageURL = img.String
	return &g, nil
}
