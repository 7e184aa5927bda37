package repositories

import (
	"database/sql"
	"fmt"

	"github.com/keithriordan/foyer/internal/models"
)

const (
	listColumns     = `l.id, l.title, l.user_id, l.created_at`
	categoryColumns = `c.id, c.name, c.ordering, c.custom_list_id`
	itemColumns     = `i.id, i.name, i.quantity, i.notes, i.completed, i.ordering, i.category_id`
)

// ListRepository persists custom lists and the list_shares join table.
type ListRepository struct {
	db DBTX
}

// NewListRepository creates a new ListRepository with the given database connection
func NewListRepository(db DBTX) *ListRepository {
	return &ListRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *ListRepository) WithTx(tx *sql.Tx) *ListRepository {
	return &ListRepository{db: tx}
}

// Create inserts a list owned by l.UserID.
func (r *ListRepository) Create(l *models.CustomList) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	l.CreatedAt = now()
	result, err := r.db.Exec(
		`INSERT INTO custom_lists (title, user_id, created_at) VALUES (?, ?, ?)`,
		l.Title, l.UserID, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert list: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read list id: %w", err)
	}
	l.ID = id
	return nil
}

// Get retrieves a list by ID
func (r *ListRepository) Get(id int64) (*models.CustomList, error) {
	row := r.db.QueryRow(`SELECT `+listColumns+` FROM custom_lists l WHERE l.id = ?`, id)
	return scanList(row, id)
}

// Delete removes a list with its categories, items and shares.
func (r *ListRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM custom_lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	return requireAffected(result, "list", id)
}

// OwnedBy returns the lists userID owns, oldest first.
func (r *ListRepository) OwnedBy(userID int64) ([]*models.CustomList, error) {
	return r.query(`SELECT `+listColumns+` FROM custom_lists l WHERE l.user_id = ? ORDER BY l.created_at ASC, l.id ASC`, userID)
}

// SharedWith returns the lists other users have shared with userID.
func (r *ListRepository) SharedWith(userID int64) ([]*models.CustomList, error) {
	return r.query(
		`SELECT `+listColumns+`
		FROM custom_lists l
		JOIN list_shares s ON s.list_id = l.id
		WHERE s.user_id = ?
		ORDER BY l.created_at ASC, l.id ASC`,
		userID,
	)
}

// Share grants userID access to listID. It reports false when the share already existed.
func (r *ListRepository) Share(listID, userID int64) (bool, error) {
	result, err := r.db.Exec(`INSERT OR IGNORE INTO list_shares (list_id, user_id) VALUES (?, ?)`, listID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to share list: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// IsSharedWith reports whether listID is shared with userID.
func (r *ListRepository) IsSharedWith(listID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM list_shares WHERE list_id = ? AND user_id = ?)`, listID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check share: %w", err)
	}
	return exists, nil
}

// HasAccess reports whether userID owns listID or has it shared with them.
func (r *ListRepository) HasAccess(listID, userID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM custom_lists WHERE id = ? AND user_id = ?)
			OR EXISTS(SELECT 1 FROM list_shares WHERE list_id = ? AND user_id = ?)`,
		listID, userID, listID, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check list access: %w", err)
	}
	return ok, nil
}

// SharedUsers returns the users a list is shared with, by username.
func (r *ListRepository) SharedUsers(listID int64) ([]*models.User, error) {
	rows, err := r.db.Query(
		`SELECT u.id, u.username, u.email, u.password_hash, u.created_at
		FROM users u
		JOIN list_shares s ON s.user_id = u.id
		WHERE s.list_id = ?
		ORDER BY u.username ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query shared users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows, nil)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return users, nil
}

func (r *ListRepository) query(query string, args ...any) ([]*models.CustomList, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer rows.Close()

	var lists []*models.CustomList
	for rows.Next() {
		l, err := scanList(rows, nil)
		if err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lists, nil
}

func scanList(s scanner, id any) (*models.CustomList, error) {
	var l models.CustomList
	if err := s.Scan(&l.ID, &l.Title, &l.UserID, &l.CreatedAt); err != nil {
		return nil, notFound(err, "list", id)
	}
	return &l, nil
}

// CategoryRepository persists list categories.
type CategoryRepository struct {
	db DBTX
}

// NewCategoryRepository creates a new CategoryRepository with the given database connection
func NewCategoryRepository(db DBTX) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *CategoryRepository) WithTx(tx *sql.Tx) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

// NextOrdering returns one past the highest ordering in listID, or 1 for an empty list.
func (r *CategoryRepository) NextOrdering(listID int64) (int, error) {
	var next int
	err := r.db.QueryRow(`SELECT COALESCE(MAX(ordering), 0) + 1 FROM list_categories WHERE custom_list_id = ?`, listID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute category ordering: %w", err)
	}
	return next, nil
}

// Create inserts a category with the ordering already set on c.
func (r *CategoryRepository) Create(c *models.ListCategory) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.Exec(
		`INSERT INTO list_categories (name, ordering, custom_list_id) VALUES (?, ?, ?)`,
		c.Name, c.Ordering, c.CustomListID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read category id: %w", err)
	}
	c.ID = id
	return nil
}

// GetInList retrieves a category only if it belongs to listID.
func (r *CategoryRepository) GetInList(id, listID int64) (*models.ListCategory, error) {
	row := r.db.QueryRow(`SELECT `+categoryColumns+` FROM list_categories c WHERE c.id = ? AND c.custom_list_id = ?`, id, listID)
	return scanCategory(row, id)
}

// ByList returns a list's categories in display order.
func (r *CategoryRepository) ByList(listID int64) ([]*models.ListCategory, error) {
	rows, err := r.db.Query(
		`SELECT `+categoryColumns+` FROM list_categories c WHERE c.custom_list_id = ? ORDER BY c.ordering ASC, c.id ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.ListCategory
	for rows.Next() {
		c, err := scanCategory(rows, nil)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

// SetOrdering moves a category to ordering.
func (r *CategoryRepository) SetOrdering(id int64, ordering int) error {
	result, err := r.db.Exec(`UPDATE list_categories SET ordering = ? WHERE id = ?`, ordering, id)
	if err != nil {
		return fmt.Errorf("failed to reorder category: %w", err)
	}
	return requireAffected(result, "category", id)
}

// Delete removes a category and its items.
func (r *CategoryRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM list_categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return requireAffected(result, "category", id)
}

func scanCategory(s scanner, id any) (*models.ListCategory, error) {
	var c models.ListCategory
	if err := s.Scan(&c.ID, &c.Name, &c.Ordering, &c.CustomListID); err != nil {
		return nil, notFound(err, "category", id)
	}
	return &c, nil
}

// ItemRepository persists list items.
type ItemRepository struct {
	db DBTX
}

// NewItemRepository creates a new ItemRepository with the given database connection
func NewItemRepository(db DBTX) *ItemRepository {
	return &ItemRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *ItemRepository) WithTx(tx *sql.Tx) *ItemRepository {
	return &ItemRepository{db: tx}
}

// NextOrdering returns one past the highest ordering in categoryID, or 1 for an empty category.
func (r *ItemRepository) NextOrdering(categoryID int64) (int, error) {
	var next int
	err := r.db.QueryRow(`SELECT COALESCE(MAX(ordering), 0) + 1 FROM list_items WHERE category_id = ?`, categoryID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute item ordering: %w", err)
	}
	return next, nil
}

// Create inserts an item with the ordering already set on i.
func (r *ItemRepository) Create(i *models.ListItem) error {
	if err := i.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.Exec(
		`INSERT INTO list_items (name, quantity, notes, completed, ordering, category_id) VALUES (?, ?, ?, ?, ?, ?)`,
		i.Name, nullString(i.Quantity), nullString(i.Notes), i.Completed, i.Ordering, i.CategoryID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read item id: %w", err)
	}
	i.ID = id
	return nil
}

// GetInList retrieves an item only if its category belongs to listID.
func (r *ItemRepository) GetInList(id, listID int64) (*models.ListItem, error) {
	row := r.db.QueryRow(
		`SELECT `+itemColumns+`
		FROM list_items i
		JOIN list_categories c ON c.id = i.category_id
		WHERE i.id = ? AND c.custom_list_id = ?`,
		id, listID,
	)
	return scanItem(row, id)
}

// ByList returns every item of a list ordered by category then item ordering.
func (r *ItemRepository) ByList(listID int64) ([]*models.ListItem, error) {
	rows, err := r.db.Query(
		`SELECT `+itemColumns+`
		FROM list_items i
		JOIN list_categories c ON c.id = i.category_id
		WHERE c.custom_list_id = ?
		ORDER BY c.ordering ASC, c.id ASC, i.ordering ASC, i.id ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*models.ListItem
	for rows.Next() {
		item, err := scanItem(rows, nil)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// Toggle flips an item's completed flag and returns the new value.
func (r *ItemRepository) Toggle(id int64) (bool, error) {
	result, err := r.db.Exec(`UPDATE list_items SET completed = NOT completed WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to toggle item: %w", err)
	}
	if err := requireAffected(result, "item", id); err != nil {
		return false, err
	}

	var completed bool
	if err := r.db.QueryRow(`SELECT completed FROM list_items WHERE id = ?`, id).Scan(&completed); err != nil {
		return false, notFound(err, "item", id)
	}
	return completed, nil
}

// Move sets an item's ordering and category.
func (r *ItemRepository) Move(id int64, ordering int, categoryID int64) error {
	result, err := r.db.Exec(`UPDATE list_items SET ordering = ?, category_id = ? WHERE id = ?`, ordering, categoryID, id)
	if err != nil {
		return fmt.Errorf("failed to move item: %w", err)
	}
	return requireAffected(result, "item", id)
}

// Delete removes an item by ID
func (r *ItemRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM list_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return requireAffected(result, "item", id)
}

func scanItem(s scanner, id any) (*models.ListItem, error) {
	var (
		i               models.ListItem
		quantity, notes sql.NullString
	)
	if err := s.Scan(&i.ID, &i.Name, &quantity, &notes, &i.Completed, &i.Ordering, &i.CategoryID); err != nil {
		return nil, notFound(err, "item", id)
	}
	i.Quantity = stringPtr(quantity)
	i.Notes = stringPtr(notes)
	return &i, nil
}
