// Package lists implements custom lists: their categories and items, sharing between users and drag-and-drop reordering.
//
// Every operation takes the acting [models.User]. A user has access to a list when they own it or it has been
// shared with them. Sharing and deleting a list need ownership. Every other mutation needs access, and the
// category or item it names must belong to the list it was addressed through.
package lists

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/repositories"
	"github.com/keithriordan/foyer/internal/shared"
)

// Manager runs list use-cases over the list, category, item and user repositories.
type Manager struct {
	db         *sql.DB
	lists      *repositories.ListRepository
	categories *repositories.CategoryRepository
	items      *repositories.ItemRepository
	users      *repositories.UserRepository
	logger     *log.Logger
}

// NewManager creates a Manager backed by db.
func NewManager(db *sql.DB, logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{
		db:         db,
		lists:      repositories.NewListRepository(db),
		categories: repositories.NewCategoryRepository(db),
		items:      repositories.NewItemRepository(db),
		users:      repositories.NewUserRepository(db),
		logger:     shared.WithLogger(logger, "component", "lists"),
	}
}

// Overview holds the lists a user sees on their lists page.
type Overview struct {
	Owned  []*models.CustomList
	Shared []*models.CustomList
}

// CategoryView is a category with its items in display order.
type CategoryView struct {
	Category *models.ListCategory
	Items    []*models.ListItem
}

// View is a list with its categories, items and the users it is shared with.
type View struct {
	List       *models.CustomList
	IsOwner    bool
	Categories []CategoryView
	SharedWith []*models.User
}

// NewItem describes an item to add. Blank Quantity and Notes are stored as NULL.
type NewItem struct {
	CategoryID int64
	Name       string
	Quantity   string
	Notes      string
}

// ItemMove is one entry of an item reorder batch. Nil fields keep the current value.
type ItemMove struct {
	ID         int64  `json:"id"`
	Ordering   *int   `json:"ordering"`
	CategoryID *int64 `json:"category_id"`
}

// CategoryMove is one entry of a category reorder batch. A nil Ordering keeps the current value.
type CategoryMove struct {
	ID       int64 `json:"id"`
	Ordering *int  `json:"ordering"`
}

// authorize loads listID and checks the actor may act on it.
func (m *Manager) authorize(actor models.User, listID int64, ownerOnly bool) (*models.CustomList, error) {
	list, err := m.lists.Get(listID)
	if err != nil {
		return nil, err
	}
	if list.UserID == actor.ID {
		return list, nil
	}
	if ownerOnly {
		return nil, fmt.Errorf("%w: list %d is not owned by %s", shared.ErrForbidden, listID, actor.Email)
	}

	ok, err := m.lists.IsSharedWith(listID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no access to list %d", shared.ErrForbidden, listID)
	}
	return list, nil
}

// Authorize returns listID when actor owns it or has it shared with them. A missing list
// is [shared.ErrNotFound], an inaccessible one [shared.ErrForbidden].
func (m *Manager) Authorize(actor models.User, listID int64) (*models.CustomList, error) {
	return m.authorize(actor, listID, false)
}

// CanAccess reports whether actor owns listID or has it shared with them.
func (m *Manager) CanAccess(actor models.User, listID int64) (bool, error) {
	return m.lists.HasAccess(listID, actor.ID)
}

// CreateList creates a list owned by actor.
func (m *Manager) CreateList(actor models.User, title string) (*models.CustomList, error) {
	list := &models.CustomList{Title: strings.TrimSpace(title), UserID: actor.ID}
	if err := list.Validate(); err != nil {
		return nil, err
	}
	if err := m.lists.Create(list); err != nil {
		return nil, err
	}
	return list, nil
}

// Overview returns the lists actor owns and the lists shared with actor.
func (m *Manager) Overview(actor models.User) (*Overview, error) {
	owned, err := m.lists.OwnedBy(actor.ID)
	if err != nil {
		return nil, err
	}
	sharedLists, err := m.lists.SharedWith(actor.ID)
	if err != nil {
		return nil, err
	}
	return &Overview{Owned: owned, Shared: sharedLists}, nil
}

// Share grants the user with email access to listID and returns that user.
//
// Failures are [shared.ErrForbidden], [shared.ErrInvalidInput], [shared.ErrUserNotFound],
// [shared.ErrShareWithSelf] and [shared.ErrAlreadyShared], checked in that order.
func (m *Manager) Share(actor models.User, listID int64, email string) (*models.User, error) {
	list, err := m.authorize(actor, listID, true)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", shared.ErrInvalidInput)
	}

	target, err := m.users.GetByEmail(email)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, email)
	} else if err != nil {
		return nil, err
	}

	if target.ID == actor.ID {
		return nil, shared.ErrShareWithSelf
	}

	inserted, err := m.lists.Share(list.ID, target.ID)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return target, fmt.Errorf("%w: %s", shared.ErrAlreadyShared, email)
	}

	m.logger.Info("list shared", "list", list.ID, "owner", actor.ID, "with", target.ID)
	return target, nil
}

// AddCategory appends a category to the end of listID.
func (m *Manager) AddCategory(actor models.User, listID int64, name string) (*models.ListCategory, error) {
	if _, err := m.authorize(actor, listID, false); err != nil {
		return nil, err
	}

	category := &models.ListCategory{Name: strings.TrimSpace(name), CustomListID: listID}
	if err := category.Validate(); err != nil {
		return nil, err
	}

	err := repositories.WithinTx(m.db, func(tx *sql.Tx) error {
		categories := m.categories.WithTx(tx)
		next, err := categories.NextOrdering(listID)
		if err != nil {
			return err
		}
		category.Ordering = next
		return categories.Create(category)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// AddItem appends an item to the end of a category of listID.
func (m *Manager) AddItem(actor models.User, listID int64, in NewItem) (*models.ListItem, error) {
	if _, err := m.authorize(actor, listID, false); err != nil {
		return nil, err
	}

	item := &models.ListItem{
		Name:       strings.TrimSpace(in.Name),
		Quantity:   models.NullableString(in.Quantity),
		Notes:      models.NullableString(in.Notes),
		CategoryID: in.CategoryID,
	}
	if item.Name == "" {
		return nil, fmt.Errorf("%w: item name is required", shared.ErrInvalidInput)
	}

	err := repositories.WithinTx(m.db, func(tx *sql.Tx) error {
		if _, err := m.categories.WithTx(tx).GetInList(in.CategoryID, listID); err != nil {
			return err
		}

		items := m.items.WithTx(tx)
		next, err := items.NextOrdering(in.CategoryID)
		if err != nil {
			return err
		}
		item.Ordering = next
		return items.Create(item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ToggleItem flips an item's completed flag and returns the new value.
func (m *Manager) ToggleItem(actor models.User, listID, itemID int64) (bool, error) {
	if _, err := m.authorize(actor, listID, false); err != nil {
		return false, err
	}

	var completed bool
	err := repositories.WithinTx(m.db, func(tx *sql.Tx) error {
		items := m.items.WithTx(tx)
		if _, err := items.GetInList(itemID, listID); err != nil {
			return err
		}
		var err error
		completed, err = items.Toggle(itemID)
		return err
	})
	return completed, err
}

// ReorderItems applies moves in one transaction and returns how many were applied.
//
// A move is skipped when its item is not in listID or its destination category is not in listID.
func (m *Manager) ReorderItems(actor models.User, listID int64, moves []ItemMove) (int, error) {
	if _, err := m.authorize(actor, listID, false); err != nil {
		return 0, err
	}

	applied := 0
	err := repositories.WithinTx(m.db, func(tx *sql.Tx) error {
		items := m.items.WithTx(tx)
		categories := m.categories.WithTx(tx)

		for _, mv := range moves {
			item, err := items.GetInList(mv.ID, listID)
			if errors.Is(err, shared.ErrNotFound) {
				continue
			} else if err != nil {
				return err
			}

			ordering, categoryID := item.Ordering, item.CategoryID
			if mv.Ordering != nil {
				ordering = *mv.Ordering
			}
			if mv.CategoryID != nil && *mv.CategoryID != 0 {
				if _, err := categories.GetInList(*mv.CategoryID, listID); errors.Is(err, shared.ErrNotFound) {
					continue
				} else if err != nil {
					return err
				}
				categoryID = *mv.CategoryID
			}

			if err := items.Move(item.ID, ordering, categoryID); err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// ReorderCategories applies moves in one transaction, skipping categories outside listID.
func (m *Manager) ReorderCategories(actor models.User, listID int64, moves []CategoryMove) (int, error) {
	if _, err := m.authorize(actor, listID, false); err != nil {
		return 0, err
	}

	applied := 0
	err := repositories.WithinTx(m.db, func(tx *sql.Tx) error {
		categories := m.categories.WithTx(tx)
		for _, mv := range moves {
			category, err := categories.GetInList(mv.ID, listID)
			if errors.Is(err, shared.ErrNotFound) {
				continue
			} else if err != nil {
				return err
			}
			if mv.Ordering == nil {
				continue
			}
			if err := categories.SetOrdering(category.ID, *mv.Ordering); err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// DeleteList removes a list the actor owns, with everything in it.
func (m *Manager) DeleteList(actor models.User, listID int64) error {
	if _, err := m.authorize(actor, listID, true); err != nil {
		return err
	}
	if err := m.lists.Delete(listID); err != nil {
		return err
	}
	m.logger.Info("list deleted", "list", listID, "owner", actor.ID)
	return nil
}

// DeleteCategory removes a category of listID and its items.
func (m *Manager) DeleteCategory(actor models.User, listID, categoryID int64) error {
	if _, err := m.authorize(actor, listID, false); err != nil {
		return err
	}
	return repositories.WithinTx(m.db, func(tx *sql.Tx) error {
		categories := m.categories.WithTx(tx)
		if _, err := categories.GetInList(categoryID, listID); err != nil {
			return err
		}
		return categories.Delete(categoryID)
	})
}

// DeleteItem removes an item of listID.
func (m *Manager) DeleteItem(actor models.User, listID, itemID int64) error {
	if _, err := m.authorize(actor, listID, false); err != nil {
		return err
	}
	return repositories.WithinTx(m.db, func(tx *sql.Tx) error {
		items := m.items.WithTx(tx)
		if _, err := items.GetInList(itemID, listID); err != nil {
			return err
		}
		return items.Delete(itemID)
	})
}

// View loads listID with its categories and items in display order.
func (m *Manager) View(actor models.User, listID int64) (*View, error) {
	list, err := m.authorize(actor, listID, false)
	if err != nil {
		return nil, err
	}

	categories, err := m.categories.ByList(listID)
	if err != nil {
		return nil, err
	}
	items, err := m.items.ByList(listID)
	if err != nil {
		return nil, err
	}
	sharedWith, err := m.lists.SharedUsers(listID)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[int64][]*models.ListItem, len(categories))
	for _, item := range items {
		byCategory[item.CategoryID] = append(byCategory[item.CategoryID], item)
	}

	view := &View{
		List:       list,
		IsOwner:    list.UserID == actor.ID,
		Categories: make([]CategoryView, 0, len(categories)),
		SharedWith: sharedWith,
	}
	for _, c := range categories {
		view.Categories = append(view.Categories, CategoryView{Category: c, Items: byCategory[c.ID]})
	}
	return view, nil
}

// DebugItem is the JSON shape of an item in [Debug].
type DebugItem struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Quantity  *string `json:"quantity"`
	Notes     *string `json:"notes"`
	Completed bool    `json:"completed"`
	Ordering  int     `json:"ordering"`
}

// DebugCategory is the JSON shape of a category in [Debug].
type DebugCategory struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Ordering int         `json:"ordering"`
	Items    []DebugItem `json:"items"`
}

// Debug is a JSON dump of a list.
type Debug struct {
	ListTitle  string          `json:"list_title"`
	Categories []DebugCategory `json:"categories"`
	SharedWith []string        `json:"shared_with"`
}

// Debug returns the JSON dump served by the list debug route.
func (m *Manager) Debug(actor models.User, listID int64) (*Debug, error) {
	view, err := m.View(actor, listID)
	if err != nil {
		return nil, err
	}

	dump := &Debug{
		ListTitle:  view.List.Title,
		Categories: make([]DebugCategory, 0, len(view.Categories)),
		SharedWith: make([]string, 0, len(view.SharedWith)),
	}
	for _, cv := range view.Categories {
		dc := DebugCategory{ID: cv.Category.ID, Name: cv.Category.Name, Ordering: cv.Category.Ordering, Items: []DebugItem{}}
		for _, i := range cv.Items {
			dc.Items = append(dc.Items, DebugItem{
				ID: i.ID, Name: i.Name, Quantity: i.Quantity, Notes: i.Notes, Completed: i.Completed, Ordering: i.Ordering,
			})
		}
		dump.Categories = append(dump.Categories, dc)
	}
	for _, u := range view.SharedWith {
		dump.SharedWith = append(dump.SharedWith, u.Email)
	}
	return dump, nil
}
