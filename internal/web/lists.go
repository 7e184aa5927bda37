package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/keithriordan/foyer/internal/lists"
	"github.com/keithriordan/foyer/internal/server"
	"github.com/keithriordan/foyer/internal/shared"
)

const noAccess = "You don't have access to this list."

func listURL(id int64) string {
	return fmt.Sprintf("/lists/%d", id)
}

// listFailed handles a list manager error on an HTML route.
func (a *App) listFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrForbidden) {
		a.flash(w, r, server.FlashDanger, noAccess)
		a.redirect(w, r, "/lists")
		return
	}
	a.fail(w, r, err)
}

type listsData struct {
	Overview *lists.Overview
	Form     ListForm
}

func (a *App) listsIndex(w http.ResponseWriter, r *http.Request) {
	overview, err := a.Lists.Overview(a.user(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.render(w, r, http.StatusOK, "lists", view{Title: "Lists", Data: listsData{Overview: overview}})
}

func (a *App) createList(w http.ResponseWriter, r *http.Request) {
	form := ListForm{Title: field(r, "title")}
	if errs := form.Validate(); len(errs) > 0 {
		a.flash(w, r, server.FlashDanger, "Form validation failed: "+errs.String())
		a.redirect(w, r, "/lists")
		return
	}

	list, err := a.Lists.CreateList(a.user(r), form.Title)
	if err != nil {
		a.Logger.Error("failed to create list", "err", err)
		a.flash(w, r, server.FlashDanger, "Error creating list.")
		a.redirect(w, r, "/lists")
		return
	}

	a.flash(w, r, server.FlashSuccess, "List created successfully.")
	a.redirect(w, r, listURL(list.ID))
}

func (a *App) viewList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	v, err := a.Lists.View(a.user(r), id)
	if err != nil {
		a.listFailed(w, r, err)
		return
	}
	a.render(w, r, http.StatusOK, "list", view{Title: v.List.Title, Data: v})
}

func (a *App) addCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	form := CategoryForm{Name: field(r, "name")}
	if errs := form.Validate(); len(errs) > 0 {
		for _, msg := range errs.Messages() {
			a.flash(w, r, server.FlashDanger, msg)
		}
		a.redirect(w, r, listURL(id))
		return
	}

	if _, err := a.Lists.AddCategory(a.user(r), id, form.Name); err != nil {
		a.listFailed(w, r, err)
		return
	}
	a.flash(w, r, server.FlashSuccess, "Category added successfully.")
	a.redirect(w, r, listURL(id))
}

func (a *App) shareList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	form := ShareForm{Email: field(r, "email")}
	_, err = a.Lists.Share(a.user(r), id, form.Email)
	switch {
	case err == nil:
		a.flash(w, r, server.FlashSuccess, fmt.Sprintf("List shared with %s successfully.", form.Email))
	case errors.Is(err, shared.ErrForbidden):
		a.flash(w, r, server.FlashDanger, "You can only share lists you own.")
	case errors.Is(err, shared.ErrInvalidInput):
		a.flash(w, r, server.FlashDanger, form.Validate()["email"])
	case errors.Is(err, shared.ErrUserNotFound):
		a.flash(w, r, server.FlashDanger, fmt.Sprintf("No user found with email %s.", form.Email))
	case errors.Is(err, shared.ErrShareWithSelf):
		a.flash(w, r, server.FlashDanger, "You can't share a list with yourself.")
	case errors.Is(err, shared.ErrAlreadyShared):
		a.flash(w, r, server.FlashInfo, fmt.Sprintf("List is already shared with %s.", form.Email))
	default:
		a.fail(w, r, err)
		return
	}
	a.redirect(w, r, listURL(id))
}

func (a *App) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	user := a.user(r)

	// Access is checked before the form is validated.
	if _, err := a.Lists.Authorize(user, id); err != nil {
		a.listFailed(w, r, err)
		return
	}

	form := decodeItemForm(r)
	if errs := form.Validate(); len(errs) > 0 {
		if msg, bad := errs["category_id"]; bad {
			a.flash(w, r, server.FlashDanger, msg)
		}
		if msg, bad := errs["name"]; bad {
			a.flash(w, r, server.FlashDanger, "name: "+msg)
		}
		a.redirect(w, r, listURL(id))
		return
	}

	_, err = a.Lists.AddItem(user, id, form.NewItem())
	switch {
	case err == nil:
		a.flash(w, r, server.FlashSuccess, "Item added successfully.")
	case errors.Is(err, shared.ErrNotFound):
		a.flash(w, r, server.FlashDanger, "Invalid category ID: "+form.RawCategoryID)
	default:
		a.listFailed(w, r, err)
		return
	}
	a.redirect(w, r, listURL(id))
}

func (a *App) toggleItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.jsonFail(w, r, err)
		return
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		a.jsonFail(w, r, err)
		return
	}

	completed, err := a.Lists.ToggleItem(a.user(r), id, itemID)
	if err != nil {
		a.jsonFail(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, map[string]any{"success": true, "completed": completed})
}

func (a *App) reorderItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.jsonFail(w, r, err)
		return
	}

	var req ReorderItemsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.jsonFail(w, r, err)
		return
	}
	if err := req.Validate().Err(); err != nil {
		a.jsonFail(w, r, err)
		return
	}

	applied, err := a.Lists.ReorderItems(a.user(r), id, req.Items)
	if err != nil {
		a.jsonFail(w, r, err)
		return
	}
	a.Logger.Debug("reordered items", "list", id, "applied", applied, "requested", len(req.Items))
	a.respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *App) reorderCategories(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.jsonFail(w, r, err)
		return
	}

	var req ReorderCategoriesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.jsonFail(w, r, err)
		return
	}
	if err := req.Validate().Err(); err != nil {
		a.jsonFail(w, r, err)
		return
	}

	applied, err := a.Lists.ReorderCategories(a.user(r), id, req.Categories)
	if err != nil {
		a.jsonFail(w, r, err)
		return
	}
	a.Logger.Debug("reordered categories", "list", id, "applied", applied, "requested", len(req.Categories))
	a.respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *App) deleteList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	err = a.Lists.DeleteList(a.user(r), id)
	switch {
	case err == nil:
		a.flash(w, r, server.FlashSuccess, "List deleted.")
		a.redirect(w, r, "/lists")
	case errors.Is(err, shared.ErrForbidden):
		a.flash(w, r, server.FlashDanger, "You can only delete lists you own.")
		a.redirect(w, r, listURL(id))
	default:
		a.fail(w, r, err)
	}
}

func (a *App) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	categoryID, err := pathID(r, "category_id")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if err := a.Lists.DeleteCategory(a.user(r), id, categoryID); err != nil {
		a.listFailed(w, r, err)
		return
	}
	a.flash(w, r, server.FlashSuccess, "Category deleted.")
	a.redirect(w, r, listURL(id))
}

func (a *App) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if err := a.Lists.DeleteItem(a.user(r), id, itemID); err != nil {
		a.listFailed(w, r, err)
		return
	}
	a.flash(w, r, server.FlashSuccess, "Item deleted.")
	a.redirect(w, r, listURL(id))
}

func (a *App) debugList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.jsonFail(w, r, err)
		return
	}

	dump, err := a.Lists.Debug(a.user(r), id)
	if err != nil {
		a.jsonFail(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, dump)
}
