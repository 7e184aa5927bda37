package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/server"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
)

type wishlistData struct {
	Gifts []*models.Gift
	Form  GiftForm
}

func (a *App) wishlist(w http.ResponseWriter, r *http.Request) {
	a.renderWishlist(w, r, http.StatusOK, GiftForm{}, nil)
}

func (a *App) renderWishlist(w http.ResponseWriter, r *http.Request, status int, form GiftForm, errs FieldErrors) {
	gifts, err := a.Repos.Gifts.List(map[string]any{"user_id": a.user(r).ID})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.render(w, r, status, "wishlist", view{Title: "Wishlist", Errors: errs, Data: wishlistData{Gifts: gifts, Form: form}})
}

func (a *App) addGift(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	form, err := decodeGiftForm(r)
	if err != nil {
		a.renderWishlist(w, r, http.StatusBadRequest, form, FieldErrors{"image": "The upload could not be read."})
		return
	}
	if form.Image != nil {
		defer form.Image.Close()
	}
	if errs := form.Validate(); len(errs) > 0 {
		a.renderWishlist(w, r, http.StatusBadRequest, form, errs)
		return
	}

	gift := &models.Gift{
		Title:     form.Title,
		Body:      form.Body,
		UserID:    a.user(r).ID,
		Timestamp: time.Now().UTC(),
	}
	if form.Image != nil {
		gift.ImageURL = a.storeGiftImage(r.Context(), form)
	}

	if err := a.Repos.Gifts.Create(gift); err != nil {
		a.fail(w, r, err)
		return
	}
	a.flash(w, r, server.FlashSuccess, "Gift added to your wishlist.")
	a.redirect(w, r, "/wishlist/")
}

// storeGiftImage uploads the form's image and returns its public URL, or "" when the upload fails.
func (a *App) storeGiftImage(ctx context.Context, form GiftForm) string {
	bucket := a.Config.Storage.WishlistBucket
	if a.Storage == nil || bucket == "" {
		a.Logger.Warn("gift image dropped", "err", fmt.Errorf("%w: wishlist bucket", shared.ErrMissingConfig))
		return ""
	}

	key := shared.GenerateKey(form.ImageExt)
	if err := a.Storage.Put(ctx, bucket, key, form.Image, services.ContentTypeFor(form.ImageExt)); err != nil {
		a.Logger.Error("gift image upload failed", "key", key, "err", err)
		return ""
	}
	return a.Storage.PublicURL(bucket, key)
}

// ownGift loads the gift in the id path value and checks it belongs to the current user.
func (a *App) ownGift(r *http.Request) (*models.Gift, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	gift, err := a.Repos.Gifts.Get(id)
	if err != nil {
		return nil, err
	}
	if gift.UserID != a.user(r).ID {
		return nil, fmt.Errorf("%w: gift %d", shared.ErrForbidden, id)
	}
	return gift, nil
}

func (a *App) confirmDeleteGift(w http.ResponseWriter, r *http.Request) {
	gift, err := a.ownGift(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.render(w, r, http.StatusOK, "gift_delete", view{Title: "Delete " + gift.Title, Data: gift})
}

func (a *App) deleteGift(w http.ResponseWriter, r *http.Request) {
	gift, err := a.ownGift(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if r.PostFormValue("confirm") != "yes" {
		a.flash(w, r, server.FlashInfo, "Gift kept.")
		a.redirect(w, r, "/wishlist/")
		return
	}

	if err := a.Repos.Gifts.Delete(gift.ID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		a.fail(w, r, err)
		return
	}
	a.flash(w, r, server.FlashSuccess, "Gift deleted.")
	a.redirect(w, r, "/wishlist/")
}
