package web

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/server"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
)

const (
	oauthStateKey = "oauth_state"
	authNeeded    = "YouTube authorization required. Please authorize the app first."
)

type utilitiesData struct {
	Connected  bool
	Configured bool
}

type playlistView struct {
	Playlist *models.Playlist
	Videos   []*models.Video
}

type videoData struct {
	Video    *models.Video
	Playlist *models.Playlist
}

func (a *App) utilities(w http.ResponseWriter, r *http.Request) {
	user := a.user(r)
	_, err := a.Repos.Credentials.Get(user.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		a.fail(w, r, err)
		return
	}
	data := utilitiesData{Connected: err == nil, Configured: a.OAuth != nil && a.Sync != nil}
	a.render(w, r, http.StatusOK, "utilities", view{Title: "Utilities", Data: data})
}

// playlistsWithVideos loads every playlist and, when withVideos is set, its videos.
func (a *App) playlistsWithVideos(withVideos bool) ([]playlistView, error) {
	playlists, err := a.Repos.Playlists.List(nil)
	if err != nil {
		return nil, err
	}

	out := make([]playlistView, 0, len(playlists))
	for _, p := range playlists {
		pv := playlistView{Playlist: p}
		if withVideos {
			if pv.Videos, err = a.Repos.Videos.List(map[string]any{"playlist_id": p.ID}); err != nil {
				return nil, err
			}
		}
		out = append(out, pv)
	}
	return out, nil
}

func (a *App) media(w http.ResponseWriter, r *http.Request) {
	playlists, err := a.playlistsWithVideos(true)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.render(w, r, http.StatusOK, "media", view{Title: "Media", Data: playlists})
}

func (a *App) library(w http.ResponseWriter, r *http.Request) {
	playlists, err := a.playlistsWithVideos(false)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.render(w, r, http.StatusOK, "library", view{Title: "Library", Data: playlists})
}

func (a *App) playlist(w http.ResponseWriter, r *http.Request) {
	p, err := a.Repos.Playlists.Get(r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	videos, err := a.Repos.Videos.List(map[string]any{"playlist_id": p.ID})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.render(w, r, http.StatusOK, "playlist", view{Title: p.Title, Data: playlistView{Playlist: p, Videos: videos}})
}

func (a *App) video(w http.ResponseWriter, r *http.Request) {
	v, err := a.Repos.Videos.Get(r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.Repos.Playlists.Get(v.PlaylistID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		a.fail(w, r, err)
		return
	}
	a.render(w, r, http.StatusOK, "video", view{Title: v.Title, Data: videoData{Video: v, Playlist: p}})
}

func (a *App) toggleWatched(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	watched, err := a.Repos.Videos.ToggleWatched(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if watched {
		a.flash(w, r, server.FlashSuccess, "Marked as watched.")
	} else {
		a.flash(w, r, server.FlashInfo, "Marked as unwatched.")
	}
	a.redirect(w, r, "/lib/videos/"+id)
}

// libraryFailed flashes a sync or export failure. Authorization problems send the user to the consent flow.
func (a *App) libraryFailed(w http.ResponseWriter, r *http.Request, action string, err error) {
	if errors.Is(err, shared.ErrAuthorizationRequired) {
		a.flash(w, r, server.FlashDanger, authNeeded)
		a.redirect(w, r, "/oauth/authorize")
		return
	}

	// Causes are logged, never flashed.
	a.Logger.Error(action+" failed", "err", err)
	a.flash(w, r, server.FlashDanger, "Error: "+action+" failed. Check the server logs for details.")
	a.redirect(w, r, "/utilities")
}

func (a *App) syncPlaylists(w http.ResponseWriter, r *http.Request) {
	if a.Sync == nil {
		a.flash(w, r, server.FlashDanger, "YouTube sync is not configured.")
		a.redirect(w, r, "/utilities")
		return
	}

	res, err := a.Sync.Run(r.Context(), a.user(r), nil)
	if err != nil {
		a.libraryFailed(w, r, "sync", err)
		return
	}

	a.flash(w, r, server.FlashSuccess, "Sync complete: "+res.String())
	a.redirect(w, r, "/utilities")
}

func (a *App) exportSubscriptions(w http.ResponseWriter, r *http.Request) {
	if a.Sync == nil {
		a.flash(w, r, server.FlashDanger, "YouTube sync is not configured.")
		a.redirect(w, r, "/utilities")
		return
	}

	path := a.Config.Library.SubscriptionsPath
	export, err := a.Sync.ExportSubscriptions(r.Context(), a.user(r), path, nil)
	if err != nil {
		a.libraryFailed(w, r, "subscription export", err)
		return
	}

	a.flash(w, r, server.FlashSuccess, "Successfully exported "+strconv.Itoa(export.TotalSubscriptions)+" subscriptions to "+filepath.Base(path))
	a.redirect(w, r, "/utilities")
}

func (a *App) authorize(w http.ResponseWriter, r *http.Request) {
	if a.OAuth == nil {
		a.flash(w, r, server.FlashDanger, "Google OAuth is not configured.")
		a.redirect(w, r, "/utilities")
		return
	}

	state, err := shared.GenerateState()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Sessions.Put(w, r, oauthStateKey, state); err != nil {
		a.fail(w, r, err)
		return
	}
	http.Redirect(w, r, services.AuthURL(a.OAuth, state), http.StatusFound)
}

func (a *App) oauthCallback(w http.ResponseWriter, r *http.Request) {
	if a.OAuth == nil {
		a.renderError(w, r, http.StatusNotFound)
		return
	}

	query := r.URL.Query()
	state, err := a.Sessions.Pop(w, r, oauthStateKey)
	if err != nil || state == "" || query.Get("state") != state {
		a.Logger.Warn("oauth callback with bad state")
		a.flash(w, r, server.FlashDanger, "Authorization failed: the request could not be verified.")
		a.redirect(w, r, "/utilities")
		return
	}

	if code := query.Get("code"); code == "" {
		a.flash(w, r, server.FlashDanger, "Authorization failed: "+query.Get("error"))
		a.redirect(w, r, "/utilities")
		return
	}

	token, err := services.Exchange(r.Context(), a.OAuth, query.Get("code"))
	if err != nil {
		a.Logger.Error("oauth exchange failed", "err", err)
		a.flash(w, r, server.FlashDanger, "Authorization failed: the token exchange was rejected.")
		a.redirect(w, r, "/utilities")
		return
	}

	user := a.user(r)
	if err := a.Repos.Credentials.Save(services.CredentialFromToken(user.ID, token)); err != nil {
		a.fail(w, r, err)
		return
	}

	a.Logger.Info("youtube authorized", "user", user.ID)
	a.flash(w, r, server.FlashSuccess, "YouTube account connected.")
	a.redirect(w, r, "/utilities")
}
