package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsLoaded MsgKind = iota
	MsgVideosLoaded
	MsgWatchedToggled
	MsgProgressUpdate
	MsgSyncComplete
)

type playlistsLoaded struct {
	items []playlistItem
	err   error
}

type videosLoaded struct {
	playlist *models.Playlist
	videos   []*models.Video
	err      error
}

type watchedToggled struct {
	videoID string
	watched bool
	err     error
}

type syncComplete struct {
	result *tasks.SyncResult
	err    error
}

// playlistsLoadedMsg is the constructor for [MsgPlaylistsLoaded]
func playlistsLoadedMsg(items []playlistItem, err error) Msg {
	return Msg{kind: MsgPlaylistsLoaded, data: playlistsLoaded{items, err}}
}

// videosLoadedMsg is the constructor for [MsgVideosLoaded]
func videosLoadedMsg(playlist *models.Playlist, videos []*models.Video, err error) Msg {
	return Msg{kind: MsgVideosLoaded, data: videosLoaded{playlist, videos, err}}
}

// watchedToggledMsg is the constructor for [MsgWatchedToggled]
func watchedToggledMsg(videoID string, watched bool, err error) Msg {
	return Msg{kind: MsgWatchedToggled, data: watchedToggled{videoID, watched, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result *tasks.SyncResult, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{result, err}}
}
