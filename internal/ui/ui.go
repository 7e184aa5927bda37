package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/repositories"
	"github.com/keithriordan/foyer/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	VideoListView
	ConfirmView
	SyncView
	ResultView
)

// Library is the local playlist store the browser reads and marks videos in.
type Library interface {
	Playlists() ([]*models.Playlist, error)
	Videos(playlistID string) ([]*models.Video, error)
	ToggleWatched(videoID string) (bool, error)
}

// Syncer refreshes the library from YouTube. [tasks.SyncEngine] satisfies it.
type Syncer interface {
	Run(ctx context.Context, user models.User, progress chan<- tasks.ProgressUpdate) (*tasks.SyncResult, error)
}

// RepoLibrary is a [Library] backed by the playlist and video repositories.
type RepoLibrary struct {
	playlists *repositories.PlaylistRepository
	videos    *repositories.VideoRepository
}

func NewRepoLibrary(db repositories.DBTX) *RepoLibrary {
	return &RepoLibrary{
		playlists: repositories.NewPlaylistRepository(db),
		videos:    repositories.NewVideoRepository(db),
	}
}

func (l *RepoLibrary) Playlists() ([]*models.Playlist, error) {
	return l.playlists.List(nil)
}

func (l *RepoLibrary) Videos(playlistID string) ([]*models.Video, error) {
	return l.videos.List(map[string]any{"playlist_id": playlistID})
}

func (l *RepoLibrary) ToggleWatched(videoID string) (bool, error) {
	return l.videos.ToggleWatched(videoID)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	library      Library
	syncer       Syncer
	user         models.User
	width        int
	height       int
	playlistList list.Model
	videoList    list.Model
	current      *models.Playlist
	progressChan chan tasks.ProgressUpdate
	done         chan syncComplete
	progress     tasks.ProgressUpdate
	result       *tasks.SyncResult
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates the browser. syncer may be nil, which disables the sync key.
func NewModel(ctx context.Context, library Library, syncer Syncer, user models.User) *Model {
	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		library:      library,
		syncer:       syncer,
		user:         user,
		playlistList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		videoList:    list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init loads the playlists from the library.
func (m *Model) Init() tea.Cmd {
	return m.loadPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.videoList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case VideoListView:
			return m.handleVideoListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsLoaded:
		data := msg.data.(playlistsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(data.items))
		for i, it := range data.items {
			items[i] = it
		}
		m.playlistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.playlistList.Title = "YouTube Library"
		m.playlistList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgVideosLoaded:
		data := msg.data.(videosLoaded)
		if data.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Could not load videos: %v", data.err))
			return m, nil
		}
		m.current = data.playlist
		items := make([]list.Item, len(data.videos))
		for i, v := range data.videos {
			items[i] = videoItem{video: v}
		}
		m.videoList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.videoList.Title = data.playlist.Title
		m.videoList.SetSize(m.width-4, m.height-8)
		m.status = ""
		m.view = VideoListView
		return m, nil

	case MsgWatchedToggled:
		data := msg.data.(watchedToggled)
		if data.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Could not update video: %v", data.err))
			return m, nil
		}
		for i, it := range m.videoList.Items() {
			vi, ok := it.(videoItem)
			if !ok || vi.video.ID != data.videoID {
				continue
			}
			vi.video.Watched = data.watched
			cmd := m.videoList.SetItem(i, vi)
			if data.watched {
				m.status = styles.ok.Render("Marked as watched.")
			} else {
				m.status = styles.muted.Render("Marked as unwatched.")
			}
			return m, cmd
		}
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.progressChan, m.done)

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.done = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case VideoListView:
		return m.renderVideoList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// ViewState reports which view is showing.
func (m *Model) ViewState() ViewState {
	return m.view
}

func (m *Model) filtering(l list.Model) bool {
	return l.FilterState() == list.Filtering
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering(m.playlistList) {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				return m, m.loadVideos(pl.playlist)
			}
			return m, nil
		case key.Matches(msg, m.keys.sync):
			if m.syncer != nil {
				m.view = ConfirmView
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleVideoListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering(m.videoList) {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = PlaylistListView
			m.status = ""
			return m, m.loadPlaylists()
		case key.Matches(msg, m.keys.watch):
			if vi, ok := m.videoList.SelectedItem().(videoItem); ok {
				return m, m.toggleWatched(vi.video.ID)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.videoList, cmd = m.videoList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		return m, m.startSync()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PlaylistListView
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter), key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		m.result = nil
		m.err = nil
		return m, m.loadPlaylists()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case VideoListView:
		m.videoList, cmd = m.videoList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadPlaylists() tea.Cmd {
	library := m.library
	return func() tea.Msg {
		playlists, err := library.Playlists()
		if err != nil {
			return playlistsLoadedMsg(nil, err)
		}

		items := make([]playlistItem, 0, len(playlists))
		for _, p := range playlists {
			videos, err := library.Videos(p.ID)
			if err != nil {
				return playlistsLoadedMsg(nil, err)
			}
			items = append(items, playlistItem{playlist: p, videos: len(videos)})
		}
		return playlistsLoadedMsg(items, nil)
	}
}

func (m *Model) loadVideos(p *models.Playlist) tea.Cmd {
	library := m.library
	return func() tea.Msg {
		videos, err := library.Videos(p.ID)
		return videosLoadedMsg(p, videos, err)
	}
}

func (m *Model) toggleWatched(videoID string) tea.Cmd {
	library := m.library
	return func() tea.Msg {
		watched, err := library.ToggleWatched(videoID)
		return watchedToggledMsg(videoID, watched, err)
	}
}

func (m *Model) startSync() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan syncComplete, 1)
	m.progressChan = progress
	m.done = done
	m.progress = tasks.ProgressUpdate{}

	go func() {
		result, err := m.syncer.Run(m.ctx, m.user, progress)
		done <- syncComplete{result: result, err: err}
		close(progress)
	}()

	return waitForProgress(progress, done)
}

// waitForProgress relays one progress update, or the final result once progress is closed.
func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan syncComplete) tea.Cmd {
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		c := <-done
		return syncCompleteMsg(c.result, c.err)
	}
}

func (m *Model) renderPlaylistList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	if m.syncer != nil {
		helpKeys = []key.Binding{m.keys.enter, m.keys.sync, m.keys.quit}
	}
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderVideoList() string {
	helpKeys := []key.Binding{m.keys.watch, m.keys.back, m.keys.quit}
	view := fmt.Sprintf("%s\n\n%s", m.videoList.View(), m.help.ShortHelpView(helpKeys))
	if m.status != "" {
		view = fmt.Sprintf("%s\n%s", view, m.status)
	}
	return view
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Sync playlists from YouTube?")
	info := fmt.Sprintf("\nAccount: %s\nPlaylists and videos are fetched first and saved together.\n", m.user.Email)
	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing Library")

	var phase string
	switch m.progress.Phase {
	case tasks.FetchPlaylists:
		phase = "Fetching playlists..."
	case tasks.FetchVideos:
		phase = fmt.Sprintf("Fetching videos (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Commit:
		phase = fmt.Sprintf("Saving (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.muted.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v\n\nPress enter to go back, q to quit", m.err))
	}
	if m.result == nil {
		return styles.err.Render("No result available\n\nPress enter to go back, q to quit")
	}

	title := styles.ok.Render("✓ Sync Complete!")
	info := fmt.Sprintf(
		"\nPlaylists: %d (%d new, %d updated)\nVideos: %d (%d new, %d updated)",
		m.result.PlaylistsSeen, m.result.PlaylistsCreated, m.result.PlaylistsUpdated,
		m.result.VideosSeen, m.result.VideosCreated, m.result.VideosUpdated,
	)

	var skipped string
	if m.result.VideosSkipped > 0 {
		skipped = "\n\n" + styles.warn.Render(fmt.Sprintf("Skipped %d unavailable videos", m.result.VideosSkipped))
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, skipped, m.help.ShortHelpView(helpKeys))
}
