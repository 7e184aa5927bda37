// Package ui implements a terminal browser for the local YouTube library using bubbletea's Elm architecture.
//
// The browser moves between five views:
//  1. [PlaylistListView] : Browse synced playlists
//  2. [VideoListView] : Browse a playlist's videos and toggle their watched flag
//  3. [ConfirmView] : Confirm a sync with YouTube
//  4. [SyncView] : Follow sync progress
//  5. [ResultView] : Show what the sync created and updated
//
// The [Model] implements bubbletea's Init/Update/View pattern, receiving messages via the [Msg] union type.
// Reads and writes go through the [Library] interface; sync progress flows through a channel from a [Syncer].
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, w, s, y/n, q) with contextual help from charmbracelet/bubbles/help.
package ui
