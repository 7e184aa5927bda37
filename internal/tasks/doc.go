// Package tasks runs the long operations behind the video library with real-time progress reporting.
//
// # Core Operations
//
// [SyncEngine] exposes three operations:
//
//  1. [SyncEngine.Run] : Mirror the user's YouTube playlists into sqlite
//     - Fetches owned playlists, then any configured ids not already seen
//     - Fetches every item of each playlist
//     - Upserts playlists and available videos in one transaction, field by field
//     - Returns created, updated and skipped counts
//
//  2. [SyncEngine.ExportSubscriptions] : Write the user's channel subscriptions to a JSON file
//
//  3. [SyncEngine.Export] : Write stored playlists to CSV, Markdown, text or JSON with a worker pool
//
// # Progress Reporting
//
// All operations accept an optional channel of [ProgressUpdate]. Sends use select with default so a slow
// or absent reader never blocks the operation.
//
// # Authorization
//
// The engine asks a [Connector] for a [services.VideoSource] per run. [YouTubeConnector] loads the stored
// token, refreshes it and reports any failure as [shared.ErrAuthorizationRequired].
package tasks
