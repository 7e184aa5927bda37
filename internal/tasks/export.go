package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/keithriordan/foyer/internal/formatter"
	"github.com/keithriordan/foyer/internal/repositories"
	"github.com/keithriordan/foyer/internal/shared"
)

// ExportOpts contains configuration for library exports.
type ExportOpts struct {
	Format      string   // Export format: json, csv, markdown, txt
	OutputDir   string   // Base output directory (default: library_export_{epoch})
	NumWorkers  int      // Concurrent workers (default: 5, max: 10)
	PlaylistIDs []string // Playlists to export; empty exports every stored playlist
}

// ExportResult describes a finished library export.
type ExportResult struct {
	Manifest        *formatter.Manifest
	ManifestPath    string
	OutputDirectory string
}

type exportJob struct {
	index  int
	export *formatter.Export
}

type exportOutcome struct {
	index int
	entry formatter.ManifestEntry
}

// Export writes stored playlists to disk concurrently and records the outcome of each in export_manifest.json.
//
// Playlists are read from the database up front; a playlist that cannot be read becomes a failed manifest entry
// rather than failing the export.
func (e *SyncEngine) Export(ctx context.Context, prog chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if !formatter.ValidFormat(opts.Format) {
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("library_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	ids, err := e.exportIDs(opts.PlaylistIDs)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manifest := &formatter.Manifest{
		ExportedAt: time.Now().UTC(),
		Format:     opts.Format,
		Total:      len(ids),
		Entries:    make([]formatter.ManifestEntry, len(ids)),
	}

	jobs := make(chan exportJob, len(ids))
	outcomes := make(chan exportOutcome, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, outcomes, opts)
	}

	playlists := repositories.NewPlaylistRepository(e.db)
	videos := repositories.NewVideoRepository(e.db)
	for i, id := range ids {
		export, err := loadExport(playlists, videos, id)
		if err != nil {
			outcomes <- exportOutcome{index: i, entry: formatter.ManifestEntry{
				PlaylistID: id,
				Title:      fmt.Sprintf("Unknown (%s)", id),
				Error:      err.Error(),
			}}
			continue
		}
		e.sendProgress(prog, exportingPlaylistUpdate(i+1, len(ids), export.Playlist.Title))
		jobs <- exportJob{index: i, export: export}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	completed := 0
	for out := range outcomes {
		completed++
		manifest.Entries[out.index] = out.entry

		if out.entry.Success {
			manifest.Succeeded++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), out.entry.Title, len(out.entry.Files)))
		} else {
			manifest.Failed++
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), out.entry.Title, errors.New(out.entry.Error)))
		}
	}

	result := &ExportResult{Manifest: manifest, OutputDirectory: opts.OutputDir}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func (e *SyncEngine) exportIDs(requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}

	all, err := repositories.NewPlaylistRepository(e.db).List(nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func loadExport(playlists *repositories.PlaylistRepository, videos *repositories.VideoRepository, id string) (*formatter.Export, error) {
	p, err := playlists.Get(id)
	if err != nil {
		return nil, err
	}
	vs, err := videos.List(map[string]any{"playlist_id": id})
	if err != nil {
		return nil, err
	}
	return &formatter.Export{Playlist: p, Videos: vs}, nil
}

// exportWorker writes playlists from jobs until the channel closes or ctx is cancelled.
func (e *SyncEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	outcomes chan<- exportOutcome,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry := formatter.ManifestEntry{
			PlaylistID: job.export.Playlist.ID,
			Title:      job.export.Playlist.Title,
		}
		warn := func(err error) {
			e.logger.Warn("export warning", "playlist", entry.PlaylistID, "err", err)
		}

		files, err := formatter.Write(ctx, job.export, opts.Format, opts.OutputDir, warn)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Success = true
			entry.Files = files
		}
		outcomes <- exportOutcome{index: job.index, entry: entry}
	}
}
