package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/kerbaras/mangashelf/pkg/logging"
	"github.com/kerbaras/mangashelf/pkg/sources"
	"github.com/kerbaras/mangashelf/pkg/utils"
	"golang.org/x/sync/singleflight"
)

// Download status values carried by DownloadProgress.
const (
	StatusDownloading = "downloading"
	StatusComplete    = "complete"
	StatusPartial     = "partial"
	StatusCancelled   = "cancelled"
	StatusError       = "error"
)

const partialSuffix = ".partial"

// DownloadProgress represents the progress of a download operation
type DownloadProgress struct {
	MangaID     string
	ChapterID   string
	CurrentPage int
	TotalPages  int
	Status      string
	Error       error
	// Manga-level events carry chapter counters instead of pages.
	ChaptersDone  int
	ChaptersTotal int
}

// DownloaderOptions configures a Downloader.
type DownloaderOptions struct {
	// Client fetches page images. Defaults to an unpaced client.
	Client *utils.API
	// VerifyImages rejects pages whose header does not decode as an image.
	VerifyImages bool
	Logger       *slog.Logger
}

// Downloader materializes chapters as local files under
// {downloadDir}/{mangaID}/{chapterID}/ and records the ordered page paths in
// the offline_chapters map. The directory tree is the source of truth; the
// map is a cache of resolved paths that heals itself when files disappear.
type Downloader struct {
	source       sources.Source
	store        data.KeyValueStore
	downloadDir  string
	client       *utils.API
	verifyImages bool
	logger       *slog.Logger
	flight       singleflight.Group
	flightMu     sync.Mutex
	flights      map[string]*flightCall

	progressChan chan DownloadProgress
	closeOnce    sync.Once
}

// NewDownloader creates a new Downloader instance
func NewDownloader(source sources.Source, store data.KeyValueStore, downloadDir string, opts DownloaderOptions) *Downloader {
	client := opts.Client
	if client == nil {
		client = utils.NewAPI("", utils.APIOptions{Logger: opts.Logger})
	}
	return &Downloader{
		source:       source,
		store:        store,
		downloadDir:  downloadDir,
		client:       client,
		verifyImages: opts.VerifyImages,
		logger:       logging.NewComponentLogger(opts.Logger, "downloader"),
		flights:      make(map[string]*flightCall),
		progressChan: make(chan DownloadProgress, 100),
	}
}

// GetProgressChannel returns the channel for receiving download progress updates
func (d *Downloader) GetProgressChannel() <-chan DownloadProgress {
	return d.progressChan
}

// DownloadChapter downloads every page of a chapter, in order, one at a time.
// A nil error means every page is on disk and the page list is recorded.
// Concurrent calls for the same chapter share a single download, which keeps
// running until the last caller waiting on it gives up.
func (d *Downloader) DownloadChapter(ctx context.Context, mangaID, chapterID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := mangaID + "/" + chapterID
	call, results := d.joinFlight(ctx, key, func(ctx context.Context) error {
		return d.downloadChapter(ctx, mangaID, chapterID)
	})

	var err error
	select {
	case res := <-results:
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	d.leaveFlight(key, call)

	if err != nil {
		d.logger.Error("chapter download failed",
			logging.String(logging.FieldEventType, "chapter_download_failed"),
			logging.String(logging.FieldMangaID, mangaID),
			logging.String(logging.FieldChapterID, chapterID),
			logging.Error(err))
		d.sendProgress(DownloadProgress{
			MangaID:   mangaID,
			ChapterID: chapterID,
			Status:    StatusError,
			Error:     err,
		})
	}
	return err
}

// flightCall is the context a shared chapter download runs on, cancelled once
// no caller is waiting for it.
type flightCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (d *Downloader) joinFlight(ctx context.Context, key string, fn func(context.Context) error) (*flightCall, <-chan singleflight.Result) {
	d.flightMu.Lock()
	defer d.flightMu.Unlock()

	call, ok := d.flights[key]
	if !ok {
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &flightCall{ctx: shared, cancel: cancel}
		d.flights[key] = call
	}
	call.waiters++

	results := d.flight.DoChan(key, func() (any, error) {
		defer func() {
			d.flightMu.Lock()
			if d.flights[key] == call {
				delete(d.flights, key)
			}
			d.flightMu.Unlock()
			call.cancel()
		}()
		return nil, fn(call.ctx)
	})
	return call, results
}

func (d *Downloader) leaveFlight(key string, call *flightCall) {
	d.flightMu.Lock()
	defer d.flightMu.Unlock()

	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if d.flights[key] == call {
		delete(d.flights, key)
	}
}

func (d *Downloader) downloadChapter(ctx context.Context, mangaID, chapterID string) error {
	if err := validateIDs(mangaID, chapterID); err != nil {
		return err
	}

	pages, err := d.source.ResolveChapterPages(ctx, chapterID)
	if err != nil {
		return fmt.Errorf("failed to get pages: %w", err)
	}
	if len(pages.Files) == 0 {
		return fmt.Errorf("no pages found for chapter")
	}

	// Pages land in a staging directory so a half-finished chapter is never
	// mistaken for a complete one. Leftovers from an earlier attempt are
	// replaced.
	staging := d.stagingDir(mangaID, chapterID)
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("failed to create chapter directory: %w", err)
	}

	names := make([]string, len(pages.Files))
	for i, file := range pages.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, err := pageFileName(file)
		if err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}

		d.sendProgress(DownloadProgress{
			MangaID:     mangaID,
			ChapterID:   chapterID,
			CurrentPage: i + 1,
			TotalPages:  len(pages.Files),
			Status:      StatusDownloading,
		})

		if err := d.fetchPage(ctx, pages.URL(file), filepath.Join(staging, name)); err != nil {
			return fmt.Errorf("failed to download page %d: %w", i, err)
		}
		names[i] = name
	}

	final := d.chapterDir(mangaID, chapterID)
	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("failed to replace chapter directory: %w", err)
	}
	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("failed to finalize chapter directory: %w", err)
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(final, name)
	}
	err = data.UpdateJSON(ctx, d.store, data.KeyOfflineChapters, func(chapters *map[string][]string) error {
		if *chapters == nil {
			*chapters = make(map[string][]string)
		}
		(*chapters)[chapterID] = paths
		return nil
	})
	if err != nil {
		// Keep "directory exists" and "record exists" in agreement.
		if rbErr := os.Rename(final, staging); rbErr != nil {
			d.logger.Warn("failed to demote chapter after store error",
				logging.String(logging.FieldChapterID, chapterID),
				logging.Error(rbErr))
		}
		return fmt.Errorf("failed to record offline chapter: %w", err)
	}

	d.logger.Info("chapter downloaded",
		logging.String(logging.FieldMangaID, mangaID),
		logging.String(logging.FieldChapterID, chapterID),
		logging.Int("pages", len(paths)))
	d.sendProgress(DownloadProgress{
		MangaID:     mangaID,
		ChapterID:   chapterID,
		CurrentPage: len(paths),
		TotalPages:  len(paths),
		Status:      StatusComplete,
	})
	return nil
}

// IsChapterDownloaded reports whether the chapter directory holds at least
// minPageCount image files.
func (d *Downloader) IsChapterDownloaded(mangaID, chapterID string, minPageCount int) bool {
	if validateIDs(mangaID, chapterID) != nil {
		return false
	}
	dir := d.chapterDir(mangaID, chapterID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && isImageFile(entry.Name()) {
			count++
		}
	}
	return count >= minPageCount
}

// DeleteChapter removes the chapter directory and its offline record. It is a
// no-op when the chapter was never downloaded.
func (d *Downloader) DeleteChapter(ctx context.Context, mangaID, chapterID string) error {
	if err := validateIDs(mangaID, chapterID); err != nil {
		return err
	}
	if err := os.RemoveAll(d.chapterDir(mangaID, chapterID)); err != nil {
		return fmt.Errorf("failed to delete chapter directory: %w", err)
	}
	if err := os.RemoveAll(d.stagingDir(mangaID, chapterID)); err != nil {
		return fmt.Errorf("failed to delete staging directory: %w", err)
	}
	if err := d.forgetChapters(ctx, func(id string, _ []string) bool { return id == chapterID }); err != nil {
		return err
	}
	d.logger.Info("chapter deleted",
		logging.String(logging.FieldMangaID, mangaID),
		logging.String(logging.FieldChapterID, chapterID))
	return nil
}

// GetOfflineChapter returns the local page paths recorded for a chapter, in
// page order. A record whose files are gone is dropped and reported absent.
func (d *Downloader) GetOfflineChapter(ctx context.Context, chapterID string) ([]string, bool) {
	var chapters map[string][]string
	if _, err := data.GetJSON(ctx, d.store, data.KeyOfflineChapters, &chapters); err != nil {
		d.logger.Warn("failed to read offline chapters",
			logging.String(logging.FieldChapterID, chapterID),
			logging.Error(err))
		return nil, false
	}
	paths, ok := chapters[chapterID]
	if !ok || len(paths) == 0 {
		return nil, false
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			d.logger.Warn("offline chapter is missing files, dropping record",
				logging.String(logging.FieldEventType, "offline_record_stale"),
				logging.String(logging.FieldChapterID, chapterID),
				logging.String("path", path))
			if err := d.forgetChapters(ctx, func(id string, _ []string) bool { return id == chapterID }); err != nil {
				d.logger.Warn("failed to drop stale record", logging.Error(err))
			}
			return nil, false
		}
	}
	out := make([]string, len(paths))
	copy(out, paths)
	return out, true
}

// forgetChapters removes every offline record matching drop.
func (d *Downloader) forgetChapters(ctx context.Context, drop func(chapterID string, paths []string) bool) error {
	err := d.store.Update(ctx, data.KeyOfflineChapters, func(current string, ok bool) (string, bool, error) {
		if !ok {
			return "", false, nil
		}
		var chapters map[string][]string
		if err := unmarshalString(current, &chapters); err != nil {
			return "", false, err
		}
		for id, paths := range chapters {
			if drop(id, paths) {
				delete(chapters, id)
			}
		}
		if len(chapters) == 0 {
			return "", false, nil
		}
		encoded, err := marshalString(chapters)
		return encoded, true, err
	})
	if err != nil {
		return fmt.Errorf("failed to update offline chapters: %w", err)
	}
	return nil
}

// sendProgress sends a progress update (non-blocking)
func (d *Downloader) sendProgress(progress DownloadProgress) {
	select {
	case d.progressChan <- progress:
	default:
		// Channel full, skip this update
	}
}

// Close releases the progress channel. The Downloader must not be used after.
func (d *Downloader) Close() {
	d.closeOnce.Do(func() {
		close(d.progressChan)
	})
}

func (d *Downloader) mangaDir(mangaID string) string {
	return filepath.Join(d.downloadDir, mangaID)
}

func (d *Downloader) chapterDir(mangaID, chapterID string) string {
	return filepath.Join(d.downloadDir, mangaID, chapterID)
}

func (d *Downloader) stagingDir(mangaID, chapterID string) string {
	return filepath.Join(d.downloadDir, mangaID, "."+chapterID+partialSuffix)
}

var errInvalidID = errors.New("invalid identifier")

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if !isSafePathComponent(id) {
			return fmt.Errorf("%w: %q", errInvalidID, id)
		}
	}
	return nil
}

func isSafePathComponent(name string) bool {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

func pageFileName(file string) (string, error) {
	name := filepath.Base(file)
	if !isSafePathComponent(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: page file %q", errInvalidID, file)
	}
	return name, nil
}

// isImageFile checks if a file has a page image extension
func isImageFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}
