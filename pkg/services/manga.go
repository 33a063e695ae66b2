package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/kerbaras/mangashelf/pkg/logging"
)

// ChapterFailure records why one chapter of a manga download failed.
type ChapterFailure struct {
	ChapterID string
	Err       error
}

// MangaDownloadResult summarizes a DownloadManga run.
type MangaDownloadResult struct {
	MangaID   string
	Total     int
	Succeeded []string
	Failed    []ChapterFailure
	Cancelled bool
}

// Complete reports whether every chapter was downloaded.
func (r *MangaDownloadResult) Complete() bool {
	return !r.Cancelled && len(r.Failed) == 0 && len(r.Succeeded) == r.Total
}

// FailedIDs returns the failed chapter ids in download order.
func (r *MangaDownloadResult) FailedIDs() []string {
	ids := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		ids[i] = f.ChapterID
	}
	return ids
}

// Err summarizes the run as an error, or nil when it was complete.
func (r *MangaDownloadResult) Err() error {
	switch {
	case r.Complete():
		return nil
	case r.Cancelled:
		return fmt.Errorf("download of %s cancelled after %d of %d chapters: %w",
			r.MangaID, len(r.Succeeded), r.Total, context.Canceled)
	default:
		errs := make([]error, 0, len(r.Failed))
		for _, f := range r.Failed {
			errs = append(errs, fmt.Errorf("chapter %s: %w", f.ChapterID, f.Err))
		}
		return fmt.Errorf("%d of %d chapters failed: %w", len(r.Failed), r.Total, errors.Join(errs...))
	}
}

// DownloadManga downloads chapters one after another in the order given.
// onChapterDownloaded, when set, is called after each chapter with its 1-based
// position and outcome. A cancelled ctx stops before the next chapter.
func (d *Downloader) DownloadManga(ctx context.Context, mangaID string, chapters []*data.Chapter, onChapterDownloaded func(index int, err error)) *MangaDownloadResult {
	queue := make([]*data.Chapter, 0, len(chapters))
	for _, chapter := range chapters {
		if chapter != nil {
			queue = append(queue, chapter)
		}
	}
	result := &MangaDownloadResult{MangaID: mangaID, Total: len(queue)}

	for i, chapter := range queue {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		err := d.DownloadChapter(ctx, mangaID, chapter.ID)
		if err != nil {
			if ctx.Err() != nil {
				result.Cancelled = true
			}
			result.Failed = append(result.Failed, ChapterFailure{ChapterID: chapter.ID, Err: err})
		} else {
			result.Succeeded = append(result.Succeeded, chapter.ID)
		}
		if onChapterDownloaded != nil {
			onChapterDownloaded(i+1, err)
		}
		d.sendProgress(DownloadProgress{
			MangaID:       mangaID,
			Status:        StatusDownloading,
			ChaptersDone:  i + 1,
			ChaptersTotal: len(queue),
		})
		if result.Cancelled {
			break
		}
	}

	status := StatusComplete
	switch {
	case result.Cancelled:
		status = StatusCancelled
	case len(result.Failed) > 0:
		status = StatusPartial
	}
	d.logger.Info("manga download finished",
		logging.String(logging.FieldMangaID, mangaID),
		logging.String("status", status),
		logging.Int("succeeded", len(result.Succeeded)),
		logging.Int("failed", len(result.Failed)),
		logging.Int("total", result.Total))
	d.sendProgress(DownloadProgress{
		MangaID:       mangaID,
		Status:        status,
		Error:         result.Err(),
		ChaptersDone:  len(result.Succeeded),
		ChaptersTotal: result.Total,
	})
	return result
}

// IsMangaDownloaded reports whether every id in totalChapterIDs has a
// completed chapter directory. Order and duplicates do not matter.
func (d *Downloader) IsMangaDownloaded(mangaID string, totalChapterIDs []string) bool {
	if validateIDs(mangaID) != nil {
		return false
	}
	entries, err := os.ReadDir(d.mangaDir(mangaID))
	if err != nil {
		return false
	}
	present := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			present[entry.Name()] = struct{}{}
		}
	}
	for _, id := range totalChapterIDs {
		if _, ok := present[id]; !ok {
			return false
		}
	}
	return true
}

// DownloadedChapters lists the chapter ids with a completed directory.
func (d *Downloader) DownloadedChapters(mangaID string) []string {
	if validateIDs(mangaID) != nil {
		return nil
	}
	entries, err := os.ReadDir(d.mangaDir(mangaID))
	if err != nil {
		return nil
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids
}

// DeleteManga removes the manga download directory and every offline record
// pointing into it.
func (d *Downloader) DeleteManga(ctx context.Context, mangaID string) error {
	if err := validateIDs(mangaID); err != nil {
		return err
	}
	dir := d.mangaDir(mangaID)
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat manga directory: %w", err)
		}
		d.logger.Debug("manga directory not present", logging.String(logging.FieldMangaID, mangaID))
	} else if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete manga directory: %w", err)
	}

	prefix := dir + string(filepath.Separator)
	err := d.forgetChapters(ctx, func(_ string, paths []string) bool {
		return len(paths) > 0 && strings.HasPrefix(paths[0], prefix)
	})
	if err != nil {
		return err
	}
	d.logger.Info("manga deleted", logging.String(logging.FieldMangaID, mangaID))
	return nil
}
