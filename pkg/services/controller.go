package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kerbaras/mangashelf/pkg/config"
	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/kerbaras/mangashelf/pkg/integrations"
	"github.com/kerbaras/mangashelf/pkg/logging"
	"github.com/kerbaras/mangashelf/pkg/sources"
	"github.com/kerbaras/mangashelf/pkg/utils"
)

// ControllerConfig holds the collaborators of a MangaController.
type ControllerConfig struct {
	Source      sources.Source
	Store       data.KeyValueStore
	DownloadDir string
	// PageClient fetches page images. Defaults to an unpaced client.
	PageClient         *utils.API
	Language           string
	MinPages           int
	ContinueReadingMax int
	FavoritesMax       int
	VerifyImages       bool
	// NewExporter builds the exporter used for a given output directory.
	// Defaults to the EPUB builder.
	NewExporter func(outDir string) integrations.Exporter
	Logger      *slog.Logger
}

// MangaController ties the content API, the on-device store and the download
// queue together for the command line and TUI.
type MangaController struct {
	source          sources.Source
	store           data.KeyValueStore
	downloader      *Downloader
	queue           *SerialQueue
	continueReading *ContinueReading
	history         *ReadHistory
	favorites       *Favorites
	newExporter     func(outDir string) integrations.Exporter
	language        string
	minPages        int
	logger          *slog.Logger

	incognito atomic.Bool

	mu      sync.Mutex
	results map[string]*MangaDownloadResult

	closeOnce sync.Once
	closeErr  error
}

// NewMangaController opens the state database and builds the MangaDex client
// described by cfg.
func NewMangaController(cfg *config.Config, logger *slog.Logger) (*MangaController, error) {
	store, err := data.OpenDuckDB(cfg.Paths.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	opts := utils.APIOptions{
		Timeout:           time.Duration(cfg.MangaDex.TimeoutSeconds) * time.Second,
		RetryCount:        cfg.MangaDex.RetryCount,
		RequestsPerSecond: cfg.MangaDex.RequestsPerSecond,
		Logger:            logger,
	}
	api := utils.NewAPI(cfg.MangaDex.BaseURL, opts)
	pageOpts := opts
	pageOpts.RequestsPerSecond = 0

	return NewMangaControllerWithConfig(ControllerConfig{
		Source:             sources.NewMangaDex(api, cfg.MangaDex.UploadsURL),
		Store:              store,
		DownloadDir:        cfg.Paths.StorageRoot,
		PageClient:         utils.NewAPI("", pageOpts),
		Language:           cfg.MangaDex.Language,
		MinPages:           cfg.Library.MinPages,
		ContinueReadingMax: cfg.Library.ContinueReadingMax,
		FavoritesMax:       cfg.Library.FavoritesMax,
		VerifyImages:       cfg.Library.VerifyImages,
		Logger:             logger,
	}), nil
}

func NewMangaControllerWithConfig(cfg ControllerConfig) *MangaController {
	language := cfg.Language
	if language == "" {
		language = "en"
	}
	minPages := cfg.MinPages
	if minPages < 1 {
		minPages = 1
	}
	newExporter := cfg.NewExporter
	if newExporter == nil {
		newExporter = func(outDir string) integrations.Exporter {
			return integrations.NewEPubBuilder(outDir)
		}
	}
	return &MangaController{
		source: cfg.Source,
		store:  cfg.Store,
		downloader: NewDownloader(cfg.Source, cfg.Store, cfg.DownloadDir, DownloaderOptions{
			Client:       cfg.PageClient,
			VerifyImages: cfg.VerifyImages,
			Logger:       cfg.Logger,
		}),
		queue:           NewSerialQueue(cfg.Logger),
		continueReading: NewContinueReading(cfg.Store, cfg.Source, cfg.ContinueReadingMax, cfg.Logger),
		history:         NewReadHistory(cfg.Store, cfg.Logger),
		favorites:       NewFavorites(cfg.Store, cfg.FavoritesMax, cfg.Logger),
		newExporter:     newExporter,
		language:        language,
		minPages:        minPages,
		logger:          logging.NewComponentLogger(cfg.Logger, "controller"),
		results:         make(map[string]*MangaDownloadResult),
	}
}

func (c *MangaController) Source() sources.Source { return c.source }
func (c *MangaController) Downloader() *Downloader { return c.downloader }
func (c *MangaController) Queue() *SerialQueue { return c.queue }
func (c *MangaController) ContinueReading() *ContinueReading { return c.continueReading }
func (c *MangaController) History() *ReadHistory { return c.history }
func (c *MangaController) Favorites() *Favorites { return c.favorites }
func (c *MangaController) Progress() <-chan DownloadProgress { return c.downloader.GetProgressChannel() }
func (c *MangaController) Language() string { return c.language }

// SetIncognito turns reading-state recording off or on.
func (c *MangaController) SetIncognito(on bool) { c.incognito.Store(on) }

func (c *MangaController) Incognito() bool { return c.incognito.Load() }

// OpenChapter records that the user opened chapterID at page. Nothing is
// written in incognito mode.
func (c *MangaController) OpenChapter(ctx context.Context, manga *data.Manga, chapterID string, page int) error {
	if c.Incognito() {
		c.logger.Debug("incognito, not recording chapter open",
			logging.String(logging.FieldChapterID, chapterID))
		return nil
	}
	return errors.Join(
		c.history.MarkAsRead(ctx, chapterID),
		c.continueReading.SaveProgress(ctx, manga, chapterID, page),
	)
}

// QueueMangaDownload resolves the chapter list of a manga and downloads every
// chapter that is not on disk yet, behind any queued work. progress is called
// after each chapter with the number handled so far and the total.
func (c *MangaController) QueueMangaDownload(ctx context.Context, mangaID, language string, progress func(done, total int)) *Ticket {
	if language == "" {
		language = c.language
	}
	return c.queue.Enqueue(ctx, "manga "+mangaID, func(ctx context.Context) error {
		chapters, err := c.source.GetChapters(ctx, mangaID, language)
		if err != nil {
			return fmt.Errorf("failed to list chapters: %w", err)
		}

		pending := make([]*data.Chapter, 0, len(chapters))
		for _, chapter := range chapters {
			switch {
			case chapter == nil:
			case chapter.ExternalURL != "":
				c.logger.Info("skipping externally hosted chapter",
					logging.String(logging.FieldMangaID, mangaID),
					logging.String(logging.FieldChapterID, chapter.ID))
			case c.downloader.IsChapterDownloaded(mangaID, chapter.ID, c.minPages):
			default:
				pending = append(pending, chapter)
			}
		}

		var callback func(int, error)
		if progress != nil {
			callback = func(index int, _ error) { progress(index, len(pending)) }
		}
		result := c.downloader.DownloadManga(ctx, mangaID, pending, callback)

		c.mu.Lock()
		c.results[mangaID] = result
		c.mu.Unlock()
		return result.Err()
	})
}

// LastResult returns the outcome of the most recent queued manga download.
func (c *MangaController) LastResult(mangaID string) (*MangaDownloadResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.results[mangaID]
	return result, ok
}

// QueueChapterDownload downloads one chapter behind any queued work.
func (c *MangaController) QueueChapterDownload(ctx context.Context, mangaID, chapterID string) *Ticket {
	return c.queue.Enqueue(ctx, "chapter "+chapterID, func(ctx context.Context) error {
		return c.downloader.DownloadChapter(ctx, mangaID, chapterID)
	})
}

// ReaderPages returns what a reader should display for a chapter: local file
// paths when the chapter is offline (true), otherwise remote page URLs.
func (c *MangaController) ReaderPages(ctx context.Context, mangaID, chapterID string) ([]string, bool, error) {
	if paths, ok := c.downloader.GetOfflineChapter(ctx, chapterID); ok {
		return paths, true, nil
	}
	pages, err := c.source.ResolveChapterPages(ctx, chapterID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve pages: %w", err)
	}
	c.logger.Debug("serving chapter from network",
		logging.String(logging.FieldMangaID, mangaID),
		logging.String(logging.FieldChapterID, chapterID))
	return pages.URLs(), false, nil
}

// ChapterStatus is the on-device state of one chapter.
type ChapterStatus struct {
	Chapter    *data.Chapter
	Downloaded bool
	Read       bool
}

// MangaStatus is the on-device state of a manga.
type MangaStatus struct {
	MangaID    string
	Chapters   []ChapterStatus
	Read       ReadStatus
	Downloaded int
	Complete   bool
	Progress   *data.ContinueReadingEntry
}

// MangaStatus lists the chapters of a manga with their download and read
// state. language defaults to the configured one.
func (c *MangaController) MangaStatus(ctx context.Context, mangaID, language string) (*MangaStatus, error) {
	if language == "" {
		language = c.language
	}
	chapters, err := c.source.GetChapters(ctx, mangaID, language)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}

	ids := make([]string, len(chapters))
	for i, chapter := range chapters {
		ids[i] = chapter.ID
	}
	readIDs, err := c.history.GetForManga(ctx, mangaID, ids)
	if err != nil {
		return nil, err
	}
	read := make(map[string]struct{}, len(readIDs))
	for _, id := range readIDs {
		read[id] = struct{}{}
	}

	status := &MangaStatus{MangaID: mangaID, Chapters: make([]ChapterStatus, len(chapters))}
	for i, chapter := range chapters {
		_, isRead := read[chapter.ID]
		downloaded := c.downloader.IsChapterDownloaded(mangaID, chapter.ID, c.minPages)
		if downloaded {
			status.Downloaded++
		}
		status.Chapters[i] = ChapterStatus{Chapter: chapter, Downloaded: downloaded, Read: isRead}
	}
	if status.Read, err = c.history.Status(ctx, ids); err != nil {
		return nil, err
	}
	status.Complete = len(ids) > 0 && c.downloader.IsMangaDownloaded(mangaID, ids)

	entry, ok, err := c.continueReading.Get(ctx, mangaID)
	if err != nil {
		return nil, err
	}
	if ok {
		status.Progress = &entry
	}
	return status, nil
}

// ExportEPUB packages every offline chapter of a manga into outDir. When the
// content API cannot be reached the chapters on disk are used as they are.
func (c *MangaController) ExportEPUB(ctx context.Context, mangaID, outDir string) (string, error) {
	manga, err := c.source.GetManga(ctx, mangaID)
	if err != nil {
		c.logger.Warn("manga details unavailable, exporting with id as title",
			logging.String(logging.FieldMangaID, mangaID),
			logging.Error(err))
		manga = &data.Manga{ID: mangaID, Name: mangaID}
	}

	chapters, err := c.source.GetChapters(ctx, mangaID, c.language)
	if err != nil {
		chapters = nil
		for _, id := range c.downloader.DownloadedChapters(mangaID) {
			chapters = append(chapters, &data.Chapter{ID: id, MangaID: mangaID, Number: id})
		}
	}

	var offline []integrations.OfflineChapter
	for _, chapter := range chapters {
		if pages, ok := c.downloader.GetOfflineChapter(ctx, chapter.ID); ok {
			offline = append(offline, integrations.OfflineChapter{Chapter: chapter, Pages: pages})
		}
	}
	if len(offline) == 0 {
		return "", fmt.Errorf("no downloaded chapters for %s", mangaID)
	}

	path, err := c.newExporter(outDir).Export(manga, offline)
	if err != nil {
		return "", fmt.Errorf("failed to export %s: %w", mangaID, err)
	}
	c.logger.Info("epub exported",
		logging.String(logging.FieldMangaID, mangaID),
		logging.Int("chapters", len(offline)),
		logging.String("path", path))
	return path, nil
}

// Close waits for queued downloads, then releases the progress channel and
// the store.
func (c *MangaController) Close() error {
	c.closeOnce.Do(func() {
		c.queue.Close()
		c.downloader.Close()
		c.closeErr = c.store.Close()
	})
	return c.closeErr
}
