package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/kerbaras/mangashelf/pkg/logging"
)

// UnknownChapterNumber is stored when the chapter number cannot be resolved.
const UnknownChapterNumber = "unknown"

// ChapterNumberResolver looks up the display number of a chapter.
type ChapterNumberResolver interface {
	ResolveChapterNumber(ctx context.Context, chapterID string) (string, error)
}

// ContinueReading keeps the most recent reading position per manga, newest
// first, holding at most one entry per manga and at most max entries.
type ContinueReading struct {
	store    data.KeyValueStore
	resolver ChapterNumberResolver
	max      int
	now      func() time.Time
	logger   *slog.Logger

	mu          sync.Mutex
	subscribers map[int]chan struct{}
	nextSub     int
}

func NewContinueReading(store data.KeyValueStore, resolver ChapterNumberResolver, max int, logger *slog.Logger) *ContinueReading {
	if max <= 0 {
		max = 10
	}
	return &ContinueReading{
		store:       store,
		resolver:    resolver,
		max:         max,
		now:         time.Now,
		logger:      logging.NewComponentLogger(logger, "continue_reading"),
		subscribers: make(map[int]chan struct{}),
	}
}

// SaveProgress records that the user is reading chapterID of manga at page.
// Missing identifiers make the call a logged no-op.
func (c *ContinueReading) SaveProgress(ctx context.Context, manga *data.Manga, lastReadChapterID string, page int) error {
	if manga == nil || strings.TrimSpace(manga.ID) == "" || strings.TrimSpace(lastReadChapterID) == "" {
		c.logger.Warn("ignoring progress without manga or chapter id",
			logging.String(logging.FieldEventType, "continue_reading_invalid"),
			logging.String(logging.FieldChapterID, lastReadChapterID))
		return nil
	}
	if page < 0 {
		page = 0
	}

	title := manga.Name
	if title == "" {
		title = "Untitled"
	}
	entry := data.ContinueReadingEntry{
		MangaID:           manga.ID,
		Title:             title,
		Cover:             manga.CoverURL,
		LastReadChapterID: lastReadChapterID,
		Page:              page,
		ChapterNumber:     c.chapterNumber(ctx, lastReadChapterID),
		Timestamp:         c.now().UnixMilli(),
	}

	err := data.UpdateJSON(ctx, c.store, data.KeyContinueReading, func(list *[]data.ContinueReadingEntry) error {
		next := make([]data.ContinueReadingEntry, 0, len(*list)+1)
		next = append(next, entry)
		for _, existing := range *list {
			if existing.MangaID != entry.MangaID {
				next = append(next, existing)
			}
		}
		if len(next) > c.max {
			next = next[:c.max]
		}
		*list = next
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save reading progress: %w", err)
	}

	c.logger.Debug("saved reading progress",
		logging.String(logging.FieldMangaID, manga.ID),
		logging.String(logging.FieldChapterID, lastReadChapterID),
		logging.Int(logging.FieldPage, page))
	c.notify()
	return nil
}

// chapterNumber never fails: lookup errors fall back to UnknownChapterNumber.
func (c *ContinueReading) chapterNumber(ctx context.Context, chapterID string) string {
	if c.resolver == nil {
		return UnknownChapterNumber
	}
	number, err := c.resolver.ResolveChapterNumber(ctx, chapterID)
	if err != nil || strings.TrimSpace(number) == "" {
		c.logger.Warn("chapter number lookup failed",
			logging.String(logging.FieldChapterID, chapterID),
			logging.Error(err))
		return UnknownChapterNumber
	}
	return number
}

// GetAll returns every entry, most recent first.
func (c *ContinueReading) GetAll(ctx context.Context) ([]data.ContinueReadingEntry, error) {
	var list []data.ContinueReadingEntry
	if _, err := data.GetJSON(ctx, c.store, data.KeyContinueReading, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetRecent returns at most limit entries, most recent first.
func (c *ContinueReading) GetRecent(ctx context.Context, limit int) ([]data.ContinueReadingEntry, error) {
	list, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		limit = 0
	}
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Get returns the entry for one manga.
func (c *ContinueReading) Get(ctx context.Context, mangaID string) (data.ContinueReadingEntry, bool, error) {
	list, err := c.GetAll(ctx)
	if err != nil {
		return data.ContinueReadingEntry{}, false, err
	}
	for _, entry := range list {
		if entry.MangaID == mangaID {
			return entry, true, nil
		}
	}
	return data.ContinueReadingEntry{}, false, nil
}

// Remove drops the entries of the given mangas.
func (c *ContinueReading) Remove(ctx context.Context, mangaIDs ...string) error {
	if len(mangaIDs) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(mangaIDs))
	for _, id := range mangaIDs {
		drop[id] = struct{}{}
	}
	err := data.UpdateJSON(ctx, c.store, data.KeyContinueReading, func(list *[]data.ContinueReadingEntry) error {
		kept := (*list)[:0]
		for _, entry := range *list {
			if _, ok := drop[entry.MangaID]; !ok {
				kept = append(kept, entry)
			}
		}
		*list = kept
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove reading progress: %w", err)
	}
	c.notify()
	return nil
}

// ClearAll deletes the whole list and signals subscribers.
func (c *ContinueReading) ClearAll(ctx context.Context) error {
	if err := c.store.Remove(ctx, data.KeyContinueReading); err != nil {
		return fmt.Errorf("failed to clear reading progress: %w", err)
	}
	c.logger.Info("cleared continue reading list")
	c.notify()
	return nil
}

// Subscribe returns a channel that receives a signal whenever the list
// changes, and a function that cancels the subscription. Signals coalesce.
func (c *ContinueReading) Subscribe() (<-chan struct{}, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan struct{}, 1)
	c.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

func (c *ContinueReading) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
