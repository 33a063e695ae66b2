package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/kerbaras/mangashelf/pkg/logging"
)

// Favorites is the list of saved manga, newest first, without duplicates.
type Favorites struct {
	store  data.KeyValueStore
	max    int
	now    func() time.Time
	logger *slog.Logger
}

func NewFavorites(store data.KeyValueStore, max int, logger *slog.Logger) *Favorites {
	if max <= 0 {
		max = 20
	}
	return &Favorites{
		store:  store,
		max:    max,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "favorites"),
	}
}

// Save adds manga to the front of the list unless it is already saved. The
// oldest entries fall off once the cap is reached.
func (f *Favorites) Save(ctx context.Context, manga *data.Manga) error {
	if manga == nil || strings.TrimSpace(manga.ID) == "" {
		f.logger.Warn("ignoring favorite without manga id")
		return nil
	}
	title := manga.Name
	if title == "" {
		title = "Untitled"
	}
	err := data.UpdateJSON(ctx, f.store, data.KeyFavorites, func(list *[]data.FavoriteEntry) error {
		for _, entry := range *list {
			if entry.MangaID == manga.ID {
				return errUnchanged
			}
		}
		next := append([]data.FavoriteEntry{{
			MangaID: manga.ID,
			Title:   title,
			Cover:   manga.CoverURL,
			SavedAt: f.now().UnixMilli(),
		}}, *list...)
		if len(next) > f.max {
			next = next[:f.max]
		}
		*list = next
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save favorite: %w", err)
	}
	f.logger.Debug("saved favorite", logging.String(logging.FieldMangaID, manga.ID))
	return nil
}

func (f *Favorites) Remove(ctx context.Context, mangaID string) error {
	err := data.UpdateJSON(ctx, f.store, data.KeyFavorites, func(list *[]data.FavoriteEntry) error {
		kept := (*list)[:0]
		for _, entry := range *list {
			if entry.MangaID != mangaID {
				kept = append(kept, entry)
			}
		}
		*list = kept
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

func (f *Favorites) IsSaved(ctx context.Context, mangaID string) (bool, error) {
	list, err := f.List(ctx)
	if err != nil {
		return false, err
	}
	for _, entry := range list {
		if entry.MangaID == mangaID {
			return true, nil
		}
	}
	return false, nil
}

func (f *Favorites) List(ctx context.Context) ([]data.FavoriteEntry, error) {
	var list []data.FavoriteEntry
	if _, err := data.GetJSON(ctx, f.store, data.KeyFavorites, &list); err != nil {
		return nil, err
	}
	return list, nil
}
