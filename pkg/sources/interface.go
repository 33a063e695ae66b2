package sources

import (
	"context"
	"errors"

	"github.com/kerbaras/mangashelf/pkg/data"
)

// ErrChapterUnavailable means the chapter has no pages on the content API,
// usually because it is hosted on an external site.
var ErrChapterUnavailable = errors.New("chapter unavailable")

type Source interface {
	ResolveChapterPages(ctx context.Context, chapterID string) (*data.ChapterPages, error)
	ResolveChapterNumber(ctx context.Context, chapterID string) (string, error)
	GetManga(ctx context.Context, mangaID string) (*data.Manga, error)
	GetChapters(ctx context.Context, mangaID, language string) ([]*data.Chapter, error)
}
