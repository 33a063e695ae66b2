package data

import (
	"fmt"
	"strings"
	"time"
)

type Manga struct {
	ID          string
	Name        string
	Description string
	CoverURL    string
	Source      string
	Status      string // "downloading", "completed", "partial", "error"
}

type Chapter struct {
	ID          string
	MangaID     string
	Title       string
	Language    string
	Volume      string
	Number      string
	Pages       int
	ExternalURL string // set when the chapter is hosted outside the content API
	Downloaded  bool
	FilePath    string // Path to downloaded images directory
}

// ChapterPages is the at-home server answer for a chapter.
type ChapterPages struct {
	BaseURL string
	Hash    string
	Files   []string
}

// URL returns the remote address of a page file.
func (p *ChapterPages) URL(file string) string {
	return fmt.Sprintf("%s/data/%s/%s", strings.TrimRight(p.BaseURL, "/"), p.Hash, file)
}

// URLs returns the remote addresses of every page, in page order.
func (p *ChapterPages) URLs() []string {
	urls := make([]string, len(p.Files))
	for i, file := range p.Files {
		urls[i] = p.URL(file)
	}
	return urls
}

// ContinueReadingEntry is one shelf item of the continue-reading list.
type ContinueReadingEntry struct {
	MangaID           string `json:"mangaId"`
	Title             string `json:"title"`
	Cover             string `json:"cover,omitempty"`
	LastReadChapterID string `json:"lastReadChapterId"`
	Page              int    `json:"page"`
	ChapterNumber     string `json:"chapter"`
	Timestamp         int64  `json:"timestamp"` // unix millis
}

// Time returns the entry timestamp as a time.Time.
func (e ContinueReadingEntry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// FavoriteEntry is a manga saved by the user.
type FavoriteEntry struct {
	MangaID string `json:"mangaId"`
	Title   string `json:"title"`
	Cover   string `json:"cover,omitempty"`
	SavedAt int64  `json:"savedAt"`
}

// Logical store keys.
const (
	KeyContinueReading = "continue_reading"
	KeyOfflineChapters = "offline_chapters"
	KeyReadChapters    = "readChapters"
	KeyFavorites       = "saved_manga"
)
