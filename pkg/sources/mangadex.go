package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/kerbaras/mangashelf/pkg/utils"
)

const feedPageSize = 100

type Manga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       map[string]string `json:"title"`
		Description map[string]string `json:"description"`
	} `json:"attributes"`
	Relationships []struct {
		Type       string `json:"type"`
		Attributes struct {
			FileName string `json:"fileName"`
		} `json:"attributes"`
	} `json:"relationships"`
}

func (m *Manga) ToManga(uploadsURL string) *data.Manga {
	manga := &data.Manga{
		ID:          m.ID,
		Name:        localized(m.Attributes.Title),
		Description: localized(m.Attributes.Description),
		Source:      "mangadex",
	}
	for _, rel := range m.Relationships {
		if rel.Type == "cover_art" && rel.Attributes.FileName != "" {
			manga.CoverURL = fmt.Sprintf("%s/covers/%s/%s", uploadsURL, m.ID, rel.Attributes.FileName)
			break
		}
	}
	return manga
}

type Chapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       string `json:"title"`
		Language    string `json:"translatedLanguage"`
		Volume      string `json:"volume"`
		Number      string `json:"chapter"`
		Pages       int    `json:"pages"`
		ExternalURL string `json:"externalUrl"`
	} `json:"attributes"`
}

func (c *Chapter) ToChapter(mangaID string) *data.Chapter {
	return &data.Chapter{
		ID:          c.ID,
		MangaID:     mangaID,
		Title:       c.Attributes.Title,
		Language:    c.Attributes.Language,
		Volume:      c.Attributes.Volume,
		Number:      c.Attributes.Number,
		Pages:       c.Attributes.Pages,
		ExternalURL: c.Attributes.ExternalURL,
	}
}

type MangaDex struct {
	api        *utils.API
	uploadsURL string
}

func NewMangaDex(api *utils.API, uploadsURL string) *MangaDex {
	return &MangaDex{api: api, uploadsURL: strings.TrimRight(uploadsURL, "/")}
}

func (m *MangaDex) ResolveChapterPages(ctx context.Context, chapterID string) (*data.ChapterPages, error) {
	var server struct {
		BaseURL string `json:"baseUrl"`
		Chapter struct {
			Hash string   `json:"hash"`
			Data []string `json:"data"`
		} `json:"chapter"`
	}
	path := fmt.Sprintf("/at-home/server/%s", url.PathEscape(chapterID))
	err := m.api.Get(ctx, path, url.Values{"forcePort443": {"true"}}, &server)
	if err != nil {
		var statusErr *utils.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrChapterUnavailable, chapterID)
		}
		return nil, err
	}
	if server.BaseURL == "" || len(server.Chapter.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChapterUnavailable, chapterID)
	}
	return &data.ChapterPages{
		BaseURL: server.BaseURL,
		Hash:    server.Chapter.Hash,
		Files:   server.Chapter.Data,
	}, nil
}

func (m *MangaDex) ResolveChapterNumber(ctx context.Context, chapterID string) (string, error) {
	var chapter struct {
		Data Chapter `json:"data"`
	}
	if err := m.api.Get(ctx, fmt.Sprintf("/chapter/%s", url.PathEscape(chapterID)), nil, &chapter); err != nil {
		return "", err
	}
	return chapter.Data.Attributes.Number, nil
}

func (m *MangaDex) GetManga(ctx context.Context, mangaID string) (*data.Manga, error) {
	var manga struct {
		Data Manga `json:"data"`
	}
	path := fmt.Sprintf("/manga/%s", url.PathEscape(mangaID))
	if err := m.api.Get(ctx, path, url.Values{"includes[]": {"cover_art"}}, &manga); err != nil {
		return nil, err
	}
	return manga.Data.ToManga(m.uploadsURL), nil
}

// GetChapters walks the whole manga feed in ascending chapter order.
func (m *MangaDex) GetChapters(ctx context.Context, mangaID, language string) ([]*data.Chapter, error) {
	path := fmt.Sprintf("/manga/%s/feed", url.PathEscape(mangaID))
	var out []*data.Chapter
	for offset := 0; ; offset += feedPageSize {
		params := url.Values{
			"limit":          {strconv.Itoa(feedPageSize)},
			"offset":         {strconv.Itoa(offset)},
			"order[chapter]": {"asc"},
		}
		if language != "" {
			params.Set("translatedLanguage[]", language)
		}
		var feed struct {
			Data  []Chapter `json:"data"`
			Total int       `json:"total"`
		}
		if err := m.api.Get(ctx, path, params, &feed); err != nil {
			return nil, err
		}
		for i := range feed.Data {
			out = append(out, feed.Data[i].ToChapter(mangaID))
		}
		if len(feed.Data) == 0 || offset+len(feed.Data) >= feed.Total {
			break
		}
	}
	return out, nil
}

// localized prefers the English value, then any value.
func localized(values map[string]string) string {
	if v, ok := values["en"]; ok && v != "" {
		return v
	}
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
