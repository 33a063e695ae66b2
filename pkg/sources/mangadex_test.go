package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/kerbaras/mangashelf/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMangaDex(t *testing.T, handler http.HandlerFunc) *MangaDex {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewMangaDex(utils.NewAPI(server.URL, utils.APIOptions{}), "https://uploads.test/")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestMangaDex_ResolveChapterPages(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/at-home/server/ch1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("forcePort443"))
		writeJSON(w, map[string]any{
			"baseUrl": "https://cdn/x",
			"chapter": map[string]any{"hash": "h", "data": []string{"p1.png", "p2.png"}},
		})
	})

	pages, err := md.ResolveChapterPages(context.Background(), "ch1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x", pages.BaseURL)
	assert.Equal(t, "h", pages.Hash)
	assert.Equal(t, []string{"p1.png", "p2.png"}, pages.Files)
}

func TestMangaDex_ResolveChapterPagesUnavailable(t *testing.T) {
	t.Run("empty page list", func(t *testing.T) {
		md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"baseUrl": "https://cdn/x", "chapter": map[string]any{"hash": "h", "data": []string{}}})
		})
		_, err := md.ResolveChapterPages(context.Background(), "ext")
		assert.ErrorIs(t, err, ErrChapterUnavailable)
	})

	t.Run("not found", func(t *testing.T) {
		md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := md.ResolveChapterPages(context.Background(), "ext")
		assert.ErrorIs(t, err, ErrChapterUnavailable)
	})

	t.Run("server error is not unavailability", func(t *testing.T) {
		md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})
		_, err := md.ResolveChapterPages(context.Background(), "ext")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrChapterUnavailable)
	})
}

func TestMangaDex_ResolveChapterNumber(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chapter/ch1", r.URL.Path)
		writeJSON(w, map[string]any{"data": map[string]any{"id": "ch1", "attributes": map[string]any{"chapter": "12.5"}}})
	})

	number, err := md.ResolveChapterNumber(context.Background(), "ch1")
	require.NoError(t, err)
	assert.Equal(t, "12.5", number)
}

func TestMangaDex_GetManga(t *testing.T) {
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manga/m1", r.URL.Path)
		writeJSON(w, map[string]any{"data": map[string]any{
			"id": "m1",
			"attributes": map[string]any{
				"title":       map[string]string{"ja": "ナルト", "en": "Naruto"},
				"description": map[string]string{"en": "Ninja"},
			},
			"relationships": []map[string]any{
				{"type": "author"},
				{"type": "cover_art", "attributes": map[string]string{"fileName": "cover.jpg"}},
			},
		}})
	})

	manga, err := md.GetManga(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", manga.ID)
	assert.Equal(t, "Naruto", manga.Name)
	assert.Equal(t, "Ninja", manga.Description)
	assert.Equal(t, "https://uploads.test/covers/m1/cover.jpg", manga.CoverURL)
}

func TestMangaDex_GetChaptersPaginates(t *testing.T) {
	const total = 150
	md := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manga/m1/feed", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("translatedLanguage[]"))
		assert.Equal(t, "asc", r.URL.Query().Get("order[chapter]"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var chapters []map[string]any
		for i := offset; i < total && i < offset+limit; i++ {
			chapters = append(chapters, map[string]any{
				"id": fmt.Sprintf("ch%d", i+1),
				"attributes": map[string]any{
					"chapter":            strconv.Itoa(i + 1),
					"translatedLanguage": "en",
					"pages":              20,
				},
			})
		}
		writeJSON(w, map[string]any{"data": chapters, "total": total})
	})

	chapters, err := md.GetChapters(context.Background(), "m1", "en")
	require.NoError(t, err)
	require.Len(t, chapters, total)
	assert.Equal(t, "ch1", chapters[0].ID)
	assert.Equal(t, "m1", chapters[0].MangaID)
	assert.Equal(t, 20, chapters[0].Pages)
	assert.Equal(t, "150", chapters[total-1].Number)
}
