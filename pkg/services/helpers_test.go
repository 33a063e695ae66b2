package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing

type mockSource struct {
	resolveChapterPagesFunc  func(ctx context.Context, chapterID string) (*data.ChapterPages, error)
	resolveChapterNumberFunc func(ctx context.Context, chapterID string) (string, error)
	getMangaFunc             func(ctx context.Context, mangaID string) (*data.Manga, error)
	getChaptersFunc          func(ctx context.Context, mangaID, language string) ([]*data.Chapter, error)
}

func (m *mockSource) ResolveChapterPages(ctx context.Context, chapterID string) (*data.ChapterPages, error) {
	if m.resolveChapterPagesFunc != nil {
		return m.resolveChapterPagesFunc(ctx, chapterID)
	}
	return &data.ChapterPages{}, nil
}

func (m *mockSource) ResolveChapterNumber(ctx context.Context, chapterID string) (string, error) {
	if m.resolveChapterNumberFunc != nil {
		return m.resolveChapterNumberFunc(ctx, chapterID)
	}
	return "1", nil
}

func (m *mockSource) GetManga(ctx context.Context, mangaID string) (*data.Manga, error) {
	if m.getMangaFunc != nil {
		return m.getMangaFunc(ctx, mangaID)
	}
	return &data.Manga{ID: mangaID, Name: "Manga " + mangaID}, nil
}

func (m *mockSource) GetChapters(ctx context.Context, mangaID, language string) ([]*data.Chapter, error) {
	if m.getChaptersFunc != nil {
		return m.getChaptersFunc(ctx, mangaID, language)
	}
	return nil, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pageServer serves every /data/{hash}/{file} request with a PNG and records
// the request paths in order. Files named in failing answer 500.
type pageServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string
	failing  map[string]bool
	body     []byte
}

func newPageServer(t *testing.T) *pageServer {
	t.Helper()
	ps := &pageServer{failing: map[string]bool{}, body: testPNG(t)}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.requests = append(ps.requests, r.URL.Path)
		fail := ps.failing[r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]]
		body := ps.body
		ps.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pageServer) fail(file string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.failing[file] = true
}

func (ps *pageServer) setBody(body []byte) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.body = body
}

func (ps *pageServer) paths() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]string(nil), ps.requests...)
}

// pagesSource resolves every chapter to the given files on ps.
func pagesSource(ps *pageServer, files ...string) *mockSource {
	return &mockSource{
		resolveChapterPagesFunc: func(ctx context.Context, chapterID string) (*data.ChapterPages, error) {
			return &data.ChapterPages{BaseURL: ps.URL, Hash: "h", Files: files}, nil
		},
	}
}

func newTestDownloader(t *testing.T, source *mockSource) (*Downloader, data.KeyValueStore, string) {
	t.Helper()
	store := data.NewMemoryStore()
	dir := t.TempDir()
	d := NewDownloader(source, store, dir, DownloaderOptions{VerifyImages: true})
	t.Cleanup(d.Close)
	return d, store, dir
}
