package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/kerbaras/mangashelf/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chapters(ids ...string) []*data.Chapter {
	out := make([]*data.Chapter, len(ids))
	for i, id := range ids {
		out[i] = &data.Chapter{ID: id, Number: id}
	}
	return out
}

func TestDownloadManga(t *testing.T) {
	ps := newPageServer(t)
	d, _, _ := newTestDownloader(t, pagesSource(ps, "p1.png"))

	var calls []int
	result := d.DownloadManga(context.Background(), "m1", chapters("c1", "c2", "c3"), func(index int, err error) {
		assert.NoError(t, err)
		calls = append(calls, index)
	})

	assert.Equal(t, []int{1, 2, 3}, calls)
	assert.True(t, result.Complete())
	assert.NoError(t, result.Err())
	assert.Equal(t, []string{"c1", "c2", "c3"}, result.Succeeded)
	assert.True(t, d.IsMangaDownloaded("m1", []string{"c3", "c1", "c2", "c1"}))
	assert.Equal(t, []string{"c1", "c2", "c3"}, d.DownloadedChapters("m1"))
}

func TestDownloadMangaPartial(t *testing.T) {
	ps := newPageServer(t)
	source := pagesSource(ps, "p1.png")
	inner := source.resolveChapterPagesFunc
	source.resolveChapterPagesFunc = func(ctx context.Context, chapterID string) (*data.ChapterPages, error) {
		if chapterID == "c2" {
			return nil, sources.ErrChapterUnavailable
		}
		return inner(ctx, chapterID)
	}
	d, _, _ := newTestDownloader(t, source)

	var failures int
	result := d.DownloadManga(context.Background(), "m1", chapters("c1", "c2", "c3"), func(index int, err error) {
		if err != nil {
			failures++
			assert.Equal(t, 2, index)
		}
	})

	assert.Equal(t, 1, failures)
	assert.False(t, result.Complete())
	assert.False(t, result.Cancelled)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, []string{"c1", "c3"}, result.Succeeded)
	assert.Equal(t, []string{"c2"}, result.FailedIDs())
	assert.ErrorIs(t, result.Err(), sources.ErrChapterUnavailable)
	assert.False(t, d.IsMangaDownloaded("m1", []string{"c1", "c2", "c3"}))

	var last DownloadProgress
	for len(d.GetProgressChannel()) > 0 {
		last = <-d.GetProgressChannel()
	}
	assert.Equal(t, StatusPartial, last.Status)
	assert.Equal(t, 2, last.ChaptersDone)
	assert.Equal(t, 3, last.ChaptersTotal)
}

func TestDownloadMangaCancelled(t *testing.T) {
	ps := newPageServer(t)
	d, _, _ := newTestDownloader(t, pagesSource(ps, "p1.png"))

	ctx, cancel := context.WithCancel(context.Background())
	result := d.DownloadManga(ctx, "m1", chapters("c1", "c2", "c3"), func(index int, err error) {
		if index == 1 {
			cancel()
		}
	})

	assert.True(t, result.Cancelled)
	assert.Equal(t, []string{"c1"}, result.Succeeded)
	assert.Empty(t, result.Failed)
	assert.ErrorIs(t, result.Err(), context.Canceled)
	assert.False(t, d.IsChapterDownloaded("m1", "c2", 1))
}

func TestDownloadMangaSkipsNilChapters(t *testing.T) {
	ps := newPageServer(t)
	d, _, _ := newTestDownloader(t, pagesSource(ps, "p1.png"))

	result := d.DownloadManga(context.Background(), "m1", []*data.Chapter{nil, {ID: "c1"}}, nil)
	assert.Equal(t, 1, result.Total)
	assert.True(t, result.Complete())
}

func TestDownloadMangaEmpty(t *testing.T) {
	d, _, _ := newTestDownloader(t, &mockSource{})
	result := d.DownloadManga(context.Background(), "m1", nil, nil)
	assert.True(t, result.Complete())
	assert.NoError(t, result.Err())
}

func TestIsMangaDownloaded(t *testing.T) {
	d, _, dir := newTestDownloader(t, &mockSource{})

	assert.False(t, d.IsMangaDownloaded("m1", []string{"c1"}))

	for _, name := range []string{"c1", "c2", ".c3.partial"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "m1", name), 0755))
	}

	tests := []struct {
		name string
		ids  []string
		want bool
	}{
		{"all present", []string{"c1", "c2"}, true},
		{"reordered with duplicates", []string{"c2", "c1", "c2"}, true},
		{"subset", []string{"c2"}, true},
		{"empty", nil, true},
		{"missing", []string{"c1", "c4"}, false},
		{"staging does not count", []string{"c3"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.IsMangaDownloaded("m1", tt.ids))
		})
	}
}

func TestDeleteManga(t *testing.T) {
	ps := newPageServer(t)
	d, _, dir := newTestDownloader(t, pagesSource(ps, "p1.png"))
	ctx := context.Background()

	require.NoError(t, d.DownloadChapter(ctx, "m1", "c1"))
	require.NoError(t, d.DownloadChapter(ctx, "m1", "c2"))
	require.NoError(t, d.DownloadChapter(ctx, "m2", "c9"))

	require.NoError(t, d.DeleteManga(ctx, "m1"))

	_, err := os.Stat(filepath.Join(dir, "m1"))
	assert.True(t, os.IsNotExist(err))
	_, ok := d.GetOfflineChapter(ctx, "c1")
	assert.False(t, ok)
	_, ok = d.GetOfflineChapter(ctx, "c9")
	assert.True(t, ok)

	assert.NoError(t, d.DeleteManga(ctx, "m1"))
	assert.Error(t, d.DeleteManga(ctx, ".."))
}

func TestMangaDownloadResultErr(t *testing.T) {
	boom := errors.New("boom")
	result := &MangaDownloadResult{
		MangaID:   "m1",
		Total:     2,
		Succeeded: []string{"c1"},
		Failed:    []ChapterFailure{{ChapterID: "c2", Err: boom}},
	}
	err := result.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "1 of 2 chapters failed")
}
