package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContinueReading(t *testing.T, max int) (*ContinueReading, data.KeyValueStore) {
	t.Helper()
	store := data.NewMemoryStore()
	cr := NewContinueReading(store, &mockSource{
		resolveChapterNumberFunc: func(ctx context.Context, chapterID string) (string, error) {
			return "n-" + chapterID, nil
		},
	}, max, nil)
	clock := time.UnixMilli(1_700_000_000_000)
	cr.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return cr, store
}

func TestSaveProgressKeepsOneEntryPerManga(t *testing.T) {
	cr, _ := newTestContinueReading(t, 10)
	ctx := context.Background()
	manga := &data.Manga{ID: "m1", Name: "One", CoverURL: "https://cdn/cover.jpg"}

	require.NoError(t, cr.SaveProgress(ctx, manga, "c1", 3))
	require.NoError(t, cr.SaveProgress(ctx, &data.Manga{ID: "m2", Name: "Two"}, "x1", 0))
	require.NoError(t, cr.SaveProgress(ctx, manga, "c2", 7))

	list, err := cr.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "m1", list[0].MangaID)
	assert.Equal(t, "c2", list[0].LastReadChapterID)
	assert.Equal(t, 7, list[0].Page)
	assert.Equal(t, "n-c2", list[0].ChapterNumber)
	assert.Equal(t, "One", list[0].Title)
	assert.Equal(t, "https://cdn/cover.jpg", list[0].Cover)
	assert.Equal(t, "m2", list[1].MangaID)
	assert.True(t, list[0].Time().After(list[1].Time()))
}

func TestSaveProgressEvictsOldest(t *testing.T) {
	cr, _ := newTestContinueReading(t, 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("m%d", i)
		require.NoError(t, cr.SaveProgress(ctx, &data.Manga{ID: id, Name: id}, "c1", 0))
	}

	list, err := cr.GetAll(ctx)
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, entry := range list {
		ids[i] = entry.MangaID
	}
	assert.Equal(t, []string{"m5", "m4", "m3"}, ids)
}

func TestSaveProgressInvalidInputIsNoop(t *testing.T) {
	cr, store := newTestContinueReading(t, 10)
	ctx := context.Background()

	assert.NoError(t, cr.SaveProgress(ctx, nil, "c1", 1))
	assert.NoError(t, cr.SaveProgress(ctx, &data.Manga{ID: ""}, "c1", 1))
	assert.NoError(t, cr.SaveProgress(ctx, &data.Manga{ID: "m1"}, " ", 1))

	_, ok, err := store.Get(ctx, data.KeyContinueReading)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveProgressDefaults(t *testing.T) {
	store := data.NewMemoryStore()
	cr := NewContinueReading(store, &mockSource{
		resolveChapterNumberFunc: func(ctx context.Context, chapterID string) (string, error) {
			return "", errors.New("offline")
		},
	}, 0, nil)
	ctx := context.Background()

	require.NoError(t, cr.SaveProgress(ctx, &data.Manga{ID: "m1"}, "c1", -4))

	entry, ok, err := cr.Get(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, UnknownChapterNumber, entry.ChapterNumber)
	assert.Equal(t, 0, entry.Page)
	assert.Equal(t, "Untitled", entry.Title)
	assert.Equal(t, 10, cr.max)

	noResolver := NewContinueReading(store, nil, 5, nil)
	require.NoError(t, noResolver.SaveProgress(ctx, &data.Manga{ID: "m2"}, "c9", 1))
	entry, _, err = noResolver.Get(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, UnknownChapterNumber, entry.ChapterNumber)
}

func TestContinueReadingGetRecentAndRemove(t *testing.T) {
	cr, _ := newTestContinueReading(t, 10)
	ctx := context.Background()
	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, cr.SaveProgress(ctx, &data.Manga{ID: id}, "c1", 0))
	}

	recent, err := cr.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m3", recent[0].MangaID)

	none, err := cr.GetRecent(ctx, -1)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, cr.Remove(ctx, "m2", "unknown"))
	list, err := cr.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "m3", list[0].MangaID)
	assert.Equal(t, "m1", list[1].MangaID)

	_, ok, err := cr.Get(ctx, "m2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContinueReadingClearAllNotifiesSubscribers(t *testing.T) {
	cr, store := newTestContinueReading(t, 10)
	ctx := context.Background()

	reload, cancel := cr.Subscribe()
	defer cancel()

	require.NoError(t, cr.SaveProgress(ctx, &data.Manga{ID: "m1"}, "c1", 0))
	require.NoError(t, cr.SaveProgress(ctx, &data.Manga{ID: "m2"}, "c1", 0))

	// Signals coalesce into one pending reload.
	assert.Len(t, reload, 1)
	<-reload

	require.NoError(t, cr.ClearAll(ctx))
	select {
	case <-reload:
	default:
		t.Fatal("expected reload signal after ClearAll")
	}

	list, err := cr.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, ok, _ := store.Get(ctx, data.KeyContinueReading)
	assert.False(t, ok)

	cancel()
	require.NoError(t, cr.ClearAll(ctx))
	assert.Len(t, reload, 0)
}

// pausingStore holds the first Update on key after reading the current value
// until release is closed.
type pausingStore struct {
	*data.MemoryStore
	key     string
	entered chan struct{}
	release chan struct{}
	paused  bool
}

func (s *pausingStore) Update(ctx context.Context, key string, fn data.UpdateFunc) error {
	if key != s.key || s.paused {
		return s.MemoryStore.Update(ctx, key, fn)
	}
	s.paused = true
	return s.MemoryStore.Update(ctx, key, func(current string, ok bool) (string, bool, error) {
		close(s.entered)
		<-s.release
		return fn(current, ok)
	})
}

func TestClearAllDuringSaveProgressDoesNotResurrectEntries(t *testing.T) {
	ctx := context.Background()
	store := &pausingStore{
		MemoryStore: data.NewMemoryStore(),
		key:         data.KeyContinueReading,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
		paused:      true,
	}
	cr := NewContinueReading(store, &mockSource{}, 10, nil)
	require.NoError(t, cr.SaveProgress(ctx, &data.Manga{ID: "old", Name: "Old"}, "c1", 0))
	store.paused = false

	saved := make(chan error, 1)
	go func() { saved <- cr.SaveProgress(ctx, &data.Manga{ID: "new", Name: "New"}, "c1", 0) }()
	<-store.entered

	cleared := make(chan error, 1)
	go func() { cleared <- cr.ClearAll(ctx) }()

	select {
	case <-cleared:
		t.Fatal("ClearAll returned while SaveProgress was still writing")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	require.NoError(t, <-saved)
	require.NoError(t, <-cleared)

	list, err := cr.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
