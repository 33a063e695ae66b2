package components

import (
	"strings"
	"testing"
	"time"

	"github.com/kerbaras/mangashelf/pkg/data"
)

func testEntries() []data.ContinueReadingEntry {
	return []data.ContinueReadingEntry{
		{MangaID: "1", Title: "Manga 1", ChapterNumber: "12", Page: 4, Timestamp: 1_700_000_000_000},
		{MangaID: "2", Title: "Manga 2", ChapterNumber: "unknown", Timestamp: 1_699_990_000_000},
	}
}

func TestNewShelf(t *testing.T) {
	shelf := NewShelf()

	if len(shelf.Items) != 0 {
		t.Errorf("Expected 0 items, got %d", len(shelf.Items))
	}
	if shelf.SelectedIndex != 0 {
		t.Errorf("Expected SelectedIndex 0, got %d", shelf.SelectedIndex)
	}
}

func TestShelfSetItemsClampsSelection(t *testing.T) {
	shelf := NewShelf()
	shelf.SetItems(testEntries())
	shelf.SelectedIndex = 1

	shelf.SetItems(testEntries()[:1])
	if shelf.SelectedIndex != 0 {
		t.Errorf("Expected SelectedIndex 0, got %d", shelf.SelectedIndex)
	}

	shelf.SetItems(nil)
	if shelf.Selected() != nil {
		t.Error("Expected nil selection for empty shelf")
	}
}

func TestShelfNextPrevWraps(t *testing.T) {
	shelf := NewShelf()
	shelf.Next()
	shelf.Prev()
	if shelf.SelectedIndex != 0 {
		t.Errorf("Expected SelectedIndex to remain 0, got %d", shelf.SelectedIndex)
	}

	shelf.SetItems(testEntries())
	shelf.Prev()
	if shelf.Selected().MangaID != "2" {
		t.Errorf("Expected wrap to last item, got %s", shelf.Selected().MangaID)
	}
	shelf.Next()
	if shelf.Selected().MangaID != "1" {
		t.Errorf("Expected wrap to first item, got %s", shelf.Selected().MangaID)
	}
}

func TestShelfView(t *testing.T) {
	shelf := NewShelf()
	shelf.Now = func() time.Time { return time.UnixMilli(1_700_000_000_000).Add(2 * time.Hour) }

	if !strings.Contains(shelf.View(), "Nothing to continue reading") {
		t.Error("Expected empty shelf message")
	}

	shelf.SetItems(testEntries())
	view := shelf.View()

	if !strings.Contains(view, "Manga 1") {
		t.Error("Expected title in view")
	}
	if !strings.Contains(view, "Chapter 12, page 5") {
		t.Error("Expected chapter and page in view")
	}
	if !strings.Contains(view, "2h ago") {
		t.Error("Expected relative time in view")
	}
}

func TestFormatAgo(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := FormatAgo(tt.d); got != tt.want {
			t.Errorf("FormatAgo(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
