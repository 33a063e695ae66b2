package integrations

import "github.com/kerbaras/mangashelf/pkg/data"

// OfflineChapter is a downloaded chapter with its local page files in page
// order.
type OfflineChapter struct {
	Chapter *data.Chapter
	Pages   []string
}

// Exporter packages offline chapters into a single readable file.
type Exporter interface {
	Export(manga *data.Manga, chapters []OfflineChapter) (string, error)
}
