package integrations

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestImage(t *testing.T, dir string, filename string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func epubEntries(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func TestNewEPubBuilder(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, NewEPubBuilder(dir).outputDir)

	tmp := NewEPubBuilder("")
	assert.NotEmpty(t, tmp.outputDir)
	os.RemoveAll(tmp.outputDir)
}

func TestCreateEPub(t *testing.T) {
	outputDir := t.TempDir()
	chapterDir := t.TempDir()

	pages := []string{
		createTestImage(t, chapterDir, "p1.png"),
		createTestImage(t, chapterDir, "p2.png"),
	}

	manga := &data.Manga{ID: "m1", Name: "Test: Manga", Description: "A test manga"}
	chapters := []OfflineChapter{
		{Chapter: &data.Chapter{ID: "ch2", Number: "2"}, Pages: pages},
		{Chapter: &data.Chapter{ID: "ch1", Number: "1", Title: "Start"}, Pages: pages},
		{Chapter: &data.Chapter{ID: "ch3", Number: "3"}},
	}

	path, err := NewEPubBuilder(outputDir).CreateEPub(manga, chapters)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, "Test_ Manga.epub"), path)

	images := 0
	for _, name := range epubEntries(t, path) {
		if strings.HasSuffix(name, ".png") {
			images++
		}
	}
	assert.Equal(t, 4, images)
}

func TestCreateEPubNoChapters(t *testing.T) {
	builder := NewEPubBuilder(t.TempDir())
	manga := &data.Manga{ID: "m1", Name: "Empty"}

	_, err := builder.CreateEPub(manga, nil)
	assert.Error(t, err)

	_, err = builder.CreateEPub(manga, []OfflineChapter{{Chapter: &data.Chapter{ID: "ch1"}}})
	assert.Error(t, err)

	_, err = builder.CreateEPub(nil, nil)
	assert.Error(t, err)
}

func TestCreateEPubRejectsNonImagePage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := NewEPubBuilder(t.TempDir()).CreateEPub(
		&data.Manga{ID: "m1", Name: "Bad"},
		[]OfflineChapter{{Chapter: &data.Chapter{ID: "ch1", Number: "1"}, Pages: []string{path}}},
	)
	assert.Error(t, err)
}

func TestChapterTitle(t *testing.T) {
	tests := []struct {
		chapter *data.Chapter
		want    string
	}{
		{&data.Chapter{ID: "c", Number: "5"}, "Chapter 5"},
		{&data.Chapter{ID: "c", Number: "5", Volume: "2"}, "Vol. 2, Chapter 5"},
		{&data.Chapter{ID: "c", Number: "5", Volume: "0", Title: "End"}, "Chapter 5: End"},
		{&data.Chapter{ID: "c"}, "Chapter c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chapterTitle(tt.chapter))
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeFilename("a/b:c"))
	assert.Equal(t, "manga", sanitizeFilename(" .. "))
}
