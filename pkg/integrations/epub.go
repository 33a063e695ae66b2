package integrations

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-shiori/go-epub"
	"github.com/kerbaras/mangashelf/pkg/data"
)

type EPubBuilder struct {
	outputDir string
}

var _ Exporter = (*EPubBuilder)(nil)

// NewEPubBuilder writes books into outputDir. An empty outputDir uses a fresh
// temporary directory.
func NewEPubBuilder(outputDir string) *EPubBuilder {
	if outputDir == "" {
		outputDir, _ = os.MkdirTemp("", "mangashelf-epub-*")
	}
	return &EPubBuilder{outputDir: outputDir}
}

// Export is CreateEPub under the Exporter interface.
func (p *EPubBuilder) Export(manga *data.Manga, chapters []OfflineChapter) (string, error) {
	return p.CreateEPub(manga, chapters)
}

// CreateEPub compiles offline chapters of a manga into a single EPub file.
// Pages keep the recorded order of each chapter.
func (p *EPubBuilder) CreateEPub(manga *data.Manga, chapters []OfflineChapter) (string, error) {
	if manga == nil {
		return "", fmt.Errorf("no manga to compile")
	}

	// Skip chapters with nothing on disk
	var usable []OfflineChapter
	for _, chapter := range chapters {
		if chapter.Chapter != nil && len(chapter.Pages) > 0 {
			usable = append(usable, chapter)
		}
	}
	if len(usable) == 0 {
		return "", fmt.Errorf("no chapters to compile")
	}

	// Ensure output directory exists
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// Sort chapters by volume and number
	sort.SliceStable(usable, func(i, j int) bool {
		a, b := usable[i].Chapter, usable[j].Chapter
		vi, _ := strconv.ParseFloat(a.Volume, 64)
		vj, _ := strconv.ParseFloat(b.Volume, 64)
		if vi != vj {
			return vi < vj
		}
		ni, _ := strconv.ParseFloat(a.Number, 64)
		nj, _ := strconv.ParseFloat(b.Number, 64)
		return ni < nj
	})

	// Create EPub
	title := manga.Name
	if title == "" {
		title = manga.ID
	}
	e, err := epub.NewEpub(title)
	if err != nil {
		return "", fmt.Errorf("failed to create EPub: %w", err)
	}

	// Set metadata
	e.SetAuthor("MangaDex")
	if manga.Description != "" {
		e.SetDescription(manga.Description)
	}
	e.SetLang("en")

	// Add chapters to EPub
	for _, chapter := range usable {
		if err := p.addChapterToEPub(e, chapter); err != nil {
			return "", fmt.Errorf("failed to add chapter %s: %w", chapter.Chapter.ID, err)
		}
	}

	// Generate output filename
	outputPath := filepath.Join(p.outputDir, sanitizeFilename(title)+".epub")

	// Write EPub file
	if err := e.Write(outputPath); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}

	return outputPath, nil
}

// addChapterToEPub adds a single chapter's images to the EPub
func (p *EPubBuilder) addChapterToEPub(e *epub.Epub, offline OfflineChapter) error {
	chapterTitle := chapterTitle(offline.Chapter)

	// Build HTML content for chapter
	var htmlContent strings.Builder
	htmlContent.WriteString(fmt.Sprintf("<h1>%s</h1>\n", chapterTitle))

	for i, imgPath := range offline.Pages {
		if !isImageFile(imgPath) {
			return fmt.Errorf("page %d is not an image: %s", i+1, filepath.Base(imgPath))
		}
		// Image names must be unique across the whole book.
		name := fmt.Sprintf("%s-%03d%s", offline.Chapter.ID, i+1, strings.ToLower(filepath.Ext(imgPath)))

		// Add image to EPub
		internalPath, err := e.AddImage(imgPath, name)
		if err != nil {
			return fmt.Errorf("failed to add image %s: %w", filepath.Base(imgPath), err)
		}

		// Add image to HTML content
		htmlContent.WriteString(fmt.Sprintf(
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>%s`,
			internalPath, i+1, "\n",
		))
	}

	// Add chapter section to EPub
	if _, err := e.AddSection(htmlContent.String(), chapterTitle, "", ""); err != nil {
		return fmt.Errorf("failed to add section: %w", err)
	}
	return nil
}

// chapterTitle builds the section heading, e.g. "Vol. 2, Chapter 10: Title"
func chapterTitle(chapter *data.Chapter) string {
	number := chapter.Number
	if number == "" {
		number = chapter.ID
	}
	title := fmt.Sprintf("Chapter %s", number)
	if chapter.Volume != "" && chapter.Volume != "0" {
		title = fmt.Sprintf("Vol. %s, %s", chapter.Volume, title)
	}
	if chapter.Title != "" {
		title = fmt.Sprintf("%s: %s", title, chapter.Title)
	}
	return title
}

// isImageFile checks if a file has an image extension
func isImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".gif" || ext == ".webp"
}

// sanitizeFilename removes characters that are invalid in filenames
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	if result == "" {
		result = "manga"
	}
	return result
}
