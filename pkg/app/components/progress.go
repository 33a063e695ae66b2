package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kerbaras/mangashelf/pkg/app/styles"
	"github.com/kerbaras/mangashelf/pkg/services"
)

// ProgressTracker folds download progress events into one line per chapter
// plus one summary per manga.
type ProgressTracker struct {
	chapters map[string]*services.DownloadProgress
	mangas   map[string]*services.DownloadProgress
	width    int
}

func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		chapters: make(map[string]*services.DownloadProgress),
		mangas:   make(map[string]*services.DownloadProgress),
		width:    width,
	}
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
}

func (p *ProgressTracker) Update(progress services.DownloadProgress) {
	prog := progress // Copy
	if progress.ChapterID == "" {
		// Manga-level summary
		p.mangas[progress.MangaID] = &prog
		return
	}
	key := progress.MangaID + ":" + progress.ChapterID
	if progress.Status == services.StatusComplete {
		// Finished chapters drop out of the active list
		delete(p.chapters, key)
		return
	}
	p.chapters[key] = &prog
}

func (p *ProgressTracker) Clear() {
	p.chapters = make(map[string]*services.DownloadProgress)
	p.mangas = make(map[string]*services.DownloadProgress)
}

// HasActive reports whether a chapter is still being fetched.
func (p *ProgressTracker) HasActive() bool {
	for _, progress := range p.chapters {
		if progress.Status == services.StatusDownloading {
			return true
		}
	}
	return false
}

// Failed returns the chapters whose last event was an error, sorted.
func (p *ProgressTracker) Failed() []string {
	var ids []string
	for _, progress := range p.chapters {
		if progress.Status == services.StatusError {
			ids = append(ids, progress.ChapterID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (p *ProgressTracker) View() string {
	if len(p.chapters) == 0 && len(p.mangas) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Downloads"))
	b.WriteString("\n")

	// Manga summaries
	for _, key := range sortedKeys(p.mangas) {
		progress := p.mangas[key]
		b.WriteString(styles.TextStyle.Render(fmt.Sprintf("Manga %s", progress.MangaID)))
		b.WriteString("\n")
		if progress.ChaptersTotal > 0 {
			b.WriteString(renderProgressBar(progress.ChaptersDone, progress.ChaptersTotal, p.barWidth()))
			b.WriteString("\n")
		}
		statusText := fmt.Sprintf("%s (%d/%d chapters)", progress.Status, progress.ChaptersDone, progress.ChaptersTotal)
		b.WriteString(styles.StatusStyle(progress.Status).Render(statusText))
		b.WriteString("\n\n")
	}

	for _, key := range sortedKeys(p.chapters) {
		progress := p.chapters[key]

		// Chapter info
		b.WriteString(styles.TextStyle.Render(fmt.Sprintf("Chapter %s", progress.ChapterID)))
		b.WriteString("\n")

		// Status and progress
		statusText := progress.Status
		if progress.TotalPages > 0 {
			percentage := float64(progress.CurrentPage) / float64(progress.TotalPages) * 100
			statusText = fmt.Sprintf("%s (%d/%d pages - %.0f%%)",
				progress.Status, progress.CurrentPage, progress.TotalPages, percentage)

			// Progress bar
			b.WriteString(renderProgressBar(progress.CurrentPage, progress.TotalPages, p.barWidth()))
			b.WriteString("\n")
		}
		b.WriteString(styles.StatusStyle(progress.Status).Render(statusText))
		b.WriteString("\n")

		if progress.Error != nil {
			b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %s", progress.Error)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// barWidth falls back to a fixed bar before the first resize
func (p *ProgressTracker) barWidth() int {
	if p.width <= 4 {
		return 20
	}
	return p.width - 4
}

func sortedKeys(m map[string]*services.DownloadProgress) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// renderProgressBar draws current/total as a filled bar of width cells
func renderProgressBar(current, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return styles.ProgressBarStyle.Render(strings.Repeat("█", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// SimpleProgress renders a simple progress bar
func SimpleProgress(current, total, width int) string {
	return renderProgressBar(current, total, width)
}
