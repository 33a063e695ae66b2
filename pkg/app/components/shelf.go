package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/mangashelf/pkg/app/styles"
	"github.com/kerbaras/mangashelf/pkg/data"
)

// Shelf renders the continue-reading list as selectable cards.
type Shelf struct {
	Items         []data.ContinueReadingEntry
	SelectedIndex int
	Width         int
	Height        int
	Now           func() time.Time
}

func NewShelf() *Shelf {
	return &Shelf{
		Width:  80,
		Height: 20,
		Now:    time.Now,
	}
}

func (s *Shelf) SetItems(items []data.ContinueReadingEntry) {
	s.Items = items
	if s.SelectedIndex >= len(items) && len(items) > 0 {
		s.SelectedIndex = len(items) - 1
	}
	if len(items) == 0 {
		s.SelectedIndex = 0
	}
}

func (s *Shelf) Next() {
	if len(s.Items) == 0 {
		return
	}
	s.SelectedIndex++
	if s.SelectedIndex >= len(s.Items) {
		s.SelectedIndex = 0
	}
}

func (s *Shelf) Prev() {
	if len(s.Items) == 0 {
		return
	}
	s.SelectedIndex--
	if s.SelectedIndex < 0 {
		s.SelectedIndex = len(s.Items) - 1
	}
}

func (s *Shelf) Selected() *data.ContinueReadingEntry {
	if len(s.Items) == 0 || s.SelectedIndex >= len(s.Items) {
		return nil
	}
	return &s.Items[s.SelectedIndex]
}

func (s *Shelf) View() string {
	if len(s.Items) == 0 {
		emptyMsg := styles.MutedStyle.Render("Nothing to continue reading")
		return lipgloss.Place(s.Width, s.Height, lipgloss.Center, lipgloss.Center, emptyMsg)
	}

	var b strings.Builder
	for i, item := range s.Items {
		cardStyle := styles.CardStyle
		if i == s.SelectedIndex {
			cardStyle = styles.ActiveCardStyle
		}

		content := lipgloss.JoinVertical(
			lipgloss.Left,
			styles.TitleStyle.UnsetMarginBottom().Render(item.Title),
			styles.TextStyle.Render(fmt.Sprintf("Chapter %s, page %d", item.ChapterNumber, item.Page+1)),
			styles.MutedStyle.Render(s.since(item.Time())),
		)

		width := s.Width - 4
		if width < 20 {
			width = 20
		}
		b.WriteString(cardStyle.Width(width).Render(content))
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Shelf) since(t time.Time) string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return FormatAgo(now().Sub(t))
}

// FormatAgo renders an elapsed duration the way the shelf shows it.
func FormatAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
