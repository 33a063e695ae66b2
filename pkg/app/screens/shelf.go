package screens

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangashelf/pkg/app/components"
	"github.com/kerbaras/mangashelf/pkg/app/styles"
	"github.com/kerbaras/mangashelf/pkg/data"
)

// ShelfStore is the continue-reading list behind the shelf screen.
type ShelfStore interface {
	GetAll(ctx context.Context) ([]data.ContinueReadingEntry, error)
	Remove(ctx context.Context, mangaIDs ...string) error
	ClearAll(ctx context.Context) error
	Subscribe() (<-chan struct{}, func())
}

// ShelfScreen lists the continue-reading entries and reloads whenever the
// list changes.
type ShelfScreen struct {
	store       ShelfStore
	shelf       *components.Shelf
	reload      <-chan struct{}
	unsubscribe func()
	incognito   bool
	width       int
	height      int
	err         error
}

func NewShelfScreen(store ShelfStore, incognito bool) *ShelfScreen {
	reload, unsubscribe := store.Subscribe()
	return &ShelfScreen{
		store:       store,
		shelf:       components.NewShelf(),
		reload:      reload,
		unsubscribe: unsubscribe,
		incognito:   incognito,
	}
}

func (s *ShelfScreen) Init() tea.Cmd {
	return tea.Batch(s.loadShelf, s.waitForReload)
}

func (s *ShelfScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.shelf.Width = msg.Width - 4
		s.shelf.Height = msg.Height - 10

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			s.unsubscribe()
			return s, tea.Quit
		case "up", "k":
			s.shelf.Prev()
		case "down", "j":
			s.shelf.Next()
		case "r":
			return s, s.loadShelf
		case "d":
			if selected := s.shelf.Selected(); selected != nil {
				return s, s.removeEntry(selected.MangaID)
			}
		case "c":
			return s, s.clearShelf
		}

	case shelfLoadedMsg:
		s.shelf.SetItems(msg.items)
		s.err = msg.err

	case shelfChangedMsg:
		return s, tea.Batch(s.loadShelf, s.waitForReload)

	case shelfErrMsg:
		s.err = msg.err
	}

	return s, nil
}

func (s *ShelfScreen) View() string {
	header := styles.TitleStyle.Render("Continue Reading")
	if s.incognito {
		header += " " + styles.MutedStyle.Render("(incognito)")
	}

	var errorMsg string
	if s.err != nil {
		errorMsg = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	}

	help := styles.HelpStyle.Render("↑/k: up • ↓/j: down • d: remove • c: clear all • r: refresh • q: quit")

	return fmt.Sprintf("%s\n\n%s%s\n%s", header, errorMsg, s.shelf.View(), help)
}

// Messages
type shelfLoadedMsg struct {
	items []data.ContinueReadingEntry
	err   error
}

type shelfChangedMsg struct{}

type shelfErrMsg struct {
	err error
}

// Commands
func (s *ShelfScreen) loadShelf() tea.Msg {
	items, err := s.store.GetAll(context.Background())
	return shelfLoadedMsg{items: items, err: err}
}

func (s *ShelfScreen) waitForReload() tea.Msg {
	if _, ok := <-s.reload; !ok {
		return nil
	}
	return shelfChangedMsg{}
}

func (s *ShelfScreen) removeEntry(mangaID string) tea.Cmd {
	return func() tea.Msg {
		if err := s.store.Remove(context.Background(), mangaID); err != nil {
			return shelfErrMsg{err: err}
		}
		return nil
	}
}

func (s *ShelfScreen) clearShelf() tea.Msg {
	if err := s.store.ClearAll(context.Background()); err != nil {
		return shelfErrMsg{err: err}
	}
	return nil
}
