package app

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangashelf/pkg/app/screens"
	"github.com/kerbaras/mangashelf/pkg/services"
)

type App struct {
	controller *services.MangaController
}

func NewApp(controller *services.MangaController) *App {
	return &App{controller: controller}
}

// Run opens the continue-reading shelf.
func (a *App) Run() error {
	model := screens.NewShelfScreen(a.controller.ContinueReading(), a.controller.Incognito())
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RunDownload shows live progress until ticket finishes. Quitting early
// calls cancel and waits for the task to stop.
func (a *App) RunDownload(title string, ticket *services.Ticket, cancel func()) error {
	view := NewDownloadView(title, ticket, a.controller.Progress(), cancel)
	if _, err := tea.NewProgram(view).Run(); err != nil {
		return err
	}
	return view.Err()
}
