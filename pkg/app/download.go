package app

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/mangashelf/pkg/app/components"
	"github.com/kerbaras/mangashelf/pkg/app/styles"
	"github.com/kerbaras/mangashelf/pkg/services"
)

// DownloadView follows one queued download through the progress channel.
type DownloadView struct {
	title      string
	ticket     *services.Ticket
	progress   <-chan services.DownloadProgress
	cancel     func()
	tracker    *components.ProgressTracker
	cancelling bool
	done       bool
	err        error
}

func NewDownloadView(title string, ticket *services.Ticket, progress <-chan services.DownloadProgress, cancel func()) *DownloadView {
	return &DownloadView{
		title:    title,
		ticket:   ticket,
		progress: progress,
		cancel:   cancel,
		tracker:  components.NewProgressTracker(60),
	}
}

type progressMsg services.DownloadProgress

type progressClosedMsg struct{}

type ticketDoneMsg struct {
	err error
}

func (v *DownloadView) Init() tea.Cmd {
	return tea.Batch(v.waitForProgress, v.waitForTicket)
}

func (v *DownloadView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.tracker.SetWidth(msg.Width)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !v.cancelling && v.cancel != nil {
				v.cancelling = true
				v.cancel()
			}
		}

	case progressMsg:
		v.tracker.Update(services.DownloadProgress(msg))
		return v, v.waitForProgress

	case progressClosedMsg:
		return v, nil

	case ticketDoneMsg:
		v.done = true
		v.err = msg.err
		return v, tea.Quit
	}
	return v, nil
}

func (v *DownloadView) View() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(v.title))
	b.WriteString("\n")
	b.WriteString(v.tracker.View())

	switch {
	case v.done && v.err != nil:
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("Failed: %s", v.err)))
		b.WriteString("\n")
	case v.done:
		b.WriteString(styles.StatusCompleted.Render("Done"))
		b.WriteString("\n")
	case v.cancelling:
		b.WriteString(styles.StatusPartial.Render("Cancelling after the current page..."))
		b.WriteString("\n")
	default:
		b.WriteString(styles.HelpStyle.Render("q: cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

// Err is the outcome of the download once the program has exited.
func (v *DownloadView) Err() error {
	return v.err
}

func (v *DownloadView) waitForProgress() tea.Msg {
	progress, ok := <-v.progress
	if !ok {
		return progressClosedMsg{}
	}
	return progressMsg(progress)
}

func (v *DownloadView) waitForTicket() tea.Msg {
	<-v.ticket.Done()
	return ticketDoneMsg{err: v.ticket.Err()}
}
