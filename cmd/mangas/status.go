package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/kerbaras/mangashelf/pkg/services"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [manga-id]",
	Short: "Show download and read state of a manga",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")

		status, err := controller.MangaStatus(cmd.Context(), args[0], language)
		if err != nil {
			return err
		}
		if len(status.Chapters) == 0 {
			fmt.Println("No chapters found.")
			return nil
		}

		fmt.Printf("\n%s: %d/%d downloaded, %d/%d read\n\n",
			status.MangaID, status.Downloaded, len(status.Chapters), status.Read.Read, status.Read.Total)
		fmt.Println(renderTable(statusColumns(), statusRows(status)))

		if status.Progress != nil {
			fmt.Printf("\nContinue at chapter %s, page %d\n", status.Progress.ChapterNumber, status.Progress.Page+1)
		}
		return nil
	},
}

func statusColumns() []table.Column {
	return []table.Column{
		{Title: "Chapter", Width: 8},
		{Title: "Title", Width: 36},
		{Title: "Offline", Width: 8},
		{Title: "Read", Width: 6},
		{Title: "ID", Width: 36},
	}
}

func statusRows(status *services.MangaStatus) []table.Row {
	rows := make([]table.Row, 0, len(status.Chapters))
	for _, ch := range status.Chapters {
		offline := ""
		switch {
		case ch.Downloaded:
			offline = "yes"
		case ch.Chapter.ExternalURL != "":
			offline = "external"
		}
		read := ""
		if ch.Read {
			read = "yes"
		}
		rows = append(rows, table.Row{
			ch.Chapter.Number,
			truncateString(ch.Chapter.Title, 34),
			offline,
			read,
			ch.Chapter.ID,
		})
	}
	return rows
}

func init() {
	statusCmd.Flags().StringP("language", "l", "", "Language code (defaults to the configured one)")
}
