package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/kerbaras/mangashelf/pkg/app"
	"github.com/kerbaras/mangashelf/pkg/services"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download [manga-id]",
	Short: "Download manga chapters for offline reading",
	Long:  "Download every chapter of a manga that is not on disk yet, or a single chapter with --chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mangaID := args[0]
		chapterID, _ := cmd.Flags().GetString("chapter")
		language, _ := cmd.Flags().GetString("language")
		plain, _ := cmd.Flags().GetBool("plain")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		var ticket *services.Ticket
		title := fmt.Sprintf("Downloading %s", mangaID)
		if chapterID != "" {
			ticket = controller.QueueChapterDownload(ctx, mangaID, chapterID)
			title = fmt.Sprintf("Downloading chapter %s", chapterID)
		} else {
			ticket = controller.QueueMangaDownload(ctx, mangaID, language, nil)
		}

		var err error
		if plain {
			err = followPlain(ctx, ticket, controller.Progress())
		} else {
			err = app.NewApp(controller).RunDownload(title, ticket, cancel)
		}

		if result, ok := controller.LastResult(mangaID); ok && chapterID == "" {
			printResult(result)
		}
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		if chapterID != "" {
			fmt.Printf("Chapter %s is available offline\n", chapterID)
		}
		return nil
	},
}

// followPlain prints progress lines until the ticket finishes.
func followPlain(ctx context.Context, ticket *services.Ticket, progress <-chan services.DownloadProgress) error {
	for {
		select {
		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			switch {
			case p.ChapterID == "":
				fmt.Printf("%s: %d/%d chapters\n", p.MangaID, p.ChaptersDone, p.ChaptersTotal)
			case p.Status == services.StatusDownloading:
				fmt.Printf("  chapter %s: page %d/%d\n", p.ChapterID, p.CurrentPage, p.TotalPages)
			case p.Status == services.StatusError:
				fmt.Printf("  chapter %s: %v\n", p.ChapterID, p.Error)
			}
		case <-ticket.Done():
			return ticket.Err()
		case <-ctx.Done():
			// The queue skips or stops the task; wait for it to settle.
			<-ticket.Done()
			return ticket.Err()
		}
	}
}

func printResult(result *services.MangaDownloadResult) {
	switch {
	case result.Total == 0:
		fmt.Println("Everything is already downloaded")
	case result.Complete():
		fmt.Printf("Downloaded %d chapters\n", result.Total)
	default:
		fmt.Printf("Downloaded %d of %d chapters\n", len(result.Succeeded), result.Total)
		for _, failure := range result.Failed {
			fmt.Printf("  %s: %v\n", failure.ChapterID, failure.Err)
		}
	}
}

func init() {
	downloadCmd.Flags().StringP("chapter", "c", "", "Download a single chapter")
	downloadCmd.Flags().StringP("language", "l", "", "Language code (defaults to the configured one)")
	downloadCmd.Flags().Bool("plain", false, "Print progress lines instead of the interactive view")
}
