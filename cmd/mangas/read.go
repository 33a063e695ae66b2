package cmd

import (
	"fmt"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/kerbaras/mangashelf/pkg/logging"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read [manga-id] [chapter-id]",
	Short: "Open a chapter and record the reading position",
	Long:  "Print the pages of a chapter (local files when downloaded) and remember where you are unless --incognito is set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mangaID, chapterID := args[0], args[1]
		page, _ := cmd.Flags().GetInt("page")
		ctx := cmd.Context()

		pages, offline, err := controller.ReaderPages(ctx, mangaID, chapterID)
		if err != nil {
			return err
		}

		manga, err := controller.Source().GetManga(ctx, mangaID)
		if err != nil {
			logger.Warn("manga details unavailable",
				logging.String(logging.FieldMangaID, mangaID),
				logging.Error(err))
			manga = &data.Manga{ID: mangaID}
		}
		if err := controller.OpenChapter(ctx, manga, chapterID, page); err != nil {
			return err
		}

		source := "network"
		if offline {
			source = "offline"
		}
		fmt.Printf("%s, chapter %s (%d pages, %s)\n", manga.Name, chapterID, len(pages), source)
		for i, p := range pages {
			marker := " "
			if i == page {
				marker = ">"
			}
			fmt.Printf("%s %3d  %s\n", marker, i+1, p)
		}
		return nil
	},
}

func init() {
	readCmd.Flags().IntP("page", "p", 0, "Page index the reader is on (0-based)")
}
