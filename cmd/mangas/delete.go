package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [manga-id]",
	Short: "Delete downloaded chapters",
	Long:  "Delete every downloaded chapter of a manga, or a single chapter with --chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mangaID := args[0]
		chapterID, _ := cmd.Flags().GetString("chapter")

		if chapterID != "" {
			if err := controller.Downloader().DeleteChapter(cmd.Context(), mangaID, chapterID); err != nil {
				return err
			}
			fmt.Printf("Deleted chapter %s\n", chapterID)
			return nil
		}
		if err := controller.Downloader().DeleteManga(cmd.Context(), mangaID); err != nil {
			return err
		}
		fmt.Printf("Deleted downloads of %s\n", mangaID)
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringP("chapter", "c", "", "Delete a single chapter")
}
