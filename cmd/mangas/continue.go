package cmd

import (
	"fmt"
	"time"

	"github.com/kerbaras/mangashelf/pkg/app/components"
	"github.com/spf13/cobra"
)

var continueCmd = &cobra.Command{
	Use:   "continue",
	Short: "List manga you are currently reading",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := controller.ContinueReading().GetRecent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Nothing to continue reading.")
			return nil
		}

		rows := make([][]string, len(entries))
		for i, entry := range entries {
			rows[i] = []string{
				truncateString(entry.Title, 40),
				entry.ChapterNumber,
				fmt.Sprintf("%d", entry.Page+1),
				components.FormatAgo(time.Since(entry.Time())),
				entry.MangaID,
			}
		}
		fmt.Println(renderList([]string{"Title", "Chapter", "Page", "Last read", "ID"}, rows))
		return nil
	},
}

var continueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the continue reading list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := controller.ContinueReading().ClearAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Continue reading list cleared")
		return nil
	},
}

var continueRemoveCmd = &cobra.Command{
	Use:   "remove [manga-id...]",
	Short: "Remove manga from the continue reading list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return controller.ContinueReading().Remove(cmd.Context(), args...)
	},
}

func init() {
	continueCmd.Flags().IntP("limit", "n", 10, "Number of entries to show")
	continueCmd.AddCommand(continueClearCmd)
	continueCmd.AddCommand(continueRemoveCmd)
}
