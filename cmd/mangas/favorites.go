package cmd

import (
	"fmt"
	"time"

	"github.com/kerbaras/mangashelf/pkg/app/components"
	"github.com/spf13/cobra"
)

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List saved manga",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		saved, err := controller.Favorites().List(cmd.Context())
		if err != nil {
			return err
		}
		if len(saved) == 0 {
			fmt.Println("No saved manga. Use 'mangas favorites add <manga-id>'.")
			return nil
		}
		rows := make([][]string, len(saved))
		for i, entry := range saved {
			rows[i] = []string{
				truncateString(entry.Title, 48),
				components.FormatAgo(time.Since(time.UnixMilli(entry.SavedAt))),
				entry.MangaID,
			}
		}
		fmt.Println(renderList([]string{"Title", "Saved", "ID"}, rows))
		return nil
	},
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add [manga-id]",
	Short: "Save a manga",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manga, err := controller.Source().GetManga(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch manga: %w", err)
		}
		if err := controller.Favorites().Save(cmd.Context(), manga); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", manga.Name)
		return nil
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:   "remove [manga-id]",
	Short: "Remove a saved manga",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return controller.Favorites().Remove(cmd.Context(), args[0])
	},
}

func init() {
	favoritesCmd.AddCommand(favoritesAddCmd)
	favoritesCmd.AddCommand(favoritesRemoveCmd)
}
