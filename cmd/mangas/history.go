package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show read chapters",
	Long:  "Show every read chapter id, or the read state of one manga with --manga",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mangaID, _ := cmd.Flags().GetString("manga")
		ctx := cmd.Context()

		if mangaID == "" {
			ids, err := controller.History().GetAll(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("No chapters read yet.")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		}

		chapters, err := controller.Source().GetChapters(ctx, mangaID, controller.Language())
		if err != nil {
			return fmt.Errorf("failed to list chapters: %w", err)
		}
		ids := make([]string, len(chapters))
		for i, chapter := range chapters {
			ids[i] = chapter.ID
		}
		status, err := controller.History().Status(ctx, ids)
		if err != nil {
			return err
		}
		read, err := controller.History().GetForManga(ctx, mangaID, ids)
		if err != nil {
			return err
		}

		state := "not started"
		switch {
		case status.Completed():
			state = "finished"
		case status.Started():
			state = "reading"
		}
		fmt.Printf("%s: %d/%d chapters read (%s)\n", mangaID, status.Read, status.Total, state)
		for _, id := range read {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every read chapter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := controller.History().ClearAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Read history cleared")
		return nil
	},
}

func init() {
	historyCmd.Flags().StringP("manga", "m", "", "Show the read state of one manga")
	historyCmd.AddCommand(historyClearCmd)
}
