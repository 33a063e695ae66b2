package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var epubCmd = &cobra.Command{
	Use:   "epub [manga-id]",
	Short: "Generate an EPUB from downloaded chapters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("out")

		path, err := controller.ExportEPUB(cmd.Context(), args[0], outDir)
		if err != nil {
			return fmt.Errorf("EPUB generation failed: %w", err)
		}
		fmt.Printf("EPUB created: %s\n", path)
		return nil
	},
}

func init() {
	epubCmd.Flags().StringP("out", "o", ".", "Output directory")
}
