package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kerbaras/mangashelf/pkg/app"
	"github.com/kerbaras/mangashelf/pkg/config"
	"github.com/kerbaras/mangashelf/pkg/logging"
	"github.com/kerbaras/mangashelf/pkg/services"
	"github.com/spf13/cobra"
)

var (
	configPath string
	incognito  bool
	logLevel   string

	cfg        *config.Config
	logger     *slog.Logger
	controller *services.MangaController
)

var rootCmd = &cobra.Command{
	Use:           "mangas",
	Short:         "An offline manga shelf",
	Long:          "Download manga for offline reading and keep track of where you left off",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, err = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: os.Stderr,
		})
		if err != nil {
			return err
		}
		if controller, err = services.NewMangaController(cfg, logger); err != nil {
			return err
		}
		controller.SetIncognito(incognito)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if controller == nil {
			return nil
		}
		return controller.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Launch TUI by default
		return app.NewApp(controller).Run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/mangashelf/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&incognito, "incognito", false, "Do not record reading progress or history")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(continueCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(favoritesCmd)
	rootCmd.AddCommand(epubCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if controller != nil {
			controller.Close()
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
