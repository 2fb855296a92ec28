// Package cmd implements the guildboard command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/utils"
)

const configFlag = "config"

var rootCmd = &cobra.Command{
	Use:   "guildboard",
	Short: "Guild job board: category-tagged listings with images and comments",
	Long: `guildboard serves a board of guild listings (tanks, healers, traders, crafters...)
where members post offers with an image and others comment on them.

Without a subcommand it starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         serveCommand,
}

func init() {
	rootCmd.PersistentFlags().String(configFlag, config.DefaultPath, "Path to the JSON config file (optional)")
	rootCmd.AddCommand(newServeCommand(), newMigrateCommand(), newGrantCommand(), newSeedCommand())
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, the logger and the database shared by every command.
func bootstrap(cmd *cobra.Command) (config.AppConfig, *gorm.DB, error) {
	path, err := cmd.Flags().GetString(configFlag)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	if err := utils.InitLogger(cfg); err != nil {
		return config.AppConfig{}, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := config.InitDatabase(cfg)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	return cfg, db, nil
}
