package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/utils"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and the default permissions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			if err := config.Migrate(db); err != nil {
				return err
			}
			utils.Sugar.Info("migrations applied")
			return nil
		},
	}
}
