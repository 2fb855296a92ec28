package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/routes"
	"github.com/cppla/guildboard/storage"
	"github.com/cppla/guildboard/utils"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and start the HTTP server",
		RunE:  serveCommand,
	}
}

func serveCommand(cmd *cobra.Command, _ []string) error {
	cfg, db, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer utils.Logger.Sync() //nolint:errcheck

	if err := config.Migrate(db); err != nil {
		return err
	}

	store, err := storage.New(cfg)
	if err != nil {
		return err
	}

	rc := utils.NewRedis(cfg)
	if rc != nil {
		defer rc.Close()
	} else {
		utils.Sugar.Info("REDIS_HOST empty: response cache disabled, token blacklist kept in memory")
	}

	r := routes.SetupRouter(cfg, routes.Dependencies{
		DB:        db,
		Cache:     utils.NewCache(rc),
		Blacklist: utils.NewTokenBlacklist(rc),
		Storage:   store,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	return utils.GraceServer(cmd.Context(), ":"+cfg.AppPort, r)
}
