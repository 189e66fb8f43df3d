package main

import (
	"errors"

	"github.com/geocoder89/authservice/internal/config"
	"github.com/geocoder89/authservice/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply schema migrations (down rolls back one step)",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		if cfg.StoreDriver != config.StoreDriverPostgres {
			return errors.New("migrations need STORE_DRIVER=postgres")
		}

		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}

		if err := db.Migrate(cfg.DBURL, direction); err != nil {
			return err
		}

		log.Info("migrations applied", "direction", direction)
		return nil
	},
}
