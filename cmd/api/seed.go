package main

import (
	"errors"
	"time"

	"github.com/geocoder89/authservice/internal/config"
	"github.com/geocoder89/authservice/internal/db"
	"github.com/geocoder89/authservice/internal/security"
	"github.com/spf13/cobra"
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the ADMIN account from ADMIN_EMAIL and ADMIN_PASSWORD if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
			return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
		}
		if cfg.StoreDriver == config.StoreDriverMemory {
			return errors.New("seeding the memory store has no lasting effect")
		}

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		st, err := openStores(ctx, cfg, nil, log)
		if err != nil {
			return err
		}
		defer st.close()

		return db.EnsureAdminUser(ctx, st.users, security.NewBcryptHasher(cfg.BcryptCost), cfg.AdminEmail, cfg.AdminPassword, log)
	},
}
