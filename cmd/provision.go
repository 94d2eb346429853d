package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoload/internal/provision"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the login role and database, then apply migrations",
	Long: `Connects with database.admin_url (a superuser connection string) and creates
the role and database named by database.user and database.name when they do
not exist yet. Then connects as that role and applies pending migrations.

Without database.admin_url only the migrations run.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "provision"))

		if cfg.Database.AdminURL != "" {
			admin, err := connect(ctx, cfg, cfg.Database.AdminURL)
			if err != nil {
				return eris.Wrap(err, "provision: admin connection")
			}
			err = provision.Bootstrap(ctx, admin, provision.Account{
				Database: cfg.Database.Name,
				User:     cfg.Database.User,
				Password: cfg.Database.Password,
			})
			admin.Close()
			if err != nil {
				return err
			}
		} else {
			log.Info("database.admin_url not set, skipping role and database bootstrap")
		}

		pool, err := openPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := provision.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "provision: migrate")
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Database provisioned")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}
