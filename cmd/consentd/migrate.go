package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/consentd/internal/app"
	"github.com/dropDatabas3/consentd/internal/store"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones embebidas del driver configurado",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *c.cfg
			cfg.Storage.AutoMigrate = false

			conn, err := app.OpenStore(cmd.Context(), &cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			m, ok := conn.(store.MigratableConnection)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "driver %s: nada que migrar\n", conn.Name())
				return nil
			}
			res, err := m.Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "driver %s: applied=%v skipped=%v (%s)\n",
				conn.Name(), res.Applied, res.Skipped, res.Duration)
			return nil
		},
	}
}
