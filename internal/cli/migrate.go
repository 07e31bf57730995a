package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	leadgen "github.com/goliatone/go-leadgen"
	"github.com/goliatone/go-leadgen/migrations"
	sqlstore "github.com/goliatone/go-leadgen/store/sql"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := a.config(ctx)
			if err != nil {
				return err
			}
			dialect, err := migrationDialect(cfg.Database.Driver)
			if err != nil {
				return err
			}

			client, err := leadgen.NewPersistenceClient(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if _, err := migrations.RegisterClient(ctx, client, dialect); err != nil {
				return err
			}
			if err := client.Migrate(ctx); err != nil {
				return fmt.Errorf("cli: migrate: %w", err)
			}
			root, _ := a.logger()
			root.Info("migrations applied", "driver", sqlstore.NormalizeDriver(cfg.Database.Driver))
			return nil
		},
	}
}

func migrationDialect(driver string) (string, error) {
	switch sqlstore.NormalizeDriver(driver) {
	case sqlstore.DriverPostgres:
		return migrations.DialectPostgres, nil
	case sqlstore.DriverSQLite:
		return migrations.DialectSQLite, nil
	default:
		return "", fmt.Errorf("cli: no migrations for driver %q", driver)
	}
}
