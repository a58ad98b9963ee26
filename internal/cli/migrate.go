package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"quizbot-service/internal/config"
	"quizbot-service/internal/infra/sqlstore"
	"quizbot-service/internal/logger"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := openDatabase(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

// openDatabase connects to the configured store and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.Config, log *logger.Logger) (*bun.DB, error) {
	db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	group, err := sqlstore.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if group.IsZero() {
		log.Info("database schema up to date", "driver", cfg.Database.Driver)
	} else {
		log.Info("migrations applied", "driver", cfg.Database.Driver, "group", group.String())
	}
	return db, nil
}
