package cli

import (
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quizbot-service/internal/config"
	"quizbot-service/internal/domain"
	"quizbot-service/internal/infra/file"
	pgbank "quizbot-service/internal/infra/postgres"
	"quizbot-service/internal/infra/sqlstore"
	"quizbot-service/internal/logger"
)

// NewBankCmd groups question bank maintenance commands.
func NewBankCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Manage stored question banks",
	}
	cmd.AddCommand(newBankImportCmd(configPath))
	return cmd
}

func newBankImportCmd(configPath *string) *cobra.Command {
	var (
		name   string
		target string
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Validate a JSON/YAML bank file and store it under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			// The argument is a shell path, unlike "file:" sources in the config.
			questions, err := file.NewBankLoader(".").LoadBank(ctx, args[0])
			if err != nil {
				return err
			}
			if err := domain.ValidateQuestions(questions); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			switch target {
			case "db":
				db, err := openDatabase(ctx, cfg, log)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := sqlstore.New(db).SaveBank(ctx, name, questions); err != nil {
					return err
				}
			case "postgres":
				if cfg.Postgres.URL == "" {
					return fmt.Errorf("postgres url not configured")
				}
				pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
				if err != nil {
					return err
				}
				defer pool.Close()
				if err := pgbank.NewBankLoader(pool).SaveBank(ctx, name, questions); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown target %q (want db or postgres)", target)
			}
			log.Info("question bank imported", "name", name, "target", target, "questions", len(questions))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "bank name used in variant sources, e.g. db:<name>")
	cmd.Flags().StringVar(&target, "target", "db", "where to store the bank: db or postgres")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
