package migrations

import (
	"context"
	_ "embed"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

//go:embed sql/postgres.sql
var postgresSchema string

//go:embed sql/sqlite.sql
var sqliteSchema string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			schema := postgresSchema
			if db.Dialect().Name() == dialect.SQLite {
				schema = sqliteSchema
			}
			return execAll(ctx, db, schema)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execAll(ctx, db, `
				DROP TABLE IF EXISTS conversation_state;
				DROP TABLE IF EXISTS answer_log;
				DROP TABLE IF EXISTS sessions;
				DROP TABLE IF EXISTS question_banks;`)
		},
	)
}

// execAll runs a script one statement at a time.
func execAll(ctx context.Context, db *bun.DB, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
