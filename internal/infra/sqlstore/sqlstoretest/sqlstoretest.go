// Package sqlstoretest opens migrated throwaway SQLite databases for tests.
package sqlstoretest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/uptrace/bun"

	"quizbot-service/internal/config"
	"quizbot-service/internal/infra/sqlstore"
)

var seq atomic.Int64

// Open returns a migrated in-memory database that is closed with the test.
func Open(tb testing.TB) *bun.DB {
	tb.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, seq.Add(1))

	ctx := context.Background()
	db, err := sqlstore.Open(ctx, config.DriverSQLite, dsn)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	if _, err := sqlstore.Migrate(ctx, db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}
