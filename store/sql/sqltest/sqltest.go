// Package sqltest opens migrated in-memory sqlite databases for tests.
package sqltest

import (
	"context"
	"fmt"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-leadgen/core"
	leadgenmigrations "github.com/goliatone/go-leadgen/migrations"
	sqlstore "github.com/goliatone/go-leadgen/store/sql"
)

// DSN returns a unique shared in-memory sqlite DSN.
func DSN(prefix string) string {
	if prefix == "" {
		prefix = "leadgen-test"
	}
	return fmt.Sprintf("file:%s-%d?mode=memory&cache=shared&_foreign_keys=on", prefix, time.Now().UnixNano())
}

// NewClient returns a migrated sqlite persistence client closed on cleanup.
func NewClient(t testing.TB) *persistence.Client {
	t.Helper()

	client, err := sqlstore.OpenClient(sqlstore.PersistenceConfig{
		Database: core.DatabaseConfig{
			Driver:      sqlstore.DriverSQLite,
			DSN:         DSN("leadgen-test"),
			PingTimeout: time.Second,
		},
		ServiceName: "go-leadgen-tests",
	})
	if err != nil {
		t.Fatalf("open sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if _, err := leadgenmigrations.RegisterClient(ctx, client, leadgenmigrations.DialectSQLite); err != nil {
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}

// NewFactory returns repository stores over a fresh migrated database.
func NewFactory(t testing.TB) *sqlstore.RepositoryFactory {
	t.Helper()
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(NewClient(t))
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	return factory
}
