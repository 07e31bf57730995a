package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-leadgen/core"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// PersistenceConfig adapts core.DatabaseConfig to the go-persistence-bun
// config contract.
type PersistenceConfig struct {
	Database    core.DatabaseConfig
	ServiceName string
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Database.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return NormalizeDriver(c.Database.Driver)
}

func (c PersistenceConfig) GetServer() string {
	return strings.TrimSpace(c.Database.DSN)
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.Database.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.Database.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	if name := strings.TrimSpace(c.ServiceName); name != "" {
		return name
	}
	return "go-leadgen"
}

// OpenClient opens the database named by cfg and wraps it in a persistence
// client with the matching bun dialect.
func OpenClient(cfg PersistenceConfig) (*persistence.Client, error) {
	driver := cfg.GetDriver()
	dsn := cfg.GetServer()
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: database dsn is required")
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}

	var client *persistence.Client
	switch driver {
	case DriverPostgres:
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	case DriverSQLite:
		// sqlite serializes writers; a single connection keeps in-memory
		// databases shared across queries
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	default:
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: unsupported database driver %q", driver)
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	return client, nil
}

// NormalizeDriver maps driver aliases to the registered sql driver names.
func NormalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres", "postgresql", "pg":
		return DriverPostgres
	case "sqlite", "sqlite3":
		return DriverSQLite
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}
