package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/migrations"
)

func missingEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadConfig_Defaults(t *testing.T) {
	v := newViper(missingEnvFile(t))

	cfg, err := loadConfig(context.Background(), v, "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	defaults := core.DefaultConfig()
	if cfg.HTTP.Addr != defaults.HTTP.Addr || cfg.Queue.Name != defaults.Queue.Name {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
	if cfg.Queue.Backoff != defaults.Queue.Backoff {
		t.Fatalf("expected default backoff, got %s", cfg.Queue.Backoff)
	}
}

func TestLoadConfig_LegacyEnvironment(t *testing.T) {
	t.Setenv("FACEBOOK_APP_ID", "legacy-app")
	t.Setenv("FACEBOOK_APP_SECRET", "legacy-secret")
	t.Setenv("FACEBOOK_VERIFY_TOKEN", "legacy-verify")
	t.Setenv("DATABASE_URL", "postgres://localhost/leads")
	t.Setenv("REDIS_URL", "redis://localhost:6380/2")
	t.Setenv("PORT", "8080")

	cfg, err := loadConfig(context.Background(), newViper(missingEnvFile(t)), "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Graph.AppID != "legacy-app" || cfg.Graph.AppSecret != "legacy-secret" {
		t.Fatalf("unexpected graph config %#v", cfg.Graph)
	}
	if cfg.Webhook.VerifyToken != "legacy-verify" {
		t.Fatalf("unexpected verify token %q", cfg.Webhook.VerifyToken)
	}
	if cfg.Webhook.AppSecret != "legacy-secret" {
		t.Fatalf("expected webhook secret to fall back to the app secret, got %q", cfg.Webhook.AppSecret)
	}
	if cfg.Database.DSN != "postgres://localhost/leads" || cfg.Redis.URL != "redis://localhost:6380/2" {
		t.Fatalf("unexpected storage config %#v %#v", cfg.Database, cfg.Redis)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected port to set the listen address, got %q", cfg.HTTP.Addr)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("expected credentials to validate: %v", err)
	}
}

func TestLoadConfig_PrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("FACEBOOK_APP_ID", "legacy-app")
	t.Setenv("LEADGEN_GRAPH_APP_ID", "prefixed-app")
	t.Setenv("LEADGEN_QUEUE_BACKOFF", "2s")
	t.Setenv("LEADGEN_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("PORT", "8080")

	cfg, err := loadConfig(context.Background(), newViper(missingEnvFile(t)), "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Graph.AppID != "prefixed-app" {
		t.Fatalf("expected prefixed env to win, got %q", cfg.Graph.AppID)
	}
	if cfg.Queue.Backoff != 2*time.Second {
		t.Fatalf("expected 2s backoff, got %s", cfg.Queue.Backoff)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" {
		t.Fatalf("expected explicit addr to win over PORT, got %q", cfg.HTTP.Addr)
	}
}

func TestLoadConfig_ReadsConfigFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("queue:\n  name: custom_queue\ncache:\n  page_ttl: 0s\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("FACEBOOK_VERIFY_TOKEN=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("FACEBOOK_VERIFY_TOKEN") })

	cfg, err := loadConfig(context.Background(), newViper(envPath), configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Queue.Name != "custom_queue" {
		t.Fatalf("expected config file queue name, got %q", cfg.Queue.Name)
	}
	if cfg.Webhook.VerifyToken != "from-dotenv" {
		t.Fatalf("expected dotenv verify token, got %q", cfg.Webhook.VerifyToken)
	}
}

func TestLoadConfig_MissingConfigFileFails(t *testing.T) {
	_, err := loadConfig(context.Background(), newViper(missingEnvFile(t)), filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("expected missing config file error")
	}
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(core.RedisConfig{URL: "redis://:pw@cache:6390/3", Addr: "ignored:1"})
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opts.Addr != "cache:6390" || opts.DB != 3 || opts.Password != "pw" {
		t.Fatalf("unexpected options %#v", opts)
	}

	opts, err = redisOptions(core.RedisConfig{Addr: " localhost:6379 ", DB: 1})
	if err != nil {
		t.Fatalf("discrete options: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 1 {
		t.Fatalf("unexpected options %#v", opts)
	}

	if _, err := redisOptions(core.RedisConfig{}); err == nil {
		t.Fatalf("expected missing address error")
	}
	if _, err := redisOptions(core.RedisConfig{URL: "http://bad"}); err == nil {
		t.Fatalf("expected invalid url error")
	}
}

func TestMigrationDialect(t *testing.T) {
	if dialect, err := migrationDialect("postgresql"); err != nil || dialect != migrations.DialectPostgres {
		t.Fatalf("expected postgres dialect, got %q %v", dialect, err)
	}
	if dialect, err := migrationDialect("sqlite"); err != nil || dialect != migrations.DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %q %v", dialect, err)
	}
	if _, err := migrationDialect("mysql"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"serve", "worker", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %s subcommand, got %v %v", name, cmd, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil || root.PersistentFlags().Lookup("log-level") == nil {
		t.Fatalf("expected persistent flags")
	}
}

func TestMigrateCommand_SQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "leadgen.db") + "?_foreign_keys=on"
	t.Setenv("LEADGEN_DATABASE_DRIVER", "sqlite")
	t.Setenv("LEADGEN_DATABASE_DSN", dsn)

	root := NewRootCommand()
	root.SetArgs([]string{"migrate", "--log-level", "error"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// a second run finds nothing to apply
	root = NewRootCommand()
	root.SetArgs([]string{"migrate", "--log-level", "error"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestServeCommand_RequiresCredentials(t *testing.T) {
	t.Setenv("FACEBOOK_APP_ID", "")
	t.Setenv("LEADGEN_GRAPH_APP_ID", "")

	root := NewRootCommand()
	root.SetArgs([]string{"serve"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected missing credential error")
	}
}
