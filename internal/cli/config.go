package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	leadgen "github.com/goliatone/go-leadgen"
	"github.com/goliatone/go-leadgen/core"
)

const envPrefix = "LEADGEN"

// legacyEnv maps config keys to the environment names used by earlier
// deployments. LEADGEN_* names always win.
var legacyEnv = map[string]string{
	"graph.app_id":         "FACEBOOK_APP_ID",
	"graph.app_secret":     "FACEBOOK_APP_SECRET",
	"webhook.verify_token": "FACEBOOK_VERIFY_TOKEN",
	"database.dsn":         "DATABASE_URL",
	"redis.url":            "REDIS_URL",
	"http.port":            "PORT",
}

// newViper returns a viper instance seeded with defaults and bound to the
// process environment. A .env file in the working directory is loaded first
// when present.
func newViper(envFiles ...string) *viper.Viper {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	v := viper.New()
	for key, value := range defaultSettings(core.DefaultConfig()) {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		_ = v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy)
	}
	return v
}

func defaultSettings(cfg core.Config) map[string]any {
	return map[string]any{
		"service_name":                   cfg.ServiceName,
		"graph.app_id":                   cfg.Graph.AppID,
		"graph.app_secret":               cfg.Graph.AppSecret,
		"graph.api_version":              cfg.Graph.APIVersion,
		"graph.base_url":                 cfg.Graph.BaseURL,
		"graph.timeout":                  cfg.Graph.Timeout,
		"webhook.verify_token":           cfg.Webhook.VerifyToken,
		"webhook.app_secret":             cfg.Webhook.AppSecret,
		"webhook.require_signature":      cfg.Webhook.RequireSignature,
		"tokens.default_expiry":          cfg.Tokens.DefaultExpiry,
		"directory.business_concurrency": cfg.Directory.BusinessConcurrency,
		"queue.name":                     cfg.Queue.Name,
		"queue.backoff":                  cfg.Queue.Backoff,
		"queue.pop_timeout":              cfg.Queue.PopTimeout,
		"database.driver":                cfg.Database.Driver,
		"database.dsn":                   cfg.Database.DSN,
		"database.debug":                 cfg.Database.Debug,
		"database.ping_timeout":          cfg.Database.PingTimeout,
		"redis.url":                      cfg.Redis.URL,
		"redis.addr":                     cfg.Redis.Addr,
		"redis.username":                 cfg.Redis.Username,
		"redis.password":                 cfg.Redis.Password,
		"redis.db":                       cfg.Redis.DB,
		"http.addr":                      cfg.HTTP.Addr,
		"http.port":                      "",
		"cache.page_ttl":                 cfg.Cache.PageTTL,
	}
}

// loadConfig reads the optional config file, decodes every setting and
// resolves it over the defaults.
func loadConfig(ctx context.Context, v *viper.Viper, configFile string) (leadgen.Config, error) {
	if path := strings.TrimSpace(configFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return leadgen.Config{}, fmt.Errorf("cli: read config %s: %w", path, err)
		}
	}

	var decoded core.Config
	if err := v.Unmarshal(&decoded); err != nil {
		return leadgen.Config{}, fmt.Errorf("cli: decode config: %w", err)
	}
	if port := strings.TrimSpace(v.GetString("http.port")); port != "" && decoded.HTTP.Addr == core.DefaultConfig().HTTP.Addr {
		decoded.HTTP.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	// webhook deliveries are signed with the app secret
	if strings.TrimSpace(decoded.Webhook.AppSecret) == "" {
		decoded.Webhook.AppSecret = decoded.Graph.AppSecret
	}
	return leadgen.LoadConfig(ctx, nil, decoded)
}

func redisOptions(cfg core.RedisConfig) (*redis.Options, error) {
	if url := strings.TrimSpace(cfg.URL); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("cli: parse redis url: %w", err)
		}
		return opts, nil
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("cli: redis.addr or redis.url is required")
	}
	return &redis.Options{
		Addr:     strings.TrimSpace(cfg.Addr),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}
