package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// ResolveConfig applies the defaults < loaded < runtime precedence.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)

	graph := map[string]any{}
	putString(graph, "app_id", cfg.Graph.AppID, includeZero)
	putString(graph, "app_secret", cfg.Graph.AppSecret, includeZero)
	putString(graph, "api_version", cfg.Graph.APIVersion, includeZero)
	putString(graph, "base_url", cfg.Graph.BaseURL, includeZero)
	putDuration(graph, "timeout", cfg.Graph.Timeout, includeZero)
	putSection(layer, "graph", graph)

	webhook := map[string]any{}
	putString(webhook, "verify_token", cfg.Webhook.VerifyToken, includeZero)
	putString(webhook, "app_secret", cfg.Webhook.AppSecret, includeZero)
	putBool(webhook, "require_signature", cfg.Webhook.RequireSignature, includeZero)
	putSection(layer, "webhook", webhook)

	tokens := map[string]any{}
	putDuration(tokens, "default_expiry", cfg.Tokens.DefaultExpiry, includeZero)
	putSection(layer, "tokens", tokens)

	directory := map[string]any{}
	putInt(directory, "business_concurrency", cfg.Directory.BusinessConcurrency, includeZero)
	putSection(layer, "directory", directory)

	queue := map[string]any{}
	putString(queue, "name", cfg.Queue.Name, includeZero)
	putDuration(queue, "backoff", cfg.Queue.Backoff, includeZero)
	putDuration(queue, "pop_timeout", cfg.Queue.PopTimeout, includeZero)
	putSection(layer, "queue", queue)

	database := map[string]any{}
	putString(database, "driver", cfg.Database.Driver, includeZero)
	putString(database, "dsn", cfg.Database.DSN, includeZero)
	putBool(database, "debug", cfg.Database.Debug, includeZero)
	putDuration(database, "ping_timeout", cfg.Database.PingTimeout, includeZero)
	putSection(layer, "database", database)

	redis := map[string]any{}
	putString(redis, "url", cfg.Redis.URL, includeZero)
	putString(redis, "addr", cfg.Redis.Addr, includeZero)
	putString(redis, "username", cfg.Redis.Username, includeZero)
	putString(redis, "password", cfg.Redis.Password, includeZero)
	putInt(redis, "db", cfg.Redis.DB, includeZero)
	putSection(layer, "redis", redis)

	httpSection := map[string]any{}
	putString(httpSection, "addr", cfg.HTTP.Addr, includeZero)
	putSection(layer, "http", httpSection)

	cache := map[string]any{}
	putDuration(cache, "page_ttl", cfg.Cache.PageTTL, includeZero)
	putSection(layer, "cache", cache)

	return layer
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}

func putBool(target map[string]any, key string, value bool, includeZero bool) {
	if includeZero || value {
		target[key] = value
	}
}

func putInt(target map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func putDuration(target map[string]any, key string, value time.Duration, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func putSection(target map[string]any, key string, section map[string]any) {
	if len(section) == 0 {
		return
	}
	target[key] = section
}
