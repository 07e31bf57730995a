// Package leadgen wires the lead capture service: webhook ingestion, page
// directory, token broker and the queue handoff to downstream workers.
package leadgen

import (
	"context"

	persistence "github.com/goliatone/go-persistence-bun"

	"github.com/goliatone/go-leadgen/core"
	sqlstore "github.com/goliatone/go-leadgen/store/sql"
)

type Config = core.Config

type GraphConfig = core.GraphConfig
type WebhookConfig = core.WebhookConfig
type DatabaseConfig = core.DatabaseConfig
type QueueConfig = core.QueueConfig

type User = core.User
type Page = core.Page
type Lead = core.Lead
type QueueItem = core.QueueItem
type LeadgenEvent = core.LeadgenEvent

type GraphAPI = core.GraphAPI
type LeadQueue = core.LeadQueue

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// LoadConfig resolves defaults < values < runtime. values is the raw
// configuration tree, usually produced by viper.
func LoadConfig(ctx context.Context, values map[string]any, runtime Config) (Config, error) {
	return core.ResolveConfig(
		ctx,
		runtime,
		core.NewCfgxConfigProvider(core.StaticRawConfigLoader{Values: values}),
		core.GoOptionsResolver{},
	)
}

// NewPersistenceClient opens the configured database.
func NewPersistenceClient(cfg Config) (*persistence.Client, error) {
	return sqlstore.OpenClient(sqlstore.PersistenceConfig{
		Database:    cfg.Database,
		ServiceName: cfg.ServiceName,
	})
}
