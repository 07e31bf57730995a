package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultGraphAPIVersion     = "v18.0"
	DefaultGraphBaseURL        = "https://graph.facebook.com"
	DefaultTokenExpiry         = 5184000 * time.Second
	DefaultQueueName           = "leads_queue"
	DefaultQueueBackoff        = 5 * time.Second
	DefaultBusinessConcurrency = 5
)

type GraphConfig struct {
	AppID      string        `koanf:"app_id" mapstructure:"app_id"`
	AppSecret  string        `koanf:"app_secret" mapstructure:"app_secret"`
	APIVersion string        `koanf:"api_version" mapstructure:"api_version"`
	BaseURL    string        `koanf:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type WebhookConfig struct {
	VerifyToken      string `koanf:"verify_token" mapstructure:"verify_token"`
	AppSecret        string `koanf:"app_secret" mapstructure:"app_secret"`
	RequireSignature bool   `koanf:"require_signature" mapstructure:"require_signature"`
}

type TokenConfig struct {
	DefaultExpiry time.Duration `koanf:"default_expiry" mapstructure:"default_expiry"`
}

type DirectoryConfig struct {
	BusinessConcurrency int `koanf:"business_concurrency" mapstructure:"business_concurrency"`
}

type QueueConfig struct {
	Name       string        `koanf:"name" mapstructure:"name"`
	Backoff    time.Duration `koanf:"backoff" mapstructure:"backoff"`
	PopTimeout time.Duration `koanf:"pop_timeout" mapstructure:"pop_timeout"`
}

type DatabaseConfig struct {
	Driver      string        `koanf:"driver" mapstructure:"driver"`
	DSN         string        `koanf:"dsn" mapstructure:"dsn"`
	Debug       bool          `koanf:"debug" mapstructure:"debug"`
	PingTimeout time.Duration `koanf:"ping_timeout" mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	// URL, when set, takes precedence over the discrete fields.
	URL      string `koanf:"url" mapstructure:"url"`
	Addr     string `koanf:"addr" mapstructure:"addr"`
	Username string `koanf:"username" mapstructure:"username"`
	Password string `koanf:"password" mapstructure:"password"`
	DB       int    `koanf:"db" mapstructure:"db"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

type CacheConfig struct {
	PageTTL time.Duration `koanf:"page_ttl" mapstructure:"page_ttl"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Graph       GraphConfig     `koanf:"graph" mapstructure:"graph"`
	Webhook     WebhookConfig   `koanf:"webhook" mapstructure:"webhook"`
	Tokens      TokenConfig     `koanf:"tokens" mapstructure:"tokens"`
	Directory   DirectoryConfig `koanf:"directory" mapstructure:"directory"`
	Queue       QueueConfig     `koanf:"queue" mapstructure:"queue"`
	Database    DatabaseConfig  `koanf:"database" mapstructure:"database"`
	Redis       RedisConfig     `koanf:"redis" mapstructure:"redis"`
	HTTP        HTTPConfig      `koanf:"http" mapstructure:"http"`
	Cache       CacheConfig     `koanf:"cache" mapstructure:"cache"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "leadgen",
		Graph: GraphConfig{
			APIVersion: DefaultGraphAPIVersion,
			BaseURL:    DefaultGraphBaseURL,
			Timeout:    30 * time.Second,
		},
		Tokens: TokenConfig{
			DefaultExpiry: DefaultTokenExpiry,
		},
		Directory: DirectoryConfig{
			BusinessConcurrency: DefaultBusinessConcurrency,
		},
		Queue: QueueConfig{
			Name:    DefaultQueueName,
			Backoff: DefaultQueueBackoff,
		},
		Database: DatabaseConfig{
			Driver:      "postgres",
			PingTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		HTTP: HTTPConfig{
			Addr: ":3000",
		},
		Cache: CacheConfig{
			PageTTL: time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Graph.APIVersion) == "" {
		return fmt.Errorf("core: graph.api_version is required")
	}
	if base := strings.TrimSpace(c.Graph.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: graph.base_url %q is invalid", base)
		}
	}
	if c.Graph.Timeout < 0 {
		return fmt.Errorf("core: graph.timeout must be >= 0")
	}
	if c.Tokens.DefaultExpiry <= 0 {
		return fmt.Errorf("core: tokens.default_expiry must be > 0")
	}
	if c.Directory.BusinessConcurrency < 0 {
		return fmt.Errorf("core: directory.business_concurrency must be >= 0")
	}
	if strings.TrimSpace(c.Queue.Name) == "" {
		return fmt.Errorf("core: queue.name is required")
	}
	if c.Queue.Backoff < 0 || c.Queue.PopTimeout < 0 {
		return fmt.Errorf("core: queue durations must be >= 0")
	}
	if c.Webhook.RequireSignature && strings.TrimSpace(c.Webhook.AppSecret) == "" {
		return fmt.Errorf("core: webhook.app_secret is required when require_signature is set")
	}
	return nil
}

// ValidateCredentials checks the platform credentials required by the serve
// command. Validate does not check them.
func (c Config) ValidateCredentials() error {
	if strings.TrimSpace(c.Graph.AppID) == "" {
		return fmt.Errorf("core: graph.app_id is required")
	}
	if strings.TrimSpace(c.Graph.AppSecret) == "" {
		return fmt.Errorf("core: graph.app_secret is required")
	}
	if strings.TrimSpace(c.Webhook.VerifyToken) == "" {
		return fmt.Errorf("core: webhook.verify_token is required")
	}
	return nil
}
