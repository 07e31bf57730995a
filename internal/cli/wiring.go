package cli

import (
	"context"
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/redis/go-redis/v9"

	leadgen "github.com/goliatone/go-leadgen"
	"github.com/goliatone/go-leadgen/adapters/gojob"
	"github.com/goliatone/go-leadgen/adapters/goredis"
)

// process holds the external resources opened for one command run.
type process struct {
	config  leadgen.Config
	db      *persistence.Client
	redis   *redis.Client
	queue   *gojob.ListQueue
	runtime *leadgen.Runtime
}

// openProcess connects to the database and Redis and wires a runtime over
// them. Callers must call close.
func (a *app) openProcess(ctx context.Context, cfg leadgen.Config) (*process, error) {
	p := &process{config: cfg}

	db, err := leadgen.NewPersistenceClient(cfg)
	if err != nil {
		return nil, err
	}
	p.db = db

	opts, err := redisOptions(cfg.Redis)
	if err != nil {
		p.close()
		return nil, err
	}
	p.redis = redis.NewClient(opts)
	if err := p.redis.Ping(ctx).Err(); err != nil {
		p.close()
		return nil, fmt.Errorf("cli: redis ping: %w", err)
	}
	p.queue = gojob.NewListQueue(goredis.NewListQueue(p.redis, cfg.Queue.Name, cfg.Queue.PopTimeout))

	root, provider := a.logger()
	rt, err := leadgen.NewRuntime(cfg,
		leadgen.WithLogger(root),
		leadgen.WithLoggerProvider(provider),
		leadgen.WithPersistenceClient(db),
		leadgen.WithLeadQueue(gojob.NewLeadQueueAdapter(p.queue)),
	)
	if err != nil {
		p.close()
		return nil, err
	}
	p.runtime = rt
	return p, nil
}

func (p *process) close() {
	if p == nil {
		return
	}
	if p.redis != nil {
		_ = p.redis.Close()
	}
	if p.db != nil {
		_ = p.db.Close()
	}
}
