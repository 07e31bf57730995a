package leadgen

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-job/queue"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-leadgen/adapters/gocommand"
	"github.com/goliatone/go-leadgen/auth"
	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/directory"
	"github.com/goliatone/go-leadgen/handoff"
	"github.com/goliatone/go-leadgen/httpapi"
	leadcommand "github.com/goliatone/go-leadgen/command"
	"github.com/goliatone/go-leadgen/ingest"
	"github.com/goliatone/go-leadgen/providers/meta/graph"
	leadquery "github.com/goliatone/go-leadgen/query"
	"github.com/goliatone/go-leadgen/ratelimit"
	sqlstore "github.com/goliatone/go-leadgen/store/sql"
	"github.com/goliatone/go-leadgen/transport"
	"github.com/goliatone/go-leadgen/webhooks"
)

type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	graph          core.GraphAPI
	httpDoer       transport.HTTPDoer
	persistence    *persistence.Client
	factory        *sqlstore.RepositoryFactory
	queue          core.LeadQueue
	pageCache      repositorycache.CacheService
}

func WithLogger(logger core.Logger) Option {
	return func(o *runtimeOptions) { o.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *runtimeOptions) { o.loggerProvider = provider }
}

// WithGraphAPI replaces the HTTP Graph client.
func WithGraphAPI(api core.GraphAPI) Option {
	return func(o *runtimeOptions) { o.graph = api }
}

func WithHTTPDoer(doer transport.HTTPDoer) Option {
	return func(o *runtimeOptions) { o.httpDoer = doer }
}

func WithPersistenceClient(client *persistence.Client) Option {
	return func(o *runtimeOptions) { o.persistence = client }
}

func WithRepositoryFactory(factory *sqlstore.RepositoryFactory) Option {
	return func(o *runtimeOptions) { o.factory = factory }
}

// WithLeadQueue sets the queue fresh leads are pushed to. Without one, leads
// are stored and never handed off.
func WithLeadQueue(q core.LeadQueue) Option {
	return func(o *runtimeOptions) { o.queue = q }
}

func WithPageCache(service repositorycache.CacheService) Option {
	return func(o *runtimeOptions) { o.pageCache = service }
}

// Runtime holds the wired components of one process.
type Runtime struct {
	config         Config
	logger         core.Logger
	loggerProvider core.LoggerProvider

	stores    *sqlstore.RepositoryFactory
	pages     core.PageStore
	graph     core.GraphAPI
	broker    *auth.TokenBroker
	bearer    *auth.BearerAuthenticator
	directory *directory.Directory
	producer  *handoff.Producer
	pipeline  *ingest.Pipeline
	gateway   *webhooks.Gateway
	facade    *Facade
	bus       *gocommand.Bus
}

func NewRuntime(cfg Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := runtimeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	rt := &Runtime{
		config:         cfg,
		loggerProvider: options.loggerProvider,
		logger:         core.ResolveLogger("leadgen", options.loggerProvider, options.logger),
	}
	named := func(name string) core.Logger {
		return core.ResolveLogger(name, options.loggerProvider, rt.logger)
	}

	stores, err := resolveStores(options)
	if err != nil {
		return nil, err
	}
	rt.stores = stores

	rt.pages = stores.PageStore()
	if cfg.Cache.PageTTL > 0 {
		cacheService := options.pageCache
		if cacheService == nil {
			cacheConfig := repositorycache.DefaultConfig()
			cacheConfig.TTL = cfg.Cache.PageTTL
			cacheService, err = repositorycache.NewCacheService(cacheConfig)
			if err != nil {
				return nil, fmt.Errorf("leadgen: page cache: %w", err)
			}
		}
		cached, err := sqlstore.NewCachedPageStore(stores.PageStore(), cacheService)
		if err != nil {
			return nil, err
		}
		rt.pages = cached
	}

	rt.graph = options.graph
	if rt.graph == nil {
		doer := options.httpDoer
		if doer == nil {
			doer = http.DefaultClient
		}
		rt.graph = graph.New(cfg.Graph, doer).WithRateLimit(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore()))
	}

	rt.broker = auth.NewTokenBroker(rt.graph, auth.TokenBrokerConfig{DefaultExpiry: cfg.Tokens.DefaultExpiry}, named("leadgen.auth.broker"))
	rt.bearer = auth.NewBearerAuthenticator(rt.graph, stores.UserStore(), named("leadgen.auth.bearer"))
	rt.directory = directory.New(rt.graph, rt.broker, rt.pages, directory.Config{
		BusinessConcurrency: cfg.Directory.BusinessConcurrency,
	}, named("leadgen.directory"))
	rt.producer = handoff.NewProducer(options.queue, named("leadgen.handoff.producer"))
	rt.pipeline = ingest.NewPipeline(rt.pages, rt.graph, stores.LeadStore(), rt.producer, named("leadgen.ingest"))
	rt.gateway = webhooks.NewGateway(webhooks.GatewayConfig{
		VerifyToken:      cfg.Webhook.VerifyToken,
		AppSecret:        cfg.Webhook.AppSecret,
		RequireSignature: cfg.Webhook.RequireSignature,
	}, rt.pipeline, named("leadgen.webhooks"))

	rt.facade, err = NewFacade(FacadeDependencies{
		Tokens:   rt.broker,
		Users:    stores.UserStore(),
		Accounts: rt.directory,
		Leads:    stores.LeadStore(),
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func resolveStores(options runtimeOptions) (*sqlstore.RepositoryFactory, error) {
	if options.factory != nil {
		return options.factory, nil
	}
	if options.persistence == nil {
		return nil, fmt.Errorf("leadgen: persistence client or repository factory is required")
	}
	return sqlstore.NewRepositoryFactoryFromPersistence(options.persistence)
}

// UseDispatcher registers the facade handlers on bus. Routers built
// afterwards send account requests through the go-command dispatcher.
func (r *Runtime) UseDispatcher(bus *gocommand.Bus) error {
	if err := r.facade.Register(bus); err != nil {
		return err
	}
	r.bus = bus
	return nil
}

// Router returns the HTTP surface backed by this runtime.
func (r *Runtime) Router() *gin.Engine {
	handlers := httpapi.Handlers{
		Webhooks:      r.gateway,
		Authenticator: r.bearer,
		Logger:        core.ResolveLogger("leadgen.http", r.loggerProvider, r.logger),
	}
	if r.bus != nil {
		handlers.Login = gocommand.Dispatched[leadcommand.LoginMessage]{}
		handlers.ConnectPage = gocommand.Dispatched[leadcommand.ConnectPageMessage]{}
		handlers.ListPages = gocommand.Queried[leadquery.ListPagesMessage, []core.DiscoveredPage]{}
		handlers.ListPageForms = gocommand.Queried[leadquery.ListPageFormsMessage, []core.LeadForm]{}
		handlers.ListLeads = gocommand.Queried[leadquery.ListLeadsMessage, []core.OwnedLead]{}
		return httpapi.NewRouter(handlers)
	}
	commands := r.facade.Commands()
	queries := r.facade.Queries()
	handlers.Login = commands.Login
	handlers.ConnectPage = commands.ConnectPage
	handlers.ListPages = queries.ListPages
	handlers.ListPageForms = queries.ListPageForms
	handlers.ListLeads = queries.ListLeads
	return httpapi.NewRouter(handlers)
}

// NewConsumer returns a queue consumer that marks each handed-off lead as
// processed.
func (r *Runtime) NewConsumer(dequeuer queue.Dequeuer) *handoff.Consumer {
	logger := core.ResolveLogger("leadgen.handoff.consumer", r.loggerProvider, r.logger)
	return handoff.NewConsumer(
		dequeuer,
		handoff.MarkProcessed(r.stores.LeadStore(), logger),
		handoff.ConsumerConfig{Backoff: r.config.Queue.Backoff},
		logger,
	)
}

func (r *Runtime) Config() Config                           { return r.config }
func (r *Runtime) Logger() core.Logger                      { return r.logger }
func (r *Runtime) Stores() *sqlstore.RepositoryFactory      { return r.stores }
func (r *Runtime) Pages() core.PageStore                    { return r.pages }
func (r *Runtime) Graph() core.GraphAPI                     { return r.graph }
func (r *Runtime) Directory() *directory.Directory          { return r.directory }
func (r *Runtime) Pipeline() *ingest.Pipeline               { return r.pipeline }
func (r *Runtime) Gateway() *webhooks.Gateway               { return r.gateway }
func (r *Runtime) Authenticator() *auth.BearerAuthenticator { return r.bearer }
func (r *Runtime) Facade() *Facade                          { return r.facade }
