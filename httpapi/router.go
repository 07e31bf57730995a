// Package httpapi exposes the webhook endpoints and the authenticated
// account API over gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-leadgen/command"
	"github.com/goliatone/go-leadgen/core"
	"github.com/goliatone/go-leadgen/query"
	"github.com/goliatone/go-leadgen/webhooks"
)

type WebhookGateway interface {
	Verify(ctx context.Context, mode, token, challenge string) (webhooks.Result, error)
	Receive(ctx context.Context, headers map[string]string, body []byte) (webhooks.Result, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, header string) (core.User, error)
}

// Handlers holds everything the router dispatches to.
type Handlers struct {
	Webhooks      WebhookGateway
	Authenticator Authenticator
	Login         gocmd.Commander[command.LoginMessage]
	ConnectPage   gocmd.Commander[command.ConnectPageMessage]
	ListPages     gocmd.Querier[query.ListPagesMessage, []core.DiscoveredPage]
	ListPageForms gocmd.Querier[query.ListPageFormsMessage, []core.LeadForm]
	ListLeads     gocmd.Querier[query.ListLeadsMessage, []core.OwnedLead]
	Logger        core.Logger

	// MaxWebhookBodyBytes caps POST /webhooks bodies. Zero uses 1 MiB.
	MaxWebhookBodyBytes int64
}

// NewRouter builds the gin engine. Routes whose handler is nil are not
// registered.
func NewRouter(h Handlers) *gin.Engine {
	logger := core.ResolveLogger("leadgen.http", nil, h.Logger)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if h.Webhooks != nil {
		hooks := &webhookHandlers{gateway: h.Webhooks, maxBodyBytes: h.MaxWebhookBodyBytes}
		router.GET("/webhooks", hooks.verify)
		router.POST("/webhooks", hooks.receive)
	}

	api := router.Group("/api")
	accounts := &accountHandlers{h: h, logger: logger}
	if h.Login != nil {
		api.POST("/auth/login", accounts.login)
	}

	if h.Authenticator == nil {
		return router
	}
	secured := api.Group("", RequireUser(h.Authenticator))
	if h.ListPages != nil {
		secured.GET("/auth/pages", accounts.listPages)
	}
	if h.ConnectPage != nil {
		secured.POST("/auth/pages/:pageId/connect", accounts.connectPage)
	}
	if h.ListPageForms != nil {
		secured.GET("/auth/pages/:pageId/forms", accounts.listPageForms)
	}
	if h.ListLeads != nil {
		secured.GET("/leads", accounts.listLeads)
	}
	return router
}

func requestLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := "info"
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = "error"
		}
		core.LogEvent(c.Request.Context(), logger, level, "http request", map[string]any{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}
