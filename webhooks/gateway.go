package webhooks

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/goliatone/go-leadgen/core"
)

const (
	ModeSubscribe    = "subscribe"
	EventReceivedAck = "EVENT_RECEIVED"
)

// Result is what the HTTP layer writes back to the platform.
type Result struct {
	StatusCode int
	Body       string
	Metadata   map[string]any
}

type GatewayConfig struct {
	VerifyToken      string
	AppSecret        string
	RequireSignature bool
}

// Gateway answers subscription handshakes and hands leadgen changes of a
// delivery to the ingester one at a time.
type Gateway struct {
	verifyToken      string
	verifier         SignatureVerifier
	requireSignature bool
	ingester         core.LeadIngester
	logger           core.Logger
}

func NewGateway(cfg GatewayConfig, ingester core.LeadIngester, logger core.Logger) *Gateway {
	return &Gateway{
		verifyToken:      strings.TrimSpace(cfg.VerifyToken),
		verifier:         NewSignatureVerifier(cfg.AppSecret),
		requireSignature: cfg.RequireSignature,
		ingester:         ingester,
		logger:           core.ResolveLogger("leadgen.webhooks", nil, logger),
	}
}

// Verify answers the hub.mode/hub.verify_token/hub.challenge handshake.
func (g *Gateway) Verify(ctx context.Context, mode, token, challenge string) (Result, error) {
	mode = strings.TrimSpace(mode)
	token = strings.TrimSpace(token)
	if mode == "" || token == "" {
		return Result{StatusCode: http.StatusBadRequest}, core.NewValidationError("hub.verify_token", "hub.mode and hub.verify_token are required")
	}
	if mode != ModeSubscribe || g.verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(g.verifyToken)) != 1 {
		core.LogEvent(ctx, g.logger, "warn", "webhook verification rejected", map[string]any{"mode": mode})
		return Result{StatusCode: http.StatusForbidden}, core.NewForbiddenError("webhook verification failed", nil)
	}
	core.LogEvent(ctx, g.logger, "info", "webhook verified", nil)
	return Result{StatusCode: http.StatusOK, Body: challenge}, nil
}

// Receive processes one delivery. Per-lead failures are contained by the
// ingester and never change the acknowledgement.
func (g *Gateway) Receive(ctx context.Context, headers map[string]string, body []byte) (Result, error) {
	if g.verifier.Enabled() {
		if err := g.verifier.Verify(headers, body); err != nil {
			if g.requireSignature {
				core.LogEvent(ctx, g.logger, "warn", "webhook signature rejected", map[string]any{"error": err.Error()})
				return Result{StatusCode: http.StatusForbidden}, core.NewForbiddenError("webhook signature verification failed", nil)
			}
			core.LogEvent(ctx, g.logger, "warn", "webhook signature check failed, accepting unsigned delivery", map[string]any{"error": err.Error()})
		}
	}

	batch, err := ParseBatch(body)
	if err != nil {
		return Result{StatusCode: http.StatusBadRequest}, err
	}
	if batch.Object != ObjectPage {
		return Result{StatusCode: http.StatusNotFound}, core.NewNotFoundError("unsupported webhook object", map[string]any{
			"object": batch.Object,
		})
	}

	events := LeadgenEvents(batch)
	if g.ingester != nil {
		for _, event := range events {
			g.ingester.Ingest(ctx, event)
		}
	} else if len(events) > 0 {
		core.LogEvent(ctx, g.logger, "error", "webhook ingester is not configured, dropping leadgen changes", map[string]any{
			"events": len(events),
		})
	}

	core.LogEvent(ctx, g.logger, "info", "webhook delivery processed", map[string]any{
		"entries": len(batch.Entry),
		"events":  len(events),
	})
	return Result{
		StatusCode: http.StatusOK,
		Body:       EventReceivedAck,
		Metadata:   map[string]any{"events": len(events)},
	}, nil
}
