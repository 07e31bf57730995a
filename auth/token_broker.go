package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-leadgen/core"
)

type TokenBrokerConfig struct {
	// DefaultExpiry applies when the platform omits expires_in.
	DefaultExpiry time.Duration
	Now           func() time.Time
}

// TokenBroker turns short-lived user tokens into long-lived grants and
// resolves page-scoped tokens.
type TokenBroker struct {
	graph  core.GraphAPI
	config TokenBrokerConfig
	logger core.Logger
}

func NewTokenBroker(graph core.GraphAPI, cfg TokenBrokerConfig, logger core.Logger) *TokenBroker {
	expiry := cfg.DefaultExpiry
	if expiry <= 0 {
		expiry = core.DefaultTokenExpiry
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TokenBroker{
		graph: graph,
		config: TokenBrokerConfig{
			DefaultExpiry: expiry,
			Now:           now,
		},
		logger: core.ResolveLogger("leadgen.auth.broker", nil, logger),
	}
}

// ExchangeAndProfile exchanges the short-lived token and loads the profile
// with the resulting long-lived token.
func (b *TokenBroker) ExchangeAndProfile(ctx context.Context, shortLivedToken string) (core.TokenGrant, error) {
	if b == nil || b.graph == nil {
		return core.TokenGrant{}, fmt.Errorf("auth: token broker is not configured")
	}
	shortLivedToken = strings.TrimSpace(shortLivedToken)
	if shortLivedToken == "" {
		return core.TokenGrant{}, core.NewValidationError("accessToken", "access token is required")
	}

	exchanged, err := b.graph.ExchangeToken(ctx, shortLivedToken)
	if err != nil {
		return core.TokenGrant{}, b.authFailure(ctx, err, "exchange")
	}

	expiresIn := exchanged.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = b.config.DefaultExpiry
	}
	issuedAt := b.config.Now()

	profile, err := b.graph.FetchProfile(ctx, exchanged.AccessToken)
	if err != nil {
		return core.TokenGrant{}, b.authFailure(ctx, err, "profile")
	}

	core.LogEvent(ctx, b.logger, "info", "token exchanged", map[string]any{
		"external_id": profile.ExternalID,
		"expires_in":  expiresIn.String(),
	})
	return core.TokenGrant{
		AccessToken: exchanged.AccessToken,
		ExpiresAt:   issuedAt.Add(expiresIn),
		Profile:     profile,
	}, nil
}

// ResolvePageToken always asks the platform for a fresh page token.
func (b *TokenBroker) ResolvePageToken(ctx context.Context, pageExternalID string, userToken string) (string, error) {
	if b == nil || b.graph == nil {
		return "", fmt.Errorf("auth: token broker is not configured")
	}
	token, err := b.graph.FetchPageToken(ctx, pageExternalID, userToken)
	if err != nil {
		if core.IsUpstreamAuth(err) {
			return "", core.NewAuthenticationFailedError(err, "auth: page token rejected")
		}
		return "", err
	}
	return token, nil
}

func (b *TokenBroker) authFailure(ctx context.Context, err error, step string) error {
	core.LogEvent(ctx, b.logger, "warn", "token exchange failed", map[string]any{
		"step":  step,
		"error": err.Error(),
	})
	if core.IsUpstreamAuth(err) {
		return core.NewAuthenticationFailedError(err, "auth: "+step+" rejected by platform")
	}
	return err
}
