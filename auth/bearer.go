package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-leadgen/core"
)

// BearerAuthenticator resolves an Authorization header to a known user by
// asking the platform who owns the token.
type BearerAuthenticator struct {
	graph  core.GraphAPI
	users  core.UserStore
	logger core.Logger
	group  singleflight.Group
}

func NewBearerAuthenticator(graph core.GraphAPI, users core.UserStore, logger core.Logger) *BearerAuthenticator {
	return &BearerAuthenticator{
		graph:  graph,
		users:  users,
		logger: core.ResolveLogger("leadgen.auth.bearer", nil, logger),
	}
}

// ParseBearer extracts the token from a "Bearer <token>" header value.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", core.NewUnauthorizedError("authorization header missing", nil)
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", core.NewUnauthorizedError("token format invalid, expected: Bearer <token>", nil)
	}
	return parts[1], nil
}

// Authenticate returns the stored user owning the bearer token. Every
// failure is reported as unauthorized.
func (a *BearerAuthenticator) Authenticate(ctx context.Context, header string) (core.User, error) {
	if a == nil || a.graph == nil || a.users == nil {
		return core.User{}, fmt.Errorf("auth: bearer authenticator is not configured")
	}
	token, err := ParseBearer(header)
	if err != nil {
		return core.User{}, err
	}

	// concurrent requests carrying the same token share one profile lookup,
	// which outlives any single caller's cancellation
	shared := a.group.DoChan(token, func() (any, error) {
		return a.graph.FetchProfile(context.WithoutCancel(ctx), token)
	})
	var result any
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-shared:
		result, err = res.Val, res.Err
	}
	if err != nil {
		core.LogEvent(ctx, a.logger, "warn", "bearer token rejected", map[string]any{
			"error": err.Error(),
		})
		if core.IsUpstreamAuth(err) {
			return core.User{}, core.NewUnauthorizedError("token expired or invalid", nil)
		}
		return core.User{}, core.NewUnauthorizedError("authentication failed", nil)
	}
	profile, _ := result.(core.Profile)
	if strings.TrimSpace(profile.ExternalID) == "" {
		return core.User{}, core.NewUnauthorizedError("invalid platform token", nil)
	}

	user, err := a.users.GetByExternalID(ctx, profile.ExternalID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.User{}, core.NewUnauthorizedError("user not registered", map[string]any{
				"external_id": profile.ExternalID,
			})
		}
		core.LogEvent(ctx, a.logger, "error", "bearer user lookup failed", map[string]any{
			"external_id": profile.ExternalID,
			"error":       err.Error(),
		})
		return core.User{}, core.NewUnauthorizedError("authentication failed", nil)
	}
	return user, nil
}
