package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-leadgen/core"
)

type TokenExchanger interface {
	ExchangeAndProfile(ctx context.Context, shortLivedToken string) (core.TokenGrant, error)
}

type PageConnector interface {
	ConnectPage(ctx context.Context, pageExternalID string, name string, userToken string, ownerUserID string) (core.Page, error)
}

// LoginResult is stored on the command context after a successful login.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        core.User
}

type LoginCommand struct {
	tokens TokenExchanger
	users  core.UserStore
}

func NewLoginCommand(tokens TokenExchanger, users core.UserStore) *LoginCommand {
	return &LoginCommand{tokens: tokens, users: users}
}

// Execute exchanges the submitted token and upserts the user by external id.
func (c *LoginCommand) Execute(ctx context.Context, msg LoginMessage) error {
	if c == nil || c.tokens == nil || c.users == nil {
		return commandDependencyError("command: login dependencies are required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	grant, err := c.tokens.ExchangeAndProfile(ctx, msg.AccessToken)
	if err != nil {
		return err
	}
	expiresAt := grant.ExpiresAt
	user, err := c.users.Upsert(ctx, core.UpsertUserInput{
		ExternalID:     grant.Profile.ExternalID,
		Name:           grant.Profile.Name,
		LongLivedToken: grant.AccessToken,
		TokenExpiresAt: &expiresAt,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, LoginResult{
		AccessToken: grant.AccessToken,
		ExpiresAt:   grant.ExpiresAt,
		User:        user,
	})
	return nil
}

type ConnectPageCommand struct {
	pages PageConnector
}

func NewConnectPageCommand(pages PageConnector) *ConnectPageCommand {
	return &ConnectPageCommand{pages: pages}
}

func (c *ConnectPageCommand) Execute(ctx context.Context, msg ConnectPageMessage) error {
	if c == nil || c.pages == nil {
		return commandDependencyError("command: page connector is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	page, err := c.pages.ConnectPage(ctx, msg.PageExternalID, msg.Name, msg.UserToken, msg.OwnerUserID)
	if err != nil {
		return err
	}
	storeResult(ctx, page)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
