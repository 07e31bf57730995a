// Package gocommand puts the leadgen command and query handlers behind the
// go-command registry and dispatcher.
package gocommand

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	goerrors "github.com/goliatone/go-errors"
)

const textCodePrefix = "LEADGEN_"

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// Bus owns the registry entries and dispatcher subscriptions of one process.
// Close releases every subscription it made.
type Bus struct {
	registry *command.Registry

	mu   sync.Mutex
	subs []commanddispatcher.Subscription
}

func NewBus(registry *command.Registry) *Bus {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &Bus{registry: registry}
}

func (b *Bus) Registry() *command.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

// Initialize runs the registry resolvers once every handler is added.
func (b *Bus) Initialize() error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return b.registry.Initialize()
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (b *Bus) track(sub commanddispatcher.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, sub)
}

// AddCommand subscribes cmd and registers it. A failed registration drops
// the subscription again.
func AddCommand[T any](b *Bus, cmd command.Commander[T], runnerOpts ...runner.Option) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return fmt.Errorf("gocommand: command is required")
	}
	sub := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := b.registry.RegisterCommand(cmd); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return err
	}
	b.track(sub)
	return nil
}

func AddQuery[T any, R any](b *Bus, qry command.Querier[T, R], runnerOpts ...runner.Option) error {
	if b == nil || b.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return fmt.Errorf("gocommand: query is required")
	}
	sub := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := b.registry.RegisterCommand(qry); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return err
	}
	b.track(sub)
	return nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return handlerError(commanddispatcher.Dispatch(ctx, msg))
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	out, err := commanddispatcher.Query[T, R](ctx, msg)
	return out, handlerError(err)
}

// Dispatched is a command.Commander that routes through the dispatcher.
type Dispatched[T any] struct{}

func (Dispatched[T]) Execute(ctx context.Context, msg T) error {
	return Dispatch(ctx, msg)
}

// Queried is a command.Querier that routes through the dispatcher.
type Queried[T any, R any] struct{}

func (Queried[T, R]) Query(ctx context.Context, msg T) (R, error) {
	return Query[T, R](ctx, msg)
}

// handlerError returns the innermost leadgen envelope in err's chain so the
// HTTP layer maps the handler's code rather than a dispatcher wrapper.
func handlerError(err error) error {
	if err == nil {
		return nil
	}
	var found error
	for current := err; current != nil; current = errors.Unwrap(current) {
		if rich, ok := current.(*goerrors.Error); ok && strings.HasPrefix(rich.TextCode, textCodePrefix) {
			found = rich
		}
	}
	if found != nil {
		return found
	}
	return err
}
