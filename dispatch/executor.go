package dispatch

import (
	"context"
	"fmt"

	"github.com/pkg/browser"

	"github.com/lixenwraith/soundkey/mapping"
)

// Executor performs a mapping's action
type Executor interface {
	Execute(ctx context.Context, m mapping.Mapping) error
}

// Publisher queues MQTT messages without blocking
type Publisher interface {
	Enqueue(topic string, payload []byte) error
}

// ActionExecutor runs actions against the desktop and the broker
type ActionExecutor struct {
	// OpenURL hands a URL to the system browser
	OpenURL func(u string) error
	// Publisher is nil when no broker is configured
	Publisher Publisher
}

// NewExecutor creates an executor opening URLs with the system browser
func NewExecutor(pub Publisher) *ActionExecutor {
	return &ActionExecutor{
		OpenURL:   browser.OpenURL,
		Publisher: pub,
	}
}

// Execute runs m's action once; failures wrap ErrActionBlocked and are never retried
func (e *ActionExecutor) Execute(ctx context.Context, m mapping.Mapping) error {
	switch m.Action.Type {
	case mapping.ActionNoop:
		return nil

	case mapping.ActionOpenURL:
		if err := mapping.ValidateURL(m.Action.URL); err != nil {
			return fmt.Errorf("%w: %v", ErrActionBlocked, err)
		}
		if e.OpenURL == nil {
			return fmt.Errorf("%w: no browser", ErrActionBlocked)
		}
		if err := e.OpenURL(m.Action.URL); err != nil {
			return fmt.Errorf("%w: %v", ErrActionBlocked, err)
		}
		return nil

	case mapping.ActionPublish:
		if e.Publisher == nil {
			return fmt.Errorf("%w: no broker configured", ErrActionBlocked)
		}
		payload := m.Action.Payload
		if payload == "" {
			payload = m.Label
		}
		if err := e.Publisher.Enqueue(m.Action.Topic, []byte(payload)); err != nil {
			return fmt.Errorf("%w: %v", ErrActionBlocked, err)
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", mapping.ErrInvalidAction, m.Action.Type)
	}
}
