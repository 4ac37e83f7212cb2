// Package events is the in-process domain event bus.
//
// Publish delivers synchronously: every handler runs on the publishing
// goroutine before Publish returns. There is no buffering or redelivery.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MacJediWizard/orgwarden/internal/metrics"
	"github.com/rs/zerolog"
)

// Event is a domain event.
type Event interface {
	EventName() string
}

// Handler reacts to an event.
type Handler func(ctx context.Context, ev Event) error

// Bus dispatches events to the handlers subscribed to their name.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

type namedHandler struct {
	name string
	fn   Handler
}

// NewBus creates a bus. m may be nil.
func NewBus(m *metrics.Metrics, logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]namedHandler),
		metrics:  m,
		logger:   logger.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers fn for events named eventName. The subscriber name
// identifies the handler in logs and errors.
func (b *Bus) Subscribe(eventName, subscriber string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], namedHandler{name: subscriber, fn: fn})
}

// Publish runs every handler of ev in subscription order. A failing
// handler does not stop the others; all failures are returned joined.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	name := ev.EventName()

	b.mu.RLock()
	handlers := append([]namedHandler(nil), b.handlers[name]...)
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.RecordEvent(name)
	}
	if len(handlers) == 0 {
		b.logger.Debug().Str("event", name).Msg("event has no subscribers")
		return nil
	}

	var errs []error
	for _, h := range handlers {
		if err := h.fn(ctx, ev); err != nil {
			b.logger.Error().Err(err).
				Str("event", name).
				Str("subscriber", h.name).
				Msg("event handler failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}
