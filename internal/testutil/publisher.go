package testutil

import (
	"context"
	"sync"

	"github.com/spec-kit/identity-service/internal/events"
)

// Publisher records published events and can be made to fail.
type Publisher struct {
	mu     sync.Mutex
	events []events.Event
	Err    error
}

func (p *Publisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *Publisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}
