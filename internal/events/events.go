// Package events announces resource changes made through the functions.
//
// Handlers call Publisher.Publish after a successful create, update or
// delete. Delivery is best effort: a failed publish is reported to the
// caller, which logs it and still answers the request.
package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Action is the kind of change.
type Action string

// Resource change actions.
const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Event describes one resource change.
type Event struct {
	Resource string    `json:"resource"`
	Action   Action    `json:"action"`
	ID       string    `json:"id"`
	Actor    string    `json:"actor,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
