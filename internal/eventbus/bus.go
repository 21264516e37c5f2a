// Package eventbus carries store notifications to display-layer consumers.
//
// Publishing is fire-and-forget from the updater's point of view: a
// subscriber failure is returned to the publisher but never rolls back
// a store write that already committed.
package eventbus

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/ir"
)

// DisplayCacheInvalidate tells display caches to drop what they hold for
// a subject. It is published after a redirect retarget.
const DisplayCacheInvalidate = "display-cache invalidate"

// Bus publishes named events about a subject.
type Bus interface {
	Publish(ctx context.Context, event string, subject ir.Subject) error
}

// Event is the envelope delivered to subscribers and sent over the wire.
type Event struct {
	Name    string     `json:"event"`
	Subject ir.Subject `json:"subject"`
}

// Handler receives events for one subscription.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher is an in-process Bus with named subscriptions.
// It is safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]map[string]Handler)}
}

// Subscribe registers h for event under name. Registering the same name
// twice for an event replaces the earlier handler.
func (d *Dispatcher) Subscribe(event, name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers[event] == nil {
		d.handlers[event] = make(map[string]Handler)
	}
	d.handlers[event][name] = h
}

// Unsubscribe removes a subscription. Unknown names are ignored.
func (d *Dispatcher) Unsubscribe(event, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers[event], name)
}

// Publish calls every handler subscribed to event, in subscription-name
// order. All handlers run even if one fails; the failures are combined.
func (d *Dispatcher) Publish(ctx context.Context, event string, subject ir.Subject) error {
	d.mu.RLock()
	subs := d.handlers[event]
	names := make([]string, 0, len(subs))
	for name := range subs {
		names = append(names, name)
	}
	handlers := make([]Handler, 0, len(subs))
	sort.Strings(names)
	for _, name := range names {
		handlers = append(handlers, subs[name])
	}
	d.mu.RUnlock()

	ev := Event{Name: event, Subject: subject}
	var errs []error
	for i, h := range handlers {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, errors.Wrapf(err, "subscriber %s", names[i]))
		}
	}
	return errors.Join(errs...)
}

// Multi fans an event out to several buses.
type Multi []Bus

// Publish sends to every bus and combines the failures.
func (m Multi) Publish(ctx context.Context, event string, subject ir.Subject) error {
	var errs []error
	for _, b := range m {
		if b == nil {
			continue
		}
		if err := b.Publish(ctx, event, subject); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder is a Bus that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the event.
func (r *Recorder) Publish(_ context.Context, event string, subject ir.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: event, Subject: subject})
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
