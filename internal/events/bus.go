package events

import (
	"sync"
	"sync/atomic"
)

// Kind identifies an event stream on the bus.
type Kind string

// Event kinds. Wire-derived kinds reuse the protocol event names;
// KindStatus is the client's own connection state machine.
const (
	KindStatus          Kind = "status"
	KindRoomJoined      Kind = "project_joined"
	KindRoomLeft        Kind = "project_left"
	KindMessageReceived Kind = "message_received"
	KindToken           Kind = "message_token"
	KindSources         Kind = "message_sources"
	KindComplete        Kind = "message_complete"
	KindDocumentStatus  Kind = "document_status"
	KindProjectUpdate   Kind = "project_update"
	KindError           Kind = "error"
	KindPong            Kind = "pong"
)

// Event is one published value on the bus.
type Event struct {
	Kind    Kind
	Payload interface{}
}

// Handler consumes events of one kind.
type Handler func(Event)

// Subscription is a scoped registration on the bus. Handlers stop
// firing the moment Cancel returns, including for events published
// synchronously afterwards.
type Subscription struct {
	bus      *Bus
	kind     Kind
	fn       Handler
	canceled atomic.Bool
}

// Cancel removes the subscription. Idempotent; safe from inside the
// handler.
func (s *Subscription) Cancel() {
	if s.canceled.Swap(true) {
		return
	}
	s.bus.remove(s)
}

// Bus is an in-process event fan-out registry.
type Bus struct {
	mu       sync.Mutex
	handlers map[Kind][]*Subscription
	current  map[Kind]Event
	replayed map[Kind]bool
}

// New creates a bus. Only the status kind replays its latest value to
// new subscribers.
func New() *Bus {
	return &Bus{
		handlers: make(map[Kind][]*Subscription),
		current:  make(map[Kind]Event),
		replayed: map[Kind]bool{KindStatus: true},
	}
}

// Subscribe registers a handler for a kind and returns its
// subscription. Handlers for one kind fire in registration order.
func (b *Bus) Subscribe(kind Kind, fn Handler) *Subscription {
	sub := &Subscription{bus: b, kind: kind, fn: fn}

	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], sub)
	last, hasLast := b.current[kind]
	b.mu.Unlock()

	if b.replayed[kind] && hasLast {
		fn(last)
	}
	return sub
}

// Publish delivers an event to every live subscriber of its kind, in
// registration order, on the caller's goroutine.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	if b.replayed[evt.Kind] {
		b.current[evt.Kind] = evt
	}
	subs := make([]*Subscription, len(b.handlers[evt.Kind]))
	copy(subs, b.handlers[evt.Kind])
	b.mu.Unlock()

	for _, sub := range subs {
		// Checked per delivery so a cancel between snapshot and
		// invocation still wins
		if !sub.canceled.Load() {
			sub.fn(evt)
		}
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[sub.kind]
	for i, s := range subs {
		if s == sub {
			b.handlers[sub.kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
