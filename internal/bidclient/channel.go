package bidclient

import (
	"sync"

	model "auction-live/internal/models"
)

// Handler consumes a single realtime event.
type Handler func(model.Event)

// EventChannel is the realtime event transport the session layer runs on.
// Implementations deliver events sequentially per channel, so handlers never
// run concurrently with each other.
type EventChannel interface {
	// On registers a handler for the given event type. The returned cancel
	// func removes the handler; calling it more than once is harmless.
	On(t model.EventType, h Handler) (cancel func())

	// OnConnect registers a callback fired each time the underlying
	// connection (re)establishes. Used to replay topic subscriptions.
	OnConnect(fn func()) (cancel func())

	// Subscribe asks the backend to deliver events for the given topic.
	Subscribe(topic string) error

	// Unsubscribe stops delivery for the topic.
	Unsubscribe(topic string) error

	// Connected reports whether the transport currently has a live
	// connection.
	Connected() bool

	// Close tears the channel down. Handlers registered on a closed
	// channel never fire.
	Close() error
}

// FakeChannel is an in-memory EventChannel for tests. Emit delivers an event
// to registered handlers synchronously on the caller's goroutine.
type FakeChannel struct {
	mu        sync.Mutex
	nextID    int
	handlers  map[model.EventType]map[int]Handler
	onConnect map[int]func()
	connected bool
	closed    bool

	// Subscribed records every Subscribe call in order, duplicates included.
	Subscribed []string
	// Unsubscribed records every Unsubscribe call in order.
	Unsubscribed []string
}

// NewFakeChannel returns a connected FakeChannel.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{
		handlers:  make(map[model.EventType]map[int]Handler),
		onConnect: make(map[int]func()),
		connected: true,
	}
}

func (f *FakeChannel) On(t model.EventType, h Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[t] == nil {
		f.handlers[t] = make(map[int]Handler)
	}
	id := f.nextID
	f.nextID++
	f.handlers[t][id] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[t], id)
	}
}

func (f *FakeChannel) OnConnect(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.onConnect[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.onConnect, id)
	}
}

func (f *FakeChannel) Subscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Subscribed = append(f.Subscribed, topic)
	return nil
}

func (f *FakeChannel) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unsubscribed = append(f.Unsubscribed, topic)
	return nil
}

func (f *FakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

// Emit delivers the event to every handler registered for its type.
func (f *FakeChannel) Emit(ev model.Event) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	hs := make([]Handler, 0, len(f.handlers[ev.Type]))
	for _, h := range f.handlers[ev.Type] {
		hs = append(hs, h)
	}
	f.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

// SetConnected flips the connection state. Transitioning to connected fires
// the OnConnect callbacks, mimicking a transport reconnect.
func (f *FakeChannel) SetConnected(connected bool) {
	f.mu.Lock()
	wasConnected := f.connected
	f.connected = connected
	var fns []func()
	if connected && !wasConnected {
		for _, fn := range f.onConnect {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// HandlerCount reports how many handlers are registered for the event type.
func (f *FakeChannel) HandlerCount(t model.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[t])
}
