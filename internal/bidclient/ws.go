package bidclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	model "auction-live/internal/models"
	"auction-live/utils"

	"github.com/gorilla/websocket"
)

const (
	initialReconnectWait = time.Second
	maxReconnectWait     = 30 * time.Second
)

// wsFrame is the control frame understood by the realtime hub.
type wsFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// WSChannel is an EventChannel over a websocket connection. It reconnects
// with capped exponential backoff and replays topic subscriptions after each
// reconnect, then fires the OnConnect callbacks so callers can refresh state
// they may have missed during the gap.
type WSChannel struct {
	url    string
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	nextID    int
	handlers  map[model.EventType]map[int]Handler
	onConnect map[int]func()
	topics    map[string]struct{}
}

// NewWSChannel dials the realtime endpoint and starts the reconnect loop.
// The returned channel may not be connected yet; events flow once the first
// dial succeeds.
func NewWSChannel(url string) *WSChannel {
	ctx, cancel := context.WithCancel(context.Background())
	ch := &WSChannel{
		url:       url,
		cancel:    cancel,
		done:      make(chan struct{}),
		handlers:  make(map[model.EventType]map[int]Handler),
		onConnect: make(map[int]func()),
		topics:    make(map[string]struct{}),
	}
	go ch.run(ctx)
	return ch
}

func (ch *WSChannel) On(t model.EventType, h Handler) func() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.handlers[t] == nil {
		ch.handlers[t] = make(map[int]Handler)
	}
	id := ch.nextID
	ch.nextID++
	ch.handlers[t][id] = h
	return func() {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		delete(ch.handlers[t], id)
	}
}

func (ch *WSChannel) OnConnect(fn func()) func() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	id := ch.nextID
	ch.nextID++
	ch.onConnect[id] = fn
	return func() {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		delete(ch.onConnect, id)
	}
}

// Subscribe registers interest in a topic. The subscription survives
// reconnects until Unsubscribe is called.
func (ch *WSChannel) Subscribe(topic string) error {
	ch.mu.Lock()
	ch.topics[topic] = struct{}{}
	conn := ch.conn
	ch.mu.Unlock()

	if conn == nil {
		return nil // replayed once the dial succeeds
	}
	return ch.writeFrame(wsFrame{Action: "subscribe", Channel: topic})
}

func (ch *WSChannel) Unsubscribe(topic string) error {
	ch.mu.Lock()
	delete(ch.topics, topic)
	conn := ch.conn
	ch.mu.Unlock()

	if conn == nil {
		return nil
	}
	return ch.writeFrame(wsFrame{Action: "unsubscribe", Channel: topic})
}

func (ch *WSChannel) Connected() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.connected
}

func (ch *WSChannel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	conn := ch.conn
	ch.mu.Unlock()

	ch.cancel()
	if conn != nil {
		conn.Close()
	}
	<-ch.done
	return nil
}

func (ch *WSChannel) run(ctx context.Context) {
	defer close(ch.done)

	wait := initialReconnectWait
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, ch.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			utils.Warn("realtime dial failed", map[string]any{
				"url":   ch.url,
				"error": err.Error(),
				"retry": wait.String(),
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			wait *= 2
			if wait > maxReconnectWait {
				wait = maxReconnectWait
			}
			continue
		}
		wait = initialReconnectWait

		ch.attach(conn)
		ch.readLoop(conn)
		ch.detach(conn)

		if ctx.Err() != nil {
			return
		}
	}
}

// attach installs the new connection, replays subscriptions and fires the
// connect callbacks.
func (ch *WSChannel) attach(conn *websocket.Conn) {
	ch.mu.Lock()
	ch.conn = conn
	ch.connected = true
	topics := make([]string, 0, len(ch.topics))
	for topic := range ch.topics {
		topics = append(topics, topic)
	}
	fns := make([]func(), 0, len(ch.onConnect))
	for _, fn := range ch.onConnect {
		fns = append(fns, fn)
	}
	ch.mu.Unlock()

	for _, topic := range topics {
		if err := ch.writeFrame(wsFrame{Action: "subscribe", Channel: topic}); err != nil {
			utils.Warn("subscription replay failed", map[string]any{
				"topic": topic,
				"error": err.Error(),
			})
		}
	}
	for _, fn := range fns {
		fn()
	}
}

func (ch *WSChannel) detach(conn *websocket.Conn) {
	conn.Close()
	ch.mu.Lock()
	if ch.conn == conn {
		ch.conn = nil
		ch.connected = false
	}
	ch.mu.Unlock()
}

func (ch *WSChannel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ev model.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			utils.Warn("discarding malformed event", map[string]any{"error": err.Error()})
			continue
		}
		ch.dispatch(ev)
	}
}

func (ch *WSChannel) dispatch(ev model.Event) {
	ch.mu.Lock()
	hs := make([]Handler, 0, len(ch.handlers[ev.Type]))
	for _, h := range ch.handlers[ev.Type] {
		hs = append(hs, h)
	}
	ch.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

func (ch *WSChannel) writeFrame(frame wsFrame) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.conn == nil {
		return nil
	}
	ch.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return ch.conn.WriteJSON(frame)
}
