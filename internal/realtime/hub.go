// Package realtime fans auction events out to websocket subscribers. Clients
// subscribe to per-auction topics and receive every event for that topic in
// arrival order; ordering across topics is not guaranteed.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	model "auction-live/internal/models"
	"auction-live/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// Topic returns the channel name for one auction's event stream.
func Topic(auctionID string) string {
	return "auction:" + auctionID
}

// frame is the control message clients send to manage their subscriptions.
type frame struct {
	Action  string `json:"action"`  // subscribe | unsubscribe
	Channel string `json:"channel"` // e.g. "auction:a1"
}

// Hub tracks websocket clients and their topic subscriptions.
type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*client]struct{}
	upgrader websocket.Upgrader
}

// client is one websocket connection with its outbound queue.
type client struct {
	conn      *websocket.Conn
	send      chan []byte
	topics    map[string]struct{}
	closeOnce sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks belong to the edge proxy in this deployment.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades the request and serves the connection until it drops.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Warn("websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	cl := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		topics: make(map[string]struct{}),
	}

	go cl.writePump()
	h.readPump(cl)
}

// Broadcast delivers the event to every subscriber of its auction's topic.
// Clients whose outbound queue is full are dropped rather than allowed to
// stall the others.
func (h *Hub) Broadcast(ev model.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		utils.Error("failed to marshal event", map[string]any{
			"type":       string(ev.Type),
			"auction_id": ev.AuctionID,
			"error":      err.Error(),
		})
		return
	}

	topic := Topic(ev.AuctionID)

	var slow []*client
	h.mu.RLock()
	for cl := range h.topics[topic] {
		select {
		case cl.send <- payload:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		utils.Warn("dropping slow websocket client", map[string]any{"topic": topic})
		h.drop(cl)
	}
}

// SubscriberCount reports how many clients are subscribed to a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// CloseAll disconnects every client. Used on shutdown; clients are expected
// to reconnect and re-subscribe on their own.
func (h *Hub) CloseAll() {
	clients := make(map[*client]struct{})
	h.mu.RLock()
	for _, subs := range h.topics {
		for cl := range subs {
			clients[cl] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for cl := range clients {
		h.drop(cl)
	}
}

// readPump consumes subscription frames until the connection closes, then
// cleans the client up.
func (h *Hub) readPump(cl *client) {
	defer h.drop(cl)

	for {
		var f frame
		if err := cl.conn.ReadJSON(&f); err != nil {
			return
		}
		switch f.Action {
		case "subscribe":
			h.subscribe(cl, f.Channel)
		case "unsubscribe":
			h.unsubscribe(cl, f.Channel)
		default:
			// unknown actions are ignored for forward compatibility
		}
	}
}

func (h *Hub) subscribe(cl *client, topic string) {
	if topic == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*client]struct{})
		h.topics[topic] = subs
	}
	subs[cl] = struct{}{}
	cl.topics[topic] = struct{}{}
}

func (h *Hub) unsubscribe(cl *client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(cl, topic)
}

// drop removes the client from every topic and closes it down. Closing the
// send channel only after the topic removal means no Broadcast can still be
// holding a reference that would write to a closed channel.
func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	for topic := range cl.topics {
		h.removeLocked(cl, topic)
	}
	h.mu.Unlock()

	cl.closeOnce.Do(func() {
		close(cl.send)
		cl.conn.Close()
	})
}

func (h *Hub) removeLocked(cl *client, topic string) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, cl)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(cl.topics, topic)
}

// writePump drains the outbound queue onto the wire.
func (c *client) writePump() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
