package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many events a board may fall behind before it is dropped
	sendBuffer = 32
)

// ErrClientGone is returned by Send once the board has been unregistered or
// has fallen too far behind.
var ErrClientGone = errors.New("ws: board connection closed")

// Event is the envelope written to board clients
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub fans shop events out to the connected workshop boards. It implements
// services.Broadcaster. Each board has its own queue and writer goroutine so
// a slow board never holds up the request that produced the event.
type Hub struct {
	mu     sync.RWMutex
	byShop map[uint]map[*Client]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{byShop: make(map[uint]map[*Client]struct{})}
}

// Client is a registered board connection
type Client struct {
	shopID uint
	conn   *websocket.Conn
	send   chan Event
	done   chan struct{}
	once   sync.Once
}

// Register adds a connection to the shop's audience and starts its writer
func (h *Hub) Register(shopID uint, conn *websocket.Conn) *Client {
	client := &Client{
		shopID: shopID,
		conn:   conn,
		send:   make(chan Event, sendBuffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	if h.byShop[shopID] == nil {
		h.byShop[shopID] = make(map[*Client]struct{})
	}
	h.byShop[shopID][client] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(client)
	return client
}

func (h *Hub) writeLoop(c *Client) {
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.WithError(err).WithFields(log.Fields{"shop_id": c.shopID, "event": msg.Event}).Warn("ws: dropping board connection")
				h.Unregister(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue never blocks
func (c *Client) enqueue(msg Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) stop() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Send queues one event for this client only
func (c *Client) Send(event string, payload interface{}) error {
	if !c.enqueue(Event{Event: event, Data: payload}) {
		return ErrClientGone
	}
	return nil
}

// Unregister closes and forgets a connection. It is safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if conns, ok := h.byShop[client.shopID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.byShop, client.shopID)
		}
	}
	h.mu.Unlock()
	client.stop()
}

// Count returns the number of boards connected for a shop
func (h *Hub) Count(shopID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byShop[shopID])
}

// Broadcast queues an event for every board of the shop and returns without
// waiting on the network. Boards whose queue is full are dropped.
func (h *Hub) Broadcast(shopID uint, event string, payload interface{}) {
	msg := Event{Event: event, Data: payload}
	var lagging []*Client
	h.mu.RLock()
	for client := range h.byShop[shopID] {
		if !client.enqueue(msg) {
			lagging = append(lagging, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range lagging {
		log.WithFields(log.Fields{"shop_id": shopID, "event": event}).Warn("ws: board is not keeping up, dropping connection")
		h.Unregister(client)
	}
}

// Close disconnects every board
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for shopID, conns := range h.byShop {
		for client := range conns {
			client.stop()
		}
		delete(h.byShop, shopID)
	}
}
