package wsfeed

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stallwatch/stallwatch/watchdog"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans stall events out to connected WebSocket clients.
// Events arriving within the throttle window are batched into a single
// message.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool

	history  *History
	throttle time.Duration

	flushMu    sync.Mutex
	pending    []StallPayload
	flushTimer *time.Timer
}

func NewBroadcaster(history *History, throttle time.Duration) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		history:  history,
		throttle: throttle,
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	snapshot := Message{
		Type: MsgSnapshot,
		Payload: SnapshotPayload{
			Events: b.history.Recent(),
		},
	}
	data, _ := json.Marshal(snapshot)

	select {
	case c.send <- data:
	default:
		// Client too slow, drop the snapshot
	}

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// QueueStall records the event in the history and schedules a broadcast.
func (b *Broadcaster) QueueStall(p StallPayload) {
	b.history.Add(p)

	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pending = append(b.pending, p)

	if b.throttle <= 0 {
		pending := b.pending
		b.pending = nil
		go b.flushEvents(pending)
		return
	}
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	pending := b.pending
	b.pending = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	b.flushEvents(pending)
}

func (b *Broadcaster) flushEvents(events []StallPayload) {
	if len(events) == 0 {
		return
	}
	b.broadcast(Message{
		Type:    MsgStall,
		Payload: StallBatchPayload{Events: events},
	})
}

func (b *Broadcaster) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Listener adapts the broadcaster to the watchdog's listener capability.
// It runs on the watchdog's reporter goroutine and only queues the
// event, so it never blocks there.
type Listener struct {
	broadcaster *Broadcaster
}

var _ watchdog.Listener = (*Listener)(nil)

func NewListener(b *Broadcaster) *Listener {
	return &Listener{broadcaster: b}
}

func (l *Listener) OnStall(_ *watchdog.Detector, ev *watchdog.StallEvent) {
	l.broadcaster.QueueStall(payloadFromEvent(ev, time.Now()))
}
