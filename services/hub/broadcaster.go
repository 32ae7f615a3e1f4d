package hub

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"accel-dashboard/services/transport"
	"accel-dashboard/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendQueue  = 64
)

// ErrTooManyClients is returned when MaxClients connections are open.
var ErrTooManyClients = errors.New("too many websocket clients")

var errShuttingDown = errors.New("shutting down")

// Broadcaster fans envelopes out to every connected WebSocket client.
// Each client has its own queue and writer goroutine; a client whose
// queue is full loses that envelope rather than stalling the others.
type Broadcaster struct {
	upgrader   websocket.Upgrader
	maxClients int
	metrics    *Metrics
	log        *utils.Logger

	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	reserved int // slots held by upgrades in progress
	closed   bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func NewBroadcaster(maxClients int, metrics *Metrics) *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard page may be served from another origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		maxClients: maxClients,
		metrics:    metrics,
		log:        utils.L().With("ws"),
		clients:    make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the client until it leaves.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := b.reserve(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.release()
		b.log.Warn("upgrade %s: %v", r.RemoteAddr, err)
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, sendQueue), done: make(chan struct{})}

	b.mu.Lock()
	b.reserved--
	if b.closed {
		b.mu.Unlock()
		client.close()
		return
	}
	b.clients[client] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()
	b.metrics.clients.Set(float64(count))
	b.log.Info("client connected  addr=%s clients=%d", r.RemoteAddr, count)

	go b.writeLoop(client)
	b.readLoop(client)

	b.remove(client)
	b.log.Info("client disconnected  addr=%s", r.RemoteAddr)
}

// readLoop drains client frames so pongs and close frames are processed.
func (b *Broadcaster) readLoop(c *wsClient) {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writeLoop(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reserve claims a client slot before the upgrade so concurrent
// handshakes cannot exceed maxClients.
func (b *Broadcaster) reserve() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errShuttingDown
	}
	if b.maxClients > 0 && len(b.clients)+b.reserved >= b.maxClients {
		return ErrTooManyClients
	}
	b.reserved++
	return nil
}

func (b *Broadcaster) release() {
	b.mu.Lock()
	b.reserved--
	b.mu.Unlock()
}

func (b *Broadcaster) remove(c *wsClient) {
	b.mu.Lock()
	delete(b.clients, c)
	count := len(b.clients)
	b.mu.Unlock()
	c.close()
	b.metrics.clients.Set(float64(count))
}

// Publish queues {"event": event, "data": data} to every client.
func (b *Broadcaster) Publish(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(transport.Envelope{Event: event, Data: raw})
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- msg:
			b.metrics.broadcasts.Inc()
		default:
			b.metrics.broadcastDrops.Inc()
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	clients := make([]*wsClient, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()
	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		c.close()
	}
}
