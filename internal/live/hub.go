// Package live pushes re-rendered item lists to websocket clients whenever
// the item feed delivers a new snapshot.
package live

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/erazemk/lostfound/internal/itemstore"
	"github.com/erazemk/lostfound/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	readLimit  = 512
	sendBuffer = 4
)

// ErrNotRunning is returned by Serve before Run has subscribed to the feed.
var ErrNotRunning = errors.New("live hub is not running")

// RenderFunc turns a snapshot into the payload sent to one client.
type RenderFunc func(items []model.Item) ([]byte, error)

// Hub holds a single subscription to the feed and fans each snapshot out to
// every connected client. Rendering runs on a worker pool; per client,
// an older snapshot is never sent after a newer one.
type Hub struct {
	feed     itemstore.Subscriber
	upgrader websocket.Upgrader
	pool     *pond.WorkerPool
	logger   zerolog.Logger

	mu       sync.RWMutex
	clients  map[string]*client
	snapshot []model.Item
	version  uint64
	running  bool
	stopped  bool
}

// HubParams configures a Hub.
type HubParams struct {
	Feed     itemstore.Subscriber
	Upgrader websocket.Upgrader
	Logger   zerolog.Logger
	// Workers bounds concurrent renders. Zero means 4.
	Workers int
}

// NewHub creates a hub. Call Run to start receiving snapshots.
func NewHub(params HubParams) *Hub {
	workers := params.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Hub{
		feed:     params.Feed,
		upgrader: params.Upgrader,
		pool:     pond.New(workers, 256, pond.Strategy(pond.Balanced())),
		logger:   params.Logger.With().Str("component", "live_hub").Logger(),
		clients:  make(map[string]*client),
	}
}

// Run subscribes to the feed and blocks until ctx is done. Connected clients
// are closed on return.
func (h *Hub) Run(ctx context.Context) error {
	if err := h.feed.Subscribe(ctx, h.broadcast); err != nil {
		return err
	}
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()
	h.logger.Info().Msg("Live hub subscribed to item feed")

	<-ctx.Done()

	h.mu.Lock()
	h.running = false
	h.stopped = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.pool.StopAndWait()
	for _, c := range clients {
		c.close()
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams render output until the client
// disconnects. The current snapshot is sent right after the upgrade.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, messageType int, render RenderFunc) error {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		http.Error(w, "live updates unavailable", http.StatusServiceUnavailable)
		return ErrNotRunning
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		return err
	}

	c := &client{
		id:          uuid.NewString(),
		conn:        conn,
		render:      render,
		messageType: messageType,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
	}
	c.logger = h.logger.With().Str("client_id", c.id).Logger()

	h.mu.Lock()
	h.clients[c.id] = c
	snapshot, version := h.snapshot, h.version
	h.mu.Unlock()
	c.logger.Debug().Str("remote", r.RemoteAddr).Msg("Client connected")

	c.deliver(version, snapshot)

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
	c.logger.Debug().Msg("Client disconnected")
	return nil
}

// broadcast keeps the lock while submitting so Run cannot stop the pool
// underneath it.
func (h *Hub) broadcast(items []model.Item) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.version++
	version := h.version
	h.snapshot = items
	for _, c := range h.clients {
		h.pool.Submit(func() { c.deliver(version, items) })
	}
}

type client struct {
	id          string
	conn        *websocket.Conn
	render      RenderFunc
	messageType int
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	logger      zerolog.Logger

	mu      sync.Mutex
	version uint64
	sent    bool
}

// deliver renders and queues a snapshot. Queued payloads that have not
// been written yet are superseded by newer ones.
func (c *client) deliver(version uint64, items []model.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent && version <= c.version {
		return
	}

	payload, err := c.render(items)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to render snapshot")
		return
	}
	c.version, c.sent = version, true

	for {
		select {
		case <-c.done:
			return
		case c.send <- payload:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.messageType, payload); err != nil {
				c.logger.Debug().Err(err).Msg("Write failed")
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump discards client messages; reading is needed to process control
// frames and notice disconnects.
func (c *client) readPump() {
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("Unexpected websocket close")
			}
			return
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
