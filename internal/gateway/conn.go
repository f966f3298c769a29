package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/auth"
	"github.com/wirechat/wirechat/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 54 * time.Second // Must be less than pongWait
	sendQueueDepth = 256
)

// Conn is one live client connection. It is exclusively owned by the gateway
// on its instance and never shared across instances. Outbound frames flow
// through a single buffered FIFO queue, which is what preserves per-origin
// delivery order.
type Conn struct {
	id     uuid.UUID
	ws     *websocket.Conn
	ns     models.Namespace
	send   chan []byte
	gw     *Gateway
	logger zerolog.Logger

	limiter        *rateLimiter
	graceTimer     *time.Timer
	maxMessageSize int64

	mu        sync.Mutex
	principal *auth.Principal
	rooms     map[string]struct{}
	closed    bool
}

// newConn wraps an upgraded websocket. The socket may be nil in tests that
// exercise gateway logic without pumps.
func newConn(ws *websocket.Conn, ns models.Namespace, gw *Gateway, maxMessageSize int64, logger zerolog.Logger) *Conn {
	id := uuid.New()
	return &Conn{
		id:             id,
		ws:             ws,
		ns:             ns,
		send:           make(chan []byte, sendQueueDepth),
		gw:             gw,
		logger:         logger.With().Str("conn_id", id.String()).Logger(),
		limiter:        newRateLimiter(30, time.Second),
		maxMessageSize: maxMessageSize,
		rooms:          make(map[string]struct{}),
	}
}

// ID returns the transport-assigned connection identifier.
func (c *Conn) ID() uuid.UUID { return c.id }

// Principal returns the authenticated principal, or nil before
// authentication completes.
func (c *Conn) Principal() *auth.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.principal
}

func (c *Conn) setPrincipal(p *auth.Principal) {
	c.mu.Lock()
	c.principal = p
	c.mu.Unlock()
}

func (c *Conn) addRoom(roomID string) {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) dropRoom(roomID string) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

func (c *Conn) inRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[roomID]
	return ok
}

func (c *Conn) roomSnapshot() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := make(map[string]struct{}, len(c.rooms))
	for r := range c.rooms {
		snap[r] = struct{}{}
	}
	return snap
}

// enqueue places a frame on the send queue without blocking, reporting
// whether it fit. A full queue marks the consumer as too slow.
func (c *Conn) enqueue(data []byte) bool {
	// The closed check and the send happen under one lock so Close can
	// never shut the channel between them.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendEvent marshals and queues a server-originated event on this
// connection only.
func (c *Conn) sendEvent(kind models.EventKind, payload any) {
	env, err := models.NewEnvelope(kind, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", kind.String()).Msg("event marshal failed")
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// sendError queues a protocol error event. The connection stays open.
func (c *Conn) sendError(reason string, detail string) {
	payload := map[string]string{"reason": reason}
	if detail != "" {
		payload["detail"] = detail
	}
	c.sendEvent(models.EventError, payload)
}

// Close marks the connection closed and tears down the socket. Safe to call
// more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// readPump consumes inbound frames until the socket errors, then triggers
// disconnect cleanup. Runs as one goroutine per connection.
func (c *Conn) readPump(ctx context.Context) {
	defer c.gw.Disconnect(ctx, c)

	c.ws.SetReadLimit(c.maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("read failed")
			}
			return
		}

		if !c.limiter.allow() {
			c.sendError("rate_limited", "")
			continue
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("malformed_frame", "")
			continue
		}

		c.gw.handleEvent(ctx, c, &env)
	}
}

// writePump drains the send queue to the socket and keeps the connection
// alive with periodic pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if c.ws != nil {
			_ = c.ws.Close()
		}
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
