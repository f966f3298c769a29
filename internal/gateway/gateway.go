// Package gateway owns every live client connection on this instance: room
// membership, authentication state, and local fan-out. Cross-instance
// delivery is delegated to the broadcast relay; presence state lives in the
// shared presence store so transitions are correct across instances.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/auth"
	"github.com/wirechat/wirechat/internal/broadcast"
	"github.com/wirechat/wirechat/internal/metrics"
	"github.com/wirechat/wirechat/internal/models"
	"github.com/wirechat/wirechat/internal/presence"
)

var (
	// ErrUnauthorized is returned for actions that require authentication
	// on a connection that has not completed it. The connection stays open.
	ErrUnauthorized = errors.New("gateway: unauthorized")
	// ErrForbidden is returned when an authenticated principal lacks rights
	// to the requested room.
	ErrForbidden = errors.New("gateway: forbidden")
	// ErrAlreadyAuthenticated is returned for an authenticate frame on a
	// connection that already completed authentication.
	ErrAlreadyAuthenticated = errors.New("gateway: already authenticated")
	// ErrUnknownConnection is returned for operations on a connection id the
	// gateway no longer tracks.
	ErrUnknownConnection = errors.New("gateway: unknown connection")
)

// RoomAuthorizer is the external domain check for room membership rights,
// e.g. "is this user a participant of the chat behind this room".
type RoomAuthorizer interface {
	CanJoin(ctx context.Context, p *auth.Principal, roomID string) (bool, error)
}

// RoomAuthorizerFunc adapts a function to the RoomAuthorizer interface.
type RoomAuthorizerFunc func(ctx context.Context, p *auth.Principal, roomID string) (bool, error)

func (f RoomAuthorizerFunc) CanJoin(ctx context.Context, p *auth.Principal, roomID string) (bool, error) {
	return f(ctx, p, roomID)
}

// Gateway manages this instance's connections and rooms. All collaborators
// are injected; there is no hidden registry.
type Gateway struct {
	verifier   auth.Verifier
	authorizer RoomAuthorizer
	presence   presence.Store
	relay      broadcast.Relay
	logger     zerolog.Logger
	authGrace  time.Duration

	mu    sync.RWMutex
	conns map[uuid.UUID]*Conn
	rooms map[string]map[uuid.UUID]*Conn
}

// New creates a gateway with its collaborators.
func New(verifier auth.Verifier, authorizer RoomAuthorizer, pres presence.Store, relay broadcast.Relay, authGrace time.Duration, logger zerolog.Logger) *Gateway {
	return &Gateway{
		verifier:   verifier,
		authorizer: authorizer,
		presence:   pres,
		relay:      relay,
		logger:     logger.With().Str("component", "gateway").Logger(),
		authGrace:  authGrace,
		conns:      make(map[uuid.UUID]*Conn),
		rooms:      make(map[string]map[uuid.UUID]*Conn),
	}
}

// SetRelay swaps in the cross-instance relay. Called once during startup
// wiring, before any connection is accepted.
func (g *Gateway) SetRelay(r broadcast.Relay) {
	g.relay = r
}

// Register tracks a new unauthenticated connection and starts its grace
// timer: if the client has not authenticated when it fires, the connection
// is force-closed.
func (g *Gateway) Register(c *Conn) {
	g.mu.Lock()
	g.conns[c.id] = c
	total := len(g.conns)
	g.mu.Unlock()

	metrics.ConnectionsOpen.Set(float64(total))
	g.logger.Debug().Str("conn_id", c.id.String()).Int("total", total).Msg("connection registered")

	c.graceTimer = time.AfterFunc(g.authGrace, func() {
		if c.Principal() == nil {
			g.logger.Debug().Str("conn_id", c.id.String()).Msg("auth grace expired, closing")
			c.sendEvent(models.EventUnauthorized, map[string]string{"reason": "authentication timeout"})
			c.Close()
		}
	})

	c.sendEvent(models.EventConnected, map[string]string{"connection_id": c.id.String()})
}

// Authenticate verifies the token and promotes the connection. On the
// principal's first open connection process-wide a presence-online event is
// broadcast everywhere.
func (g *Gateway) Authenticate(ctx context.Context, c *Conn, token string) error {
	// A connection authenticates at most once. A repeated frame must not
	// touch the presence counter again: Disconnect decrements once per
	// connection, so a second Connect here would strand the shared count
	// above zero and the offline transition would never fire.
	if c.Principal() != nil {
		c.sendError("already_authenticated", "")
		return ErrAlreadyAuthenticated
	}

	principal, err := g.verifier.Verify(ctx, token)
	if err != nil {
		c.sendEvent(models.EventUnauthorized, map[string]string{"reason": "invalid credentials"})
		if errors.Is(err, auth.ErrInvalidToken) {
			return ErrUnauthorized
		}
		return err
	}

	c.setPrincipal(principal)
	if c.graceTimer != nil {
		c.graceTimer.Stop()
	}

	// Every principal listens on their personal room.
	g.addToRoom(c, personalRoom(principal.ID))

	c.sendEvent(models.EventAuthenticated, map[string]string{"user_id": principal.ID.String()})

	count, err := g.presence.Connect(ctx, principal.ID.String())
	if err != nil {
		// Presence degradation must not break the session itself.
		g.logger.Error().Err(err).Str("user_id", principal.ID.String()).Msg("presence connect failed")
		return nil
	}
	if count == 1 {
		metrics.PresenceTransitions.WithLabelValues("online").Inc()
		g.emitPresence(ctx, models.EventPresenceUserOnline, principal)
	}
	return nil
}

// JoinRoom adds the connection to a room after the external membership
// check. Unauthenticated connections are refused outright.
func (g *Gateway) JoinRoom(ctx context.Context, c *Conn, roomID string) error {
	p := c.Principal()
	if p == nil {
		c.sendEvent(models.EventUnauthorized, map[string]string{"room": roomID})
		return ErrUnauthorized
	}

	allowed, err := g.authorizer.CanJoin(ctx, p, roomID)
	if err != nil {
		return err
	}
	if !allowed {
		c.sendError("forbidden", roomID)
		return ErrForbidden
	}

	g.addToRoom(c, roomID)
	c.sendEvent(models.EventJoinedRoom, map[string]string{"room": roomID})
	return nil
}

// LeaveRoom removes the connection from a room.
func (g *Gateway) LeaveRoom(c *Conn, roomID string) {
	g.removeFromRoom(c, roomID)
	c.sendEvent(models.EventLeftRoom, map[string]string{"room": roomID})
}

// Disconnect removes all state for a closed connection. When the shared
// counter says this was the principal's last connection anywhere, a single
// presence-offline event is emitted.
func (g *Gateway) Disconnect(ctx context.Context, c *Conn) {
	g.mu.Lock()
	if _, ok := g.conns[c.id]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.conns, c.id)
	for roomID := range c.roomSnapshot() {
		g.dropMember(roomID, c.id)
	}
	total := len(g.conns)
	g.mu.Unlock()

	metrics.ConnectionsOpen.Set(float64(total))
	c.Close()

	p := c.Principal()
	if p == nil {
		return
	}

	count, err := g.presence.Disconnect(ctx, p.ID.String())
	if err != nil {
		g.logger.Error().Err(err).Str("user_id", p.ID.String()).Msg("presence disconnect failed")
		return
	}
	if count == 0 {
		metrics.PresenceTransitions.WithLabelValues("offline").Inc()
		g.emitPresence(ctx, models.EventPresenceUserOffline, p)
	}
}

// BroadcastToRoom delivers an event to every locally connected member of the
// room except the optional excluded sender, then mirrors it onto the shared
// channel for other instances. A relay failure degrades cross-instance
// delivery only; local delivery has already happened.
func (g *Gateway) BroadcastToRoom(ctx context.Context, ns models.Namespace, roomID string, kind models.EventKind, payload json.RawMessage, exclude uuid.UUID) {
	var excludeID string
	if exclude != uuid.Nil {
		excludeID = exclude.String()
	}

	g.deliverLocal(string(ns), roomID, kind.String(), payload, excludeID)

	err := g.relay.Publish(ctx, broadcast.Frame{
		Namespace: string(ns),
		Room:      roomID,
		Event:     kind.String(),
		Payload:   payload,
		Exclude:   excludeID,
	})
	if err != nil {
		g.logger.Warn().Err(err).Str("room", roomID).Msg("cross-instance relay degraded")
	}
}

// DeliverRemote implements broadcast.Sink: frames from other instances are
// fanned out locally and never re-published.
func (g *Gateway) DeliverRemote(f broadcast.Frame) {
	g.deliverLocal(f.Namespace, f.Room, f.Event, f.Payload, f.Exclude)
}

// OnlineStatus reports online status for the requested principals from the
// shared presence store.
func (g *Gateway) OnlineStatus(ctx context.Context, userIDs []string) (map[string]bool, error) {
	return g.presence.Online(ctx, userIDs)
}

// Shutdown closes every open connection.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	conns := make([]*Conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.sendEvent(models.EventDisconnecting, nil)
		c.Close()
	}
	g.logger.Info().Int("closed", len(conns)).Msg("gateway shut down")
}

// deliverLocal fans an event out to this instance's sockets. An empty room
// targets every authenticated connection (presence events). Delivery order
// per connection follows publish order on the origin because each connection
// has a single FIFO send queue.
func (g *Gateway) deliverLocal(ns, roomID, event string, payload json.RawMessage, exclude string) {
	data, err := json.Marshal(models.Envelope{Event: event, Data: payload})
	if err != nil {
		g.logger.Error().Err(err).Str("event", event).Msg("envelope marshal failed")
		return
	}

	var targets []*Conn
	g.mu.RLock()
	if roomID == "" {
		for _, c := range g.conns {
			if c.Principal() != nil {
				targets = append(targets, c)
			}
		}
	} else {
		for _, c := range g.rooms[roomID] {
			targets = append(targets, c)
		}
	}
	g.mu.RUnlock()

	var failed []*Conn
	delivered := 0
	for _, c := range targets {
		if exclude != "" && c.id.String() == exclude {
			continue
		}
		if ns != "" && ns != string(models.NamespaceDefault) && string(c.ns) != ns {
			continue
		}
		if !c.enqueue(data) {
			failed = append(failed, c)
			continue
		}
		delivered++
	}

	metrics.EventsDelivered.WithLabelValues(event).Add(float64(delivered))

	// Slow consumers are disconnected rather than allowed to stall or
	// reorder the room.
	for _, c := range failed {
		metrics.EventsDropped.Inc()
		g.logger.Warn().Str("conn_id", c.id.String()).Msg("send queue full, dropping connection")
		go g.Disconnect(context.Background(), c)
	}
}

func (g *Gateway) addToRoom(c *Conn, roomID string) {
	g.mu.Lock()
	members, ok := g.rooms[roomID]
	if !ok {
		members = make(map[uuid.UUID]*Conn)
		g.rooms[roomID] = members
	}
	members[c.id] = c
	g.mu.Unlock()
	c.addRoom(roomID)
}

func (g *Gateway) removeFromRoom(c *Conn, roomID string) {
	g.mu.Lock()
	g.dropMember(roomID, c.id)
	g.mu.Unlock()
	c.dropRoom(roomID)
}

// dropMember removes a member and deletes the room when it empties.
// Caller holds g.mu.
func (g *Gateway) dropMember(roomID string, connID uuid.UUID) {
	members, ok := g.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(g.rooms, roomID)
	}
}

// emitPresence broadcasts an online/offline transition to every instance.
// Admin principals additionally raise the admin variant.
func (g *Gateway) emitPresence(ctx context.Context, kind models.EventKind, p *auth.Principal) {
	payload, _ := json.Marshal(map[string]string{"user_id": p.ID.String()})
	g.BroadcastToRoom(ctx, models.NamespaceDefault, "", kind, payload, uuid.Nil)

	if !p.Admin {
		return
	}
	switch kind {
	case models.EventPresenceUserOnline:
		g.BroadcastToRoom(ctx, models.NamespaceDefault, "", models.EventPresenceAdminOnline, payload, uuid.Nil)
	case models.EventPresenceUserOffline:
		g.BroadcastToRoom(ctx, models.NamespaceDefault, "", models.EventPresenceAdminOffline, payload, uuid.Nil)
	}
}

// personalRoom is the room every authenticated principal is auto-joined to.
func personalRoom(id uuid.UUID) string {
	return "user:" + id.String()
}

// chatRoom is the broadcast room for a chat.
func chatRoom(chatID string) string {
	return "chat:" + chatID
}
