package gateway

import (
	"context"
	"encoding/json"

	"github.com/wirechat/wirechat/internal/models"
)

type authenticatePayload struct {
	Token string `json:"token"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type presenceQueryPayload struct {
	UserIDs []string `json:"user_ids"`
}

type chatEventPayload struct {
	ChatID string `json:"chat_id"`
}

type unreadIncrementPayload struct {
	UserID string `json:"user_id"`
}

// handleEvent dispatches one client-originated frame. The switch is
// exhaustive over the closed event enum: every kind is either handled or
// explicitly refused as server-originated, and names outside the protocol
// are rejected up front.
func (g *Gateway) handleEvent(ctx context.Context, c *Conn, env *models.Envelope) {
	kind, ok := models.ParseEventKind(env.Event)
	if !ok {
		c.sendError("unknown_event", env.Event)
		return
	}

	switch kind {
	case models.EventAuthenticate:
		var p authenticatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Token == "" {
			c.sendEvent(models.EventUnauthorized, map[string]string{"reason": "missing token"})
			return
		}
		// Error already reported to the client inside Authenticate; it stays
		// local to this connection.
		_ = g.Authenticate(ctx, c, p.Token)

	case models.EventPing:
		c.sendEvent(models.EventPong, nil)

	case models.EventDisconnect:
		g.Disconnect(ctx, c)

	case models.EventJoinRoom:
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Room == "" {
			c.sendError("malformed_frame", env.Event)
			return
		}
		if err := g.JoinRoom(ctx, c, p.Room); err != nil {
			g.logger.Debug().Err(err).Str("room", p.Room).Str("conn_id", c.id.String()).Msg("join refused")
		}

	case models.EventLeaveRoom:
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Room == "" {
			c.sendError("malformed_frame", env.Event)
			return
		}
		g.LeaveRoom(c, p.Room)

	case models.EventGetPresence:
		var p presenceQueryPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.sendError("malformed_frame", env.Event)
			return
		}
		online, err := g.OnlineStatus(ctx, p.UserIDs)
		if err != nil {
			c.sendError("presence_unavailable", "")
			return
		}
		c.sendEvent(models.EventPresenceStatus, online)

	case models.EventChatNewMessage,
		models.EventChatMessageUpdated:
		g.relayChatMessage(ctx, c, kind, env.Data)

	case models.EventChatMessageDeleted,
		models.EventChatUserTyping,
		models.EventChatUserStoppedTyping,
		models.EventChatMessageRead,
		models.EventChatMessagesRead,
		models.EventChatUserJoined:
		g.relayChatEvent(ctx, c, kind, env.Data)

	case models.EventChatUnreadIncrement:
		g.relayUnreadIncrement(ctx, c, env.Data)

	case models.EventUnknown,
		models.EventConnect,
		models.EventConnected,
		models.EventDisconnecting,
		models.EventError,
		models.EventPong,
		models.EventAuthenticated,
		models.EventUnauthorized,
		models.EventJoinedRoom,
		models.EventLeftRoom,
		models.EventPresenceStatus,
		models.EventPresenceUserOnline,
		models.EventPresenceUserOffline,
		models.EventPresenceAdminOnline,
		models.EventPresenceAdminOffline:
		c.sendError("server_event", env.Event)
	}
}

// relayChatMessage rebroadcasts a full chat message to its chat's room. The
// message-carrying events are validated as messages, not just routed by
// chat id: a frame without id, chat, and body never reaches other clients.
func (g *Gateway) relayChatMessage(ctx context.Context, c *Conn, kind models.EventKind, data json.RawMessage) {
	if c.Principal() == nil {
		c.sendEvent(models.EventUnauthorized, map[string]string{"event": kind.String()})
		return
	}

	var m models.ChatMessage
	if err := json.Unmarshal(data, &m); err != nil {
		c.sendError("malformed_frame", kind.String())
		return
	}
	if err := m.Validate(); err != nil {
		c.sendError("malformed_frame", kind.String())
		return
	}

	room := m.RoomID()
	if !c.inRoom(room) {
		c.sendError("forbidden", room)
		return
	}

	g.BroadcastToRoom(ctx, c.ns, room, kind, data, c.id)
}

// relayChatEvent rebroadcasts a chat event to the chat's room, excluding the
// sender. The sender must be authenticated and a member of the room.
func (g *Gateway) relayChatEvent(ctx context.Context, c *Conn, kind models.EventKind, data json.RawMessage) {
	if c.Principal() == nil {
		c.sendEvent(models.EventUnauthorized, map[string]string{"event": kind.String()})
		return
	}

	var p chatEventPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == "" {
		c.sendError("malformed_frame", kind.String())
		return
	}

	room := chatRoom(p.ChatID)
	if !c.inRoom(room) {
		c.sendError("forbidden", room)
		return
	}

	g.BroadcastToRoom(ctx, c.ns, room, kind, data, c.id)
}

// relayUnreadIncrement routes an unread counter bump to the target user's
// personal room on every instance.
func (g *Gateway) relayUnreadIncrement(ctx context.Context, c *Conn, data json.RawMessage) {
	if c.Principal() == nil {
		c.sendEvent(models.EventUnauthorized, map[string]string{"event": models.EventChatUnreadIncrement.String()})
		return
	}

	var p unreadIncrementPayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		c.sendError("malformed_frame", models.EventChatUnreadIncrement.String())
		return
	}

	g.BroadcastToRoom(ctx, models.NamespaceNotifications, "user:"+p.UserID, models.EventChatUnreadIncrement, data, c.id)
}
