package models

import "encoding/json"

// EventKind is a closed enumeration of every event exchanged over the
// realtime connection. Wire names are case-sensitive; dispatch over kinds is
// exhaustive so an unhandled event is a compile-time smell, not a silent drop.
type EventKind int

const (
	EventUnknown EventKind = iota

	// Connection lifecycle
	EventConnect
	EventConnected
	EventDisconnect
	EventDisconnecting
	EventError

	// Liveness
	EventPing
	EventPong

	// Auth
	EventAuthenticate
	EventAuthenticated
	EventUnauthorized

	// Rooms
	EventJoinRoom
	EventJoinedRoom
	EventLeaveRoom
	EventLeftRoom

	// Presence
	EventGetPresence
	EventPresenceStatus
	EventPresenceUserOnline
	EventPresenceUserOffline
	EventPresenceAdminOnline
	EventPresenceAdminOffline

	// Chat
	EventChatNewMessage
	EventChatMessageUpdated
	EventChatMessageDeleted
	EventChatUserTyping
	EventChatUserStoppedTyping
	EventChatMessageRead
	EventChatMessagesRead
	EventChatUnreadIncrement
	EventChatUserJoined
)

var eventNames = map[EventKind]string{
	EventConnect:               "connect",
	EventConnected:             "connected",
	EventDisconnect:            "disconnect",
	EventDisconnecting:         "disconnecting",
	EventError:                 "error",
	EventPing:                  "ping",
	EventPong:                  "pong",
	EventAuthenticate:          "authenticate",
	EventAuthenticated:         "authenticated",
	EventUnauthorized:          "unauthorized",
	EventJoinRoom:              "join-room",
	EventJoinedRoom:            "joined-room",
	EventLeaveRoom:             "leave-room",
	EventLeftRoom:              "left-room",
	EventGetPresence:           "get-presence",
	EventPresenceStatus:        "presence-status",
	EventPresenceUserOnline:    "presence:user-online",
	EventPresenceUserOffline:   "presence:user-offline",
	EventPresenceAdminOnline:   "presence:admin-online",
	EventPresenceAdminOffline:  "presence:admin-offline",
	EventChatNewMessage:        "chat:new-message",
	EventChatMessageUpdated:    "chat:message-updated",
	EventChatMessageDeleted:    "chat:message-deleted",
	EventChatUserTyping:        "chat:user-typing",
	EventChatUserStoppedTyping: "chat:user-stopped-typing",
	EventChatMessageRead:       "chat:message-read",
	EventChatMessagesRead:      "chat:messages-read",
	EventChatUnreadIncrement:   "chat:unread-increment",
	EventChatUserJoined:        "chat:user-joined",
}

var eventKinds = func() map[string]EventKind {
	m := make(map[string]EventKind, len(eventNames))
	for k, n := range eventNames {
		m[n] = k
	}
	return m
}()

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseEventKind maps a wire name to its event kind. The second return is
// false for names not in the protocol.
func ParseEventKind(name string) (EventKind, bool) {
	k, ok := eventKinds[name]
	return k, ok
}

// Namespace scopes a connection to a subset of the event surface.
type Namespace string

const (
	NamespaceDefault       Namespace = "/"
	NamespaceChat          Namespace = "/chat"
	NamespaceNotifications Namespace = "/notifications"
)

// ParseNamespace validates a namespace string, defaulting to the root
// namespace when empty.
func ParseNamespace(s string) (Namespace, bool) {
	switch Namespace(s) {
	case "", NamespaceDefault:
		return NamespaceDefault, true
	case NamespaceChat:
		return NamespaceChat, true
	case NamespaceNotifications:
		return NamespaceNotifications, true
	}
	return NamespaceDefault, false
}

// Envelope is the JSON frame exchanged over a realtime connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals a payload into an envelope for the given kind. A nil
// payload produces a frame with no data field.
func NewEnvelope(kind EventKind, payload any) (*Envelope, error) {
	env := &Envelope{Event: kind.String()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return env, nil
}
