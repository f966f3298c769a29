package models

import "errors"

// ChatMessage is the payload carried by chat:new-message and
// chat:message-updated events.
type ChatMessage struct {
	ID        string `json:"id"` // ULID
	ChatID    string `json:"chat_id"`
	FromID    string `json:"from"` // User UUID
	Body      string `json:"body"`
	ParentID  string `json:"pid,omitempty"` // For threading
	Timestamp int64  `json:"ts"`            // Unix ms
}

// Validate checks the fields a client must fill before the message is
// relayed to a room.
func (m *ChatMessage) Validate() error {
	if m.ID == "" {
		return errors.New("chat message: id is required")
	}
	if m.ChatID == "" {
		return errors.New("chat message: chat id is required")
	}
	if m.Body == "" {
		return errors.New("chat message: body is required")
	}
	return nil
}

// RoomID returns the broadcast room for the message's chat.
func (m *ChatMessage) RoomID() string {
	return "chat:" + m.ChatID
}
