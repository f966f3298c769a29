package gateway

import (
	"context"
	"strings"

	"github.com/wirechat/wirechat/internal/auth"
	"github.com/wirechat/wirechat/internal/store"
)

// StoreAuthorizer checks room membership rights against persistence:
// a chat room requires the principal to be a participant of that chat, a
// personal room belongs to exactly one principal, and admins may join
// anything.
type StoreAuthorizer struct {
	db store.DataStore
}

// NewStoreAuthorizer creates a persistence-backed room authorizer.
func NewStoreAuthorizer(db store.DataStore) *StoreAuthorizer {
	return &StoreAuthorizer{db: db}
}

func (a *StoreAuthorizer) CanJoin(ctx context.Context, p *auth.Principal, roomID string) (bool, error) {
	if p.Admin {
		return true, nil
	}

	switch {
	case strings.HasPrefix(roomID, "chat:"):
		return a.db.IsChatParticipant(ctx, strings.TrimPrefix(roomID, "chat:"), p.ID)
	case strings.HasPrefix(roomID, "user:"):
		return roomID == personalRoom(p.ID), nil
	}
	return false, nil
}
