package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wirechat/wirechat/internal/models"
)

// DataStore defines the persistence boundary the realtime core depends on.
// Both PostgresStore and SQLiteStore implement this interface. Lookups
// return (nil, nil) when the record does not exist.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Link operations
	GetLink(ctx context.Context, id uuid.UUID) (*models.Link, error)
	// UpdateLinkScan overwrites the link's scan fields wholesale so a
	// redelivered scan job leaves the stored verdict identical.
	UpdateLinkScan(ctx context.Context, id uuid.UUID, verdict *models.ScanVerdict, scannedAt time.Time) error

	// User operations
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	// IsChatParticipant reports whether the user belongs to the chat. Backs
	// room-join authorization.
	IsChatParticipant(ctx context.Context, chatID string, userID uuid.UUID) (bool, error)

	// UnreadDigests returns every user with unread messages and a known
	// email address, for the daily digest job.
	UnreadDigests(ctx context.Context) ([]models.UnreadDigestEntry, error)
}
