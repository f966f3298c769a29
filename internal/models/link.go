package models

import (
	"time"

	"github.com/google/uuid"
)

// Link is a shared URL subject to safety scanning. Scan fields are
// overwritten wholesale on every completed scan so redelivered jobs are
// harmless.
type Link struct {
	ID               uuid.UUID  `json:"id"`
	URL              string     `json:"url"`
	OwnerID          *uuid.UUID `json:"owner_id,omitempty"`
	ScanStatus       ScanStatus `json:"scan_status,omitempty"`
	ScanScore        float64    `json:"scan_score,omitempty"`
	ScanDetails      []byte     `json:"scan_details,omitempty"` // JSON verdict blob
	ScannedAt        *time.Time `json:"scanned_at,omitempty"`
	ScanModelVersion string     `json:"scan_model_version,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// User is the minimal profile the realtime core needs: identity, contact
// address for notification email, and the admin flag driving admin presence
// events.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Admin     bool      `json:"admin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UnreadDigestEntry is one recipient of the daily unread digest.
type UnreadDigestEntry struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	UnreadCount int64     `json:"unread_count"`
}
