package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wirechat/wirechat/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetLink retrieves a link by ID.
func (s *PostgresStore) GetLink(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	link := &models.Link{}
	var status *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, url, owner_id, scan_status, scan_score, scan_details,
		       scanned_at, scan_model_version, created_at
		FROM links WHERE id = $1
	`, id).Scan(
		&link.ID,
		&link.URL,
		&link.OwnerID,
		&status,
		&link.ScanScore,
		&link.ScanDetails,
		&link.ScannedAt,
		&link.ScanModelVersion,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if status != nil {
		link.ScanStatus = models.ScanStatus(*status)
	}
	return link, nil
}

// UpdateLinkScan overwrites the link's stored scan fields with the verdict.
func (s *PostgresStore) UpdateLinkScan(ctx context.Context, id uuid.UUID, verdict *models.ScanVerdict, scannedAt time.Time) error {
	details, err := json.Marshal(verdict)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE links
		SET scan_status = $2,
		    scan_score = $3,
		    scan_details = $4,
		    scanned_at = $5,
		    scan_model_version = $6
		WHERE id = $1
	`, id, string(verdict.Status), verdict.Score, details, scannedAt, verdict.ModelVersion)
	return err
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, name, is_admin, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Admin,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// IsChatParticipant reports whether the user belongs to the chat.
func (s *PostgresStore) IsChatParticipant(ctx context.Context, chatID string, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2
		)
	`, chatID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// UnreadDigests aggregates unread message counts per user with a known email.
func (s *PostgresStore) UnreadDigests(ctx context.Context) ([]models.UnreadDigestEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.email, u.name, COUNT(m.id) AS unread
		FROM users u
		JOIN chat_participants cp ON cp.user_id = u.id
		JOIN messages m ON m.chat_id = cp.chat_id
		WHERE m.created_at > COALESCE(cp.last_read_at, 'epoch'::timestamptz)
		  AND m.sender_id <> u.id
		  AND u.email <> ''
		GROUP BY u.id, u.email, u.name
		HAVING COUNT(m.id) > 0
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.UnreadDigestEntry
	for rows.Next() {
		var e models.UnreadDigestEntry
		if err := rows.Scan(&e.UserID, &e.Email, &e.Name, &e.UnreadCount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
