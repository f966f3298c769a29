package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wirechat/wirechat/internal/models"
)

// SQLiteStore handles SQLite database operations. It backs development and
// tests; production uses PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/wirechat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/wirechat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT DEFAULT '',
		name TEXT DEFAULT '',
		is_admin INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		owner_id TEXT REFERENCES users(id),
		scan_status TEXT DEFAULT '',
		scan_score REAL DEFAULT 0,
		scan_details BLOB,
		scanned_at DATETIME,
		scan_model_version TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES users(id),
		last_read_at DATETIME,
		PRIMARY KEY (chat_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_links_owner ON links(owner_id);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetLink retrieves a link by ID.
func (s *SQLiteStore) GetLink(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	link := &models.Link{}
	var (
		idStr     string
		ownerID   sql.NullString
		status    sql.NullString
		scannedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, url, owner_id, scan_status, scan_score, scan_details,
		       scanned_at, scan_model_version, created_at
		FROM links WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&link.URL,
		&ownerID,
		&status,
		&link.ScanScore,
		&link.ScanDetails,
		&scannedAt,
		&link.ScanModelVersion,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	link.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	if ownerID.Valid {
		owner, err := uuid.Parse(ownerID.String)
		if err != nil {
			return nil, err
		}
		link.OwnerID = &owner
	}
	if status.Valid {
		link.ScanStatus = models.ScanStatus(status.String)
	}
	if scannedAt.Valid {
		t := scannedAt.Time
		link.ScannedAt = &t
	}
	return link, nil
}

// UpdateLinkScan overwrites the link's stored scan fields with the verdict.
func (s *SQLiteStore) UpdateLinkScan(ctx context.Context, id uuid.UUID, verdict *models.ScanVerdict, scannedAt time.Time) error {
	details, err := json.Marshal(verdict)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE links
		SET scan_status = ?,
		    scan_score = ?,
		    scan_details = ?,
		    scanned_at = ?,
		    scan_model_version = ?
		WHERE id = ?
	`, string(verdict.Status), verdict.Score, details, scannedAt, verdict.ModelVersion, id.String())
	return err
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, is_admin, created_at
		FROM users WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&user.Email,
		&user.Name,
		&user.Admin,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// IsChatParticipant reports whether the user belongs to the chat.
func (s *SQLiteStore) IsChatParticipant(ctx context.Context, chatID string, userID uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM chat_participants WHERE chat_id = ? AND user_id = ?
	`, chatID, userID.String()).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UnreadDigests aggregates unread message counts per user with a known email.
func (s *SQLiteStore) UnreadDigests(ctx context.Context) ([]models.UnreadDigestEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.name, COUNT(m.id) AS unread
		FROM users u
		JOIN chat_participants cp ON cp.user_id = u.id
		JOIN messages m ON m.chat_id = cp.chat_id
		WHERE m.created_at > COALESCE(cp.last_read_at, '1970-01-01')
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
		var (
			e     models.UnreadDigestEntry
			idStr string
		)
		if err := rows.Scan(&idStr, &e.Email, &e.Name, &e.UnreadCount); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		e.UserID = id
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
