package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	user_id    TEXT PRIMARY KEY,
	token_json TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// SQLiteStore is a CredentialStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the credential database at the given path and
// enables WAL journal mode for better concurrent read behavior.
func Open(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open credential db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping credential db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create credentials table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetToken returns the stored token for the user, or ErrNotFound.
func (s *SQLiteStore) GetToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT token_json FROM credentials WHERE user_id = ?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("decode stored credential: %w", err)
	}
	return &token, nil
}

// SetToken stores or replaces the token for the user.
func (s *SQLiteStore) SetToken(ctx context.Context, userID string, token *oauth2.Token) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, token_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET token_json = excluded.token_json, updated_at = excluded.updated_at`,
		userID, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	return nil
}

// HasToken reports whether a credential exists for the user.
func (s *SQLiteStore) HasToken(ctx context.Context, userID string) bool {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM credentials WHERE user_id = ?`, userID).Scan(&one)
	return err == nil
}
