// Package session persists the bot's sync state (filter ID, next-batch
// token) in a local sqlite database, so restarts do not replay already
// moderated history.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"maunium.net/go/mautrix/id"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_state (
	user_id TEXT NOT NULL,
	key     TEXT NOT NULL,
	value   TEXT NOT NULL,
	PRIMARY KEY (user_id, key)
);`

// Store implements mautrix.SyncStore on a sqlite file.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the session database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init session schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	s.put(ctx, userID, "filter_id", filterID)
	return nil
}

func (s *Store) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.get(ctx, userID, "filter_id"), nil
}

func (s *Store) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	s.put(ctx, userID, "next_batch", nextBatchToken)
	return nil
}

func (s *Store) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.get(ctx, userID, "next_batch"), nil
}

func (s *Store) put(ctx context.Context, userID id.UserID, key, value string) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_state (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value`,
		userID.String(), key, value)
	if err != nil {
		// Sync continues on a stale token; worst case some events replay.
		s.logger.Warn("Failed to persist session state",
			zap.String("key", key),
			zap.Error(err))
	}
}

func (s *Store) get(ctx context.Context, userID id.UserID, key string) string {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE user_id = ? AND key = ?`,
		userID.String(), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ""
	}
	if err != nil {
		s.logger.Warn("Failed to load session state",
			zap.String("key", key),
			zap.Error(err))
		return ""
	}
	return value
}

func (s *Store) Close() error {
	return s.db.Close()
}
