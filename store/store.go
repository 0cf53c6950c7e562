// Package store implements the conversation continuation store: a small
// database/sql-backed table keyed by (scope, openai_conversation_id),
// driven directly through database/sql with modernc.org/sqlite's pure-Go
// driver, since this module has no ORM and a single table.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	scope TEXT NOT NULL,
	openai_conversation_id TEXT NOT NULL,
	grok_conversation_id TEXT,
	last_response_id TEXT,
	share_link_id TEXT DEFAULT '',
	token TEXT,
	history_hash TEXT DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (scope, openai_conversation_id)
);
CREATE INDEX IF NOT EXISTS idx_conversations_history_hash ON conversations (scope, history_hash);
CREATE INDEX IF NOT EXISTS idx_conversations_expires_at ON conversations (scope, expires_at);
CREATE INDEX IF NOT EXISTS idx_conversations_token_updated ON conversations (scope, token, updated_at);
`

// Row is one conversation continuation record.
type Row struct {
	Scope                 string
	OpenAIConversationID  string
	GrokConversationID    string
	LastResponseID        string
	ShareLinkID           string
	Token                 string
	HistoryHash           string
	CreatedAt             int64
	UpdatedAt             int64
	ExpiresAt             int64
}

// Store is the conversation continuation store. Every read takes an
// explicit now so tests stay deterministic.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a sqlite-backed Store at dsn, e.g.
// "file:grok-bridge.db?cache=shared" or ":memory:".
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// FromDB wraps an already-open *sql.DB, applying the schema if needed.
// Tests use this with a shared in-memory connection.
func FromDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Upsert inserts or replaces a row by (scope, openai_conversation_id),
// updating every mutable field atomically.
func (s *Store) Upsert(ctx context.Context, row Row) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			scope, openai_conversation_id, grok_conversation_id, last_response_id,
			share_link_id, token, history_hash, created_at, updated_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope, openai_conversation_id) DO UPDATE SET
			grok_conversation_id = excluded.grok_conversation_id,
			last_response_id = excluded.last_response_id,
			share_link_id = excluded.share_link_id,
			token = excluded.token,
			history_hash = excluded.history_hash,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`,
		row.Scope, row.OpenAIConversationID, row.GrokConversationID, row.LastResponseID,
		row.ShareLinkID, row.Token, row.HistoryHash, row.CreatedAt, row.UpdatedAt, row.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	return nil
}

// GetByID purges the row if it is expired relative to now, then returns the
// live row, or (nil, nil) if absent/expired.
func (s *Store) GetByID(ctx context.Context, scope, id string, now int64) (*Row, error) {
	row, err := s.scanOne(ctx, `
		SELECT scope, openai_conversation_id, grok_conversation_id, last_response_id,
			share_link_id, token, history_hash, created_at, updated_at, expires_at
		FROM conversations WHERE scope = ? AND openai_conversation_id = ?
	`, scope, id)
	if err != nil {
		return nil, err
	}

	if row == nil {
		return nil, nil
	}

	if row.ExpiresAt <= now {
		if err := s.DeleteByID(ctx, scope, id); err != nil {
			return nil, err
		}

		return nil, nil
	}

	return row, nil
}

// FindByHistoryHash purges all expired rows in scope, then returns the
// newest live match for hash, or nil if none.
func (s *Store) FindByHistoryHash(ctx context.Context, scope, hash string, now int64) (*Row, error) {
	for {
		n, err := s.CleanupExpired(ctx, 500, now, scope)
		if err != nil {
			return nil, err
		}

		if n < 500 {
			break
		}
	}

	return s.scanOne(ctx, `
		SELECT scope, openai_conversation_id, grok_conversation_id, last_response_id,
			share_link_id, token, history_hash, created_at, updated_at, expires_at
		FROM conversations WHERE scope = ? AND history_hash = ? AND expires_at > ?
		ORDER BY updated_at DESC LIMIT 1
	`, scope, hash, now)
}

// DeleteByID removes a single row.
func (s *Store) DeleteByID(ctx context.Context, scope, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE scope = ? AND openai_conversation_id = ?
	`, scope, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	return nil
}

// CleanupExpired deletes up to clamp(limit, 1, 500) expired rows, oldest
// first, optionally restricted to scope (empty scope means all scopes).
// It returns the number of rows deleted.
func (s *Store) CleanupExpired(ctx context.Context, limit int, now int64, scope string) (int64, error) {
	limit = clamp(limit, 1, 500)

	query := `
		DELETE FROM conversations WHERE rowid IN (
			SELECT rowid FROM conversations WHERE expires_at <= ? %s
			ORDER BY expires_at ASC LIMIT ?
		)
	`

	args := []any{now}

	scopeFilter := ""
	if scope != "" {
		scopeFilter = "AND scope = ?"
		args = append(args, scope)
	}

	args = append(args, limit)

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(query, scopeFilter), args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup expired rows affected: %w", err)
	}

	return n, nil
}

// TrimForToken keeps the keep most-recently-updated rows for (scope,
// token), deleting the rest. Returns the number of rows deleted.
func (s *Store) TrimForToken(ctx context.Context, scope, token string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE rowid IN (
			SELECT rowid FROM conversations WHERE scope = ? AND token = ?
			ORDER BY updated_at DESC
			LIMIT -1 OFFSET ?
		)
	`, scope, token, keep)
	if err != nil {
		return 0, fmt.Errorf("trim for token: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("trim for token rows affected: %w", err)
	}

	return n, nil
}

// TokenStat is one entry of Stats' top_tokens list.
type TokenStat struct {
	TokenSuffix string
	Count       int64
}

// Stats summarises the store's live and expired row counts, and the topN
// tokens by live row count with only their last-6-character suffix exposed.
type Stats struct {
	ActiveTotal  int64
	ExpiredTotal int64
	TopTokens    []TokenStat
}

func (s *Store) StatsSnapshot(ctx context.Context, topN int, now int64) (*Stats, error) {
	var stats Stats

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE expires_at > ?`, now).Scan(&stats.ActiveTotal); err != nil {
		return nil, fmt.Errorf("count active: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE expires_at <= ?`, now).Scan(&stats.ExpiredTotal); err != nil {
		return nil, fmt.Errorf("count expired: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT token, COUNT(*) as cnt FROM conversations WHERE expires_at > ?
		GROUP BY token ORDER BY cnt DESC LIMIT ?
	`, now, topN)
	if err != nil {
		return nil, fmt.Errorf("top tokens: %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			token string
			count int64
		)

		if err := rows.Scan(&token, &count); err != nil {
			return nil, fmt.Errorf("scan top token: %w", err)
		}

		stats.TopTokens = append(stats.TopTokens, TokenStat{TokenSuffix: suffix(token, 6), Count: count})
	}

	return &stats, rows.Err()
}

func (s *Store) scanOne(ctx context.Context, query string, args ...any) (*Row, error) {
	var row Row

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&row.Scope, &row.OpenAIConversationID, &row.GrokConversationID, &row.LastResponseID,
		&row.ShareLinkID, &row.Token, &row.HistoryHash, &row.CreatedAt, &row.UpdatedAt, &row.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}

	return &row, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func suffix(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[len(s)-n:]
}
