// Package sqlite provides a single-file transcript store backed by the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/storage"
	"github.com/rhuss/chorus/pkg/transport"
)

//go:embed schema.sql
var schema string

// Store is a SQLite-backed TranscriptStore.
type Store struct {
	db *sql.DB
}

var _ transport.TranscriptStore = (*Store)(nil)

// New opens (or creates) the database at path and applies the schema.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps the
	// per-connection pragmas below in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateSession inserts a new session owned by the caller.
func (s *Store) CreateSession(ctx context.Context, title string) (*api.Session, error) {
	now := time.Now().Unix()
	sess := &api.Session{
		ID:        api.NewSessionID(),
		Object:    "chat.session",
		Title:     title,
		Owner:     storage.GetOwner(ctx),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, owner, title, created_at, updated_at, touched)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(touched), 0) + 1 FROM sessions))
	`, sess.ID, sess.Owner, sess.Title, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		if isConstraint(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return sess, nil
}

// AppendMessage inserts a message and bumps the session's update time in
// one transaction.
func (s *Store) AppendMessage(ctx context.Context, sessionID, prompt string, resp *api.AggregatedResponse) (*api.Message, error) {
	msg := api.NewMessage(sessionID, prompt, resp)
	results, err := json.Marshal(msg.Results)
	if err != nil {
		return nil, fmt.Errorf("marshaling results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET updated_at = ?, touched = (SELECT MAX(touched) + 1 FROM sessions)
		WHERE id = ? AND owner = ?
	`, msg.CreatedAt, sessionID, storage.GetOwner(ctx))
	if err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, storage.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, request_id, prompt, results, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, sessionID, msg.RequestID, msg.Prompt, string(results), msg.ResponseTimeMs, msg.CreatedAt)
	if err != nil {
		if isConstraint(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}
	return msg, nil
}

// GetSession returns one of the caller's sessions.
func (s *Store) GetSession(ctx context.Context, id string) (*api.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, title, created_at, updated_at
		FROM sessions WHERE id = ? AND owner = ?
	`, id, storage.GetOwner(ctx))

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return sess, nil
}

// ListSessions pages through the caller's sessions, most recently updated
// first by default.
func (s *Store) ListSessions(ctx context.Context, opts transport.ListOptions) (*transport.SessionList, error) {
	opts = opts.Normalize("desc")
	owner := storage.GetOwner(ctx)
	op, dir := storage.SeekClause(opts)

	query := `SELECT id, owner, title, created_at, updated_at FROM sessions WHERE owner = ?`
	args := []any{owner}
	if op != "" {
		query += fmt.Sprintf(" AND touched %s (SELECT touched FROM sessions WHERE id = ? AND owner = ?)", op)
		args = append(args, storage.Cursor(opts), owner)
	}
	query += fmt.Sprintf(" ORDER BY touched %s LIMIT %d", dir, opts.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	data := []*api.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		data = append(data, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	result := &transport.SessionList{Object: "list", Data: data}
	if len(data) > opts.Limit {
		result.Data = data[:opts.Limit]
		result.HasMore = true
	}
	if n := len(result.Data); n > 0 {
		result.FirstID = result.Data[0].ID
		result.LastID = result.Data[n-1].ID
	}
	return result, nil
}

// ListMessages pages through a session's messages, oldest first by default.
func (s *Store) ListMessages(ctx context.Context, sessionID string, opts transport.ListOptions) (*transport.MessageList, error) {
	opts = opts.Normalize("asc")
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	op, dir := storage.SeekClause(opts)

	query := `SELECT id, session_id, request_id, prompt, results, response_time_ms, created_at
		FROM messages WHERE session_id = ?`
	args := []any{sessionID}
	if op != "" {
		query += fmt.Sprintf(" AND seq %s (SELECT seq FROM messages WHERE id = ? AND session_id = ?)", op)
		args = append(args, storage.Cursor(opts), sessionID)
	}
	query += fmt.Sprintf(" ORDER BY seq %s LIMIT %d", dir, opts.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	data := []*api.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		data = append(data, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	result := &transport.MessageList{Object: "list", Data: data}
	if len(data) > opts.Limit {
		result.Data = data[:opts.Limit]
		result.HasMore = true
	}
	if n := len(result.Data); n > 0 {
		result.FirstID = result.Data[0].ID
		result.LastID = result.Data[n-1].ID
	}
	return result, nil
}

// DeleteSession removes a session and its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE id = ? AND owner = ?",
		id, storage.GetOwner(ctx),
	)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*api.Session, error) {
	sess := &api.Session{Object: "chat.session"}
	if err := row.Scan(&sess.ID, &sess.Owner, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	return sess, nil
}

func scanMessage(row scanner) (*api.Message, error) {
	msg := &api.Message{Object: "chat.message"}
	var results string
	if err := row.Scan(&msg.ID, &msg.SessionID, &msg.RequestID, &msg.Prompt, &results, &msg.ResponseTimeMs, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	if err := json.Unmarshal([]byte(results), &msg.Results); err != nil {
		return nil, fmt.Errorf("unmarshaling results of %s: %w", msg.ID, err)
	}
	return msg, nil
}

// isConstraint reports a primary key or unique constraint violation.
func isConstraint(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
