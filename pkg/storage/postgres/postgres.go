// Package postgres provides a PostgreSQL implementation of
// transport.TranscriptStore. It uses pgx/v5 for connection pooling and
// stores per-model results as JSONB.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/storage"
	"github.com/rhuss/chorus/pkg/transport"
)

// Store is a PostgreSQL-backed TranscriptStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ transport.TranscriptStore = (*Store)(nil)

// New connects to PostgreSQL. If MigrateOnStart is true, schema
// migrations are applied before returning.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, owner, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.Owner, sess.Title, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
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

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE sessions SET updated_at = $1, touched = nextval('session_touch_seq')
			WHERE id = $2 AND owner = $3
		`, msg.CreatedAt, sessionID, storage.GetOwner(ctx))
		if err != nil {
			return fmt.Errorf("updating session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO messages (id, session_id, request_id, prompt, results, response_time_ms, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, msg.ID, sessionID, msg.RequestID, msg.Prompt, results, msg.ResponseTimeMs, msg.CreatedAt)
		if err != nil {
			if isDuplicateKey(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("inserting message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetSession returns one of the caller's sessions.
func (s *Store) GetSession(ctx context.Context, id string) (*api.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, title, created_at, updated_at
		FROM sessions WHERE id = $1 AND owner = $2
	`, id, storage.GetOwner(ctx))

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
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

	query := `SELECT id, owner, title, created_at, updated_at FROM sessions WHERE owner = $1`
	args := []any{owner}
	if op != "" {
		query += fmt.Sprintf(" AND touched %s (SELECT touched FROM sessions WHERE id = $2 AND owner = $1)", op)
		args = append(args, storage.Cursor(opts))
	}
	query += fmt.Sprintf(" ORDER BY touched %s LIMIT %d", dir, opts.Limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	data, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*api.Session, error) {
		return scanSession(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning sessions: %w", err)
	}

	result := &transport.SessionList{Object: "list", Data: data}
	if len(data) > opts.Limit {
		result.Data = data[:opts.Limit]
		result.HasMore = true
	}
	if result.Data == nil {
		result.Data = []*api.Session{}
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
		FROM messages WHERE session_id = $1`
	args := []any{sessionID}
	if op != "" {
		query += fmt.Sprintf(" AND seq %s (SELECT seq FROM messages WHERE id = $2 AND session_id = $1)", op)
		args = append(args, storage.Cursor(opts))
	}
	query += fmt.Sprintf(" ORDER BY seq %s LIMIT %d", dir, opts.Limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	data, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*api.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning messages: %w", err)
	}

	result := &transport.MessageList{Object: "list", Data: data}
	if len(data) > opts.Limit {
		result.Data = data[:opts.Limit]
		result.HasMore = true
	}
	if result.Data == nil {
		result.Data = []*api.Message{}
	}
	if n := len(result.Data); n > 0 {
		result.FirstID = result.Data[0].ID
		result.LastID = result.Data[n-1].ID
	}
	return result, nil
}

// DeleteSession removes a session. Its messages go with it.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM sessions WHERE id = $1 AND owner = $2",
		id, storage.GetOwner(ctx),
	)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanSession(row pgx.Row) (*api.Session, error) {
	sess := &api.Session{Object: "chat.session"}
	if err := row.Scan(&sess.ID, &sess.Owner, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	return sess, nil
}

func scanMessage(row pgx.Row) (*api.Message, error) {
	msg := &api.Message{Object: "chat.message"}
	var results []byte
	if err := row.Scan(&msg.ID, &msg.SessionID, &msg.RequestID, &msg.Prompt, &results, &msg.ResponseTimeMs, &msg.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(results, &msg.Results); err != nil {
		return nil, fmt.Errorf("unmarshaling results of %s: %w", msg.ID, err)
	}
	return msg, nil
}

// isDuplicateKey reports a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
