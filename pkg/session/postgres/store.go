// Package postgres provides PostgreSQL storage for sessions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/rumba-live/rumba/pkg/session"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sessionColumns lists columns returned by session SELECT queries.
var sessionColumns = []string{
	"id", "concert", "band", "date", "location", "is_public",
	"folder_url", "edition_url", "record_url", "master_url",
	"state", "audio_timestamp",
}

// Store implements session.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL session store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert persists a new session record.
func (s *Store) Insert(ctx context.Context, sess *session.Session) error {
	query, args, err := psq.Insert("sessions").
		Columns(sessionColumns...).
		Values(
			sess.ID, sess.Concert, sess.Band, sess.Date, sess.Location, sess.IsPublic,
			sess.FolderURL, sess.EditionURL, sess.RecordURL, sess.MasterURL,
			string(sess.State), sess.AudioTimestamp,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// FindByID retrieves a session by ID. Returns nil, nil if not found.
func (s *Store) FindByID(ctx context.Context, id string) (*session.Session, error) {
	query, args, err := psq.Select(sessionColumns...).
		From("sessions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	sess, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return sess, nil
}

// FindByStates returns all sessions whose state is in the given set, in
// natural store order. An empty set matches every session.
func (s *Store) FindByStates(ctx context.Context, states ...session.State) ([]*session.Session, error) {
	builder := psq.Select(sessionColumns...).From("sessions")
	if len(states) > 0 {
		builder = builder.Where(sq.Eq{"state": stateStrings(states)})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return sessions, nil
}

// CountByStates counts sessions whose state is in the given set.
func (s *Store) CountByStates(ctx context.Context, states ...session.State) (int, error) {
	builder := psq.Select("COUNT(*)").From("sessions")
	if len(states) > 0 {
		builder = builder.Where(sq.Eq{"state": stateStrings(states)})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return count, nil
}

// UpdateFields applies a field-level update to the session.
func (s *Store) UpdateFields(ctx context.Context, id string, fields session.Fields) error {
	values := make(map[string]any, len(fields))
	for name, value := range fields {
		if state, ok := value.(session.State); ok {
			value = string(state)
		}
		values[name] = value
	}

	query, args, err := psq.Update("sessions").
		SetMap(values).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// Delete removes the session record.
func (s *Store) Delete(ctx context.Context, id string) error {
	query, args, err := psq.Delete("sessions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanSession scans one row into a Session.
func scanSession(row scanner) (*session.Session, error) {
	var sess session.Session
	var rawState string
	var audioTS sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.Concert, &sess.Band, &sess.Date, &sess.Location, &sess.IsPublic,
		&sess.FolderURL, &sess.EditionURL, &sess.RecordURL, &sess.MasterURL,
		&rawState, &audioTS,
	)
	if err != nil {
		return nil, err
	}

	state, err := session.ParseState(rawState)
	if err != nil {
		return nil, err
	}
	sess.State = state
	if audioTS.Valid {
		sess.AudioTimestamp = &audioTS.Time
	}
	return &sess, nil
}

// stateStrings converts states to their stored representation.
func stateStrings(states []session.State) []string {
	result := make([]string, len(states))
	for i, state := range states {
		result[i] = string(state)
	}
	return result
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)
