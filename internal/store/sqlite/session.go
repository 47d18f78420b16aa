// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Compile-time interface check.
var _ store.SessionStore = (*SessionStore)(nil)

// SessionStore implements store.SessionStore backed by SQLite.
// Each session is one row; the transcript, decision log, and evaluation
// are JSON columns so a turn commits as a single-row write.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore opens (or creates) a SQLite database at dbPath and
// initialises the sessions table. Failure here is fatal to startup.
func NewSessionStore(dbPath string) (*SessionStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "opening sqlite db %s", dbPath)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "pinging sqlite db %s", dbPath)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "migrating sqlite db %s", dbPath)
	}

	return &SessionStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	config           TEXT NOT NULL,
	phase            TEXT NOT NULL,
	questions_asked  INTEGER NOT NULL DEFAULT 0,
	start_time       TEXT NOT NULL,
	last_activity    TEXT NOT NULL DEFAULT '',
	end_time         TEXT NOT NULL DEFAULT '',
	active           INTEGER NOT NULL DEFAULT 1,
	transcript       TEXT NOT NULL DEFAULT '[]',
	decisions        TEXT NOT NULL DEFAULT '[]',
	evaluation       TEXT NOT NULL DEFAULT '',
	idempotency_key  TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

func (s *SessionStore) CreateSession(ctx context.Context, sess *store.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	row, err := encodeRow(sess)
	if err != nil {
		return err
	}

	const q = `INSERT INTO sessions (id, config, phase, questions_asked, start_time, last_activity, end_time, active, transcript, decisions, evaluation, idempotency_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		sess.ID,
		row.config,
		string(sess.State.Phase),
		sess.State.QuestionsAsked,
		formatTime(sess.State.StartTime),
		formatTime(sess.State.LastActivity),
		row.endTime,
		boolToInt(sess.State.Active),
		row.transcript,
		row.decisions,
		row.evaluation,
		sess.LastIdempotencyKey,
		formatTime(sess.CreatedAt),
		formatTime(sess.UpdatedAt),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return parleyerr.New(
				parleyerr.CodeStoreSessionCreateConflict,
				"session already exists: "+sess.ID,
				parleyerr.FieldSessionID(sess.ID),
			)
		}
		return parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "creating session %s", sess.ID)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*store.Session, error) {
	const q = `SELECT id, config, phase, questions_asked, start_time, last_activity, end_time, active, transcript, decisions, evaluation, idempotency_key, created_at, updated_at
FROM sessions WHERE id = ?`

	return scanSession(s.db.QueryRowContext(ctx, q, id), id)
}

// UpdateSession persists the whole record in one write, guarded by an
// optimistic check on updated_at. A lost race surfaces as
// store.session.update.conflict so the caller can retry from a fresh read.
func (s *SessionStore) UpdateSession(ctx context.Context, sess *store.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	row, err := encodeRow(sess)
	if err != nil {
		return err
	}

	const q = `UPDATE sessions SET config = ?, phase = ?, questions_asked = ?, start_time = ?, last_activity = ?,
end_time = ?, active = ?, transcript = ?, decisions = ?, evaluation = ?, idempotency_key = ?, updated_at = ?
WHERE id = ? AND updated_at = ?`

	result, err := s.db.ExecContext(ctx, q,
		row.config,
		string(sess.State.Phase),
		sess.State.QuestionsAsked,
		formatTime(sess.State.StartTime),
		formatTime(sess.State.LastActivity),
		row.endTime,
		boolToInt(sess.State.Active),
		row.transcript,
		row.decisions,
		row.evaluation,
		sess.LastIdempotencyKey,
		formatTime(time.Now()),
		sess.ID,
		formatTime(sess.UpdatedAt),
	)
	if err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "updating session %s", sess.ID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "checking rows affected for session %s", sess.ID)
	}
	if rows == 0 {
		// Either the id is unknown or another writer bumped updated_at.
		if _, getErr := s.GetSession(ctx, sess.ID); getErr != nil {
			return getErr
		}
		return parleyerr.New(
			parleyerr.CodeStoreSessionUpdateConflict,
			"session was modified concurrently: "+sess.ID,
			parleyerr.FieldSessionID(sess.ID),
		)
	}
	return nil
}

func (s *SessionStore) ListSessions(ctx context.Context, opts store.ListOpts) ([]*store.Session, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	const q = `SELECT id, config, phase, questions_asked, start_time, last_activity, end_time, active, transcript, decisions, evaluation, idempotency_key, created_at, updated_at
FROM sessions ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, limit, opts.Offset)
	if err != nil {
		return nil, parleyerr.Wrap(err, parleyerr.CodeStoreDatabaseFailure, "listing sessions")
	}
	defer rows.Close()

	var sessions []*store.Session
	for rows.Next() {
		sess, err := scanSession(rows, "")
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, parleyerr.Wrap(err, parleyerr.CodeStoreDatabaseFailure, "iterating session rows")
	}

	return sessions, nil
}

// encodedRow holds the JSON-serialised columns of a session row.
type encodedRow struct {
	config     string
	transcript string
	decisions  string
	evaluation string
	endTime    string
}

func encodeRow(sess *store.Session) (encodedRow, error) {
	config, err := json.Marshal(sess.Config)
	if err != nil {
		return encodedRow{}, parleyerr.Wrapf(err, parleyerr.CodeStoreInvalidInput, "marshalling config for session %s", sess.ID)
	}

	transcript, err := json.Marshal(sess.Transcript)
	if err != nil {
		return encodedRow{}, parleyerr.Wrapf(err, parleyerr.CodeStoreInvalidInput, "marshalling transcript for session %s", sess.ID)
	}

	decisions, err := json.Marshal(sess.Decisions)
	if err != nil {
		return encodedRow{}, parleyerr.Wrapf(err, parleyerr.CodeStoreInvalidInput, "marshalling decision log for session %s", sess.ID)
	}

	row := encodedRow{
		config:     string(config),
		transcript: string(transcript),
		decisions:  string(decisions),
	}

	if sess.Evaluation != nil {
		eval, err := json.Marshal(sess.Evaluation)
		if err != nil {
			return encodedRow{}, parleyerr.Wrapf(err, parleyerr.CodeStoreInvalidInput, "marshalling evaluation for session %s", sess.ID)
		}
		row.evaluation = string(eval)
	}

	if sess.State.EndTime != nil {
		row.endTime = formatTime(*sess.State.EndTime)
	}

	return row, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner, id string) (*store.Session, error) {
	var sess store.Session
	var configJSON, transcriptJSON, decisionsJSON, evalJSON string
	var startTime, lastActivity, endTime, createdAt, updatedAt string
	var active int

	err := r.Scan(
		&sess.ID,
		&configJSON,
		&sess.State.Phase,
		&sess.State.QuestionsAsked,
		&startTime,
		&lastActivity,
		&endTime,
		&active,
		&transcriptJSON,
		&decisionsJSON,
		&evalJSON,
		&sess.LastIdempotencyKey,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, parleyerr.New(
			parleyerr.CodeStoreSessionGetNotFound,
			"session not found: "+id,
			parleyerr.FieldSessionID(id),
		)
	}
	if err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "scanning session row")
	}

	if err := json.Unmarshal([]byte(configJSON), &sess.Config); err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "unmarshalling config for session %s", sess.ID)
	}
	if err := json.Unmarshal([]byte(transcriptJSON), &sess.Transcript); err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "unmarshalling transcript for session %s", sess.ID)
	}
	if err := json.Unmarshal([]byte(decisionsJSON), &sess.Decisions); err != nil {
		return nil, parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "unmarshalling decision log for session %s", sess.ID)
	}
	if evalJSON != "" {
		var eval store.Evaluation
		if err := json.Unmarshal([]byte(evalJSON), &eval); err != nil {
			return nil, parleyerr.Wrapf(err, parleyerr.CodeStoreDatabaseFailure, "unmarshalling evaluation for session %s", sess.ID)
		}
		sess.Evaluation = &eval
	}

	sess.State.Active = active != 0
	sess.State.StartTime = parseTime(startTime)
	sess.State.LastActivity = parseTime(lastActivity)
	if endTime != "" {
		t := parseTime(endTime)
		sess.State.EndTime = &t
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)

	return &sess, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatTime serialises a time.Time to RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
