package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/blebridge/internal/bridge"
)

// Session describes one run of the bridge process.
type Session struct {
	ID         string
	StartedAt  time.Time
	Version    string
	SerialPort string
	Adapter    string
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// StartSession inserts s. An empty ID is replaced with a new one, and the ID
// used is returned.
func (db *DB) StartSession(ctx context.Context, s Session) (string, error) {
	if s.ID == "" {
		s.ID = NewSessionID()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, started_ns, version, serial_port, adapter)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt.UnixNano(), s.Version, s.SerialPort, s.Adapter)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return s.ID, nil
}

// Sessions returns every recorded session, newest first.
func (db *DB) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, started_ns, version, serial_port, adapter
		FROM sessions ORDER BY started_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var startedNS int64
		if err := rows.Scan(&s.ID, &startedNS, &s.Version, &s.SerialPort, &s.Adapter); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(0, startedNS)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// RecordExchange implements bridge.Recorder.
func (db *DB) RecordExchange(ctx context.Context, ex bridge.Exchange) error {
	replies := ex.Replies
	if replies == nil {
		replies = []string{}
	}
	encoded, err := json.Marshal(replies)
	if err != nil {
		return fmt.Errorf("encode replies: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO exchanges (session_id, code, args, replies, frame_bytes, started_ns, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ex.SessionID, ex.Code, ex.Args, string(encoded), ex.FrameBytes,
		ex.Started.UnixNano(), ex.Duration.Microseconds())
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// RecentExchanges returns up to limit exchanges of sessionID, newest first.
// An empty sessionID matches every session.
func (db *DB) RecentExchanges(ctx context.Context, sessionID string, limit int) ([]bridge.Exchange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, code, args, replies, frame_bytes, started_ns, duration_us
		FROM exchanges
		WHERE ? = '' OR session_id = ?
		ORDER BY exchange_id DESC
		LIMIT ?`, sessionID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var out []bridge.Exchange
	for rows.Next() {
		var (
			ex         bridge.Exchange
			replies    string
			startedNS  int64
			durationUS int64
		)
		if err := rows.Scan(&ex.SessionID, &ex.Code, &ex.Args, &replies, &ex.FrameBytes, &startedNS, &durationUS); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(replies), &ex.Replies); err != nil {
			return nil, fmt.Errorf("decode replies of %s exchange: %w", ex.Code, err)
		}
		ex.Started = time.Unix(0, startedNS)
		ex.Duration = time.Duration(durationUS) * time.Microsecond
		out = append(out, ex)
	}
	return out, rows.Err()
}

var _ bridge.Recorder = (*DB)(nil)
