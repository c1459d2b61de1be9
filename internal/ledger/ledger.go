// Package ledger provides an append-only history of fade sessions for auditing.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventFadeStarted   EventType = "fade_started"
	EventFadeCompleted EventType = "fade_completed"
	EventFadeCancelled EventType = "fade_cancelled"
	EventFadeFailed    EventType = "fade_failed"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64
	EventType EventType
	Timestamp time.Time
	Device    string
	SessionID uuid.UUID
	Payload   map[string]any
}

// Ledger provides append-only fade event logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds a new event to the ledger
func (l *Ledger) Append(eventType EventType, device string, session uuid.UUID, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	_, err = l.db.Exec(
		`INSERT INTO fade_ledger (event_type, timestamp, device, session_id, payload) VALUES (?, ?, ?, ?, ?)`,
		string(eventType), time.Now().UTC().UnixMilli(), device, session.String(), string(payloadJSON),
	)
	return err
}

// GetBySession returns the entries of one fade session, oldest first
func (l *Ledger) GetBySession(session uuid.UUID) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, device, session_id, payload
		FROM fade_ledger
		WHERE session_id = ?
		ORDER BY id ASC
	`, session.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByDevice returns the newest entries for a device
func (l *Ledger) GetByDevice(device string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, device, session_id, payload
		FROM fade_ledger
		WHERE device = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, device, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByType returns entries filtered by event type
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, device, session_id, payload
		FROM fade_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.Exec(`DELETE FROM fade_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr sql.NullString
		var session string
		var timestamp int64

		if err := rows.Scan(&entry.ID, &entry.EventType, &timestamp, &entry.Device, &session, &payloadStr); err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(timestamp).UTC()

		id, err := uuid.Parse(session)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session id %q: %w", session, err)
		}
		entry.SessionID = id

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
