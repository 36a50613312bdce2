// Package audit records who uploaded or deleted which asset. It is an
// append-only trail kept in Postgres; listing assets never reads it.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Action represents the type of action being audited
type Action string

const (
	ActionUpload Action = "asset_upload"
	ActionDelete Action = "asset_delete"
)

// ErrDisabled is returned by Recent when no audit database is configured.
var ErrDisabled = errors.New("audit trail disabled")

// Event is one audit log entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	AssetID   string    `json:"asset_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty"`
	Success   bool      `json:"success"`
	ErrorMsg  string    `json:"error_message,omitempty"`
}

// Recorder stores and reads audit events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Nop discards events. It is used when DATABASE_URL is unset.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

func (Nop) Recent(context.Context, int) ([]Event, error) { return nil, ErrDisabled }

// Postgres writes events to the audit_events table.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// Record inserts e, filling in ID and Timestamp.
func (p *Postgres) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Timestamp = p.now().UTC()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, occurred_at, action, asset_id, username,
			ip_address, user_agent, success, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		e.ID,
		e.Timestamp,
		string(e.Action),
		nullString(e.AssetID),
		nullString(e.Username),
		e.IPAddress,
		nullString(e.UserAgent),
		e.Success,
		nullString(e.ErrorMsg),
	)
	return err
}

// Recent returns up to limit events, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, occurred_at, action, asset_id, username,
		       ip_address, user_agent, success, error_message
		FROM audit_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var action string
		var assetID, username, userAgent, errorMsg sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&action,
			&assetID,
			&username,
			&e.IPAddress,
			&userAgent,
			&e.Success,
			&errorMsg,
		); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		e.AssetID = assetID.String
		e.Username = username.String
		e.UserAgent = userAgent.String
		e.ErrorMsg = errorMsg.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// nullString helper for nullable strings
func nullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}
