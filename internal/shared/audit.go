package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Auth event kinds.
const (
	EventLoginSucceeded  = "login.succeeded"
	EventLoginFailed     = "login.failed"
	EventRegistered      = "user.registered"
	EventUserCreated     = "user.created"
	EventPasswordChanged = "password.changed"
	EventLoggedOut       = "logout"
)

// AuthEvent represents a record stored in auth_events.
type AuthEvent struct {
	Kind       string         `json:"kind"`
	ActorID    string         `json:"actor_id,omitempty"`
	SubjectID  string         `json:"subject_id,omitempty"`
	Identifier string         `json:"identifier,omitempty"`
	RemoteIP   string         `json:"remote_ip,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	At         time.Time      `json:"at"`
}

// Execer is the subset of pgx used by AuditLogger.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger writes records into auth_events.
type AuditLogger struct {
	db Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists the event.
func (l *AuditLogger) Record(ctx context.Context, event AuthEvent) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if event.Kind == "" {
		return errors.New("auth event requires kind")
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	meta := event.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(ctx, `INSERT INTO auth_events (kind, actor_id, subject_id, identifier, remote_ip, meta, occurred_at)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7)`,
		event.Kind, event.ActorID, event.SubjectID, event.Identifier, event.RemoteIP, metaJSON, event.At)
	return err
}

// Purge deletes events that occurred before cutoff and returns how many went.
func (l *AuditLogger) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	if l == nil || l.db == nil {
		return 0, errors.New("audit logger not initialised")
	}
	tag, err := l.db.Exec(ctx, `DELETE FROM auth_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
