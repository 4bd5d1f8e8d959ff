package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/o1-screener/internal/profile"
)

// AuditLog is the append-only record of pipeline step transitions.
type AuditLog struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewAuditLog(db *sql.DB) AuditLog {
	return AuditLog{DB: db, Now: time.Now}
}

// Append writes one entry. ID and Timestamp are filled when empty.
func (a AuditLog) Append(ctx context.Context, e profile.LogEntry) error {
	if a.Now == nil {
		a.Now = time.Now
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = a.Now()
	}

	var data any
	if e.Data != nil {
		encoded, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshal log data: %w", err)
		}
		data = string(encoded)
	}

	_, err := a.DB.ExecContext(ctx, `INSERT INTO processing_logs(id,profile_id,step,status,message,data_json,ts) VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.ProfileID, e.Step, string(e.Status), e.Message, data, formatTime(e.Timestamp))
	return err
}

// ListByProfile returns the newest entries of a profile first. A non-positive limit returns all of them.
func (a AuditLog) ListByProfile(ctx context.Context, profileID string, limit int) ([]profile.LogEntry, error) {
	query := `SELECT id,profile_id,step,status,message,data_json,ts FROM processing_logs WHERE profile_id=? ORDER BY ts DESC, rowid DESC`
	args := []any{profileID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []profile.LogEntry
	for rows.Next() {
		var (
			e      profile.LogEntry
			status string
			data   sql.NullString
			ts     string
		)
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.Step, &status, &e.Message, &data, &ts); err != nil {
			return nil, err
		}
		e.Status = profile.LogStatus(status)
		e.Timestamp = parseTime(ts)
		if err := unmarshalNullable(data, &e.Data); err != nil {
			return nil, fmt.Errorf("decode log data %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
