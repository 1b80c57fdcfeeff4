// Package history persists completed diagnoses so they can be listed later.
// Records arrive from the event bus through Recorder; nothing in the request
// path waits on a write.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("history: record not found")

// Record is one stored diagnosis.
type Record struct {
	ID          string              `json:"id"`
	Mode        diagnosis.InputMode `json:"mode"`
	InputText   string              `json:"inputText,omitempty"`
	MIMEType    string              `json:"mimeType,omitempty"`
	ImageBytes  int                 `json:"imageBytes,omitempty"`
	InputDigest string              `json:"inputDigest"`
	Diagnosis   diagnosis.Diagnosis `json:"diagnosis"`
	Provider    string              `json:"provider"`
	Model       string              `json:"model"`
	Cached      bool                `json:"cached"`
	DurationMS  int64               `json:"durationMs"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// Default and maximum page sizes for List.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Store reads and writes diagnosis_history.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordFromEvent maps a completed analysis to a new Record with a fresh id.
func RecordFromEvent(ev diagnosis.CompletedEvent) Record {
	return Record{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Mode:        ev.Mode,
		InputText:   ev.Text,
		MIMEType:    ev.MIMEType,
		ImageBytes:  ev.ImageBytes,
		InputDigest: ev.InputDigest,
		Diagnosis:   ev.Diagnosis,
		Provider:    ev.Provider,
		Model:       ev.Model,
		Cached:      ev.Cached,
		DurationMS:  ev.Duration.Milliseconds(),
		CreatedAt:   ev.At,
	}
}

// Save inserts r. An empty ID is filled with a UUIDv7 and a zero CreatedAt
// with the current time.
func (s *Store) Save(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.Must(uuid.NewV7()).String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()

	body, err := json.Marshal(r.Diagnosis)
	if err != nil {
		return Record{}, fmt.Errorf("history: encode diagnosis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diagnosis_history
			(id, mode, input_text, mime_type, image_bytes, input_digest, crop, issue_name,
			 diagnosis_json, provider, model, cached, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Mode), r.InputText, r.MIMEType, r.ImageBytes, r.InputDigest,
		r.Diagnosis.Crop, r.Diagnosis.IssueName, string(body), r.Provider, r.Model,
		boolToInt(r.Cached), r.DurationMS, r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("history: insert: %w", err)
	}
	return r, nil
}

const selectColumns = `id, mode, input_text, mime_type, image_bytes, input_digest,
	diagnosis_json, provider, model, cached, duration_ms, created_at`

// List returns the most recent records first. limit is clamped to
// [1, MaxListLimit]; zero means DefaultListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM diagnosis_history ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list rows: %w", err)
	}
	return out, nil
}

// Get returns the record with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM diagnosis_history WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		r         Record
		mode      string
		body      string
		cached    int
		createdAt string
	)
	err := sc.Scan(&r.ID, &mode, &r.InputText, &r.MIMEType, &r.ImageBytes, &r.InputDigest,
		&body, &r.Provider, &r.Model, &cached, &r.DurationMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}
	if err != nil {
		return Record{}, fmt.Errorf("history: scan: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &r.Diagnosis); err != nil {
		return Record{}, fmt.Errorf("history: decode diagnosis %s: %w", r.ID, err)
	}
	r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("history: parse created_at %s: %w", r.ID, err)
	}
	r.Mode = diagnosis.InputMode(mode)
	r.Cached = cached != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
