package history

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/sqlite"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func sampleRecord(at time.Time) Record {
	return Record{
		Mode:        diagnosis.ModeText,
		InputText:   "yellow leaves with brown edges",
		InputDigest: "digest-1",
		Diagnosis: diagnosis.Diagnosis{
			Crop:             "Rice",
			IssueName:        "Potassium deficiency",
			Cause:            "Nutrient deficiency",
			OrganicTreatment: []string{"Apply wood ash", "Add compost"},
			PreventionTips:   []string{"Test soil yearly"},
			ExpertHelp:       "If symptoms spread after two weeks.",
		},
		Provider:   "gemini",
		Model:      "gemini-2.5-flash",
		DurationMS: 1234,
		CreatedAt:  at,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	saved, err := s.Save(ctx, sampleRecord(at))
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(saved, got); diff != "" {
		t.Errorf("Get mismatch (-saved +got):\n%s", diff)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	s := openStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List_NewestFirstAndLimited(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		r := sampleRecord(base.Add(time.Duration(i) * time.Minute))
		r.Diagnosis.Crop = []string{"Rice", "Wheat", "Maize"}[i]
		_, err := s.Save(ctx, r)
		require.NoError(t, err)
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Maize", all[0].Diagnosis.Crop)
	assert.Equal(t, "Rice", all[2].Diagnosis.Crop)

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestStore_Save_FillsIDAndTime(t *testing.T) {
	s := openStore(t)

	r := sampleRecord(time.Time{})
	saved, err := s.Save(context.Background(), r)
	require.NoError(t, err)
	assert.Len(t, saved.ID, 36)
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestRecordFromEvent(t *testing.T) {
	at := time.Now()
	r := RecordFromEvent(diagnosis.CompletedEvent{
		Mode:        diagnosis.ModeImage,
		MIMEType:    "image/png",
		ImageBytes:  2048,
		InputDigest: "abc",
		Provider:    "ollama",
		Model:       "llava:7b",
		Cached:      true,
		Duration:    1500 * time.Millisecond,
		At:          at,
	})

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, diagnosis.ModeImage, r.Mode)
	assert.Equal(t, 2048, r.ImageBytes)
	assert.Equal(t, int64(1500), r.DurationMS)
	assert.True(t, r.Cached)
	assert.Equal(t, at, r.CreatedAt)
}

func TestStore_Save_DBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO diagnosis_history").WillReturnError(errors.New("disk I/O error"))

	_, err = NewStore(db).Save(context.Background(), sampleRecord(time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM diagnosis_history ORDER BY").
		WithArgs(MaxListLimit).
		WillReturnError(sql.ErrConnDone)

	_, err = NewStore(db).List(context.Background(), 5000)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_CorruptRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "mode", "input_text", "mime_type", "image_bytes", "input_digest",
		"diagnosis_json", "provider", "model", "cached", "duration_ms", "created_at",
	}).AddRow("h-1", "text", "x", "", 0, "d", "not json", "gemini", "m", 0, 10, "2026-03-01T10:00:00Z")
	mock.ExpectQuery("SELECT (.+) FROM diagnosis_history WHERE id").WithArgs("h-1").WillReturnRows(rows)

	_, err = NewStore(db).Get(context.Background(), "h-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
