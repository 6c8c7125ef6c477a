package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/camden-git/faceattend/database"
	"github.com/camden-git/faceattend/models"
)

func newRecordRepo(t *testing.T) *AttendanceRecordRepository {
	t.Helper()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "attendance.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	repo, err := NewAttendanceRecordRepository(db)
	require.NoError(t, err)
	return repo
}

func TestAttendanceRecordRepositoryRoundTrip(t *testing.T) {
	repo := newRecordRepo(t)

	at := time.Date(2026, 10, 19, 14, 3, 9, 450_000_000, time.Local)
	record := models.NewAttendanceRecord(at, models.Identity{ID: 12, DisplayName: "Vy"})
	require.NoError(t, repo.Append(record))

	records, err := repo.List(models.AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.Date(), records[0].Date())
	assert.Equal(t, record.TimeOfDay(), records[0].TimeOfDay())
	assert.Equal(t, record.Identity, records[0].Identity)
}

func TestAttendanceRecordRepositoryFilterAndDates(t *testing.T) {
	repo := newRecordRepo(t)
	alice := models.Identity{ID: 1, DisplayName: "Alice"}
	bob := models.Identity{ID: 2, DisplayName: "Bob"}

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local)
	require.NoError(t, repo.Append(models.NewAttendanceRecord(base.AddDate(0, 0, 1), bob)))
	require.NoError(t, repo.Append(models.NewAttendanceRecord(base, alice)))
	require.NoError(t, repo.Append(models.NewAttendanceRecord(base.Add(time.Hour), bob)))

	records, err := repo.List(models.AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, alice, records[0].Identity)
	assert.Equal(t, "2026-03-02", records[2].Date())

	bobID := 2
	records, err = repo.List(models.AttendanceFilter{IdentityID: &bobID, To: "2026-03-01"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "09:00:00.000", records[0].TimeOfDay())

	dates, err := repo.Dates()
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-01", "2026-03-02"}, dates)
}
