package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceRecordFieldsRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 589_793_238, time.Local)
	record := NewAttendanceRecord(at, Identity{ID: 1, DisplayName: "Alice"})

	assert.Equal(t, "2026-03-14", record.Date())
	assert.Equal(t, "09:26:53.589", record.TimeOfDay())

	ts, err := ParseAttendanceTimestamp(record.Date(), record.TimeOfDay(), time.Local)
	require.NoError(t, err)
	assert.True(t, ts.Equal(record.Timestamp))
}

func TestParseAttendanceTimestampLegacySeconds(t *testing.T) {
	ts, err := ParseAttendanceTimestamp("2025-01-02", "08:00:01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 8, 0, 1, 0, time.UTC), ts)

	_, err = ParseAttendanceTimestamp("2025-01-02", "8 o'clock", time.UTC)
	assert.Error(t, err)
}

func TestAttendanceFilter(t *testing.T) {
	one := 1
	record := NewAttendanceRecord(time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC), Identity{ID: 1, DisplayName: "A"})

	assert.True(t, AttendanceFilter{}.Matches(record))
	assert.True(t, AttendanceFilter{From: "2026-05-10", To: "2026-05-10"}.Matches(record))
	assert.False(t, AttendanceFilter{From: "2026-05-11"}.Matches(record))
	assert.False(t, AttendanceFilter{To: "2026-05-09"}.Matches(record))
	assert.True(t, AttendanceFilter{IdentityID: &one}.Matches(record))

	two := 2
	assert.False(t, AttendanceFilter{IdentityID: &two}.Matches(record))
	assert.True(t, AttendanceFilter{From: "2026-05-01"}.IncludesDate("2026-05-10"))
}
