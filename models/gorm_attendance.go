package models

import "time"

// AttendanceRow is the SQLite representation of an AttendanceRecord.
// It corresponds to the 'attendance_records' table.
type AttendanceRow struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Date        string `gorm:"not null;index:idx_attendance_date_time" json:"date"`
	Time        string `gorm:"not null;index:idx_attendance_date_time" json:"time"`
	IdentityID  int    `gorm:"not null;index" json:"identity_id"`
	DisplayName string `gorm:"not null" json:"display_name"`
	CreatedAt   int64  `gorm:"not null" json:"created_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (AttendanceRow) TableName() string {
	return "attendance_records"
}

func AttendanceRowFromRecord(record AttendanceRecord) AttendanceRow {
	return AttendanceRow{
		Date:        record.Date(),
		Time:        record.TimeOfDay(),
		IdentityID:  record.Identity.ID,
		DisplayName: record.Identity.DisplayName,
		CreatedAt:   time.Now().Unix(),
	}
}

func (row AttendanceRow) Record(loc *time.Location) (AttendanceRecord, error) {
	ts, err := ParseAttendanceTimestamp(row.Date, row.Time, loc)
	if err != nil {
		return AttendanceRecord{}, err
	}
	return AttendanceRecord{
		Timestamp: ts,
		Identity:  Identity{ID: row.IdentityID, DisplayName: row.DisplayName},
	}, nil
}
