package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/camden-git/faceattend/database"
	"github.com/camden-git/faceattend/models"
	"gorm.io/gorm"
)

// AttendanceRecordRepository stores attendance records in SQLite.
type AttendanceRecordRepository struct {
	DB  *gorm.DB
	sql *sql.DB
	loc *time.Location
}

// NewAttendanceRecordRepository wraps an initialised GORM handle. The schema
// must already be migrated.
func NewAttendanceRecordRepository(db *gorm.DB) (*AttendanceRecordRepository, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	return &AttendanceRecordRepository{DB: db, sql: sqlDB, loc: time.Local}, nil
}

// Append inserts a new record row
func (r *AttendanceRecordRepository) Append(record models.AttendanceRecord) error {
	row := models.AttendanceRowFromRecord(record)
	if err := r.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert attendance record for identity %d: %w", record.Identity.ID, err)
	}
	return nil
}

func (r *AttendanceRecordRepository) List(filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	rows, err := database.QueryAttendance(r.sql, filter)
	if err != nil {
		return nil, err
	}

	records := make([]models.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.Record(r.loc)
		if err != nil {
			return nil, fmt.Errorf("corrupt attendance row %d: %w", row.ID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *AttendanceRecordRepository) Dates() ([]string, error) {
	dates := []string{}
	err := r.DB.Model(&models.AttendanceRow{}).
		Distinct().
		Order("date ASC").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance dates: %w", err)
	}
	return dates, nil
}
