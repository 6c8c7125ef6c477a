package repository

import "github.com/camden-git/faceattend/models"

// AttendanceStoreInterface defines the persistence operations for attendance
// records. Records are append-only; implementations never rewrite existing
// entries.
type AttendanceStoreInterface interface {
	Append(record models.AttendanceRecord) error
	// List returns matching records ordered by date, then time of day.
	List(filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	// Dates returns every day that has at least one record, ascending.
	Dates() ([]string, error)
}
