package models

import (
	"fmt"
	"time"
)

const (
	// DateLayout names a day's log store.
	DateLayout = "2006-01-02"
	// TimeLayout is the time-of-day field of a log line. Millisecond precision
	// keeps records from the same second strictly ordered.
	TimeLayout = "15:04:05.000"
)

// AttendanceRecord is one persisted "identity was present" event.
type AttendanceRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Identity  Identity  `json:"identity"`
}

func NewAttendanceRecord(at time.Time, identity Identity) AttendanceRecord {
	return AttendanceRecord{Timestamp: at.Truncate(time.Millisecond), Identity: identity}
}

// Date is the calendar day the record belongs to, in the timestamp's location.
func (r AttendanceRecord) Date() string {
	return r.Timestamp.Format(DateLayout)
}

func (r AttendanceRecord) TimeOfDay() string {
	return r.Timestamp.Format(TimeLayout)
}

// ParseAttendanceTimestamp rebuilds a timestamp from its date and time-of-day
// fields. Plain "15:04:05" values written by older installs are accepted.
func ParseAttendanceTimestamp(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	ts, err := time.ParseInLocation(DateLayout+" 15:04:05", date+" "+timeOfDay, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid attendance timestamp %q %q: %w", date, timeOfDay, err)
	}
	return ts, nil
}

// AttendanceFilter narrows a history query. Empty fields match everything.
// From and To are inclusive DateLayout strings.
type AttendanceFilter struct {
	From       string
	To         string
	IdentityID *int
}

// Matches reports whether record passes the filter.
func (f AttendanceFilter) Matches(record AttendanceRecord) bool {
	date := record.Date()
	if f.From != "" && date < f.From {
		return false
	}
	if f.To != "" && date > f.To {
		return false
	}
	if f.IdentityID != nil && record.Identity.ID != *f.IdentityID {
		return false
	}
	return true
}

// IncludesDate reports whether a whole day can hold matching records.
func (f AttendanceFilter) IncludesDate(date string) bool {
	if f.From != "" && date < f.From {
		return false
	}
	if f.To != "" && date > f.To {
		return false
	}
	return true
}
