package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/camden-git/faceattend/models"
	"go.uber.org/zap"
)

const attendanceLogExt = ".txt"

// AttendanceLogRepository stores one append-only text file per calendar day,
// each line being "time,id,name".
type AttendanceLogRepository struct {
	dir    string
	loc    *time.Location
	logger *zap.Logger
	mu     sync.Mutex
}

// NewAttendanceLogRepository creates the log directory if needed.
func NewAttendanceLogRepository(dir string, logger *zap.Logger) (*AttendanceLogRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attendance log directory %s: %w", dir, err)
	}
	return &AttendanceLogRepository{
		dir:    dir,
		loc:    time.Local,
		logger: logger.Named("attendance_log"),
	}, nil
}

func (r *AttendanceLogRepository) pathForDate(date string) string {
	return filepath.Join(r.dir, date+attendanceLogExt)
}

// Append writes record to its day's file, creating the file if needed.
func (r *AttendanceLogRepository) Append(record models.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.pathForDate(record.Date())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open attendance log %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	writeErr := w.Write([]string{record.TimeOfDay(), strconv.Itoa(record.Identity.ID), record.Identity.DisplayName})
	if writeErr == nil {
		w.Flush()
		writeErr = w.Error()
	}
	closeErr := f.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to append to attendance log %s: %w", path, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close attendance log %s: %w", path, closeErr)
	}
	return nil
}

// Dates lists the days that have a log file.
func (r *AttendanceLogRepository) Dates() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read attendance log directory %s: %w", r.dir, err)
	}

	dates := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), attendanceLogExt) {
			continue
		}
		date := strings.TrimSuffix(entry.Name(), attendanceLogExt)
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

// List reads every matching day file. Lines that cannot be parsed are logged
// and skipped.
func (r *AttendanceLogRepository) List(filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dates, err := r.Dates()
	if err != nil {
		return nil, err
	}

	records := []models.AttendanceRecord{}
	for _, date := range dates {
		if !filter.IncludesDate(date) {
			continue
		}
		dayRecords, err := r.readDay(date)
		if err != nil {
			return nil, err
		}
		for _, record := range dayRecords {
			if filter.Matches(record) {
				records = append(records, record)
			}
		}
	}
	return records, nil
}

func (r *AttendanceLogRepository) readDay(date string) ([]models.AttendanceRecord, error) {
	path := r.pathForDate(date)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attendance log %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records []models.AttendanceRecord
	line := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			r.logger.Warn("skipping unreadable attendance line", zap.String("file", path), zap.Int("line", line), zap.Error(err))
			continue
		}
		record, err := parseLogLine(date, fields, r.loc)
		if err != nil {
			r.logger.Warn("skipping malformed attendance line", zap.String("file", path), zap.Int("line", line), zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func parseLogLine(date string, fields []string, loc *time.Location) (models.AttendanceRecord, error) {
	if len(fields) != 3 {
		return models.AttendanceRecord{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	ts, err := models.ParseAttendanceTimestamp(date, strings.TrimSpace(fields[0]), loc)
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	id, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return models.AttendanceRecord{}, fmt.Errorf("invalid identity id %q: %w", fields[1], err)
	}
	return models.AttendanceRecord{
		Timestamp: ts,
		Identity:  models.Identity{ID: id, DisplayName: fields[2]},
	}, nil
}
