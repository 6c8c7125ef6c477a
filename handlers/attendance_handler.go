package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/faceattend/models"
	"github.com/camden-git/faceattend/repository"
)

type AttendanceHandler struct {
	Store  repository.AttendanceStoreInterface
	Logger *zap.Logger
}

type attendanceRecordResponse struct {
	Date     string          `json:"date"`
	Time     string          `json:"time"`
	Identity models.Identity `json:"identity"`
}

// ListAttendance supports ?from=YYYY-MM-DD&to=YYYY-MM-DD&identity=<id>.
func (ah *AttendanceHandler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.AttendanceFilter{From: q.Get("from"), To: q.Get("to")}

	for param, value := range map[string]string{"from": filter.From, "to": filter.To} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, value); err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_date", "Query parameter '"+param+"' must be YYYY-MM-DD")
			return
		}
	}

	if raw := q.Get("identity"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_identity", "Query parameter 'identity' must be an integer")
			return
		}
		filter.IdentityID = &id
	}

	records, err := ah.Store.List(filter)
	if err != nil {
		ah.Logger.Error("failed to list attendance", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, "attendance_unreadable", "Failed to read attendance records")
		return
	}

	out := make([]attendanceRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, attendanceRecordResponse{Date: rec.Date(), Time: rec.TimeOfDay(), Identity: rec.Identity})
	}
	writeJSON(w, http.StatusOK, out)
}

func (ah *AttendanceHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	dates, err := ah.Store.Dates()
	if err != nil {
		ah.Logger.Error("failed to list attendance dates", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, "attendance_unreadable", "Failed to read attendance dates")
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, dates)
}
