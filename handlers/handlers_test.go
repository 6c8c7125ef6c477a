package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/camden-git/faceattend/attendance"
	"github.com/camden-git/faceattend/media"
	"github.com/camden-git/faceattend/models"
	"github.com/camden-git/faceattend/repository"
	"github.com/camden-git/faceattend/services"
)

type fakeSessionService struct {
	running  bool
	labels   models.LabelTable
	startErr error
}

func (f *fakeSessionService) Start(context.Context) (services.Status, error) {
	if f.startErr != nil {
		return services.Status{}, f.startErr
	}
	if f.running {
		return services.Status{}, services.ErrSessionRunning
	}
	f.running = true
	return f.Status(), nil
}

func (f *fakeSessionService) Stop() (services.Status, error) {
	if !f.running {
		return services.Status{}, services.ErrNoActiveSession
	}
	f.running = false
	return f.Status(), nil
}

func (f *fakeSessionService) Status() services.Status {
	return services.Status{Session: attendanceStatus(f.running)}
}

func (f *fakeSessionService) LatestFrameJPEG() ([]byte, error) {
	if !f.running {
		return nil, services.ErrNoActiveSession
	}
	return []byte{0xFF, 0xD8, 0xFF}, nil
}

func (f *fakeSessionService) LatestObservations() ([]models.FrameObservation, error) {
	if !f.running {
		return nil, services.ErrNoActiveSession
	}
	return []models.FrameObservation{{
		Box:    models.BoundingBox{X: 1, Y: 2, W: 3, H: 4},
		Result: models.Matched{Identity: models.Identity{ID: 1, DisplayName: "Alice"}, Distance: 40},
	}}, nil
}

func (f *fakeSessionService) Labels() models.LabelTable {
	if !f.running {
		return nil
	}
	return f.labels
}

type testServer struct {
	handler http.Handler
	service *fakeSessionService
	store   *repository.AttendanceLogRepository
	gallery string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	store, err := repository.NewAttendanceLogRepository(filepath.Join(dir, "attendance"), logger)
	require.NoError(t, err)
	galleryDir := filepath.Join(dir, "gallery")
	gallery := media.NewGalleryStore(galleryDir, 0, logger)
	service := &fakeSessionService{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "faceattend_test_total", Help: "test"}))

	handler := NewRouter(RouterDeps{
		Session:    &SessionHandler{Service: service, Logger: logger},
		Gallery:    &GalleryHandler{Gallery: gallery, Service: service, Logger: logger},
		Attendance: &AttendanceHandler{Store: store, Logger: logger},
		Gatherer:   registry,
		Logger:     logger,
	})
	return &testServer{handler: handler, service: service, store: store, gallery: galleryDir}
}

func (ts *testServer) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	return resp.Errors[0]
}

func TestSessionEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodDelete, "/api/session", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_active_session", decodeAPIError(t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/api/session/frame", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/session", nil, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/session", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "session_running", decodeAPIError(t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/api/session/frame", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = ts.do(t, http.MethodGet, "/api/session/observations", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var obs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obs))
	require.Len(t, obs, 1)
	assert.Equal(t, true, obs[0]["matched"])
	assert.Equal(t, float64(60), obs[0]["confidence"])

	rec = ts.do(t, http.MethodDelete, "/api/session", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartSessionCameraUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.service.startErr = media.ErrCameraUnavailable

	rec := ts.do(t, http.MethodPost, "/api/session", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "camera_unavailable", decodeAPIError(t, rec).Code)
}

func TestAttendanceEndpoints(t *testing.T) {
	ts := newTestServer(t)
	alice := models.Identity{ID: 1, DisplayName: "Alice"}
	bob := models.Identity{ID: 2, DisplayName: "Bob"}
	require.NoError(t, ts.store.Append(models.NewAttendanceRecord(time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local), alice)))
	require.NoError(t, ts.store.Append(models.NewAttendanceRecord(time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local), alice)))
	require.NoError(t, ts.store.Append(models.NewAttendanceRecord(time.Date(2026, 10, 19, 9, 5, 0, 0, time.Local), bob)))

	rec := ts.do(t, http.MethodGet, "/api/attendance/dates", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dates []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dates))
	assert.Equal(t, []string{"2026-10-18", "2026-10-19"}, dates)

	rec = ts.do(t, http.MethodGet, "/api/attendance?from=2026-10-19&identity=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []attendanceRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "2026-10-19", records[0].Date)
	assert.Equal(t, "09:00:00.000", records[0].Time)
	assert.Equal(t, alice, records[0].Identity)

	rec = ts.do(t, http.MethodGet, "/api/attendance?from=yesterday", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date", decodeAPIError(t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/api/attendance?identity=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func enrollForm(t *testing.T, id, name string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("id", id))
	require.NoError(t, mw.WriteField("name", name))
	part, err := mw.CreateFormFile("image", "face.png")
	require.NoError(t, err)
	img := imaging.New(40, 40, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	require.NoError(t, imaging.Encode(part, img, imaging.PNG))
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestGalleryEndpoints(t *testing.T) {
	ts := newTestServer(t)

	body, ct := enrollForm(t, "3", "Carol")
	rec := ts.do(t, http.MethodPost, "/api/gallery", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created galleryEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "3.Carol.jpg", created.File)

	body, ct = enrollForm(t, "3", "Caroline")
	rec = ts.do(t, http.MethodPost, "/api/gallery", body, ct)
	assert.Equal(t, http.StatusConflict, rec.Code)

	body, ct = enrollForm(t, "x", "Dan")
	rec = ts.do(t, http.MethodPost, "/api/gallery", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", decodeAPIError(t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/api/gallery", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []galleryEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	// no running session: identities come from the gallery
	rec = ts.do(t, http.MethodGet, "/api/identities", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var identities []models.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &identities))
	assert.Equal(t, []models.Identity{{ID: 3, DisplayName: "Carol"}}, identities)

	rec = ts.do(t, http.MethodGet, "/api/gallery/preview?file=missing.jpg", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "faceattend_test_total")
}

func attendanceStatus(active bool) attendance.Status {
	return attendance.Status{Active: active}
}
