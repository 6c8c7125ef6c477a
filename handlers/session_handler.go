package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/camden-git/faceattend/media"
	"github.com/camden-git/faceattend/models"
	"github.com/camden-git/faceattend/services"
	"github.com/camden-git/faceattend/workers"
)

// SessionService is the part of the recognition service the HTTP layer uses.
type SessionService interface {
	Start(ctx context.Context) (services.Status, error)
	Stop() (services.Status, error)
	Status() services.Status
	LatestFrameJPEG() ([]byte, error)
	LatestObservations() ([]models.FrameObservation, error)
	Labels() models.LabelTable
}

type SessionHandler struct {
	Service SessionService
	Logger  *zap.Logger
}

// writeSessionError maps service errors onto API errors.
func writeSessionError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrSessionRunning):
		WriteAPIError(w, http.StatusConflict, "session_running", err.Error())
	case errors.Is(err, services.ErrNoActiveSession):
		WriteAPIError(w, http.StatusNotFound, "no_active_session", err.Error())
	case errors.Is(err, media.ErrCameraUnavailable):
		WriteAPIError(w, http.StatusServiceUnavailable, "camera_unavailable", err.Error())
	case errors.Is(err, media.ErrDetectorModelMissing):
		WriteAPIError(w, http.StatusServiceUnavailable, "detector_unavailable", err.Error())
	case errors.Is(err, workers.ErrNoFrame):
		WriteAPIError(w, http.StatusServiceUnavailable, "no_frame", err.Error())
	default:
		logger.Error("session request failed", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func (sh *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	status, err := sh.Service.Start(r.Context())
	if err != nil {
		writeSessionError(w, sh.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (sh *SessionHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	status, err := sh.Service.Stop()
	if err != nil {
		writeSessionError(w, sh.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (sh *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sh.Service.Status())
}

// GetFrame serves the latest annotated frame as JPEG.
func (sh *SessionHandler) GetFrame(w http.ResponseWriter, r *http.Request) {
	jpeg, err := sh.Service.LatestFrameJPEG()
	if err != nil {
		writeSessionError(w, sh.Logger, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(jpeg)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	if _, err := w.Write(jpeg); err != nil {
		sh.Logger.Debug("failed to write frame response", zap.Error(err))
	}
}

func (sh *SessionHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	obs, err := sh.Service.LatestObservations()
	if err != nil {
		writeSessionError(w, sh.Logger, err)
		return
	}
	if obs == nil {
		obs = []models.FrameObservation{}
	}
	writeJSON(w, http.StatusOK, obs)
}
