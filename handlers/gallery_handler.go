package handlers

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/media"
	"github.com/camden-git/faceattend/models"
)

const maxEnrollUploadBytes = 32 << 20

type GalleryHandler struct {
	Gallery        *media.GalleryStore
	Service        SessionService
	NewDetector    func() (media.Detector, error)
	TrainDetection config.DetectionParams
	Logger         *zap.Logger
}

type galleryEntryResponse struct {
	Identity models.Identity `json:"identity"`
	File     string          `json:"file"`
}

// ListIdentities returns the label table of the running session, or the one
// the gallery would produce if no session is running.
func (gh *GalleryHandler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	labels := gh.Service.Labels()
	if labels == nil {
		entries, err := gh.Gallery.Entries()
		if err != nil {
			gh.Logger.Error("failed to list gallery", zap.Error(err))
			WriteAPIError(w, http.StatusInternalServerError, "gallery_unreadable", "Failed to read gallery")
			return
		}
		labels = models.LabelTable{}
		for _, e := range entries {
			if _, ok := labels[e.Identity.ID]; !ok {
				labels[e.Identity.ID] = e.Identity
			}
		}
	}
	writeJSON(w, http.StatusOK, labels.Identities())
}

func (gh *GalleryHandler) ListGallery(w http.ResponseWriter, r *http.Request) {
	entries, err := gh.Gallery.Entries()
	if err != nil {
		gh.Logger.Error("failed to list gallery", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, "gallery_unreadable", "Failed to read gallery")
		return
	}
	out := make([]galleryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, galleryEntryResponse{Identity: e.Identity, File: filepath.Base(e.ImagePath)})
	}
	writeJSON(w, http.StatusOK, out)
}

// Enroll accepts a multipart form with "id", "name" and an "image" file.
func (gh *GalleryHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEnrollUploadBytes)
	if err := r.ParseMultipartForm(maxEnrollUploadBytes); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_form", "Invalid multipart form: "+err.Error())
		return
	}

	id, err := strconv.Atoi(strings.TrimSpace(r.FormValue("id")))
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Field 'id' must be an integer")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "missing_image", "Missing 'image' file field")
		return
	}
	defer file.Close()

	entry, err := gh.Gallery.Enroll(models.Identity{ID: id, DisplayName: r.FormValue("name")}, file)
	switch {
	case errors.Is(err, media.ErrInvalidIdentity):
		WriteAPIError(w, http.StatusBadRequest, "invalid_identity", err.Error())
		return
	case errors.Is(err, media.ErrIdentityConflict):
		WriteAPIError(w, http.StatusConflict, "identity_conflict", err.Error())
		return
	case err != nil:
		gh.Logger.Warn("enrollment failed", zap.Int("id", id), zap.Error(err))
		WriteAPIError(w, http.StatusBadRequest, "enroll_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, galleryEntryResponse{Identity: entry.Identity, File: filepath.Base(entry.ImagePath)})
}

// PreviewGalleryImage draws the faces the training detector finds on one
// gallery image, so an operator can check an enrollment is usable.
func (gh *GalleryHandler) PreviewGalleryImage(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.URL.Query().Get("file"))
	if name == "" || name == "." || !media.IsRasterImage(name) {
		WriteAPIError(w, http.StatusBadRequest, "invalid_file", "Query parameter 'file' must name a gallery image")
		return
	}

	var entry *models.GalleryEntry
	entries, err := gh.Gallery.Entries()
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "gallery_unreadable", "Failed to read gallery")
		return
	}
	for i := range entries {
		if filepath.Base(entries[i].ImagePath) == name {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		WriteAPIError(w, http.StatusNotFound, "not_found", "No such gallery image")
		return
	}

	img := gocv.IMRead(entry.ImagePath, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		WriteAPIError(w, http.StatusUnprocessableEntity, "unreadable_image", "Failed to read image")
		return
	}
	defer img.Close()

	detector, err := gh.NewDetector()
	if err != nil {
		WriteAPIError(w, http.StatusServiceUnavailable, "detector_unavailable", err.Error())
		return
	}
	defer detector.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	blue := color.RGBA{0, 0, 255, 0}
	faces := detector.Detect(gray, gh.TrainDetection)
	for i, rect := range faces {
		gocv.Rectangle(&img, rect, blue, 2)
		gocv.PutText(&img, fmt.Sprintf("%s #%d", entry.Identity.DisplayName, i+1), image.Pt(rect.Min.X, rect.Min.Y-5), gocv.FontHersheySimplex, 0.5, blue, 1)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		gh.Logger.Error("failed to encode preview", zap.String("file", name), zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, "encode_failed", "Failed to encode image")
		return
	}
	defer buf.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.Header().Set("X-Faces-Detected", strconv.Itoa(len(faces)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write(buf.GetBytes())
}
