package media

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/facette/natsort"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/models"
)

var (
	ErrInvalidIdentity  = errors.New("invalid identity")
	ErrIdentityConflict = errors.New("identity id already enrolled under another name")
)

const enrollJpegQuality = 95

// GalleryStore is the directory of labeled reference images.
type GalleryStore struct {
	dir           string
	enrollMaxSize int
	logger        *zap.Logger

	mu sync.Mutex // serializes enrollment
}

func NewGalleryStore(dir string, enrollMaxSize int, logger *zap.Logger) *GalleryStore {
	return &GalleryStore{dir: dir, enrollMaxSize: enrollMaxSize, logger: logger.Named("gallery")}
}

func (g *GalleryStore) Dir() string {
	return g.dir
}

func (g *GalleryStore) ensureDir() error {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return fmt.Errorf("failed to create gallery directory %s: %w", g.dir, err)
	}
	return nil
}

// Entries lists the well-formed gallery images in natural filename order.
// Malformed names are logged and skipped.
func (g *GalleryStore) Entries() ([]models.GalleryEntry, error) {
	if err := g.ensureDir(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(g.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery directory %s: %w", g.dir, err)
	}

	var names []string
	for _, e := range dirEntries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsRasterImage(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	natsort.Sort(names)

	entries := make([]models.GalleryEntry, 0, len(names))
	for _, name := range names {
		identity, err := models.ParseGalleryFilename(name)
		if err != nil {
			g.logger.Warn("skipping gallery image", zap.String("file", name), zap.Error(err))
			continue
		}
		entries = append(entries, models.GalleryEntry{Identity: identity, ImagePath: filepath.Join(g.dir, name)})
	}
	return entries, nil
}

// Load reads every gallery image, detects faces with the training params and
// returns the label table plus one sample per detected face. A missing
// directory is created and yields an empty result. The caller owns the
// returned samples and must CloseSamples them.
func (g *GalleryStore) Load(detector Detector, params config.DetectionParams) (models.LabelTable, []TrainingSample, error) {
	entries, err := g.Entries()
	if err != nil {
		return nil, nil, err
	}

	labels := models.LabelTable{}
	var samples []TrainingSample
	imagesWithoutFaces := 0

	for _, entry := range entries {
		gray := gocv.IMRead(entry.ImagePath, gocv.IMReadGrayScale)
		if gray.Empty() {
			g.logger.Warn("skipping unreadable gallery image", zap.String("file", entry.ImagePath))
			gray.Close()
			continue
		}

		identity := entry.Identity
		if existing, ok := labels[identity.ID]; ok {
			if existing.DisplayName != identity.DisplayName {
				g.logger.Warn("conflicting names for identity id, keeping the first",
					zap.Int("id", identity.ID),
					zap.String("kept", existing.DisplayName),
					zap.String("ignored", identity.DisplayName),
					zap.String("file", entry.ImagePath))
			}
			identity = existing
		} else {
			labels[identity.ID] = identity
		}

		bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
		faces := detector.Detect(gray, params)
		found := 0
		for _, rect := range faces {
			r := rect.Intersect(bounds)
			if r.Empty() {
				continue
			}
			region := gray.Region(r)
			samples = append(samples, TrainingSample{Identity: identity, Face: region.Clone()})
			region.Close()
			found++
		}
		gray.Close()

		if found == 0 {
			imagesWithoutFaces++
			g.logger.Debug("no face found in gallery image", zap.String("file", entry.ImagePath))
		}
	}

	g.logger.Info("gallery loaded",
		zap.String("dir", g.dir),
		zap.Int("images", len(entries)),
		zap.Int("identities", len(labels)),
		zap.Int("samples", len(samples)),
		zap.Int("images_without_faces", imagesWithoutFaces))
	return labels, samples, nil
}

// Enroll stores a new reference image for identity. The image is decoded,
// EXIF-oriented, bounded to the configured size and written as JPEG under the
// next free sample name.
func (g *GalleryStore) Enroll(identity models.Identity, r io.Reader) (models.GalleryEntry, error) {
	name := strings.TrimSpace(identity.DisplayName)
	if name == "" || strings.ContainsAny(name, "./\\") {
		return models.GalleryEntry{}, fmt.Errorf("%w: display name %q must be non-empty and contain no '.', '/' or '\\'", ErrInvalidIdentity, identity.DisplayName)
	}
	identity.DisplayName = name

	g.mu.Lock()
	defer g.mu.Unlock()

	entries, err := g.Entries()
	if err != nil {
		return models.GalleryEntry{}, err
	}
	for _, e := range entries {
		if e.Identity.ID == identity.ID && e.Identity.DisplayName != identity.DisplayName {
			return models.GalleryEntry{}, fmt.Errorf("%w: id %d is %q", ErrIdentityConflict, identity.ID, e.Identity.DisplayName)
		}
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return models.GalleryEntry{}, fmt.Errorf("failed to decode enrollment image: %w", err)
	}
	if g.enrollMaxSize > 0 {
		img = imaging.Fit(img, g.enrollMaxSize, g.enrollMaxSize, imaging.Lanczos)
	}

	var path string
	for sample := 1; ; sample++ {
		path = filepath.Join(g.dir, models.GalleryFilename(identity, sample, "jpg"))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(enrollJpegQuality)); err != nil {
		return models.GalleryEntry{}, fmt.Errorf("failed to save enrollment image %s: %w", path, err)
	}

	g.logger.Info("enrolled gallery image", zap.Stringer("identity", identity), zap.String("file", path))
	return models.GalleryEntry{Identity: identity, ImagePath: path}, nil
}
