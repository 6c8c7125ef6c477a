package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DetectorBackendHaar = "haar"
	DetectorBackendDNN  = "dnn"

	AttendanceStoreFile   = "file"
	AttendanceStoreSQLite = "sqlite"
)

const (
	defaultTrainScaleFactor  = 1.1
	defaultTrainMinNeighbors = 5
	defaultLiveScaleFactor   = 1.2
	defaultLiveMinNeighbors  = 5
	defaultMinFaceSize       = 30
	defaultMatchThreshold    = 100.0
	defaultFrameRate         = 30
	defaultProcessEveryN     = 3
	defaultEnrollMaxSize     = 800
)

// DetectionParams are the detector knobs for one code path. Training and live
// recognition each carry their own set.
type DetectionParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinFaceSize  int
}

type Config struct {
	// labeled reference images, "<id>.<name>.<ext>"
	GalleryPath string

	// attendance persistence
	AttendanceStore   string // file or sqlite
	AttendanceLogPath string // daily text logs (file store)
	DatabasePath      string // sqlite store

	// face detection
	DetectorBackend      string
	HaarCascadePath      string
	FaceDNNNetConfigPath string
	FaceDNNNetModelPath  string
	TrainDetection       DetectionParams
	LiveDetection        DetectionParams

	// classification
	MatchThreshold float64

	// capture loop
	CameraSource        string
	CameraMirror        bool
	FrameRate           int
	ProcessEveryNFrames int

	// attendance session
	RetryFailedWrites bool

	// gallery enrollment
	EnrollMaxSize int

	// http surface
	HTTPAddr    string
	CORSOrigins []string

	LogDevelopment bool

	// Warnings lists environment values that were ignored in favour of
	// defaults.
	Warnings []string
}

// FrameInterval is the capture tick period.
func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

// loader collects warnings about ignored values; there is no logger yet when
// configuration is read.
type loader struct {
	warnings []string
}

func (l *loader) warnf(format string, args ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (l *loader) getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		l.warnf("invalid %s '%s', using default %d: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func (l *loader) getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		l.warnf("invalid %s '%s', using default %g: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func (l *loader) getEnvBoolOrDefault(envVar string, defaultVal bool) bool {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		l.warnf("invalid %s '%s', using default %t: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	l := &loader{}
	gallery, err := filepath.Abs(getEnvOrDefault("GALLERY_PATH", "students"))
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for gallery: %w", err)
	}
	logPath, err := filepath.Abs(getEnvOrDefault("ATTENDANCE_LOG_PATH", "attendance_logs"))
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for attendance logs: %w", err)
	}

	minFace := l.getEnvIntOrDefault("MIN_FACE_SIZE", defaultMinFaceSize)

	cfg := Config{
		GalleryPath:          gallery,
		AttendanceStore:      strings.ToLower(getEnvOrDefault("ATTENDANCE_STORE", AttendanceStoreFile)),
		AttendanceLogPath:    logPath,
		DatabasePath:         getEnvOrDefault("DATABASE_PATH", "attendance.db"),
		DetectorBackend:      strings.ToLower(getEnvOrDefault("DETECTOR_BACKEND", DetectorBackendHaar)),
		HaarCascadePath:      getEnvOrDefault("HAAR_CASCADE_PATH", "haarcascade_frontalface_default.xml"),
		FaceDNNNetConfigPath: getEnvOrDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt"),
		FaceDNNNetModelPath:  getEnvOrDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel"),
		TrainDetection: DetectionParams{
			ScaleFactor:  l.getEnvFloatOrDefault("TRAIN_SCALE_FACTOR", defaultTrainScaleFactor),
			MinNeighbors: l.getEnvIntOrDefault("TRAIN_MIN_NEIGHBORS", defaultTrainMinNeighbors),
			MinFaceSize:  minFace,
		},
		LiveDetection: DetectionParams{
			ScaleFactor:  l.getEnvFloatOrDefault("LIVE_SCALE_FACTOR", defaultLiveScaleFactor),
			MinNeighbors: l.getEnvIntOrDefault("LIVE_MIN_NEIGHBORS", defaultLiveMinNeighbors),
			MinFaceSize:  minFace,
		},
		MatchThreshold:      l.getEnvFloatOrDefault("MATCH_THRESHOLD", defaultMatchThreshold),
		CameraSource:        getEnvOrDefault("CAMERA_SOURCE", "0"),
		CameraMirror:        l.getEnvBoolOrDefault("CAMERA_MIRROR", true),
		FrameRate:           l.getEnvIntOrDefault("FRAME_RATE", defaultFrameRate),
		ProcessEveryNFrames: l.getEnvIntOrDefault("PROCESS_EVERY_N_FRAMES", defaultProcessEveryN),
		RetryFailedWrites:   l.getEnvBoolOrDefault("RETRY_FAILED_WRITES", false),
		EnrollMaxSize:       l.getEnvIntOrDefault("ENROLL_MAX_SIZE", defaultEnrollMaxSize),
		HTTPAddr:            getEnvOrDefault("HTTP_ADDR", ":8080"),
		CORSOrigins:         splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:5173")),
		LogDevelopment:      l.getEnvBoolOrDefault("LOG_DEVELOPMENT", false),
	}
	cfg.Warnings = l.warnings

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the rest of the system cannot work with.
func (c Config) Validate() error {
	switch c.AttendanceStore {
	case AttendanceStoreFile, AttendanceStoreSQLite:
	default:
		return fmt.Errorf("unknown ATTENDANCE_STORE %q (want %s or %s)", c.AttendanceStore, AttendanceStoreFile, AttendanceStoreSQLite)
	}
	switch c.DetectorBackend {
	case DetectorBackendHaar, DetectorBackendDNN:
	default:
		return fmt.Errorf("unknown DETECTOR_BACKEND %q (want %s or %s)", c.DetectorBackend, DetectorBackendHaar, DetectorBackendDNN)
	}
	for name, p := range map[string]DetectionParams{"training": c.TrainDetection, "live": c.LiveDetection} {
		if p.ScaleFactor <= 1.0 {
			return fmt.Errorf("%s scale factor must be greater than 1.0, got %g", name, p.ScaleFactor)
		}
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %d", c.FrameRate)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
