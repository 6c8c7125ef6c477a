package media

import (
	"errors"
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// ErrCameraUnavailable means the capture device could not be opened.
var ErrCameraUnavailable = errors.New("camera unavailable")

// Camera is an opened capture device, video file or stream URL.
type Camera struct {
	capture *gocv.VideoCapture
	source  string
}

// OpenCamera opens a device index ("0") or a file/URL source.
func OpenCamera(source string) (*Camera, error) {
	var (
		capture *gocv.VideoCapture
		err     error
	)
	if index, convErr := strconv.Atoi(source); convErr == nil {
		capture, err = gocv.OpenVideoCapture(index)
	} else {
		capture, err = gocv.OpenVideoCapture(source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCameraUnavailable, source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s did not open", ErrCameraUnavailable, source)
	}
	return &Camera{capture: capture, source: source}, nil
}

// Read grabs the next frame into dst. It reports false on a failed or empty
// read.
func (c *Camera) Read(dst *gocv.Mat) bool {
	return c.capture.Read(dst) && !dst.Empty()
}

func (c *Camera) Source() string {
	return c.source
}

func (c *Camera) Close() error {
	return c.capture.Close()
}
