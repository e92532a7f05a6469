package track

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

//Input errors. These are the only fatal failures in the pipeline: a run that
//cannot read its source produces nothing at all.
var (
	ErrBadSource     = errors.New("track: could not open video source")
	ErrNoFrames      = errors.New("track: video has no frames")
	ErrBadResolution = errors.New("track: video has unreadable dimensions")
)

//FrameSource supplies decoded frames in order and supports random-access
//seeks for the calibration pass. Read is the only blocking operation of a
//tracking run; it returns false on end-of-stream or on a read failure.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	Seek(frame int) error
	FrameCount() int
	FPS() float64
	Resolution() (width, height int)
	Close() error
}

//VideoFileSource is the gocv-backed FrameSource over a video file.
type VideoFileSource struct {
	cap        *gocv.VideoCapture
	frameCount int
	fps        float64
	width      int
	height     int
}

//OpenVideoFile opens a video file and validates its basic properties.
//Returns a wrapped ErrBadSource, ErrNoFrames or ErrBadResolution when the
//file cannot back a tracking run.
func OpenVideoFile(path string) (*VideoFileSource, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadSource, path, err)
	}

	frameCount := int(cap.Get(gocv.VideoCaptureFrameCount))
	if frameCount <= 0 {
		cap.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, path)
	}

	fps := cap.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		cap.Close()
		return nil, fmt.Errorf("%w: %s: fps=%v", ErrBadSource, path, fps)
	}

	width := int(cap.Get(gocv.VideoCaptureFrameWidth))
	height := int(cap.Get(gocv.VideoCaptureFrameHeight))
	if width <= 0 || height <= 0 {
		cap.Close()
		return nil, fmt.Errorf("%w: %s: %dx%d", ErrBadResolution, path, width, height)
	}

	return &VideoFileSource{
		cap:        cap,
		frameCount: frameCount,
		fps:        fps,
		width:      width,
		height:     height,
	}, nil
}

//Read reads the next frame into dst. Returns false at end of stream.
func (s *VideoFileSource) Read(dst *gocv.Mat) bool {
	return s.cap.Read(dst)
}

//Seek positions the source at the given zero-based frame index.
func (s *VideoFileSource) Seek(frame int) error {
	if frame < 0 || frame >= s.frameCount {
		return fmt.Errorf("track: seek to frame %d outside [0, %d)", frame, s.frameCount)
	}
	s.cap.Set(gocv.VideoCapturePosFrames, float64(frame))
	return nil
}

//FrameCount returns the total number of frames in the source.
func (s *VideoFileSource) FrameCount() int { return s.frameCount }

//FPS returns the source frame rate.
func (s *VideoFileSource) FPS() float64 { return s.fps }

//Resolution returns the frame width and height in pixels.
func (s *VideoFileSource) Resolution() (int, int) { return s.width, s.height }

//Close releases the underlying capture.
func (s *VideoFileSource) Close() error { return s.cap.Close() }
