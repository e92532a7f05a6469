package track

import (
	"image"
	"time"

	"github.com/golang/geo/r3"
)

//Decision labels emitted by the LBW analyzer.
const (
	DecisionOut    = "OUT"
	DecisionNotOut = "NOT_OUT"
)

//BallSample is one accepted or predicted ball position in normalized pitch
//coordinates. X is left/right across the pitch, Y runs along the pitch towards
//the stumps, Z is height. All three are clamped to their valid ranges by the
//projector.
type BallSample struct {
	Pos        r3.Vector `json:"pos"`
	T          float64   `json:"t"`
	Confidence float64   `json:"confidence"`
	Predicted  bool      `json:"predicted"`
}

//Trajectory is the time-ordered ball path of a single tracking run. T is
//strictly increasing. A trajectory is owned by exactly one run and never
//shared while being built.
type Trajectory []BallSample

//Timestamps returns the sample timestamps in order.
func (tr Trajectory) Timestamps() []float64 {
	ts := make([]float64, len(tr))
	for i, s := range tr {
		ts[i] = s.T
	}
	return ts
}

//Confidences returns the per-sample confidences in order.
func (tr Trajectory) Confidences() []float64 {
	cs := make([]float64, len(tr))
	for i, s := range tr {
		cs[i] = s.Confidence
	}
	return cs
}

//DetectionCandidate is a single strategy's proposed ball location for one
//frame, in pixel coordinates, plus the shape metrics the strategy scored it
//with.
type DetectionCandidate struct {
	X           float64
	Y           float64
	Confidence  float64
	Method      string
	Area        float64
	Circularity float64
	AspectRatio float64
}

//StumpsLocation is the detected wicket position. It is resolved once during
//scene calibration and never updated afterwards (static scene assumption).
type StumpsLocation struct {
	PixelX     float64   `json:"pixel_x"`
	PixelY     float64   `json:"pixel_y"`
	Pos        r3.Vector `json:"pos"`
	Confidence float64   `json:"confidence"`
	StumpCount int       `json:"stump_count"`
}

//PitchCalibration holds the pitch boundary found during calibration together
//with the fixed pitch dimensions and the simplified camera model used by the
//projector.
type PitchCalibration struct {
	Bounds        image.Rectangle `json:"bounds"`
	LengthM       float64         `json:"length_m"`
	WidthM        float64         `json:"width_m"`
	FocalLengthPx float64         `json:"focal_length_px"`
	CameraHeightM float64         `json:"camera_height_m"`
	CameraTiltDeg float64         `json:"camera_tilt_deg"`
}

//LbwVerdict is the geometric dismissal evaluation of a single trajectory
//sample against the detected stumps.
type LbwVerdict struct {
	T                float64   `json:"t"`
	Pos              r3.Vector `json:"pos"`
	DistanceToWicket float64   `json:"distance_to_wicket"`
	WouldHitWicket   bool      `json:"would_hit_wicket"`
	Likelihood       float64   `json:"likelihood"`
	Decision         string    `json:"decision"`
}

//DecisionSummary is the advisory delivery-level verdict derived from the
//per-sample series: the sample of closest approach to the stumps stands in
//for the impact point, which the heuristic geometry cannot observe directly.
type DecisionSummary struct {
	T                float64 `json:"t"`
	DistanceToWicket float64 `json:"distance_to_wicket"`
	Decision         string  `json:"decision"`
}

//TrackingResult is everything one run produced. It is built incrementally by
//Run, finalized by the post-processing and decision steps, and immutable
//afterwards; ownership passes to the persistence collaborator.
type TrackingResult struct {
	VideoID    string            `json:"video_id"`
	Trajectory Trajectory        `json:"trajectory"`
	Stumps     *StumpsLocation   `json:"stumps,omitempty"`
	Pitch      *PitchCalibration `json:"pitch,omitempty"`
	Bowler     *image.Point      `json:"bowler,omitempty"`
	Batter     *image.Point      `json:"batter,omitempty"`
	Verdicts   []LbwVerdict      `json:"verdicts,omitempty"`
	Summary    *DecisionSummary  `json:"summary,omitempty"`
	Confidence float64           `json:"confidence"`

	//BallDetected is true exactly when the trajectory is non-empty.
	BallDetected bool `json:"ball_detected"`
	//Smoothed is false when post-processing degraded to the raw trajectory.
	Smoothed bool `json:"smoothed"`

	//Debug counters.
	FramesRead     int `json:"frames_read"`
	FramesWithBall int `json:"frames_with_ball"`
	Rejected       int `json:"rejected"`
	Predicted      int `json:"predicted"`

	ProcessingTime time.Duration `json:"processing_time"`
}
