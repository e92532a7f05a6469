package track

import (
	"context"
	"fmt"
	"log"
	"time"

	"gocv.io/x/gocv"
)

//Run executes one full tracking run over the source: a single calibration
//pass, then one sequential frame pass bounded by the configured frame cap,
//then whole-trajectory post-processing and decision analysis. The run is
//synchronous and single-threaded and owns all of its state; callers may run
//any number of runs concurrently as long as each gets its own source.
//
//ctx is the abort hook: it is checked between frame iterations, never during
//a blocking read. Only input errors are fatal; everything after a readable
//source recovers locally. A run that completes without a single ball
//detection returns a valid empty result, not an error.
func Run(ctx context.Context, src FrameSource, videoID string, cfg Config) (*TrackingResult, error) {
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src.FrameCount() <= 0 {
		return nil, fmt.Errorf("%w: video %s", ErrNoFrames, videoID)
	}
	width, height := src.Resolution()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: video %s: %dx%d", ErrBadResolution, videoID, width, height)
	}
	fps := src.FPS()
	if fps <= 0 {
		return nil, fmt.Errorf("%w: video %s: fps=%v", ErrBadSource, videoID, fps)
	}

	result := &TrackingResult{VideoID: videoID}
	result.Pitch, result.Stumps = calibrateScene(src, cfg)
	if err := src.Seek(0); err != nil {
		return nil, fmt.Errorf("%w: video %s: %v", ErrBadSource, videoID, err)
	}

	strategies := defaultStrategies(cfg)
	gate := newMotionGate(cfg)

	frame := gocv.NewMat()
	defer frame.Close()
	prev := gocv.NewMat()
	defer prev.Close()
	havePrev := false

	maxFrames := src.FrameCount()
	if cfg.MaxFrames < maxFrames {
		maxFrames = cfg.MaxFrames
	}

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("track: run aborted for video %s: %w", videoID, err)
		}
		if !src.Read(&frame) {
			break
		}
		result.FramesRead++
		t := float64(i) / fps

		if frame.Empty() {
			//Corrupted frame: only this frame's contribution is lost.
			log.Printf("Run: empty frame %d in video %s, skipping", i, videoID)
			predictMissedFrame(gate, result, t, width, height, cfg)
			continue
		}

		var prevPtr *gocv.Mat
		if havePrev {
			prevPtr = &prev
		}

		if p := detectFigure(frame, true, cfg); p != nil {
			result.Bowler = p
		}
		if p := detectFigure(frame, false, cfg); p != nil {
			result.Batter = p
		}

		cand := detectBall(frame, prevPtr, strategies, cfg)
		switch {
		case cand == nil || cand.Confidence < cfg.MinDetectionConfidence:
			predictMissedFrame(gate, result, t, width, height, cfg)
		case gate.Observe(cand.X, cand.Y, t, cand.Confidence):
			result.Trajectory = append(result.Trajectory, BallSample{
				Pos:        pixelTo3D(cand.X, cand.Y, width, height, cfg),
				T:          t,
				Confidence: cand.Confidence,
			})
			result.FramesWithBall++
		default:
			//A rejected detection is treated like a frame without one: the
			//implausible position contributes nothing, but the gap it leaves
			//can still be bridged.
			result.Rejected++
			predictMissedFrame(gate, result, t, width, height, cfg)
		}

		frame.CopyTo(&prev)
		havePrev = true
	}

	finalize(result, width, height, cfg)
	result.ProcessingTime = time.Since(start)
	log.Printf("Run: video %s: %d frames, %d samples (%d predicted, %d rejected), confidence %.2f, took %v",
		videoID, result.FramesRead, len(result.Trajectory), result.Predicted, result.Rejected,
		result.Confidence, result.ProcessingTime)
	return result, nil
}

//predictMissedFrame appends a synthesized sample for a frame without an
//accepted detection, when the trajectory is established enough to
//extrapolate.
func predictMissedFrame(gate *motionGate, result *TrackingResult, t float64, width, height int, cfg Config) {
	if len(result.Trajectory) == 0 {
		return
	}
	x, y, conf, ok := gate.Predict(t)
	if !ok {
		return
	}
	result.Trajectory = append(result.Trajectory, BallSample{
		Pos:        pixelTo3D(x, y, width, height, cfg),
		T:          t,
		Confidence: conf,
		Predicted:  true,
	})
	result.Predicted++
}

//finalize runs the whole-trajectory passes and seals the result.
func finalize(result *TrackingResult, width, height int, cfg Config) {
	if len(result.Trajectory) > 0 {
		smoothed, ok := smoothTrajectory(result.Trajectory)
		result.Smoothed = ok
		if ok {
			smoothed = filterOutliers(smoothed)
		}
		result.Trajectory = smoothed
	}

	result.BallDetected = len(result.Trajectory) > 0
	result.Verdicts = analyzeLbw(result.Trajectory, result.Stumps, result.Batter, width, height, cfg)
	result.Summary = summarizeDecision(result.Verdicts)
	result.Confidence = trajectoryConfidence(result.Trajectory)
}
