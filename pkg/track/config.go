package track

import (
	"fmt"

	"github.com/spf13/viper"
)

//ColorRange is one inclusive HSV segment used by the chromatic detector.
//Hue follows the OpenCV convention (0-180).
type ColorRange struct {
	HueLow, HueHigh float64
	SatLow, SatHigh float64
	ValLow, ValHigh float64
}

//Config is the single immutable configuration value a tracking run receives.
//The pipeline reads nothing from ambient globals; callers build a Config
//(usually via ConfigFromViper) and pass it to Run.
type Config struct {
	//Ball geometry and detection.
	MinBallRadiusPx    int
	MaxBallRadiusPx    int
	BallColors         []ColorRange
	ChromaticMinAreaPx float64
	ChromaticMaxAreaPx float64
	MotionMinAreaPx    float64
	MotionMaxAreaPx    float64
	MinAspectRatio     float64
	MaxAspectRatio     float64
	MinCircularity     float64

	//Fusion and validation.
	FusionConfidenceFloor float64
	FrameMarginPx         float64
	VerticalExclusionFrac float64

	//Temporal consistency.
	MinDetectionConfidence   float64
	MaxBallSpeedPxPerSec     float64
	PredictionTolerancePx    float64
	PredictedConfidenceDecay float64

	//Run bounds.
	MaxFrames int

	//Pitch and camera model.
	PitchLengthM  float64
	PitchWidthM   float64
	FocalLengthPx float64
	CameraHeightM float64
	CameraTiltDeg float64
	PitchColor    ColorRange
	PitchMinAreaPx float64

	//Stump detection. Pixel thresholds here are resolution dependent; they
	//were tuned against 640x480 footage and must be rescaled by callers
	//working at other resolutions.
	StumpMinAreaPx          float64
	StumpMaxAreaPx          float64
	StumpGroupingDistancePx float64
	StumpExpectedSpacingPx  float64
	StumpMinGroupScore      float64

	//Decision geometry, in normalized pitch units (~1 unit == half frame).
	HitTolerance float64
}

//DefaultConfig returns the tuning the heuristics were calibrated with.
func DefaultConfig() Config {
	return Config{
		MinBallRadiusPx: 3,
		MaxBallRadiusPx: 15,
		BallColors: []ColorRange{
			//White ball: any hue, low saturation, bright.
			{HueLow: 0, HueHigh: 180, SatLow: 0, SatHigh: 30, ValLow: 200, ValHigh: 255},
			//Red ball, lower hue wrap.
			{HueLow: 0, HueHigh: 10, SatLow: 120, SatHigh: 255, ValLow: 70, ValHigh: 255},
			//Red ball, upper hue wrap.
			{HueLow: 170, HueHigh: 180, SatLow: 120, SatHigh: 255, ValLow: 70, ValHigh: 255},
		},
		ChromaticMinAreaPx: 15,
		ChromaticMaxAreaPx: 1500,
		MotionMinAreaPx:    30,
		MotionMaxAreaPx:    3000,
		MinAspectRatio:     0.3,
		MaxAspectRatio:     3.0,
		MinCircularity:     0.4,

		FusionConfidenceFloor: 0.2,
		FrameMarginPx:         20,
		VerticalExclusionFrac: 0.1,

		MinDetectionConfidence:   0.3,
		MaxBallSpeedPxPerSec:     200,
		PredictionTolerancePx:    50,
		PredictedConfidenceDecay: 0.7,

		MaxFrames: 300,

		PitchLengthM:  22.0,
		PitchWidthM:   3.05,
		FocalLengthPx: 1000,
		CameraHeightM: 1.5,
		CameraTiltDeg: 15,
		PitchColor:    ColorRange{HueLow: 35, HueHigh: 85, SatLow: 40, SatHigh: 255, ValLow: 40, ValHigh: 255},
		PitchMinAreaPx: 10000,

		StumpMinAreaPx:          50,
		StumpMaxAreaPx:          5000,
		StumpGroupingDistancePx: 50,
		StumpExpectedSpacingPx:  25,
		StumpMinGroupScore:      0.3,

		HitTolerance: 0.3,
	}
}

//ConfigFromViper builds a Config from the loaded configuration file,
//falling back to the calibrated defaults for any key not present. Keys live
//under the "tracking" tree, e.g. tracking.max-ball-speed.
func ConfigFromViper() Config {
	cfg := DefaultConfig()

	setInt := func(key string, dst *int) {
		if viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}
	setFloat := func(key string, dst *float64) {
		if viper.IsSet(key) {
			*dst = viper.GetFloat64(key)
		}
	}

	setInt("tracking.min-ball-radius", &cfg.MinBallRadiusPx)
	setInt("tracking.max-ball-radius", &cfg.MaxBallRadiusPx)
	setFloat("tracking.min-confidence", &cfg.MinDetectionConfidence)
	setFloat("tracking.max-ball-speed", &cfg.MaxBallSpeedPxPerSec)
	setFloat("tracking.prediction-tolerance", &cfg.PredictionTolerancePx)
	setInt("tracking.max-frames", &cfg.MaxFrames)
	setFloat("tracking.pitch-length", &cfg.PitchLengthM)
	setFloat("tracking.pitch-width", &cfg.PitchWidthM)
	setFloat("tracking.focal-length", &cfg.FocalLengthPx)
	setFloat("tracking.camera-height", &cfg.CameraHeightM)
	setFloat("tracking.camera-tilt", &cfg.CameraTiltDeg)
	setFloat("tracking.stump-min-area", &cfg.StumpMinAreaPx)
	setFloat("tracking.stump-max-area", &cfg.StumpMaxAreaPx)
	setFloat("tracking.stump-grouping-distance", &cfg.StumpGroupingDistancePx)
	setFloat("tracking.stump-expected-spacing", &cfg.StumpExpectedSpacingPx)
	setFloat("tracking.hit-tolerance", &cfg.HitTolerance)

	return cfg
}

//Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.MinBallRadiusPx <= 0 || c.MaxBallRadiusPx <= c.MinBallRadiusPx {
		return fmt.Errorf("config: invalid ball radius bounds [%d, %d]", c.MinBallRadiusPx, c.MaxBallRadiusPx)
	}
	if c.MinDetectionConfidence < 0 || c.MinDetectionConfidence > 1 {
		return fmt.Errorf("config: min detection confidence %v outside [0,1]", c.MinDetectionConfidence)
	}
	if c.MaxBallSpeedPxPerSec <= 0 {
		return fmt.Errorf("config: max ball speed must be positive, got %v", c.MaxBallSpeedPxPerSec)
	}
	if c.PredictionTolerancePx <= 0 {
		return fmt.Errorf("config: prediction tolerance must be positive, got %v", c.PredictionTolerancePx)
	}
	if c.MaxFrames <= 0 {
		return fmt.Errorf("config: frame cap must be positive, got %d", c.MaxFrames)
	}
	if c.PitchLengthM <= 0 || c.PitchWidthM <= 0 {
		return fmt.Errorf("config: invalid pitch dimensions %vx%v", c.PitchLengthM, c.PitchWidthM)
	}
	if c.FocalLengthPx <= 0 {
		return fmt.Errorf("config: focal length must be positive, got %v", c.FocalLengthPx)
	}
	if len(c.BallColors) == 0 {
		return fmt.Errorf("config: at least one ball color range is required")
	}
	return nil
}
