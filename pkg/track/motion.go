package track

import (
	"log"
	"math"
)

//motionGate enforces frame-to-frame velocity plausibility on fused detections
//and synthesizes predicted positions for frames without one. All positions
//here are pixels; projection to pitch coordinates happens after acceptance.
//State is private to one run.
type motionGate struct {
	cfg Config

	count    int
	lastX    float64
	lastY    float64
	lastT    float64
	lastConf float64
	vx       float64
	vy       float64

	//predConf decays multiplicatively across consecutive predictions and
	//resets on the next accepted detection.
	predConf float64
}

func newMotionGate(cfg Config) *motionGate {
	return &motionGate{cfg: cfg}
}

//Observe offers a qualifying detection to the gate. The first detection of a
//run is accepted unconditionally with zero velocity. Later detections are
//rejected when the displacement from the last accepted sample exceeds what
//the configured maximum ball speed allows, or when they stray further from
//the velocity-extrapolated position than the prediction tolerance. Returns
//whether the detection was accepted.
func (g *motionGate) Observe(x, y, t, conf float64) bool {
	if g.count == 0 {
		g.accept(x, y, t, conf, 0, 0)
		return true
	}

	dt := t - g.lastT
	if dt <= 0 {
		log.Printf("motionGate: non-increasing timestamp %v after %v, rejecting", t, g.lastT)
		return false
	}

	dx := x - g.lastX
	dy := y - g.lastY
	displacement := math.Hypot(dx, dy)
	if displacement > dt*g.cfg.MaxBallSpeedPxPerSec {
		log.Printf("motionGate: displacement %.1fpx over %.3fs exceeds max speed %.0fpx/s, rejecting",
			displacement, dt, g.cfg.MaxBallSpeedPxPerSec)
		return false
	}

	//Prediction-error check needs an established velocity, i.e. at least two
	//accepted samples.
	if g.count >= 2 {
		predX := g.lastX + g.vx*dt
		predY := g.lastY + g.vy*dt
		if err := math.Hypot(x-predX, y-predY); err > g.cfg.PredictionTolerancePx {
			log.Printf("motionGate: prediction error %.1fpx exceeds tolerance %.0fpx, rejecting",
				err, g.cfg.PredictionTolerancePx)
			return false
		}
	}

	g.accept(x, y, t, conf, dx/dt, dy/dt)
	return true
}

func (g *motionGate) accept(x, y, t, conf, vx, vy float64) {
	g.lastX, g.lastY, g.lastT = x, y, t
	g.lastConf = conf
	g.vx, g.vy = vx, vy
	g.predConf = conf
	g.count++
}

//Predict synthesizes a position for a frame without an accepted detection by
//linear extrapolation from the last accepted sample and its velocity (which
//requires at least two accepted samples). The returned confidence carries the
//decay factor, compounding over consecutive misses.
func (g *motionGate) Predict(t float64) (x, y, conf float64, ok bool) {
	if g.count < 2 {
		return 0, 0, 0, false
	}
	dt := t - g.lastT
	if dt <= 0 {
		return 0, 0, 0, false
	}
	g.predConf *= g.cfg.PredictedConfidenceDecay
	return g.lastX + g.vx*dt, g.lastY + g.vy*dt, g.predConf, true
}
