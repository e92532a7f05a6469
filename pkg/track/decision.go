package track

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

//analyzeLbw evaluates every trajectory sample against the detected stumps and
//returns the per-sample verdict series. An empty trajectory or unknown stumps
//yields an empty list, never an error. The batter position, when known,
//gates the likelihood: only samples whose line lies between batter and stumps
//carry a non-zero likelihood.
func analyzeLbw(tr Trajectory, stumps *StumpsLocation, batter *image.Point, width, height int, cfg Config) []LbwVerdict {
	if len(tr) == 0 || stumps == nil {
		return nil
	}

	var batterX float64
	haveBatter := batter != nil
	if haveBatter {
		batterX = pixelTo3D(float64(batter.X), float64(batter.Y), width, height, cfg).X
	}

	verdicts := make([]LbwVerdict, 0, len(tr))
	for _, s := range tr {
		distance := math.Hypot(s.Pos.X-stumps.Pos.X, s.Pos.Y-stumps.Pos.Y)
		wouldHit := distance < cfg.HitTolerance

		likelihood := 0.0
		if haveBatter && between(s.Pos.X, batterX, stumps.Pos.X) {
			if wouldHit {
				likelihood = 0.8
			} else {
				likelihood = 0.3
			}
		}

		decision := DecisionNotOut
		if wouldHit {
			decision = DecisionOut
		}

		verdicts = append(verdicts, LbwVerdict{
			T:                s.T,
			Pos:              s.Pos,
			DistanceToWicket: distance,
			WouldHitWicket:   wouldHit,
			Likelihood:       likelihood,
			Decision:         decision,
		})
	}
	return verdicts
}

func between(v, a, b float64) bool {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

//summarizeDecision condenses the per-sample series into one advisory verdict
//taken at the point of closest approach to the stumps. The per-sample series
//stays the source of truth; this exists because a review needs a single
//answer and the heuristic geometry cannot observe the actual impact point.
func summarizeDecision(verdicts []LbwVerdict) *DecisionSummary {
	if len(verdicts) == 0 {
		return nil
	}
	closest := verdicts[0]
	for _, v := range verdicts[1:] {
		if v.DistanceToWicket < closest.DistanceToWicket {
			closest = v
		}
	}
	return &DecisionSummary{
		T:                closest.T,
		DistanceToWicket: closest.DistanceToWicket,
		Decision:         closest.Decision,
	}
}

//trajectoryConfidence scores the whole trajectory: 60% mean sample confidence
//and 40% speed consistency (one minus the coefficient of variation of the
//step speeds, floored at zero). Empty trajectories score 0 and single-sample
//trajectories score the fixed 0.5.
func trajectoryConfidence(tr Trajectory) float64 {
	switch len(tr) {
	case 0:
		return 0
	case 1:
		return 0.5
	}

	meanConf := stat.Mean(tr.Confidences(), nil)

	speeds := make([]float64, 0, len(tr)-1)
	for i := 1; i < len(tr); i++ {
		dt := tr[i].T - tr[i-1].T
		if dt <= 0 {
			continue
		}
		speeds = append(speeds, tr[i].Pos.Sub(tr[i-1].Pos).Norm()/dt)
	}

	consistency := speedConsistency(speeds)
	return clamp(0.6*meanConf+0.4*consistency, 0, 1)
}

//speedConsistency is 1 - min(1, stdev/mean) over the step speeds. A single
//step has no spread and counts as perfectly consistent, as does a stationary
//trajectory.
func speedConsistency(speeds []float64) float64 {
	if len(speeds) == 0 {
		return 0
	}
	if len(speeds) == 1 {
		return 1
	}
	mean, std := stat.MeanStdDev(speeds, nil)
	if mean <= 1e-12 {
		if std <= 1e-12 {
			return 1
		}
		return 0
	}
	return 1 - math.Min(1, std/mean)
}
