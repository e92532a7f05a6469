package track

import (
	"errors"
	"log"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"
)

//Fixed estimator noise. These are dt-normalised variances for the constant
//velocity model; they are deliberately not configuration, matching the fixed
//covariances of the source heuristics.
const (
	processNoisePos  = 1e-4
	processNoiseVel  = 1e-3
	measurementNoise = 1e-3
	maxEstimatorDt   = 0.5
)

var errEstimatorDiverged = errors.New("track: state estimator diverged")

//axisState is one position/velocity pair with its 2x2 covariance (row-major).
type axisState struct {
	pos float64
	vel float64
	p   [4]float64
}

//velocityEstimator is the explicit recursive state estimator the
//post-processor owns: a 6-dim constant-velocity state (position and velocity
//per axis). The axes are uncorrelated under the fixed diagonal noise model,
//so the 6x6 covariance is carried as three independent 2x2 blocks.
type velocityEstimator struct {
	axes   [3]axisState
	lastT  float64
	primed bool
}

func newVelocityEstimator() *velocityEstimator {
	return &velocityEstimator{}
}

//Step runs one predict+correct cycle against a measured position and returns
//the smoothed position estimate. The first measurement seeds the state and is
//returned unchanged.
func (e *velocityEstimator) Step(m r3.Vector, t float64) (r3.Vector, error) {
	if !e.primed {
		for i, z := range [3]float64{m.X, m.Y, m.Z} {
			e.axes[i] = axisState{pos: z, p: [4]float64{1, 0, 0, 1}}
		}
		e.lastT = t
		e.primed = true
		return m, nil
	}

	dt := t - e.lastT
	if dt <= 0 {
		return r3.Vector{}, errEstimatorDiverged
	}
	if dt > maxEstimatorDt {
		dt = maxEstimatorDt
	}
	e.lastT = t

	out := [3]float64{}
	for i, z := range [3]float64{m.X, m.Y, m.Z} {
		a := &e.axes[i]

		//Predict: x' = F x, P' = F P F^T + Q with F = [1 dt; 0 1].
		a.pos += a.vel * dt
		p00 := a.p[0] + dt*(a.p[1]+a.p[2]) + dt*dt*a.p[3] + processNoisePos*dt
		p01 := a.p[1] + dt*a.p[3]
		p10 := a.p[2] + dt*a.p[3]
		p11 := a.p[3] + processNoiseVel*dt

		//Correct with the scalar measurement, H = [1 0].
		s := p00 + measurementNoise
		if s <= 0 || math.IsNaN(s) {
			return r3.Vector{}, errEstimatorDiverged
		}
		k0 := p00 / s
		k1 := p10 / s
		residual := z - a.pos
		a.pos += k0 * residual
		a.vel += k1 * residual

		a.p[0] = (1 - k0) * p00
		a.p[1] = (1 - k0) * p01
		a.p[2] = p10 - k1*p00
		a.p[3] = p11 - k1*p01

		if math.IsNaN(a.pos) || math.IsInf(a.pos, 0) || math.IsNaN(a.vel) || math.IsInf(a.vel, 0) {
			return r3.Vector{}, errEstimatorDiverged
		}
		out[i] = a.pos
	}
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}, nil
}

//sortTrajectory orders samples by timestamp and drops duplicates so the
//strictly-increasing-T invariant holds regardless of what upstream produced.
func sortTrajectory(tr Trajectory) Trajectory {
	sorted := make(Trajectory, len(tr))
	copy(sorted, tr)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].T < sorted[j].T })

	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s.T <= out[len(out)-1].T {
			continue
		}
		out = append(out, s)
	}
	return out
}

//smoothTrajectory runs the recursive estimator over the sorted trajectory.
//Timestamps, confidences and provenance are preserved; only positions move.
//On estimator failure it returns the sorted but unsmoothed trajectory and
//false, never an error: a rough trajectory beats an aborted run.
func smoothTrajectory(tr Trajectory) (Trajectory, bool) {
	sorted := sortTrajectory(tr)
	if len(sorted) < 2 {
		return sorted, len(sorted) > 0
	}

	est := newVelocityEstimator()
	out := make(Trajectory, len(sorted))
	for i, s := range sorted {
		pos, err := est.Step(s.Pos, s.T)
		if err != nil {
			log.Printf("smoothTrajectory: Error at sample %d, got '%v'. Falling back to raw trajectory.", i, err)
			return sorted, false
		}
		out[i] = s
		out[i].Pos = pos
	}
	return out, true
}

//filterOutliers removes samples whose incoming step is a statistical outlier
//in displacement, speed or acceleration (mean + 3 sigma per metric). The
//first sample is always kept. Degenerate statistics leave the trajectory
//untouched.
func filterOutliers(tr Trajectory) Trajectory {
	if len(tr) < 4 {
		return tr
	}

	n := len(tr)
	displacement := make([]float64, n) //index i: step into sample i
	speed := make([]float64, n)
	accel := make([]float64, n)
	for i := 1; i < n; i++ {
		dt := tr[i].T - tr[i-1].T
		if dt <= 0 {
			return tr
		}
		displacement[i] = tr[i].Pos.Sub(tr[i-1].Pos).Norm()
		speed[i] = displacement[i] / dt
		if i >= 2 {
			accel[i] = math.Abs(speed[i]-speed[i-1]) / dt
		}
	}

	dispLimit, ok1 := sigmaLimit(displacement[1:])
	speedLimit, ok2 := sigmaLimit(speed[1:])
	accelLimit, ok3 := sigmaLimit(accel[2:])
	if !ok1 || !ok2 || !ok3 {
		return tr
	}

	out := make(Trajectory, 0, n)
	out = append(out, tr[0])
	dropped := 0
	for i := 1; i < n; i++ {
		if displacement[i] > dispLimit || speed[i] > speedLimit || (i >= 2 && accel[i] > accelLimit) {
			dropped++
			continue
		}
		out = append(out, tr[i])
	}
	if dropped > 0 {
		log.Printf("filterOutliers: dropped %d of %d samples", dropped, n)
	}
	return out
}

//sigmaLimit returns mean + 3 sigma of the values, reporting failure on
//degenerate input.
func sigmaLimit(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(mean) || math.IsNaN(std) {
		return 0, false
	}
	return mean + 3*std, true
}
