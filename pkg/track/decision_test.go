package track

import (
	"image"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeLbwNeedsTrajectoryAndStumps(t *testing.T) {
	cfg := DefaultConfig()
	stumps := &StumpsLocation{Pos: r3.Vector{X: 0, Y: 0.8}}
	tr := Trajectory{{Pos: r3.Vector{X: 0, Y: 0.5}, T: 0.1}}

	assert.Nil(t, analyzeLbw(nil, stumps, nil, 640, 480, cfg))
	assert.Nil(t, analyzeLbw(tr, nil, nil, 640, 480, cfg))
}

func TestAnalyzeLbwVerdictPerSample(t *testing.T) {
	cfg := DefaultConfig() //hit tolerance 0.3
	stumps := &StumpsLocation{Pos: r3.Vector{X: 0, Y: 0.8}}
	tr := Trajectory{
		{Pos: r3.Vector{X: -0.9, Y: -0.8}, T: 0.0, Confidence: 0.9},
		{Pos: r3.Vector{X: -0.2, Y: 0.3}, T: 0.1, Confidence: 0.9},
		{Pos: r3.Vector{X: 0.1, Y: 0.7}, T: 0.2, Confidence: 0.9},
	}

	verdicts := analyzeLbw(tr, stumps, nil, 640, 480, cfg)
	require.Len(t, verdicts, 3)

	assert.Equal(t, DecisionNotOut, verdicts[0].Decision)
	assert.False(t, verdicts[0].WouldHitWicket)
	assert.Equal(t, DecisionNotOut, verdicts[1].Decision)

	//Last sample passes within sqrt(0.01+0.01) ~ 0.14 of the stumps.
	assert.Equal(t, DecisionOut, verdicts[2].Decision)
	assert.True(t, verdicts[2].WouldHitWicket)
	assert.InDelta(t, 0.1414, verdicts[2].DistanceToWicket, 1e-3)
}

func TestAnalyzeLbwHitInsideTolerance(t *testing.T) {
	cfg := DefaultConfig()
	stumps := &StumpsLocation{Pos: r3.Vector{X: 0, Y: 0.8}}
	tr := Trajectory{{Pos: r3.Vector{X: 0.25, Y: 0.8}, T: 0.1, Confidence: 0.9}}

	verdicts := analyzeLbw(tr, stumps, nil, 640, 480, cfg)
	require.Len(t, verdicts, 1)
	assert.InDelta(t, 0.25, verdicts[0].DistanceToWicket, 1e-9)
	assert.True(t, verdicts[0].WouldHitWicket, "0.25 is inside the 0.3 tolerance")
	assert.Equal(t, DecisionOut, verdicts[0].Decision)

	s := summarizeDecision(verdicts)
	require.NotNil(t, s)
	assert.Equal(t, DecisionOut, s.Decision)
}

func TestAnalyzeLbwLikelihoodGatedByBatter(t *testing.T) {
	cfg := DefaultConfig()
	stumps := &StumpsLocation{Pos: r3.Vector{X: 0.5, Y: 0.8}}
	batter := image.Pt(320, 300) //pixel center column: normalized X = 0

	tr := Trajectory{
		{Pos: r3.Vector{X: -0.8, Y: 0.0}, T: 0.0}, //outside the batter-stumps span
		{Pos: r3.Vector{X: 0.2, Y: 0.0}, T: 0.1},  //between, but misses
		{Pos: r3.Vector{X: 0.4, Y: 0.75}, T: 0.2}, //between, would hit
	}

	verdicts := analyzeLbw(tr, stumps, &batter, 640, 480, cfg)
	require.Len(t, verdicts, 3)
	assert.Equal(t, 0.0, verdicts[0].Likelihood)
	assert.Equal(t, 0.3, verdicts[1].Likelihood)
	assert.Equal(t, 0.8, verdicts[2].Likelihood)

	//Without a batter every likelihood stays zero.
	for _, v := range analyzeLbw(tr, stumps, nil, 640, 480, cfg) {
		assert.Equal(t, 0.0, v.Likelihood)
	}
}

func TestSummarizeDecisionPicksClosestApproach(t *testing.T) {
	assert.Nil(t, summarizeDecision(nil))

	verdicts := []LbwVerdict{
		{T: 0.0, DistanceToWicket: 0.9, Decision: DecisionNotOut},
		{T: 0.1, DistanceToWicket: 0.12, Decision: DecisionOut},
		{T: 0.2, DistanceToWicket: 0.5, Decision: DecisionNotOut},
	}
	s := summarizeDecision(verdicts)
	require.NotNil(t, s)
	assert.Equal(t, 0.1, s.T)
	assert.Equal(t, 0.12, s.DistanceToWicket)
	assert.Equal(t, DecisionOut, s.Decision)
}

func TestTrajectoryConfidenceDegenerateCases(t *testing.T) {
	assert.Equal(t, 0.0, trajectoryConfidence(nil))
	assert.Equal(t, 0.5, trajectoryConfidence(Trajectory{{Confidence: 0.99}}))
}

func TestTrajectoryConfidenceSingleStepIsConsistent(t *testing.T) {
	tr := Trajectory{
		{Pos: r3.Vector{X: 0.0}, T: 0.0, Confidence: 0.8},
		{Pos: r3.Vector{X: 0.1}, T: 0.1, Confidence: 0.6},
	}
	//One step means perfect consistency: 0.6*mean(0.8, 0.6) + 0.4*1.
	assert.InDelta(t, 0.6*0.7+0.4, trajectoryConfidence(tr), 1e-9)
}

func TestTrajectoryConfidencePrefersSteadyMotion(t *testing.T) {
	steady := Trajectory{
		{Pos: r3.Vector{X: 0.0}, T: 0.0, Confidence: 0.8},
		{Pos: r3.Vector{X: 0.1}, T: 0.1, Confidence: 0.8},
		{Pos: r3.Vector{X: 0.2}, T: 0.2, Confidence: 0.8},
		{Pos: r3.Vector{X: 0.3}, T: 0.3, Confidence: 0.8},
	}
	erratic := Trajectory{
		{Pos: r3.Vector{X: 0.0}, T: 0.0, Confidence: 0.8},
		{Pos: r3.Vector{X: 0.5}, T: 0.1, Confidence: 0.8},
		{Pos: r3.Vector{X: 0.51}, T: 0.2, Confidence: 0.8},
		{Pos: r3.Vector{X: 0.9}, T: 0.3, Confidence: 0.8},
	}

	cs, ce := trajectoryConfidence(steady), trajectoryConfidence(erratic)
	assert.Greater(t, cs, ce)
	assert.GreaterOrEqual(t, ce, 0.0)
	assert.LessOrEqual(t, cs, 1.0)
}
