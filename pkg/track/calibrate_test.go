package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wicketCandidates() []stumpCandidate {
	return []stumpCandidate{
		{x: 300, y: 400, width: 6, height: 60, confidence: 0.9, method: "edge"},
		{x: 325, y: 400, width: 6, height: 60, confidence: 0.9, method: "edge"},
		{x: 350, y: 400, width: 6, height: 60, confidence: 0.9, method: "edge"},
	}
}

func TestGroupStumpCandidatesSplitsOnDistance(t *testing.T) {
	candidates := append(wicketCandidates(),
		stumpCandidate{x: 600, y: 410, confidence: 0.5, method: "line"})

	groups := groupStumpCandidates(candidates, DefaultConfig().StumpGroupingDistancePx)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 3)
	assert.Len(t, groups[1], 1)
}

func TestScoreStumpGroupIdealWicket(t *testing.T) {
	cfg := DefaultConfig()
	//Perfectly aligned bases, 25px apart, three members: every term maxes out.
	score := scoreStumpGroup(wicketCandidates(), cfg)
	assert.InDelta(t, 1.0, score, 1e-9)
	assert.Greater(t, score, cfg.StumpMinGroupScore)

	assert.Equal(t, 0.0, scoreStumpGroup(nil, cfg))
}

func TestScoreStumpGroupPenalizesMisalignment(t *testing.T) {
	cfg := DefaultConfig()
	skewed := wicketCandidates()
	skewed[1].y = 445 //base 45px off the others

	assert.Less(t, scoreStumpGroup(skewed, cfg), scoreStumpGroup(wicketCandidates(), cfg))
}

func TestMergeStumpCandidatesCollapsesDuplicates(t *testing.T) {
	//Two heuristics proposing the same stump, plus a distinct neighbor.
	candidates := []stumpCandidate{
		{x: 298, y: 398, confidence: 0.9, method: "edge"},
		{x: 302, y: 400, confidence: 0.5, method: "color"},
		{x: 325, y: 400, confidence: 0.9, method: "edge"},
	}
	merged := mergeStumpCandidates(candidates, 12.5)
	require.Len(t, merged, 2)
	assert.InDelta(t, 299.4, merged[0].x, 0.1) //confidence-weighted mean
	assert.Equal(t, 0.9, merged[0].confidence)
	assert.Equal(t, 400.0, merged[0].y)
}

func TestResolveStumpsPicksBestGroup(t *testing.T) {
	cfg := DefaultConfig()
	//The aligned triple plus stray vertical clutter far to the right.
	candidates := append(wicketCandidates(),
		stumpCandidate{x: 600, y: 300, confidence: 0.4, method: "line"})

	stumps := resolveStumps(candidates, 640, 480, cfg)
	require.NotNil(t, stumps)
	assert.Equal(t, 3, stumps.StumpCount)
	assert.InDelta(t, 325, stumps.PixelX, 1e-9)
	assert.Equal(t, 400.0, stumps.PixelY)
	assert.Greater(t, stumps.Confidence, cfg.StumpMinGroupScore)
}

func TestResolveStumpsIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	candidates := append(wicketCandidates(),
		stumpCandidate{x: 120, y: 390, confidence: 0.4, method: "line"},
		stumpCandidate{x: 560, y: 420, confidence: 0.4, method: "color"})

	first := resolveStumps(candidates, 640, 480, cfg)
	second := resolveStumps(candidates, 640, 480, cfg)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
}

func TestResolveStumpsNoCandidates(t *testing.T) {
	assert.Nil(t, resolveStumps(nil, 640, 480, DefaultConfig()))
}
