package track

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestChromaticStrategyFindsWhiteBall(t *testing.T) {
	frame := blankFrame(640, 480)
	defer frame.Close()
	drawBall(&frame, 320, 240)

	cand := chromaticStrategy{cfg: DefaultConfig()}.Detect(frame, nil)
	require.NotNil(t, cand)
	assert.InDelta(t, 320, cand.X, 3)
	assert.InDelta(t, 240, cand.Y, 3)
	assert.Greater(t, cand.Confidence, 0.3)
	assert.Equal(t, "chromatic", cand.Method)
}

func TestChromaticStrategyIgnoresOversizedRegions(t *testing.T) {
	frame := blankFrame(640, 480)
	defer frame.Close()
	//A 100x100 white block is far above the chromatic area ceiling.
	gocv.Rectangle(&frame, image.Rect(270, 190, 370, 290), color.RGBA{R: 255, G: 255, B: 255}, -1)

	assert.Nil(t, chromaticStrategy{cfg: DefaultConfig()}.Detect(frame, nil))
}

func TestMotionStrategyRequiresPreviousFrame(t *testing.T) {
	frame := blankFrame(640, 480)
	defer frame.Close()
	drawBall(&frame, 320, 240)

	assert.Nil(t, motionStrategy{cfg: DefaultConfig()}.Detect(frame, nil))
}

func TestMotionStrategyFindsMovingBlob(t *testing.T) {
	prev := blankFrame(640, 480)
	defer prev.Close()
	drawBall(&prev, 200, 240)

	frame := blankFrame(640, 480)
	defer frame.Close()
	drawBall(&frame, 215, 240)

	cand := motionStrategy{cfg: DefaultConfig()}.Detect(frame, &prev)
	require.NotNil(t, cand)
	assert.InDelta(t, 207, cand.X, 20)
	assert.InDelta(t, 240, cand.Y, 15)
	assert.Equal(t, "motion", cand.Method)
}

func TestDetectBallFindsCenteredBall(t *testing.T) {
	frame := blankFrame(640, 480)
	defer frame.Close()
	drawBall(&frame, 320, 240)

	cfg := DefaultConfig()
	cand := detectBall(frame, nil, defaultStrategies(cfg), cfg)
	require.NotNil(t, cand)
	assert.InDelta(t, 320, cand.X, 3)
	assert.InDelta(t, 240, cand.Y, 3)
}

func TestDetectBallRejectsFrameEdges(t *testing.T) {
	frame := blankFrame(640, 480)
	defer frame.Close()
	drawBall(&frame, 15, 240) //inside the 20px margin

	cfg := DefaultConfig()
	assert.Nil(t, detectBall(frame, nil, defaultStrategies(cfg), cfg))
}

func TestDetectBallRejectsVerticalExclusionBands(t *testing.T) {
	frame := blankFrame(640, 480)
	defer frame.Close()
	drawBall(&frame, 320, 30) //above the top 10% band (48px)

	cfg := DefaultConfig()
	assert.Nil(t, detectBall(frame, nil, defaultStrategies(cfg), cfg))
}

func TestDetectBallSkipsEmptyFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	cfg := DefaultConfig()
	assert.Nil(t, detectBall(empty, nil, defaultStrategies(cfg), cfg))
}

func TestDetectFigureSearchesOneHalf(t *testing.T) {
	frame := blankFrame(640, 480)
	defer frame.Close()
	//A bowler-sized blob on the left side only.
	gocv.Rectangle(&frame, image.Rect(50, 100, 150, 300), color.RGBA{R: 200, G: 200, B: 200}, -1)

	cfg := DefaultConfig()
	bowler := detectFigure(frame, true, cfg)
	require.NotNil(t, bowler)
	assert.InDelta(t, 100, bowler.X, 10)
	assert.InDelta(t, 200, bowler.Y, 10)

	assert.Nil(t, detectFigure(frame, false, cfg))
}
