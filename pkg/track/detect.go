package track

import (
	"image"
	"log"
	"math"

	"gocv.io/x/gocv"
)

//ballStrategy is one independent per-frame ball detector. Detect returns nil
//when the strategy finds no acceptable candidate. prev is nil on the first
//frame of a run.
type ballStrategy interface {
	Name() string
	Detect(frame gocv.Mat, prev *gocv.Mat) *DetectionCandidate
}

//defaultStrategies returns the detector ensemble in fusion order.
func defaultStrategies(cfg Config) []ballStrategy {
	return []ballStrategy{
		chromaticStrategy{cfg: cfg},
		motionStrategy{cfg: cfg},
		shapeStrategy{cfg: cfg},
	}
}

//detectBall runs every strategy on the frame and fuses the results: candidates
//at or below the confidence floor are discarded, the maximum-confidence
//survivor wins, and the winner must pass position validation. A panic inside
//any one strategy counts as "no candidate" for that strategy only.
func detectBall(frame gocv.Mat, prev *gocv.Mat, strategies []ballStrategy, cfg Config) *DetectionCandidate {
	var best *DetectionCandidate
	for _, s := range strategies {
		cand := safeDetect(s, frame, prev)
		if cand == nil || cand.Confidence <= cfg.FusionConfidenceFloor {
			continue
		}
		if best == nil || cand.Confidence > best.Confidence {
			best = cand
		}
	}
	if best == nil {
		return nil
	}
	if !validCandidatePosition(best, frame.Cols(), frame.Rows(), cfg) {
		return nil
	}
	return best
}

func safeDetect(s ballStrategy, frame gocv.Mat, prev *gocv.Mat) (cand *DetectionCandidate) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("detectBall: strategy '%s' failed on frame, got '%v'", s.Name(), r)
			cand = nil
		}
	}()
	if frame.Empty() {
		return nil
	}
	return s.Detect(frame, prev)
}

//validCandidatePosition rejects candidates near the frame edges and inside the
//top/bottom exclusion bands, where scoreboard overlays and crowd motion
//produce most false positives.
func validCandidatePosition(c *DetectionCandidate, width, height int, cfg Config) bool {
	if c.X < cfg.FrameMarginPx || c.X > float64(width)-cfg.FrameMarginPx {
		return false
	}
	if c.Y < cfg.FrameMarginPx || c.Y > float64(height)-cfg.FrameMarginPx {
		return false
	}
	band := float64(height) * cfg.VerticalExclusionFrac
	if c.Y < band || c.Y > float64(height)-band {
		return false
	}
	return true
}

//sizeScore rates an area by its distance from the middle of the accepted
//band: 1 at the center, falling to 0 at the band edges.
func sizeScore(area, minArea, maxArea float64) float64 {
	ideal := (minArea + maxArea) / 2
	span := maxArea - minArea
	if span <= 0 {
		return 0
	}
	return 1 - math.Min(1, math.Abs(area-ideal)/span)
}

//circularity is the isoperimetric ratio 4*pi*A/P^2, capped at 1.
func circularity(area, perimeter float64) float64 {
	if perimeter <= 0 {
		return 0
	}
	c := 4 * math.Pi * area / (perimeter * perimeter)
	if c > 1 {
		c = 1
	}
	return c
}

//maskFillRatio is the fraction of non-zero mask pixels inside rect.
func maskFillRatio(mask gocv.Mat, rect image.Rectangle) float64 {
	px := rect.Dx() * rect.Dy()
	if px <= 0 {
		return 0
	}
	region := mask.Region(rect)
	defer region.Close()
	return float64(gocv.CountNonZero(region)) / float64(px)
}

//chromaticStrategy segments the frame by the configured ball color ranges and
//scores connected regions by size, roundness, color purity and compactness.
type chromaticStrategy struct {
	cfg Config
}

func (s chromaticStrategy) Name() string { return "chromatic" }

func (s chromaticStrategy) Detect(frame gocv.Mat, _ *gocv.Mat) *DetectionCandidate {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	for i, cr := range s.cfg.BallColors {
		m := gocv.NewMat()
		gocv.InRangeWithScalar(hsv,
			gocv.NewScalar(cr.HueLow, cr.SatLow, cr.ValLow, 0),
			gocv.NewScalar(cr.HueHigh, cr.SatHigh, cr.ValHigh, 0), &m)
		if i == 0 {
			m.CopyTo(&mask)
		} else {
			gocv.BitwiseOr(mask, m, &mask)
		}
		m.Close()
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var best *DetectionCandidate
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < s.cfg.ChromaticMinAreaPx || area > s.cfg.ChromaticMaxAreaPx {
			continue
		}
		circ := circularity(area, gocv.ArcLength(contour, true))
		if circ < s.cfg.MinCircularity {
			continue
		}

		rect := gocv.BoundingRect(contour)
		purity := maskFillRatio(mask, rect)
		compact := area / float64(rect.Dx()*rect.Dy())
		conf := 0.3*sizeScore(area, s.cfg.ChromaticMinAreaPx, s.cfg.ChromaticMaxAreaPx) +
			0.3*circ + 0.2*purity + 0.2*compact

		if best != nil && conf <= best.Confidence {
			continue
		}
		cx, cy, _ := gocv.MinEnclosingCircle(contour)
		best = &DetectionCandidate{
			X:           float64(cx),
			Y:           float64(cy),
			Confidence:  conf,
			Method:      s.Name(),
			Area:        area,
			Circularity: circ,
			AspectRatio: float64(rect.Dx()) / math.Max(1, float64(rect.Dy())),
		}
	}

	if best == nil || best.Confidence <= 0.2 {
		return nil
	}
	return best
}

//motionStrategy thresholds the difference against the previous frame and
//scores moving regions. It cannot run on the first frame.
type motionStrategy struct {
	cfg Config
}

func (s motionStrategy) Name() string { return "motion" }

func (s motionStrategy) Detect(frame gocv.Mat, prev *gocv.Mat) *DetectionCandidate {
	if prev == nil || prev.Empty() {
		return nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(frame, *prev, &diff)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(gray, &thresh, 25, 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(thresh, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var best *DetectionCandidate
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < s.cfg.MotionMinAreaPx || area > s.cfg.MotionMaxAreaPx {
			continue
		}
		rect := gocv.BoundingRect(contour)
		if rect.Dy() == 0 {
			continue
		}
		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if aspect < s.cfg.MinAspectRatio || aspect > s.cfg.MaxAspectRatio {
			continue
		}

		circ := circularity(area, gocv.ArcLength(contour, true))
		compact := area / float64(rect.Dx()*rect.Dy())
		shapeScore := 1 - math.Min(1, math.Abs(aspect-1))

		//Motion intensity: mean difference magnitude inside the region.
		region := gray.Region(rect)
		intensity := region.Mean().Val1 / 255
		region.Close()

		conf := 0.25*sizeScore(area, s.cfg.MotionMinAreaPx, s.cfg.MotionMaxAreaPx) +
			0.2*shapeScore + 0.2*circ + 0.15*compact + 0.2*intensity

		if best != nil && conf <= best.Confidence {
			continue
		}
		best = &DetectionCandidate{
			X:           float64(rect.Min.X) + float64(rect.Dx())/2,
			Y:           float64(rect.Min.Y) + float64(rect.Dy())/2,
			Confidence:  conf,
			Method:      s.Name(),
			Area:        area,
			Circularity: circ,
			AspectRatio: aspect,
		}
	}
	return best
}

//shapeStrategy runs a circular fit over the blurred grayscale frame. It has no
//scoring model of its own: any circle inside the radius bounds is reported at
//a fixed confidence.
type shapeStrategy struct {
	cfg Config
}

const shapeStrategyConfidence = 0.5

func (s shapeStrategy) Name() string { return "shape" }

func (s shapeStrategy) Detect(frame gocv.Mat, _ *gocv.Mat) *DetectionCandidate {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(9, 9), 2, 2, gocv.BorderDefault)

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(blurred, &circles, gocv.HoughGradient,
		1.5, float64(frame.Rows())/8, 100, 30, s.cfg.MinBallRadiusPx, s.cfg.MaxBallRadiusPx)

	if circles.Empty() || circles.Cols() == 0 {
		return nil
	}
	v := circles.GetVecfAt(0, 0)
	if len(v) < 3 {
		return nil
	}
	radius := float64(v[2])
	return &DetectionCandidate{
		X:           float64(v[0]),
		Y:           float64(v[1]),
		Confidence:  shapeStrategyConfidence,
		Method:      s.Name(),
		Area:        math.Pi * radius * radius,
		Circularity: 1,
		AspectRatio: 1,
	}
}

//detectFigure is the shared bowler/batter heuristic: the largest edge blob in
//one horizontal half of the frame, at a fixed confidence. leftHalf selects the
//bowler's end; the batter is searched in the right half.
func detectFigure(frame gocv.Mat, leftHalf bool, cfg Config) *image.Point {
	if frame.Empty() {
		return nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	half := frame.Cols() / 2
	const minFigureArea = 2000.0

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var best *image.Rectangle
	var bestArea float64
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		cx := rect.Min.X + rect.Dx()/2
		if leftHalf && cx >= half {
			continue
		}
		if !leftHalf && cx < half {
			continue
		}
		area := float64(rect.Dx() * rect.Dy())
		if area < minFigureArea || area <= bestArea {
			continue
		}
		r := rect
		best = &r
		bestArea = area
	}
	if best == nil {
		return nil
	}
	pt := image.Pt(best.Min.X+best.Dx()/2, best.Min.Y+best.Dy()/2)
	return &pt
}
