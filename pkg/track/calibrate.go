package track

import (
	"image"
	"log"
	"math"
	"sort"

	"gocv.io/x/gocv"
)

//stumpCandidate is one heuristic's proposal for a single stump, in pixels.
type stumpCandidate struct {
	x          float64 //horizontal center
	y          float64 //base (bottom) row
	width      float64
	height     float64
	confidence float64
	method     string
}

//calibrateScene runs the one-time static analysis over a few sampled frames:
//first, middle and last. It is deterministic and keeps no state beyond the
//returned values; running it twice over the same frames yields the same
//result. The stumps location is resolved at most once per run.
func calibrateScene(src FrameSource, cfg Config) (*PitchCalibration, *StumpsLocation) {
	pitch := &PitchCalibration{
		LengthM:       cfg.PitchLengthM,
		WidthM:        cfg.PitchWidthM,
		FocalLengthPx: cfg.FocalLengthPx,
		CameraHeightM: cfg.CameraHeightM,
		CameraTiltDeg: cfg.CameraTiltDeg,
	}

	count := src.FrameCount()
	indices := []int{0, count / 2, count - 1}

	frame := gocv.NewMat()
	defer frame.Close()

	var candidates []stumpCandidate
	boundaryFound := false
	seen := -1
	for _, idx := range indices {
		if idx <= seen {
			continue
		}
		seen = idx

		if err := src.Seek(idx); err != nil {
			log.Printf("calibrateScene: could not seek to frame %d, got '%v'", idx, err)
			continue
		}
		if !src.Read(&frame) || frame.Empty() {
			continue
		}

		if !boundaryFound {
			if bounds := detectPitchBoundaries(frame, cfg); bounds != nil {
				pitch.Bounds = *bounds
				boundaryFound = true
			}
		}
		candidates = append(candidates, detectStumps(frame, cfg)...)
	}

	width, height := src.Resolution()
	stumps := resolveStumps(candidates, width, height, cfg)
	return pitch, stumps
}

//detectPitchBoundaries segments the frame by the configured playing-surface
//color range and returns the bounding box of the largest connected region,
//or nil when no region reaches the minimum pitch area.
func detectPitchBoundaries(frame gocv.Mat, cfg Config) *image.Rectangle {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	pc := cfg.PitchColor
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(pc.HueLow, pc.SatLow, pc.ValLow, 0),
		gocv.NewScalar(pc.HueHigh, pc.SatHigh, pc.ValHigh, 0), &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var best *image.Rectangle
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area <= bestArea {
			continue
		}
		rect := gocv.BoundingRect(contour)
		best = &rect
		bestArea = area
	}
	if best == nil || bestArea < cfg.PitchMinAreaPx {
		return nil
	}
	return best
}

//detectStumps runs the independent stump heuristics over one frame and
//returns all candidates. Individual heuristic failures only cost their own
//candidates.
func detectStumps(frame gocv.Mat, cfg Config) []stumpCandidate {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	var candidates []stumpCandidate
	candidates = append(candidates, edgeStumpCandidates(edges, cfg)...)
	candidates = append(candidates, colorStumpCandidates(frame, cfg)...)
	candidates = append(candidates, lineStumpCandidates(edges, cfg)...)
	return candidates
}

//edgeStumpCandidates finds tall thin rectangles among the edge contours.
func edgeStumpCandidates(edges gocv.Mat, cfg Config) []stumpCandidate {
	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []stumpCandidate
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		area := float64(rect.Dx() * rect.Dy())
		if area < cfg.StumpMinAreaPx || area > cfg.StumpMaxAreaPx || rect.Dx() == 0 {
			continue
		}
		aspect := float64(rect.Dy()) / float64(rect.Dx())
		if aspect < 2.0 {
			continue
		}
		out = append(out, stumpCandidate{
			x:          float64(rect.Min.X) + float64(rect.Dx())/2,
			y:          float64(rect.Max.Y),
			width:      float64(rect.Dx()),
			height:     float64(rect.Dy()),
			confidence: math.Min(0.9, 0.4+0.1*aspect),
			method:     "edge",
		})
	}
	return out
}

//colorStumpCandidates segments pale stump-colored regions and keeps the tall
//ones at a fixed confidence.
func colorStumpCandidates(frame gocv.Mat, cfg Config) []stumpCandidate {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(0, 0, 150, 0),
		gocv.NewScalar(180, 60, 255, 0), &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []stumpCandidate
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		area := float64(rect.Dx() * rect.Dy())
		if area < cfg.StumpMinAreaPx || area > cfg.StumpMaxAreaPx || rect.Dx() == 0 {
			continue
		}
		if float64(rect.Dy())/float64(rect.Dx()) < 2.0 {
			continue
		}
		out = append(out, stumpCandidate{
			x:          float64(rect.Min.X) + float64(rect.Dx())/2,
			y:          float64(rect.Max.Y),
			width:      float64(rect.Dx()),
			height:     float64(rect.Dy()),
			confidence: 0.5,
			method:     "color",
		})
	}
	return out
}

//lineStumpCandidates proposes a candidate per near-vertical Hough segment.
func lineStumpCandidates(edges gocv.Mat, cfg Config) []stumpCandidate {
	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines, 1, math.Pi/180, 40, 20, 5)

	var out []stumpCandidate
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		if len(v) < 4 {
			continue
		}
		x1, y1, x2, y2 := float64(v[0]), float64(v[1]), float64(v[2]), float64(v[3])
		dx := math.Abs(x2 - x1)
		dy := math.Abs(y2 - y1)
		if dy < 20 || dx > dy*0.2 {
			continue
		}
		out = append(out, stumpCandidate{
			x:          (x1 + x2) / 2,
			y:          math.Max(y1, y2),
			width:      math.Max(2, dx),
			height:     dy,
			confidence: 0.4,
			method:     "line",
		})
	}
	return out
}

//resolveStumps groups the candidates, scores each group, and converts the
//best group into a StumpsLocation when its score clears the configured
//minimum. Returns nil when nothing qualifies.
func resolveStumps(candidates []stumpCandidate, width, height int, cfg Config) *StumpsLocation {
	merged := mergeStumpCandidates(candidates, cfg.StumpExpectedSpacingPx/2)
	groups := groupStumpCandidates(merged, cfg.StumpGroupingDistancePx)

	var best []stumpCandidate
	bestScore := 0.0
	for _, g := range groups {
		if score := scoreStumpGroup(g, cfg); score > bestScore {
			best = g
			bestScore = score
		}
	}
	if best == nil || bestScore <= cfg.StumpMinGroupScore {
		return nil
	}

	var sumX, baseY float64
	for _, c := range best {
		sumX += c.x
		if c.y > baseY {
			baseY = c.y
		}
	}
	baseX := sumX / float64(len(best))

	return &StumpsLocation{
		PixelX:     baseX,
		PixelY:     baseY,
		Pos:        pixelTo3D(baseX, baseY, width, height, cfg),
		Confidence: bestScore,
		StumpCount: len(best),
	}
}

//mergeStumpCandidates collapses proposals from different heuristics (and
//different sampled frames) that point at the same stump: candidates closer
//than minSeparation are averaged by confidence, so the surviving count means
//distinct stumps rather than distinct proposals.
func mergeStumpCandidates(candidates []stumpCandidate, minSeparation float64) []stumpCandidate {
	if len(candidates) == 0 {
		return nil
	}
	sorted := make([]stumpCandidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].x < sorted[j].x })

	merged := []stumpCandidate{sorted[0]}
	for _, c := range sorted[1:] {
		last := &merged[len(merged)-1]
		if c.x-last.x > minSeparation {
			merged = append(merged, c)
			continue
		}
		total := last.confidence + c.confidence
		if total > 0 {
			last.x = (last.x*last.confidence + c.x*c.confidence) / total
		}
		last.y = math.Max(last.y, c.y)
		last.width = math.Max(last.width, c.width)
		last.height = math.Max(last.height, c.height)
		last.confidence = math.Max(last.confidence, c.confidence)
	}
	return merged
}

//groupStumpCandidates clusters candidates whose horizontal centers fall
//within the grouping distance of each other, sweeping left to right.
func groupStumpCandidates(candidates []stumpCandidate, distance float64) [][]stumpCandidate {
	if len(candidates) == 0 {
		return nil
	}
	sorted := make([]stumpCandidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].x < sorted[j].x })

	var groups [][]stumpCandidate
	current := []stumpCandidate{sorted[0]}
	for _, c := range sorted[1:] {
		if c.x-current[len(current)-1].x <= distance {
			current = append(current, c)
			continue
		}
		groups = append(groups, current)
		current = []stumpCandidate{c}
	}
	return append(groups, current)
}

//scoreStumpGroup rates a candidate group by alignment (low vertical spread of
//the base points), spacing proximity to the expected inter-stump distance,
//and closeness of the member count to the three stumps of a wicket.
func scoreStumpGroup(group []stumpCandidate, cfg Config) float64 {
	if len(group) == 0 {
		return 0
	}

	minY, maxY := group[0].y, group[0].y
	for _, c := range group[1:] {
		minY = math.Min(minY, c.y)
		maxY = math.Max(maxY, c.y)
	}
	alignment := 1 - math.Min(1, (maxY-minY)/cfg.StumpGroupingDistancePx)

	spacing := 0.0
	if len(group) >= 2 {
		gap := (group[len(group)-1].x - group[0].x) / float64(len(group)-1)
		spacing = 1 - math.Min(1, math.Abs(gap-cfg.StumpExpectedSpacingPx)/cfg.StumpExpectedSpacingPx)
	}

	countScore := 1 - math.Min(1, math.Abs(float64(len(group))-3)/3)

	return 0.4*alignment + 0.3*spacing + 0.3*countScore
}
