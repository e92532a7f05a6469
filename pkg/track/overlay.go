package track

import (
	"fmt"
	"image"
	"image/color"
	"log"

	"gocv.io/x/gocv"
)

var (
	observedTrailColor  = color.RGBA{0, 255, 0, 0}
	predictedTrailColor = color.RGBA{0, 165, 255, 0}
	stumpsBoxColor      = color.RGBA{0, 0, 255, 0}
	bannerTextColor     = color.RGBA{255, 255, 255, 0}
)

//RenderOverlay re-reads the source video and writes an annotated copy (XVID,
//'.avi' extension expected on outPath): the growing trajectory trail, the
//resolved stumps position and the verdict banner. The overlay is a review
//aid; failures here never invalidate the tracking result itself.
func RenderOverlay(srcPath, outPath string, result *TrackingResult) error {
	cap, err := gocv.VideoCaptureFile(srcPath)
	if err != nil {
		return fmt.Errorf("RenderOverlay: could not open '%s', got '%v'", srcPath, err)
	}
	defer cap.Close()

	fps := cap.Get(gocv.VideoCaptureFPS)
	width := int(cap.Get(gocv.VideoCaptureFrameWidth))
	height := int(cap.Get(gocv.VideoCaptureFrameHeight))
	if fps <= 0 || width <= 0 || height <= 0 {
		return fmt.Errorf("RenderOverlay: unusable properties for '%s'", srcPath)
	}

	writer, err := gocv.VideoWriterFile(outPath, "XVID", fps, width, height, true)
	if err != nil {
		return fmt.Errorf("RenderOverlay: could not open writer for '%s', got '%v'", outPath, err)
	}
	defer writer.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	banner := "NO BALL DETECTED"
	if result.Summary != nil {
		banner = fmt.Sprintf("%s  (closest approach %.2f at t=%.2fs)",
			result.Summary.Decision, result.Summary.DistanceToWicket, result.Summary.T)
	}

	frameIndex := 0
	for cap.Read(&frame) {
		if frame.Empty() {
			frameIndex++
			continue
		}
		t := float64(frameIndex) / fps

		//Trail: every sample seen so far.
		for _, s := range result.Trajectory {
			if s.T > t {
				break
			}
			x, y := pointToPixel(s.Pos, width, height)
			c := observedTrailColor
			if s.Predicted {
				c = predictedTrailColor
			}
			gocv.Circle(&frame, image.Pt(int(x), int(y)), 4, c, -1)
		}

		if st := result.Stumps; st != nil {
			base := image.Pt(int(st.PixelX), int(st.PixelY))
			box := image.Rect(base.X-20, base.Y-60, base.X+20, base.Y)
			gocv.Rectangle(&frame, box, stumpsBoxColor, 2)
			gocv.PutText(&frame, fmt.Sprintf("stumps x%d", st.StumpCount),
				image.Pt(box.Min.X, box.Min.Y-5), gocv.FontHersheyPlain, 1, stumpsBoxColor, 1)
		}

		gocv.Rectangle(&frame, image.Rect(0, 0, width, 28), color.RGBA{0, 0, 0, 0}, -1)
		gocv.PutText(&frame, banner, image.Pt(8, 20), gocv.FontHersheyPlain, 1.2, bannerTextColor, 2)

		if err := writer.Write(frame); err != nil {
			log.Printf("RenderOverlay: could not write frame %d, got '%v'. Skipping.", frameIndex, err)
		}
		frameIndex++
	}

	return nil
}
