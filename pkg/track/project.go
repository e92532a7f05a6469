package track

import (
	"math"

	"github.com/golang/geo/r3"
)

//pixelTo3D maps a pixel position to normalized pitch coordinates. X and Y are
//normalized to [-1,1] about the frame center; the image y axis points down,
//so it is inverted to get the pitch length axis. Height is a heuristic over
//the vertical image position under the simplified tilted-pinhole model:
//pixels above the horizon row read as higher, scaled into [0,1]. This is not
//calibrated optics and is not meant to be.
func pixelTo3D(x, y float64, width, height int, cfg Config) r3.Vector {
	halfW := float64(width) / 2
	halfH := float64(height) / 2

	nx := (x - halfW) / halfW
	ny := (y - halfH) / halfH

	tilt := cfg.CameraTiltDeg * math.Pi / 180
	horizon := halfH - cfg.FocalLengthPx*math.Tan(tilt)
	z := 0.5 + (horizon-y)/float64(height)

	return r3.Vector{
		X: clamp(nx, -1, 1),
		Y: clamp(-ny, -1, 1),
		Z: clamp(z, 0, 1),
	}
}

//pointToPixel is the planar inverse of pixelTo3D: it recovers the pixel
//position of a normalized X/Y pair for the given frame dimensions. The height
//heuristic is lossy and is ignored.
func pointToPixel(v r3.Vector, width, height int) (x, y float64) {
	halfW := float64(width) / 2
	halfH := float64(height) / 2
	return v.X*halfW + halfW, halfH - v.Y*halfH
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
