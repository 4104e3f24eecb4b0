package cropper

import (
	"math"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// DefaultMinCropSize is the smallest region side, in region space units.
const DefaultMinCropSize = 50

// ZoomLimits bounds how far a view can zoom in and how small a region can be.
type ZoomLimits struct {
	MinCropSize float64
	// MaxFactor is the largest view scale, reached when MinCropSize fills
	// the long side of the view.
	MaxFactor float64
}

// NewZoomLimits computes the limits for showing an image of size img in a
// view of size view.
func NewZoomLimits(img, view geom.IntSize, minCropSize float64) ZoomLimits {
	if minCropSize <= 0 {
		minCropSize = DefaultMinCropSize
	}
	var full float64
	if view.ToSize().Aspect() > img.ToSize().Aspect() {
		full = math.Max(float64(img.Height), float64(view.Height))
	} else {
		full = math.Max(float64(img.Width), float64(view.Width))
	}
	return ZoomLimits{
		MinCropSize: minCropSize,
		MaxFactor:   full / minCropSize,
	}
}
