package cropper

import (
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/shape"
)

// MoveHandle is the handle returned when a drag starts inside the region but
// away from every resize handle.
var MoveHandle = geom.Offset{X: 0.5, Y: 0.5}

// DefaultHandles are the four corners followed by the four edge midpoints,
// relative to the region.
var DefaultHandles = []geom.Offset{
	{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	{X: 0.5, Y: 0}, {X: 1, Y: 0.5}, {X: 0.5, Y: 1}, {X: 0, Y: 0.5},
}

// Style configures a crop session.
type Style struct {
	// TouchRadius is the handle hit radius in screen pixels.
	TouchRadius float64
	Handles     []geom.Offset
	Aspects     []AspectRatio
	Shapes      []shape.Shape
	MinCropSize float64
	// InitialAspect, when set, is applied and locked on Init.
	InitialAspect *AspectRatio
	// MaxResultSize caps the composed image. Nil keeps the region size.
	MaxResultSize *geom.Size
}

// DefaultStyle returns the style used when none is configured.
func DefaultStyle() Style {
	return Style{
		TouchRadius:   20,
		Handles:       DefaultHandles,
		Aspects:       []AspectRatio{Square, Widescreen, Landscape},
		Shapes:        shape.Presets(),
		MinCropSize:   DefaultMinCropSize,
		MaxResultSize: &geom.Size{Width: 3000, Height: 3000},
	}
}

// withDefaults fills zero fields from DefaultStyle.
func (s Style) withDefaults() Style {
	d := DefaultStyle()
	if s.TouchRadius <= 0 {
		s.TouchRadius = d.TouchRadius
	}
	if len(s.Handles) == 0 {
		s.Handles = d.Handles
	}
	if len(s.Aspects) == 0 {
		s.Aspects = d.Aspects
	}
	if len(s.Shapes) == 0 {
		s.Shapes = d.Shapes
	}
	if s.MinCropSize <= 0 {
		s.MinCropSize = d.MinCropSize
	}
	return s
}
