package cropper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// AspectRatio represents a width:height ratio offered for aspect lock
type AspectRatio struct {
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
	Name   string `json:"name" yaml:"name"`
}

// Common aspect ratios
var (
	Square     = AspectRatio{1, 1, "square"}
	Portrait   = AspectRatio{3, 4, "portrait"}
	Landscape  = AspectRatio{4, 3, "landscape"}
	Widescreen = AspectRatio{16, 9, "widescreen"}
	Instagram  = AspectRatio{4, 5, "instagram"}
	Story      = AspectRatio{9, 16, "story"}
)

// CommonAspectRatios returns a list of commonly used aspect ratios
func CommonAspectRatios() []AspectRatio {
	return []AspectRatio{Square, Portrait, Landscape, Widescreen, Instagram, Story}
}

// Ratio returns width/height.
func (a AspectRatio) Ratio() float64 {
	return float64(a.Width) / float64(a.Height)
}

// IsAspect reports whether s has this aspect ratio.
func (a AspectRatio) IsAspect(s geom.Size) bool {
	if s.IsEmpty() {
		return false
	}
	return geom.Eq(s.Aspect(), a.Ratio())
}

func (a AspectRatio) String() string {
	return fmt.Sprintf("%d:%d", a.Width, a.Height)
}

// ParseAspectRatio accepts a preset name ("square") or "W:H".
func ParseAspectRatio(s string) (AspectRatio, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, a := range CommonAspectRatios() {
		if a.Name == s {
			return a, nil
		}
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return AspectRatio{}, fmt.Errorf("invalid aspect ratio %q: want W:H", s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return AspectRatio{}, fmt.Errorf("invalid aspect width %q: %w", parts[0], err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return AspectRatio{}, fmt.Errorf("invalid aspect height %q: %w", parts[1], err)
	}
	if w <= 0 || h <= 0 {
		return AspectRatio{}, fmt.Errorf("invalid aspect ratio %q: sides must be positive", s)
	}
	for _, a := range CommonAspectRatios() {
		if a.Width == w && a.Height == h {
			return a, nil
		}
	}
	return AspectRatio{Width: w, Height: h, Name: s}, nil
}
