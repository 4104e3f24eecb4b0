package cropper

import (
	"github.com/menta2k/image-cropper/pkg/geom"
)

// Transform is the rotation and flip applied to the source image before
// cropping. Pivot is relative to the image size.
type Transform struct {
	AngleDeg int         `json:"angle" yaml:"angle"`
	Scale    geom.Offset `json:"scale" yaml:"scale"`
	Pivot    geom.Offset `json:"pivot" yaml:"pivot"`
}

// IdentityTransform leaves the image untouched.
func IdentityTransform() Transform {
	return Transform{
		Scale: geom.Offset{X: 1, Y: 1},
		Pivot: geom.Offset{X: 0.5, Y: 0.5},
	}
}

// HasTransform reports whether t rotates or flips.
func (t Transform) HasTransform() bool {
	return normAngle(t.AngleDeg) != 0 || t.Scale != (geom.Offset{X: 1, Y: 1})
}

// Matrix maps image pixels of an image of the given size into region space:
// translate the pivot to the origin, scale, rotate and translate back.
func (t Transform) Matrix(size geom.IntSize) geom.Matrix {
	if !t.HasTransform() {
		return geom.Identity()
	}
	p := geom.Offset{X: float64(size.Width) * t.Pivot.X, Y: float64(size.Height) * t.Pivot.Y}
	return geom.Translate(-p.X, -p.Y).
		Then(geom.Scale(t.Scale.X, t.Scale.Y)).
		Then(geom.RotateDeg(float64(t.AngleDeg))).
		Then(geom.Translate(p.X, p.Y))
}

// RotLeft rotates counter-clockwise by 90 degrees.
func (t Transform) RotLeft() Transform {
	t.AngleDeg = normAngle(t.AngleDeg - 90)
	return t
}

// RotRight rotates clockwise by 90 degrees.
func (t Transform) RotRight() Transform {
	t.AngleDeg = normAngle(t.AngleDeg + 90)
	return t
}

// FlipHorizontal mirrors the image as seen on screen. Once rotated by 90 or
// 270 degrees the screen x axis is the image y axis.
func (t Transform) FlipHorizontal() Transform {
	if quarterTurns(t.AngleDeg)%2 == 0 {
		t.Scale.X = -t.Scale.X
	} else {
		t.Scale.Y = -t.Scale.Y
	}
	return t
}

// FlipVertical mirrors the image top to bottom as seen on screen.
func (t Transform) FlipVertical() Transform {
	if quarterTurns(t.AngleDeg)%2 == 0 {
		t.Scale.Y = -t.Scale.Y
	} else {
		t.Scale.X = -t.Scale.X
	}
	return t
}

// TransformedImageRect returns the bounds of an image of the given size once t
// is applied. Regions live inside this rectangle.
func TransformedImageRect(t Transform, size geom.IntSize) geom.Rect {
	return t.Matrix(size).MapRect(size.Rect().ToRect())
}

func normAngle(deg int) int {
	return ((deg % 360) + 360) % 360
}

func quarterTurns(deg int) int {
	return normAngle(deg) / 90
}
