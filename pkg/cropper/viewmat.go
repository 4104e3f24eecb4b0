package cropper

import (
	"github.com/menta2k/image-cropper/pkg/geom"
)

// ViewMat maps region space to the screen. It only ever scales and
// translates.
type ViewMat struct {
	mat geom.Matrix
	inv geom.Matrix
	c0  geom.Offset
}

// NewViewMat returns an identity view.
func NewViewMat() *ViewMat {
	return &ViewMat{mat: geom.Identity(), inv: geom.Identity()}
}

func (v *ViewMat) set(m geom.Matrix) {
	inv, ok := m.Invert()
	if !ok {
		return
	}
	v.mat, v.inv = m, inv
}

// Matrix maps region space to screen space.
func (v *ViewMat) Matrix() geom.Matrix { return v.mat }

// Inverse maps screen space to region space.
func (v *ViewMat) Inverse() geom.Matrix { return v.inv }

// Scale is the current zoom factor.
func (v *ViewMat) Scale() float64 { return v.mat.ScaleFactor() }

// ZoomStart records the initial gesture centre, in screen space.
func (v *ViewMat) ZoomStart(c geom.Offset) {
	v.c0 = c
}

// Zoom pans by the centre movement since the last call and scales by s about
// c. The resulting scale never exceeds limits.MaxFactor.
func (v *ViewMat) Zoom(c geom.Offset, s float64, limits ZoomLimits) {
	if s <= 0 {
		return
	}
	if cur := v.Scale(); limits.MaxFactor > 0 && cur*s > limits.MaxFactor {
		s = limits.MaxFactor / cur
	}
	d := c.Sub(v.c0)
	m := v.mat.
		Then(geom.Translate(d.X, d.Y)).
		Then(geom.Translate(-c.X, -c.Y)).
		Then(geom.Scale(s, s)).
		Then(geom.Translate(c.X, c.Y))
	v.set(m)
	v.c0 = c
}

// FitTarget returns where inner lands when scaled to fit outer and centred.
func FitTarget(inner, outer geom.Rect) geom.Rect {
	return inner.FitIn(outer).CenterIn(outer)
}

// SnapFit makes inner fill outer, centred, keeping its aspect.
func (v *ViewMat) SnapFit(inner, outer geom.Rect) {
	if inner.IsEmpty() || outer.IsEmpty() {
		return
	}
	v.set(geom.RectToRect(inner, FitTarget(inner, outer)))
}

// Fit moves the view one step, by the fraction p, from its current position
// toward SnapFit(inner, outer). It reports whether the target was reached, so
// a UI can call it once per frame until it returns true.
func (v *ViewMat) Fit(inner, outer geom.Rect, p float64) bool {
	if inner.IsEmpty() || outer.IsEmpty() {
		return true
	}
	cur := v.mat.MapRect(inner)
	target := FitTarget(inner, outer)
	next := cur.Lerp(target, p)
	v.set(geom.RectToRect(inner, next))
	return rectEq(next, target)
}

func rectEq(a, b geom.Rect) bool {
	return geom.Eq(a.Left, b.Left) && geom.Eq(a.Top, b.Top) &&
		geom.Eq(a.Right, b.Right) && geom.Eq(a.Bottom, b.Bottom)
}
