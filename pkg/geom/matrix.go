package geom

import (
	"math"

	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a 2D affine transform:
//
//	| A  B  C |
//	| D  E  F |
//	| 0  0  1 |
//
// so that x' = A*x + B*y + C and y' = D*x + E*y + F.
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{A: 1, E: 1}
}

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Matrix {
	return Matrix{A: 1, C: tx, E: 1, F: ty}
}

// Scale returns a scale about the origin. Negative factors flip.
func Scale(sx, sy float64) Matrix {
	return Matrix{A: sx, E: sy}
}

// RotateDeg returns a clockwise rotation (y grows downwards) by deg degrees
// about the origin. Multiples of 90 are exact.
func RotateDeg(deg float64) Matrix {
	sin, cos := sinCosDeg(deg)
	return Matrix{
		A: cos, B: -sin,
		D: sin, E: cos,
	}
}

func sinCosDeg(deg float64) (float64, float64) {
	if q := math.Mod(deg, 90); q == 0 {
		switch ((int(deg/90) % 4) + 4) % 4 {
		case 0:
			return 0, 1
		case 1:
			return 1, 0
		case 2:
			return 0, -1
		default:
			return -1, 0
		}
	}
	return math.Sincos(deg * math.Pi / 180)
}

// Then returns the transform that applies m first and n second.
func (m Matrix) Then(n Matrix) Matrix {
	return Matrix{
		A: n.A*m.A + n.B*m.D,
		B: n.A*m.B + n.B*m.E,
		C: n.A*m.C + n.B*m.F + n.C,
		D: n.D*m.A + n.E*m.D,
		E: n.D*m.B + n.E*m.E,
		F: n.D*m.C + n.E*m.F + n.F,
	}
}

// Map applies m to p.
func (m Matrix) Map(p Offset) Offset {
	return Offset{m.A*p.X + m.B*p.Y + m.C, m.D*p.X + m.E*p.Y + m.F}
}

// MapRect returns the bounding box of r after applying m.
func (m Matrix) MapRect(r Rect) Rect {
	pts := [4]Offset{
		m.Map(Offset{r.Left, r.Top}),
		m.Map(Offset{r.Right, r.Top}),
		m.Map(Offset{r.Right, r.Bottom}),
		m.Map(Offset{r.Left, r.Bottom}),
	}
	out := Rect{pts[0].X, pts[0].Y, pts[0].X, pts[0].Y}
	for _, p := range pts[1:] {
		out.Left = math.Min(out.Left, p.X)
		out.Top = math.Min(out.Top, p.Y)
		out.Right = math.Max(out.Right, p.X)
		out.Bottom = math.Max(out.Bottom, p.Y)
	}
	return out
}

// Determinant returns the determinant of the linear part of m.
func (m Matrix) Determinant() float64 {
	return m.A*m.E - m.B*m.D
}

// Invert returns the inverse of m. The second result is false when m is
// singular.
func (m Matrix) Invert() (Matrix, bool) {
	if math.Abs(m.Determinant()) < 1e-12 {
		return Matrix{}, false
	}
	d := mat.NewDense(3, 3, []float64{
		m.A, m.B, m.C,
		m.D, m.E, m.F,
		0, 0, 1,
	})
	var inv mat.Dense
	if err := inv.Inverse(d); err != nil {
		return Matrix{}, false
	}
	return Matrix{
		A: inv.At(0, 0), B: inv.At(0, 1), C: inv.At(0, 2),
		D: inv.At(1, 0), E: inv.At(1, 1), F: inv.At(1, 2),
	}, true
}

// RectToRect returns the scale+translate transform mapping src onto dst.
func RectToRect(src, dst Rect) Matrix {
	sx := dst.Width() / src.Width()
	sy := dst.Height() / src.Height()
	return Translate(-src.Left, -src.Top).
		Then(Scale(sx, sy)).
		Then(Translate(dst.Left, dst.Top))
}

// ScaleFactor returns the length of the transformed unit x vector.
func (m Matrix) ScaleFactor() float64 {
	return math.Hypot(m.A, m.D)
}

// IsIdentity reports whether m is the identity within tolerance.
func (m Matrix) IsIdentity() bool {
	return Eq(m.A, 1) && Eq0(m.B) && Eq0(m.C) && Eq0(m.D) && Eq(m.E, 1) && Eq0(m.F)
}

// Aff3 converts m for use with golang.org/x/image/draw transformers.
func (m Matrix) Aff3() f64.Aff3 {
	return f64.Aff3{m.A, m.B, m.C, m.D, m.E, m.F}
}
