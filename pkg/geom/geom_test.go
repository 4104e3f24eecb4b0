package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceAtMost(t *testing.T) {
	tests := []struct {
		name string
		in   Size
		max  *Size
		want Size
	}{
		{"nil max", Size{4000, 3000}, nil, Size{4000, 3000}},
		{"fits", Size{100, 50}, &Size{200, 200}, Size{100, 50}},
		{"wide", Size{4000, 2000}, &Size{1000, 1000}, Size{1000, 500}},
		{"tall", Size{1000, 4000}, &Size{1000, 1000}, Size{250, 1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.CoerceAtMost(tt.max)
			assert.InDelta(t, tt.want.Width, got.Width, 1e-9)
			assert.InDelta(t, tt.want.Height, got.Height, 1e-9)
		})
	}
}

func TestRoundUp(t *testing.T) {
	assert.Equal(t, IntSize{11, 6}, Size{10.01, 5.9}.RoundUp())
	assert.Equal(t, IntSize{10, 6}, Size{10, 6}.RoundUp())
}

func TestResizeHandles(t *testing.T) {
	r := Rect{100, 100, 300, 200}

	tests := []struct {
		name   string
		handle Offset
		delta  Offset
		want   Rect
	}{
		{"bottom right grows", Offset{1, 1}, Offset{10, 20}, Rect{100, 100, 310, 220}},
		{"top left grows", Offset{0, 0}, Offset{-10, -20}, Rect{90, 80, 300, 200}},
		{"top edge ignores x", Offset{0.5, 0}, Offset{50, 10}, Rect{100, 110, 300, 200}},
		{"right edge ignores y", Offset{1, 0.5}, Offset{-20, 40}, Rect{100, 100, 280, 200}},
		{"left clamped to min size", Offset{0, 0.5}, Offset{500, 0}, Rect{250, 100, 300, 200}},
		{"bottom clamped to min size", Offset{0.5, 1}, Offset{0, -500}, Rect{100, 100, 300, 150}},
		{"move handle is a no-op", Offset{0.5, 0.5}, Offset{30, 30}, r},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resize(tt.handle, tt.delta, 50))
		})
	}
}

func TestConstrainOffset(t *testing.T) {
	bounds := Rect{0, 0, 400, 300}

	assert.Equal(t, Rect{300, 250, 400, 300}, Rect{350, 280, 450, 330}.ConstrainOffset(bounds))
	assert.Equal(t, Rect{0, 0, 100, 50}, Rect{-20, -10, 80, 40}.ConstrainOffset(bounds))
	inside := Rect{10, 10, 20, 20}
	assert.Equal(t, inside, inside.ConstrainOffset(bounds))
}

func TestIntRectConstrainOffset(t *testing.T) {
	bounds := IntRect{0, 0, 100, 100}
	assert.Equal(t, IntRect{80, 0, 100, 10}, IntRect{95, -5, 115, 5}.ConstrainOffset(bounds))
	assert.True(t, bounds.ContainsInclusive(IntRect{0, 0, 100, 100}))
	assert.False(t, bounds.ContainsInclusive(IntRect{-1, 0, 10, 10}))
}

func TestConstrainResize(t *testing.T) {
	bounds := Rect{0, 0, 400, 300}
	assert.Equal(t, Rect{0, 20, 400, 300}, Rect{-50, 20, 450, 350}.ConstrainResize(bounds))
}

func TestSetAspect(t *testing.T) {
	r := Rect{0, 0, 400, 300}

	square := r.SetAspect(1)
	assert.InDelta(t, 300, square.Width(), 1e-9)
	assert.InDelta(t, 300, square.Height(), 1e-9)
	assert.InDelta(t, 200, square.Center().X, 1e-9)
	assert.InDelta(t, 150, square.Center().Y, 1e-9)

	wide := r.SetAspect(16.0 / 9.0)
	assert.InDelta(t, 400, wide.Width(), 1e-9)
	assert.InDelta(t, 225, wide.Height(), 1e-9)
	assert.InDelta(t, 150, wide.Center().Y, 1e-9)
}

func TestKeepAspectAnchorsUnmovedEdges(t *testing.T) {
	old := Rect{0, 0, 100, 100}
	// dragged the bottom-right corner: top-left stays put
	dragged := Rect{0, 0, 200, 50}
	got := dragged.KeepAspect(old)

	assert.InDelta(t, 0, got.Left, 1e-9)
	assert.InDelta(t, 0, got.Top, 1e-9)
	assert.InDelta(t, got.Width(), got.Height(), 1e-9)
	assert.InDelta(t, dragged.Area(), got.Area(), 1e-6)

	// dragged the top-left corner: bottom-right stays put
	dragged = Rect{-100, 50, 100, 100}
	got = dragged.KeepAspect(old)
	assert.InDelta(t, 100, got.Right, 1e-9)
	assert.InDelta(t, 100, got.Bottom, 1e-9)
	assert.InDelta(t, got.Width(), got.Height(), 1e-9)
}

func TestScaleToFit(t *testing.T) {
	bounds := Rect{0, 0, 100, 100}
	old := Rect{0, 0, 50, 50}

	fits := Rect{0, 0, 80, 80}
	assert.Equal(t, fits, fits.ScaleToFit(bounds, old))

	tooBig := Rect{0, 0, 200, 200}
	got := tooBig.ScaleToFit(bounds, old)
	assert.InDelta(t, 100, got.Width(), 1e-9)
	assert.InDelta(t, 100, got.Height(), 1e-9)
	assert.InDelta(t, 0, got.Left, 1e-9)
}

func TestAlign(t *testing.T) {
	assert.Equal(t, Rect{0, 4, 12, 16}, Rect{3, 5, 9, 13}.Align(4))
	assert.Equal(t, Rect{3, 5, 9, 13}, Rect{3, 5, 9, 13}.Align(1))
}

func TestRoundOut(t *testing.T) {
	assert.Equal(t, IntRect{-2, 0, 5, 7}, Rect{-1.5, 0.2, 4.1, 6.9}.RoundOut())
}

func TestAbsAndLerp(t *testing.T) {
	r := Rect{10, 20, 110, 220}
	assert.Equal(t, Offset{60, 120}, r.Abs(Offset{0.5, 0.5}))
	assert.Equal(t, Offset{110, 20}, r.Abs(Offset{1, 0}))

	target := Rect{0, 0, 100, 100}
	assert.Equal(t, r, r.Lerp(target, 0))
	assert.Equal(t, target, r.Lerp(target, 1))
	half := r.Lerp(target, 0.5)
	assert.Equal(t, Rect{5, 10, 105, 160}, half)
}

func TestFitInAndCenterIn(t *testing.T) {
	outer := Rect{0, 0, 200, 100}
	got := Rect{0, 0, 10, 10}.FitIn(outer).CenterIn(outer)
	require.False(t, got.IsEmpty())
	assert.Equal(t, Rect{50, 0, 150, 100}, got)
}

func TestSwapAxes(t *testing.T) {
	assert.Equal(t, Rect{2, 1, 4, 3}, Rect{1, 2, 3, 4}.SwapAxes())
}

func BenchmarkResize(b *testing.B) {
	r := Rect{100, 100, 300, 200}
	for i := 0; i < b.N; i++ {
		r.Resize(Offset{1, 1}, Offset{float64(i % 50), 3}, 50)
	}
}
