package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-cropper/pkg/geom"
)

func TestRectMaskCoversEverything(t *testing.T) {
	size := geom.IntSize{Width: 40, Height: 20}
	m := Mask(Rect, size, geom.Rect{Right: 40, Bottom: 20})

	require.Equal(t, 40, m.Bounds().Dx())
	require.Equal(t, 20, m.Bounds().Dy())
	for _, p := range [][2]int{{0, 0}, {39, 0}, {39, 19}, {0, 19}, {20, 10}} {
		assert.GreaterOrEqual(t, m.AlphaAt(p[0], p[1]).A, uint8(0xf0), "pixel %v", p)
	}
}

func TestOvalMaskCorners(t *testing.T) {
	size := geom.IntSize{Width: 100, Height: 60}
	m := Mask(Oval, size, geom.Rect{Right: 100, Bottom: 60})

	assert.GreaterOrEqual(t, m.AlphaAt(50, 30).A, uint8(0xf0), "centre")
	assert.Equal(t, uint8(0), m.AlphaAt(0, 0).A, "top left")
	assert.Equal(t, uint8(0), m.AlphaAt(99, 59).A, "bottom right")
	assert.Equal(t, uint8(0), m.AlphaAt(2, 58).A, "bottom left")
}

func TestTriangleMask(t *testing.T) {
	size := geom.IntSize{Width: 100, Height: 100}
	m := Mask(Triangle, size, geom.Rect{Right: 100, Bottom: 100})

	assert.GreaterOrEqual(t, m.AlphaAt(50, 90).A, uint8(0xf0))
	assert.Equal(t, uint8(0), m.AlphaAt(5, 5).A)
	assert.Equal(t, uint8(0), m.AlphaAt(95, 5).A)
}

func TestMaskInsideSubRect(t *testing.T) {
	size := geom.IntSize{Width: 50, Height: 50}
	m := Mask(Rect, size, geom.Rect{Left: 10, Top: 10, Right: 20, Bottom: 20})

	assert.GreaterOrEqual(t, m.AlphaAt(15, 15).A, uint8(0xf0))
	assert.Equal(t, uint8(0), m.AlphaAt(5, 5).A)
	assert.Equal(t, uint8(0), m.AlphaAt(30, 30).A)
}

func TestMaskEmpty(t *testing.T) {
	m := Mask(Star, geom.IntSize{Width: 10, Height: 10}, geom.Rect{})
	assert.Equal(t, uint8(0), m.AlphaAt(5, 5).A)
}

func TestByName(t *testing.T) {
	for _, s := range Presets() {
		got, err := ByName(s.Name())
		require.NoError(t, err)
		assert.Equal(t, s.Name(), got.Name())
	}

	_, err := ByName("hexagon")
	assert.Error(t, err)
}

func TestStarPoints(t *testing.T) {
	pts := starPoints(5, 0.5, 0.2)
	require.Len(t, pts, 10)
	assert.InDelta(t, 0.5, pts[0].X, 1e-9)
	assert.InDelta(t, 0, pts[0].Y, 1e-9)
}

func BenchmarkOvalMask(b *testing.B) {
	size := geom.IntSize{Width: 512, Height: 512}
	r := geom.Rect{Right: 512, Bottom: 512}
	for i := 0; i < b.N; i++ {
		Mask(Oval, size, r)
	}
}
