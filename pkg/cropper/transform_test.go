package cropper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/menta2k/image-cropper/pkg/geom"
)

func TestIdentityTransform(t *testing.T) {
	tr := IdentityTransform()
	if tr.HasTransform() {
		t.Error("identity should not transform")
	}
	if !tr.Matrix(geom.IntSize{Width: 400, Height: 300}).IsIdentity() {
		t.Error("identity matrix expected")
	}
}

func TestRotations(t *testing.T) {
	tr := IdentityTransform()
	for i := 0; i < 4; i++ {
		tr = tr.RotRight()
	}
	assert.Equal(t, 0, tr.AngleDeg)
	assert.False(t, tr.HasTransform())

	assert.Equal(t, 270, IdentityTransform().RotLeft().AngleDeg)
	assert.Equal(t, 0, IdentityTransform().RotLeft().RotRight().AngleDeg)
}

func TestFlipsAreInvolutions(t *testing.T) {
	for _, base := range []Transform{IdentityTransform(), IdentityTransform().RotRight()} {
		assert.Equal(t, base, base.FlipHorizontal().FlipHorizontal())
		assert.Equal(t, base, base.FlipVertical().FlipVertical())
	}
}

func TestFlipFollowsScreenAxis(t *testing.T) {
	flipped := IdentityTransform().FlipHorizontal()
	assert.Equal(t, geom.Offset{X: -1, Y: 1}, flipped.Scale)

	rotated := IdentityTransform().RotRight().FlipHorizontal()
	assert.Equal(t, geom.Offset{X: 1, Y: -1}, rotated.Scale)

	rotated = IdentityTransform().RotLeft().FlipVertical()
	assert.Equal(t, geom.Offset{X: -1, Y: 1}, rotated.Scale)
}

func TestTransformMatrix(t *testing.T) {
	size := geom.IntSize{Width: 400, Height: 300}

	flip := IdentityTransform().FlipHorizontal().Matrix(size)
	p := flip.Map(geom.Offset{})
	assert.InDelta(t, 400, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)

	rot := IdentityTransform().RotRight().Matrix(size)
	// top right corner turns into the bottom right one
	p = rot.Map(geom.Offset{X: 400, Y: 0})
	assert.InDelta(t, 350, p.X, 1e-9)
	assert.InDelta(t, 350, p.Y, 1e-9)
}

func TestTransformedImageRect(t *testing.T) {
	size := geom.IntSize{Width: 400, Height: 300}

	assert.Equal(t, geom.Rect{Right: 400, Bottom: 300}, TransformedImageRect(IdentityTransform(), size))

	r := TransformedImageRect(IdentityTransform().RotRight(), size)
	assert.InDelta(t, 50, r.Left, 1e-9)
	assert.InDelta(t, -50, r.Top, 1e-9)
	assert.InDelta(t, 350, r.Right, 1e-9)
	assert.InDelta(t, 350, r.Bottom, 1e-9)
}

func TestZoomLimits(t *testing.T) {
	tests := []struct {
		name    string
		img     geom.IntSize
		view    geom.IntSize
		minCrop float64
		want    float64
	}{
		{"wide image in square view", geom.IntSize{Width: 4000, Height: 3000}, geom.IntSize{Width: 1000, Height: 1000}, 50, 80},
		{"tall image in square view", geom.IntSize{Width: 1000, Height: 3000}, geom.IntSize{Width: 1000, Height: 1000}, 50, 60},
		{"view larger than image", geom.IntSize{Width: 100, Height: 100}, geom.IntSize{Width: 800, Height: 600}, 50, 12},
		{"default min crop", geom.IntSize{Width: 500, Height: 500}, geom.IntSize{Width: 500, Height: 500}, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewZoomLimits(tt.img, tt.view, tt.minCrop)
			assert.InDelta(t, tt.want, l.MaxFactor, 1e-9)
		})
	}
}

func TestAspectRatios(t *testing.T) {
	ratios := CommonAspectRatios()
	if len(ratios) == 0 {
		t.Fatal("Expected at least one common aspect ratio")
	}
	assert.True(t, Widescreen.IsAspect(geom.Size{Width: 1600, Height: 900}))
	assert.False(t, Widescreen.IsAspect(geom.Size{Width: 1600, Height: 1000}))
	assert.False(t, Square.IsAspect(geom.Size{}))

	a, err := ParseAspectRatio("16:9")
	assert.NoError(t, err)
	assert.Equal(t, Widescreen, a)

	a, err = ParseAspectRatio("square")
	assert.NoError(t, err)
	assert.Equal(t, Square, a)

	a, err = ParseAspectRatio("2:1")
	assert.NoError(t, err)
	assert.InDelta(t, 2, a.Ratio(), 1e-9)

	for _, bad := range []string{"16x9", "0:1", "a:b"} {
		_, err := ParseAspectRatio(bad)
		assert.Error(t, err, bad)
	}
}
