package imagecropper

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/imgsrc"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/suggest"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Create a pattern with a bright subject in the center
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

type fixedSuggester struct {
	s   *suggest.Suggestion
	err error
}

func (f fixedSuggester) Suggest(ctx context.Context, img image.Image) (*suggest.Suggestion, error) {
	return f.s, f.err
}

var centerBox = geom.Rect{Left: 0.25, Top: 0.25, Right: 0.75, Bottom: 0.75}

func crop(t *testing.T, opts Options) *Result {
	t.Helper()
	ic, err := New(opts)
	require.NoError(t, err)
	res, err := ic.Crop(context.Background(), imgsrc.NewBitmap(createTestImage(400, 300)))
	require.NoError(t, err)
	return res
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{Rotate: 45})
	assert.Error(t, err)
	_, err = New(Options{Aspect: "bogus"})
	assert.Error(t, err)
	_, err = New(Options{Shape: "hexagon"})
	assert.Error(t, err)

	ic, err := New(Options{Rotate: -90, Aspect: "16:9", Shape: "star"})
	require.NoError(t, err)
	assert.Equal(t, defaultSuggestMaxDim, ic.opts.SuggestMaxDim)
}

func TestCropDefaults(t *testing.T) {
	res := crop(t, Options{Style: cropper.DefaultStyle()})
	assert.Equal(t, image.Rect(0, 0, 400, 300), res.Image.Bounds())
	assert.Nil(t, res.Suggestion)
	assert.Equal(t, "rect", res.Params.Shape.Name())
}

func TestCropRotated(t *testing.T) {
	res := crop(t, Options{Rotate: 90})
	assert.Equal(t, image.Rect(0, 0, 300, 400), res.Image.Bounds())
	assert.Equal(t, 90, res.Params.Transform.AngleDeg)

	res = crop(t, Options{Rotate: -90, FlipHorizontal: true})
	assert.Equal(t, 270, res.Params.Transform.AngleDeg)
	assert.Equal(t, image.Rect(0, 0, 300, 400), res.Image.Bounds())
}

func TestCropAspectAndShape(t *testing.T) {
	res := crop(t, Options{Aspect: "square", Shape: "oval"})
	require.Equal(t, image.Rect(0, 0, 300, 300), res.Image.Bounds())

	_, _, _, a := res.Image.At(0, 0).RGBA()
	assert.Zero(t, a, "corner outside the oval is transparent")
	c := color.NRGBAModel.Convert(res.Image.At(150, 150)).(color.NRGBA)
	assert.Equal(t, uint8(255), c.A)
	assert.InDelta(t, 255, int(c.R), 2)
}

func TestCropRegion(t *testing.T) {
	res := crop(t, Options{Region: &geom.Rect{Left: 10, Top: 10, Right: 110, Bottom: 60}})
	assert.Equal(t, image.Rect(0, 0, 100, 50), res.Image.Bounds())

	// offsets count from the corner of the rotated image
	res = crop(t, Options{Rotate: 90, Region: &geom.Rect{Left: 0, Top: 0, Right: 100, Bottom: 50}})
	assert.Equal(t, image.Rect(0, 0, 100, 50), res.Image.Bounds())
	assert.Equal(t, geom.Rect{Left: 50, Top: -50, Right: 150, Bottom: 0}, res.Params.Region)
}

func TestCropSuggestion(t *testing.T) {
	sg := fixedSuggester{s: &suggest.Suggestion{Label: "subject", Box: centerBox}}

	res := crop(t, Options{Suggester: sg})
	assert.Equal(t, image.Rect(0, 0, 200, 150), res.Image.Bounds())
	require.NotNil(t, res.Suggestion)
	assert.Equal(t, "subject", res.Suggestion.Label)

	// the locked aspect grows the box
	res = crop(t, Options{Suggester: sg, Aspect: "square"})
	assert.Equal(t, image.Rect(0, 0, 200, 200), res.Image.Bounds())
	assert.Equal(t, geom.Rect{Left: 100, Top: 50, Right: 300, Bottom: 250}, res.Params.Region)

	none := fixedSuggester{s: &suggest.Suggestion{Label: "none", Box: centerBox}}
	res = crop(t, Options{Suggester: none})
	assert.Equal(t, image.Rect(0, 0, 400, 300), res.Image.Bounds())
}

func TestCropErrors(t *testing.T) {
	boom := errors.New("model offline")
	ic, err := New(Options{Suggester: fixedSuggester{err: boom}})
	require.NoError(t, err)
	_, err = ic.Crop(context.Background(), imgsrc.NewBitmap(createTestImage(100, 100)))
	assert.ErrorIs(t, err, boom)

	ic, err = New(Options{MinImageSize: 200})
	require.NoError(t, err)
	_, err = ic.Crop(context.Background(), imgsrc.NewBitmap(createTestImage(100, 100)))
	assert.ErrorIs(t, err, cropper.ErrLoading)

	_, err = ic.Crop(context.Background(), nil)
	assert.ErrorIs(t, err, cropper.ErrLoading)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ic.Crop(ctx, imgsrc.NewBitmap(createTestImage(300, 300)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCropFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, createTestImage(120, 80)))
	require.NoError(t, f.Close())

	ic, err := New(Options{Aspect: "square"})
	require.NoError(t, err)
	res, err := ic.CropFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 80, 80), res.Image.Bounds())

	_, err = ic.CropFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestDebugOverlay(t *testing.T) {
	sg := fixedSuggester{s: &suggest.Suggestion{Label: "subject", Box: centerBox}}
	res := crop(t, Options{Suggester: sg, Aspect: "square"})

	overlay, err := DebugOverlay(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 300), overlay.Bounds())
	assert.Equal(t, processing.HandleColor, overlay.NRGBAAt(150, 50))
	assert.Equal(t, processing.SuggestColor, overlay.NRGBAAt(150, 75))
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
