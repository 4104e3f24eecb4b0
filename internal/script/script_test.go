package script

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/imgsrc"
	"github.com/menta2k/image-cropper/pkg/suggest"
)

func newTestState() *cropper.State {
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	return cropper.NewState(imgsrc.NewBitmap(img), cropper.DefaultStyle())
}

func run(t *testing.T, src string, sg suggest.Suggester) (*cropper.State, *cropper.Gestures) {
	t.Helper()
	s, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	state := newTestState()
	g, err := (&Runner{Suggester: sg}).Run(context.Background(), s, state)
	require.NoError(t, err)
	return state, g
}

func assertRect(t *testing.T, want, got geom.Rect) {
	t.Helper()
	assert.InDelta(t, want.Left, got.Left, 1e-6, "left")
	assert.InDelta(t, want.Top, got.Top, 1e-6, "top")
	assert.InDelta(t, want.Right, got.Right, 1e-6, "right")
	assert.InDelta(t, want.Bottom, got.Bottom, 1e-6, "bottom")
}

type fixedSuggester struct {
	s   *suggest.Suggestion
	err error
}

func (f fixedSuggester) Suggest(ctx context.Context, img image.Image) (*suggest.Suggestion, error) {
	return f.s, f.err
}

func TestParseDefaults(t *testing.T) {
	s, err := Parse(strings.NewReader("steps:\n  - op: reset\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultView, s.View)
	require.Len(t, s.Steps, 1)

	s, err = Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, s.Steps)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown op", "steps:\n  - op: jump\n", "unknown operation"},
		{"unknown field", "steps:\n  - op: reset\n    speed: 3\n", "speed"},
		{"drag without path", "steps:\n  - op: drag\n    from: {x: 1, y: 1}\n", "drag needs"},
		{"zoom without scales", "steps:\n  - op: zoom\n    center: {x: 1, y: 1}\n", "zoom needs"},
		{"bad aspect", "steps:\n  - op: aspect\n    value: wide\n", "invalid aspect"},
		{"bad shape", "steps:\n  - op: shape\n    value: hexagon\n", "unknown shape"},
		{"bad lock", "steps:\n  - op: lock\n    value: maybe\n", "invalid lock"},
		{"bad fit", "steps:\n  - op: fit\n    value: screen\n", "fit target"},
		{"region without rect", "steps:\n  - op: region\n", "region needs"},
		{"animate without fit", "steps:\n  - op: reset\n    animate: true\n", "only valid on fit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("view: {width: 400, height: 300}\nsteps:\n  - op: rotate_left\n"), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, geom.IntSize{Width: 400, Height: 300}, s.View)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunDragAndAspect(t *testing.T) {
	state, _ := run(t, `
view: {width: 400, height: 300}
steps:
  - op: region
    rect: {left: 100, top: 100, right: 300, bottom: 200}
  - op: drag
    from: {x: 300, y: 200}
    path: [{x: 320, y: 220}, {x: 350, y: 240}]
`, nil)
	assertRect(t, geom.Rect{Left: 100, Top: 100, Right: 350, Bottom: 240}, state.Region())

	state, _ = run(t, `
view: {width: 400, height: 300}
steps:
  - op: region
    rect: {left: 100, top: 100, right: 350, bottom: 240}
  - op: aspect
    value: square
  - op: lock
  - op: shape
    value: oval
`, nil)
	assertRect(t, geom.Rect{Left: 155, Top: 100, Right: 295, Bottom: 240}, state.Region())
	assert.True(t, state.AspectLock())
	assert.Equal(t, "oval", state.Shape().Name())
}

func TestRunMissedDragIsIgnored(t *testing.T) {
	state, _ := run(t, `
view: {width: 400, height: 300}
steps:
  - op: region
    rect: {left: 100, top: 100, right: 300, bottom: 200}
  - op: drag
    from: {x: 10, y: 10}
    path: [{x: 50, y: 50}]
`, nil)
	assertRect(t, geom.Rect{Left: 100, Top: 100, Right: 300, Bottom: 200}, state.Region())
}

func TestRunTransformAndReset(t *testing.T) {
	state, _ := run(t, `
steps:
  - op: rotate_right
  - op: flip_horizontal
`, nil)
	assert.Equal(t, 90, state.Transform().AngleDeg)
	assert.True(t, state.Transform().HasTransform())
	assertRect(t, state.ImageRect(), state.Region())

	state, _ = run(t, `
steps:
  - op: rotate_left
  - op: lock
    value: "true"
  - op: reset
`, nil)
	assert.False(t, state.Transform().HasTransform())
	assert.False(t, state.AspectLock())
}

func TestRunZoomAndFit(t *testing.T) {
	_, g := run(t, `
view: {width: 400, height: 300}
steps:
  - op: zoom
    center: {x: 200, y: 150}
    scales: [1.5, 2]
`, nil)
	assert.InDelta(t, 3, g.ViewScale(), 1e-9)

	_, g = run(t, `
view: {width: 400, height: 300}
steps:
  - op: region
    rect: {left: 0, top: 0, right: 200, bottom: 150}
  - op: fit
`, nil)
	assert.InDelta(t, 2, g.ViewScale(), 1e-9)

	_, g = run(t, `
view: {width: 400, height: 300}
steps:
  - op: zoom
    center: {x: 200, y: 150}
    scales: [2]
  - op: fit
    value: image
`, nil)
	assert.InDelta(t, 1, g.ViewScale(), 1e-9)

	_, g = run(t, `
view: {width: 400, height: 300}
steps:
  - op: region
    rect: {left: 0, top: 0, right: 200, bottom: 150}
  - op: fit
    animate: true
`, nil)
	assert.InDelta(t, 2, g.ViewScale(), 1e-3)
}

func TestRunSuggest(t *testing.T) {
	sg := fixedSuggester{s: &suggest.Suggestion{
		Label: "dog",
		Box:   geom.Rect{Left: 0.25, Top: 0.25, Right: 0.75, Bottom: 0.75},
	}}
	state, _ := run(t, "steps:\n  - op: suggest\n", sg)
	assertRect(t, geom.Rect{Left: 100, Top: 75, Right: 300, Bottom: 225}, state.Region())

	none := fixedSuggester{s: &suggest.Suggestion{Label: "none", Box: geom.Rect{Left: 0.25, Top: 0.25, Right: 0.75, Bottom: 0.75}}}
	state, _ = run(t, "steps:\n  - op: suggest\n", none)
	assertRect(t, state.ImageRect(), state.Region())
}

func TestRunSuggestErrors(t *testing.T) {
	s, err := Parse(strings.NewReader("steps:\n  - op: suggest\n"))
	require.NoError(t, err)

	_, err = (&Runner{}).Run(context.Background(), s, newTestState())
	assert.ErrorIs(t, err, errNoSuggester)

	boom := errors.New("model offline")
	_, err = (&Runner{Suggester: fixedSuggester{err: boom}}).Run(context.Background(), s, newTestState())
	assert.ErrorIs(t, err, boom)
}

func TestRunCancelled(t *testing.T) {
	s, err := Parse(strings.NewReader("steps:\n  - op: rotate_left\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := newTestState()
	_, err = (&Runner{}).Run(ctx, s, state)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, state.Transform().HasTransform())
}
