// Package script replays recorded gesture sessions. A script is a YAML file
// listing the touch and menu input of one crop session:
//
//	view: {width: 1080, height: 1080}
//	steps:
//	  - op: drag
//	    from: {x: 900, y: 700}
//	    path: [{x: 850, y: 650}, {x: 800, y: 600}]
//	  - op: rotate_right
//	  - op: aspect
//	    value: "16:9"
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/imgsrc"
	"github.com/menta2k/image-cropper/pkg/shape"
	"github.com/menta2k/image-cropper/pkg/suggest"
)

// Step operations.
const (
	OpDrag           = "drag"
	OpZoom           = "zoom"
	OpRotateLeft     = "rotate_left"
	OpRotateRight    = "rotate_right"
	OpFlipHorizontal = "flip_horizontal"
	OpFlipVertical   = "flip_vertical"
	OpReset          = "reset"
	OpAspect         = "aspect"
	OpLock           = "lock"
	OpShape          = "shape"
	OpRegion         = "region"
	OpSuggest        = "suggest"
	OpFit            = "fit"
)

// DefaultView is used when a script does not set its view size.
var DefaultView = geom.IntSize{Width: 1080, Height: 1080}

const (
	// suggestMaxDim bounds the thumbnail handed to a suggester.
	suggestMaxDim = 512
	// fitStep is the per frame progress of an animated fit.
	fitStep = 0.3
)

var errNoSuggester = errors.New("suggest step needs a suggestion backend")

// Script is a recorded session.
type Script struct {
	// View is the screen size the positions were recorded on.
	View  geom.IntSize `yaml:"view"`
	Steps []Step       `yaml:"steps"`
}

// Step is one input event. Positions are in screen pixels.
type Step struct {
	Op string `yaml:"op"`
	// From is where a drag starts.
	From *geom.Offset `yaml:"from,omitempty"`
	// Path holds the drag positions, or the pinch centres of a zoom.
	Path   []geom.Offset `yaml:"path,omitempty"`
	Center *geom.Offset  `yaml:"center,omitempty"`
	// Scales are the incremental pinch scales.
	Scales []float64 `yaml:"scales,omitempty"`
	// Value is the argument of aspect, lock, shape and fit.
	Value string `yaml:"value,omitempty"`
	// Rect is the region of a region step, in region space.
	Rect *geom.Rect `yaml:"rect,omitempty"`
	// Animate plays a fit as the UI would, frame by frame.
	Animate bool `yaml:"animate,omitempty"`
}

// Load reads a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a script. Unknown fields are rejected.
func Parse(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if s.View.IsEmpty() {
		s.View = DefaultView
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every step has the arguments its operation needs.
func (s *Script) Validate() error {
	for i, st := range s.Steps {
		if err := st.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	switch st.Op {
	case OpDrag:
		if st.From == nil || len(st.Path) == 0 {
			return errors.New("drag needs from and path")
		}
	case OpZoom:
		if st.Center == nil || len(st.Scales) == 0 {
			return errors.New("zoom needs center and scales")
		}
	case OpRegion:
		if st.Rect == nil {
			return errors.New("region needs rect")
		}
	case OpAspect:
		if _, err := cropper.ParseAspectRatio(st.Value); err != nil {
			return err
		}
	case OpShape:
		if _, err := shape.ByName(st.Value); err != nil {
			return err
		}
	case OpLock:
		if st.Value != "" {
			if _, err := strconv.ParseBool(st.Value); err != nil {
				return fmt.Errorf("invalid lock value %q", st.Value)
			}
		}
	case OpFit:
		if st.Value != "" && st.Value != "image" && st.Value != "region" {
			return fmt.Errorf("fit target must be image or region, got %q", st.Value)
		}
		return nil
	case OpRotateLeft, OpRotateRight, OpFlipHorizontal, OpFlipVertical, OpReset, OpSuggest:
	default:
		return fmt.Errorf("unknown operation %q", st.Op)
	}
	if st.Animate {
		return errors.New("animate is only valid on fit")
	}
	return nil
}

// Runner plays scripts against crop sessions.
type Runner struct {
	// Suggester serves suggest steps. Scripts without one fail on them.
	Suggester suggest.Suggester
	Logger    *slog.Logger
}

// Run replays s on state. The view starts fitted to the image. It returns
// the gesture handler so the caller can inspect the final view.
func (r *Runner) Run(ctx context.Context, s *Script, state *cropper.State) (*cropper.Gestures, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	view := cropper.NewViewMat()
	viewRect := s.View.Rect().ToRect()
	view.SnapFit(state.ImageRect(), viewRect)
	limits := cropper.NewZoomLimits(state.Src().Size(), s.View, state.Style().MinCropSize)
	g := cropper.NewGestures(state, view, limits)

	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return g, err
		}
		if err := r.step(ctx, g, state, viewRect, st); err != nil {
			return g, fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
		logger.Debug("script step", "index", i+1, "op", st.Op, "region", state.Region())
	}
	return g, nil
}

func (r *Runner) step(ctx context.Context, g *cropper.Gestures, state *cropper.State, viewRect geom.Rect, st Step) error {
	switch st.Op {
	case OpDrag:
		if !g.DragStart(*st.From) {
			// a touch that misses the region is ignored by the UI too
			return nil
		}
		for _, p := range st.Path {
			g.DragMove(p)
		}
		g.DragEnd()
	case OpZoom:
		c := *st.Center
		g.ZoomStart(c)
		for i, s := range st.Scales {
			if i < len(st.Path) {
				c = st.Path[i]
			}
			g.Zoom(c, s)
		}
		g.ZoomEnd()
	case OpRotateLeft:
		state.RotLeft()
	case OpRotateRight:
		state.RotRight()
	case OpFlipHorizontal:
		state.FlipHorizontal()
	case OpFlipVertical:
		state.FlipVertical()
	case OpReset:
		state.Reset()
	case OpAspect:
		a, err := cropper.ParseAspectRatio(st.Value)
		if err != nil {
			return err
		}
		state.SetAspect(a)
	case OpLock:
		lock := true
		if st.Value != "" {
			lock, _ = strconv.ParseBool(st.Value)
		}
		state.SetAspectLock(lock)
	case OpShape:
		sh, err := shape.ByName(st.Value)
		if err != nil {
			return err
		}
		state.SetShape(sh)
	case OpRegion:
		state.SetRegion(*st.Rect)
	case OpSuggest:
		return r.suggest(ctx, state)
	case OpFit:
		inner := state.Region()
		if st.Value == "image" {
			inner = state.ImageRect()
		}
		if st.Animate {
			g.AnimateFit(inner, viewRect, fitStep, nil)
		} else {
			g.SnapFit(inner, viewRect)
		}
	default:
		return fmt.Errorf("unknown operation %q", st.Op)
	}
	return nil
}

func (r *Runner) suggest(ctx context.Context, state *cropper.State) error {
	if r.Suggester == nil {
		return errNoSuggester
	}
	thumb, err := imgsrc.Thumbnail(ctx, state.Src(), suggestMaxDim)
	if err != nil {
		return fmt.Errorf("failed to decode thumbnail: %w", err)
	}
	sg, err := r.Suggester.Suggest(ctx, thumb)
	if err != nil {
		return err
	}
	if sg.None() {
		return nil
	}
	state.ApplySuggestion(sg.Box)
	return nil
}
