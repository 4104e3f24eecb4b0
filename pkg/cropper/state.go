package cropper

import (
	"context"
	"math"
	"sync"

	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/imgsrc"
	"github.com/menta2k/image-cropper/pkg/shape"
)

// Params is an immutable snapshot of a session, enough to compose the result.
type Params struct {
	Src       imgsrc.ImageSrc
	Transform Transform
	Region    geom.Rect
	Shape     shape.Shape
}

// State is one crop session. It is created when an image is selected, takes
// any number of edits and ends with Done.
//
// Every setter keeps the region inside the transformed image bounds and never
// lets it become empty. State is safe for concurrent use.
type State struct {
	mu         sync.RWMutex
	src        imgsrc.ImageSrc
	style      Style
	transform  Transform
	region     geom.Rect
	aspectLock bool
	shape      shape.Shape
	accepted   bool

	once sync.Once
	done chan struct{}
}

// NewState starts a session on src, initialised from style.
func NewState(src imgsrc.ImageSrc, style Style) *State {
	s := &State{
		src:  src,
		done: make(chan struct{}),
	}
	s.Init(style)
	return s
}

// Init resets the session and applies the initial aspect of style, if any.
func (s *State) Init(style Style) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.style = style.withDefaults()
	s.reset()
	if a := s.style.InitialAspect; a != nil {
		s.region = s.region.SetAspect(a.Ratio())
		s.aspectLock = true
	}
}

// Reset restores the identity transform, the full image region, no aspect
// lock and the first configured shape.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *State) reset() {
	s.transform = IdentityTransform()
	s.region = s.imageRect()
	s.aspectLock = false
	s.shape = s.style.Shapes[0]
}

// Src is the image being cropped.
func (s *State) Src() imgsrc.ImageSrc { return s.src }

// Style returns the session configuration.
func (s *State) Style() Style {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.style
}

// Transform returns the current rotation and flips.
func (s *State) Transform() Transform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transform
}

// Region returns the crop rectangle in region space.
func (s *State) Region() geom.Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.region
}

// AspectLock reports whether resizes keep the region aspect.
func (s *State) AspectLock() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aspectLock
}

// Shape is the selected clip shape.
func (s *State) Shape() shape.Shape {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shape
}

// Accepted reports whether the session ended with accept.
func (s *State) Accepted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accepted
}

// ImageRect returns the bounds of the transformed image in region space.
func (s *State) ImageRect() geom.Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imageRect()
}

func (s *State) imageRect() geom.Rect {
	return TransformedImageRect(s.transform, s.src.Size())
}

// SetRegion sets the region, constrained to the image bounds:
//   - a pure move is shifted back inside;
//   - a resize keeps the previous aspect when aspect lock is on and shrinks
//     to fit;
//   - any other resize has its edges clamped.
//
// A region that would end up empty becomes 1x1 at the anchor edges.
func (s *State) SetRegion(r geom.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.region = constrainRegion(r, s.region, s.imageRect(), s.aspectLock)
}

func constrainRegion(r, old, bounds geom.Rect, lock bool) geom.Rect {
	if !isFinite(r) {
		return old
	}
	var out geom.Rect
	switch {
	case r.IsEmpty():
		out = r
	case geom.Eq(r.Width(), old.Width()) && geom.Eq(r.Height(), old.Height()):
		out = r.ConstrainOffset(bounds)
	case lock:
		out = fitInto(r.KeepAspect(old).ScaleToFit(bounds, old), bounds)
	default:
		out = r.ConstrainResize(bounds)
	}
	if out.IsEmpty() || !isFinite(out) {
		out = r.SetSize(old, geom.Size{Width: 1, Height: 1}).ConstrainOffset(bounds)
	}
	return out
}

func isFinite(r geom.Rect) bool {
	for _, v := range [4]float64{r.Left, r.Top, r.Right, r.Bottom} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SetTransform changes the image transform. The region follows the image, so
// it keeps covering the same pixels, and is then constrained to the new
// image bounds. With aspect lock on, the region keeps its aspect.
func (s *State) SetTransform(t Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.src.Size()
	region := s.region
	if inv, ok := s.transform.Matrix(size).Invert(); ok {
		region = inv.Then(t.Matrix(size)).MapRect(region)
	}
	s.transform = t
	bounds := s.imageRect()

	if s.aspectLock {
		ks := region.Size().KeepAspect(s.region.Size())
		region = fitInto(region.SetSizeCenter(ks.Width, ks.Height), bounds)
	} else {
		region = region.ConstrainResize(bounds)
	}
	if region.IsEmpty() {
		region = bounds
	}
	s.region = region
}

// fitInto shrinks r when it is larger than bounds and moves it inside.
func fitInto(r, bounds geom.Rect) geom.Rect {
	if r.Width() > bounds.Width() || r.Height() > bounds.Height() {
		r = r.FitIn(bounds)
	}
	return r.ConstrainOffset(bounds)
}

// RotLeft, RotRight, FlipHorizontal and FlipVertical apply one step to the
// current transform.
func (s *State) RotLeft()        { s.SetTransform(s.Transform().RotLeft()) }
func (s *State) RotRight()       { s.SetTransform(s.Transform().RotRight()) }
func (s *State) FlipHorizontal() { s.SetTransform(s.Transform().FlipHorizontal()) }
func (s *State) FlipVertical()   { s.SetTransform(s.Transform().FlipVertical()) }

// SetAspectLock toggles whether resizes keep the region aspect.
func (s *State) SetAspectLock(lock bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aspectLock = lock
}

// SetAspect replaces the region with the largest centred rectangle of the
// given aspect that fits in it.
func (s *State) SetAspect(a AspectRatio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.region = s.region.SetAspect(a.Ratio())
}

// SetShape selects the clip shape.
func (s *State) SetShape(sh shape.Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shape = sh
}

// ApplySuggestion moves the region onto box, given relative to the
// untransformed image (0..1 on both axes). With aspect lock on, or an initial
// aspect configured, the box is grown around its centre to that aspect.
func (s *State) ApplySuggestion(box geom.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.src.Size()
	abs := geom.RectFromCorners(
		size.Rect().ToRect().Abs(box.TopLeft()),
		size.Rect().ToRect().Abs(box.BottomRight()),
	)
	r := s.transform.Matrix(size).MapRect(abs)
	bounds := s.imageRect()

	var aspect float64
	switch {
	case s.aspectLock && !s.region.IsEmpty():
		aspect = s.region.Size().Aspect()
	case s.style.InitialAspect != nil:
		aspect = s.style.InitialAspect.Ratio()
	}
	if aspect > 0 && !r.IsEmpty() {
		w, h := r.Width(), r.Height()
		if w/h < aspect {
			w = h * aspect
		} else {
			h = w / aspect
		}
		r = r.SetSizeCenter(w, h)
	}
	r = fitInto(r, bounds)
	if r.IsEmpty() {
		return
	}
	s.region = r
}

// Done ends the session. Only the first call has an effect; it reports
// whether this call ended the session.
func (s *State) Done(accept bool) bool {
	ended := false
	s.once.Do(func() {
		s.mu.Lock()
		s.accepted = accept
		s.mu.Unlock()
		close(s.done)
		ended = true
	})
	return ended
}

// Finished is closed once Done has been called.
func (s *State) Finished() <-chan struct{} {
	return s.done
}

// Wait blocks until the session ends or ctx is done and returns whether the
// session was accepted.
func (s *State) Wait(ctx context.Context) (bool, error) {
	select {
	case <-s.done:
		return s.Accepted(), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Snapshot returns the parameters needed to compose the result.
func (s *State) Snapshot() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Params{
		Src:       s.src,
		Transform: s.transform,
		Region:    s.region,
		Shape:     s.shape,
	}
}
