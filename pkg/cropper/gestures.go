package cropper

import (
	"sync"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// DragHandle is a drag in progress.
type DragHandle struct {
	Handle        geom.Offset
	InitialPos    geom.Offset
	InitialRegion geom.Rect
}

// FindHandle returns the first handle of region within touchRad2 (squared
// distance) of pos. When none is close enough but pos is inside region it
// returns MoveHandle. The second result is false when pos hits nothing.
func FindHandle(handles []geom.Offset, region geom.Rect, pos geom.Offset, touchRad2 float64) (geom.Offset, bool) {
	for _, h := range handles {
		if region.Abs(h).Sub(pos).DistanceSquared() <= touchRad2 {
			return h, true
		}
	}
	if region.Contains(pos) {
		return MoveHandle, true
	}
	return geom.Offset{}, false
}

// Gestures turns screen space touch input into region edits on a State.
// It owns the view matrix; every access to it goes through Gestures, so the
// view may be read from other goroutines while gestures are applied.
type Gestures struct {
	state  *State
	view   *ViewMat
	limits ZoomLimits

	mu      sync.Mutex
	pending *DragHandle
	zooming bool
}

// maxFitFrames bounds AnimateFit before it snaps to the target.
const maxFitFrames = 60

// NewGestures binds gesture handling to a session and its view. The view
// must not be used directly afterwards.
func NewGestures(state *State, view *ViewMat, limits ZoomLimits) *Gestures {
	return &Gestures{state: state, view: view, limits: limits}
}

// ViewMatrix returns the current region to screen matrix.
func (g *Gestures) ViewMatrix() geom.Matrix {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view.Matrix()
}

// ViewScale returns the current zoom factor.
func (g *Gestures) ViewScale() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view.Scale()
}

// SnapFit makes inner fill outer on screen.
func (g *Gestures) SnapFit(inner, outer geom.Rect) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.SnapFit(inner, outer)
}

// Fit moves the view one step toward fitting inner in outer and reports
// whether it got there.
func (g *Gestures) Fit(inner, outer geom.Rect, p float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view.Fit(inner, outer, p)
}

// AnimateFit steps Fit until inner fills outer, calling frame with the view
// matrix after every step. It returns the number of frames. After
// maxFitFrames steps the view snaps to the target.
func (g *Gestures) AnimateFit(inner, outer geom.Rect, p float64, frame func(geom.Matrix)) int {
	if p <= 0 || p > 1 {
		p = 1
	}
	for n := 1; ; n++ {
		done := g.Fit(inner, outer, p)
		if !done && n == maxFitFrames {
			g.SnapFit(inner, outer)
			done = true
		}
		if frame != nil {
			frame(g.ViewMatrix())
		}
		if done {
			return n
		}
	}
}

// Limits returns the zoom limits in use.
func (g *Gestures) Limits() ZoomLimits { return g.limits }

// touchRad2 converts the screen touch radius into squared region units.
func (g *Gestures) touchRad2() float64 {
	r := g.state.Style().TouchRadius / g.view.Scale()
	return r * r
}

// DragStart begins a drag at the screen position pos. It reports whether a
// handle or the region was hit.
func (g *Gestures) DragStart(pos geom.Offset) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	local := g.view.Inverse().Map(pos)
	region := g.state.Region()
	h, ok := FindHandle(g.state.Style().Handles, region, local, g.touchRad2())
	if !ok {
		g.pending = nil
		return false
	}
	g.pending = &DragHandle{Handle: h, InitialPos: local, InitialRegion: region}
	return true
}

// DragMove applies the drag up to the screen position pos. The delta is
// always measured from where the drag started.
func (g *Gestures) DragMove(pos geom.Offset) {
	g.mu.Lock()
	p := g.pending
	local := g.view.Inverse().Map(pos)
	g.mu.Unlock()
	if p == nil {
		return
	}

	delta := local.Sub(p.InitialPos).Round()
	var next geom.Rect
	if p.Handle != MoveHandle {
		next = p.InitialRegion.Resize(p.Handle, delta, g.limits.MinCropSize)
	} else {
		next = p.InitialRegion.Translate(delta)
	}
	g.state.SetRegion(next)
}

// DragEnd finishes the drag.
func (g *Gestures) DragEnd() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
}

// Pending returns the drag in progress, if any. The returned value is not
// modified by later gestures.
func (g *Gestures) Pending() *DragHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// ZoomStart begins a pinch centred on c.
func (g *Gestures) ZoomStart(c geom.Offset) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.ZoomStart(c)
	g.zooming = true
}

// Zoom applies the incremental scale s around the current centre c.
func (g *Gestures) Zoom(c geom.Offset, s float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.Zoom(c, s, g.limits)
}

// ZoomEnd finishes the pinch.
func (g *Gestures) ZoomEnd() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.zooming = false
}

// Zooming reports whether a pinch is in progress.
func (g *Gestures) Zooming() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.zooming
}
