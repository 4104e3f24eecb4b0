// Package cropper is the interactive crop engine: a session holding the
// image transform and crop region, the gesture handling that edits it and the
// compose pass that renders the final image.
package cropper

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/imgsrc"
)

// LoadingStatus is the background work a Cropper is doing.
type LoadingStatus int

const (
	StatusIdle LoadingStatus = iota
	PreparingImage
	SavingResult
)

func (s LoadingStatus) String() string {
	switch s {
	case PreparingImage:
		return "preparing_image"
	case SavingResult:
		return "saving_result"
	default:
		return "idle"
	}
}

// ResultStatus is how a crop ended.
type ResultStatus int

const (
	Success ResultStatus = iota
	Cancelled
	Failed
)

func (s ResultStatus) String() string {
	switch s {
	case Success:
		return "success"
	case Cancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Result is the outcome of Crop. Image is set on Success, Err on Failed.
type Result struct {
	Status ResultStatus
	Image  image.Image
	Err    error
}

// SourceFunc creates the image source of a crop, for example by decoding a
// camera capture.
type SourceFunc func(ctx context.Context) (imgsrc.ImageSrc, error)

// Cropper runs crop sessions one at a time. Starting a new crop cancels the
// one in progress.
type Cropper struct {
	style     Style
	maxSize   *geom.Size
	logger    *slog.Logger
	onStatus  func(LoadingStatus)
	onSession func(*State)
	onResult  func(Result, time.Duration)

	mu      sync.Mutex
	seq     uint64
	status  LoadingStatus
	current *State
	cancel  context.CancelFunc
}

// Option configures a Cropper.
type Option func(*Cropper)

// WithStyle sets the session style.
func WithStyle(style Style) Option {
	return func(c *Cropper) { c.style = style }
}

// WithMaxSize caps the result size. It overrides Style.MaxResultSize.
func WithMaxSize(size *geom.Size) Option {
	return func(c *Cropper) { c.maxSize = size }
}

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cropper) { c.logger = l }
}

// WithStatusHook is called on every status change.
func WithStatusHook(fn func(LoadingStatus)) Option {
	return func(c *Cropper) { c.onStatus = fn }
}

// WithSessionHook is called when a session becomes editable. The UI drives
// the session from there and ends it with State.Done.
func WithSessionHook(fn func(*State)) Option {
	return func(c *Cropper) { c.onSession = fn }
}

// WithResultHook is called with every result and the time spent composing.
func WithResultHook(fn func(Result, time.Duration)) Option {
	return func(c *Cropper) { c.onResult = fn }
}

// New creates a Cropper.
func New(opts ...Option) *Cropper {
	c := &Cropper{style: DefaultStyle()}
	for _, opt := range opts {
		opt(c)
	}
	c.style = c.style.withDefaults()
	if c.maxSize == nil {
		c.maxSize = c.style.MaxResultSize
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Status returns the current loading status.
func (c *Cropper) Status() LoadingStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Session returns the session being edited, or nil.
func (c *Cropper) Session() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Cropper) setStatus(seq uint64, s LoadingStatus) {
	c.mu.Lock()
	if c.seq != seq || c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()
	c.logger.Debug("crop status", "status", s.String(), "session", seq)
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

// Crop runs a whole crop interaction: it creates the source, publishes a
// session through the session hook, waits for it to end and, if accepted,
// composes the result in the background.
//
// A later call to Crop supersedes this one, which then returns Cancelled.
func (c *Cropper) Crop(ctx context.Context, createSrc SourceFunc) Result {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		if c.seq == seq {
			c.cancel = nil
			c.current = nil
			c.status = StatusIdle
		}
		c.mu.Unlock()
	}()

	res, elapsed := c.crop(ctx, seq, createSrc)
	switch res.Status {
	case Failed:
		c.logger.Error("crop failed", "session", seq, "error", res.Err)
	case Cancelled:
		c.logger.Info("crop cancelled", "session", seq)
	default:
		b := res.Image.Bounds()
		c.logger.Info("crop done", "session", seq, "width", b.Dx(), "height", b.Dy(), "elapsed", elapsed)
	}
	if c.onResult != nil {
		c.onResult(res, elapsed)
	}
	return res
}

func (c *Cropper) crop(ctx context.Context, seq uint64, createSrc SourceFunc) (Result, time.Duration) {
	c.setStatus(seq, PreparingImage)
	src, err := createSrc(ctx)
	if ctx.Err() != nil {
		return Result{Status: Cancelled}, 0
	}
	if err == nil && src == nil {
		err = errors.New("no image source")
	}
	if err != nil {
		return Result{Status: Failed, Err: &Error{Kind: KindLoading, Err: err}}, 0
	}

	state := NewState(src, c.style)
	c.mu.Lock()
	if c.seq == seq {
		c.current = state
	}
	c.mu.Unlock()
	c.setStatus(seq, StatusIdle)
	if c.onSession != nil {
		c.onSession(state)
	}

	accepted, err := state.Wait(ctx)
	if err != nil {
		state.Done(false)
		return Result{Status: Cancelled}, 0
	}
	if !accepted {
		return Result{Status: Cancelled}, 0
	}

	c.setStatus(seq, SavingResult)
	type composed struct {
		img image.Image
		err error
	}
	start := time.Now()
	ch := make(chan composed, 1)
	go func() {
		img, err := Compose(ctx, state.Snapshot(), c.maxSize)
		ch <- composed{img, err}
	}()

	select {
	case <-ctx.Done():
		return Result{Status: Cancelled}, time.Since(start)
	case out := <-ch:
		if out.err != nil {
			if ctx.Err() != nil {
				return Result{Status: Cancelled}, time.Since(start)
			}
			return Result{Status: Failed, Err: &Error{Kind: KindSaving, Err: out.err}}, time.Since(start)
		}
		return Result{Status: Success, Image: out.img}, time.Since(start)
	}
}
