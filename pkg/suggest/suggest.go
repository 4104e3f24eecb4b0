// Package suggest locates the main subject of an image so a crop session can
// start with a sensible region. Boxes are relative to the untransformed
// image, 0..1 on both axes.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// Backend names accepted by New.
const (
	BackendNone     = "none"
	BackendSaliency = "saliency"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// ErrNoBackend is returned by New when suggestions are turned off.
var ErrNoBackend = errors.New("no suggestion backend configured")

// Suggestion is a located subject.
type Suggestion struct {
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	Box         geom.Rect `json:"box"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// None reports whether no subject was found. Box then holds a centred
// fallback.
func (s *Suggestion) None() bool {
	return strings.EqualFold(s.Label, "none")
}

// Suggester proposes a subject box for an image.
type Suggester interface {
	Suggest(ctx context.Context, img image.Image) (*Suggestion, error)
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	// URL of the model server, for the ollama and llamacpp backends.
	URL   string
	Model string
	// Prompt overrides DefaultPrompt.
	Prompt string
	// MaxDim is the longest side of the image sent to a model.
	MaxDim  int
	Timeout time.Duration
}

// New creates the backend named by opts.Backend.
func New(opts Options) (Suggester, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendNone:
		return nil, ErrNoBackend
	case BackendSaliency:
		return NewSaliency(DefaultSaliencyConfig()), nil
	case BackendOllama:
		c, err := NewOllama(opts.URL, opts.Model)
		if err != nil {
			return nil, err
		}
		c.apply(opts)
		return c, nil
	case BackendLlamaCpp:
		c, err := NewLlamaCpp(opts.URL, opts.Model)
		if err != nil {
			return nil, err
		}
		c.apply(opts)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown suggestion backend: %s", opts.Backend)
	}
}

// modelDefaults are shared by the model backed suggesters.
type modelDefaults struct {
	model   string
	prompt  string
	maxDim  int
	timeout time.Duration
}

func newModelDefaults(model string) modelDefaults {
	return modelDefaults{
		model:   model,
		prompt:  DefaultPrompt,
		maxDim:  768,
		timeout: 300 * time.Second, // CPU inference is slow
	}
}

func (m *modelDefaults) apply(opts Options) {
	if opts.Model != "" {
		m.model = opts.Model
	}
	if opts.Prompt != "" {
		m.prompt = opts.Prompt
	}
	if opts.MaxDim > 0 {
		m.maxDim = opts.MaxDim
	}
	if opts.Timeout > 0 {
		m.timeout = opts.Timeout
	}
}

// withTimeout adds the backend timeout when ctx has no deadline.
func (m *modelDefaults) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

// fallbackBox is used when a model finds nothing usable.
var fallbackBox = geom.Rect{Left: 0.25, Top: 0.25, Right: 0.75, Bottom: 0.75}
