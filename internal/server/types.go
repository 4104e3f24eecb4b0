package server

import (
	"log/slog"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/suggest"
)

// Config holds server configuration.
type Config struct {
	MetricsPath string
	MaxUploadMB int
	// View is the screen size previews are rendered at.
	View         geom.IntSize
	Style        cropper.Style
	MinImageSize int
	Processor    *processing.Processor
	// Format is the result format used when a client does not ask for one.
	Format         string
	Prefix, Suffix string
	// Suggester serves suggest requests; nil turns them off.
	Suggester suggest.Suggester
	Logger    *slog.Logger
	Version   string
}

// Client message types.
const (
	MsgOpen           = "open"
	MsgDragStart      = "drag_start"
	MsgDragMove       = "drag_move"
	MsgDragEnd        = "drag_end"
	MsgZoomStart      = "zoom_start"
	MsgZoom           = "zoom"
	MsgZoomEnd        = "zoom_end"
	MsgRotateLeft     = "rotate_left"
	MsgRotateRight    = "rotate_right"
	MsgFlipHorizontal = "flip_horizontal"
	MsgFlipVertical   = "flip_vertical"
	MsgReset          = "reset"
	MsgAspect         = "aspect"
	MsgLock           = "lock"
	MsgShape          = "shape"
	MsgRegion         = "region"
	MsgSuggest        = "suggest"
	MsgFit            = "fit"
	MsgPreview        = "preview"
	MsgAccept         = "accept"
	MsgCancel         = "cancel"
)

// Server message types.
const (
	RespState   = "state"
	RespStatus  = "status"
	RespPreview = "preview"
	RespResult  = "result"
	RespError   = "error"
)

// Request is a message from the client. Positions are screen pixels of the
// configured view.
type Request struct {
	Type string `json:"type"`
	// Image is the encoded image of an open request.
	Image    []byte       `json:"image,omitempty"`
	Filename string       `json:"filename,omitempty"`
	Format   string       `json:"format,omitempty"`
	Pos      *geom.Offset `json:"pos,omitempty"`
	Scale    float64      `json:"scale,omitempty"`
	Value    string       `json:"value,omitempty"`
	Lock     bool         `json:"lock,omitempty"`
	Rect     *geom.Rect   `json:"rect,omitempty"`
	// Animate makes a fit request send a state per animation frame.
	Animate bool `json:"animate,omitempty"`
}

// Response is a message to the client.
type Response struct {
	Type      string     `json:"type"`
	State     *StateInfo `json:"state,omitempty"`
	Status    string     `json:"status,omitempty"`
	Image     string     `json:"image,omitempty"` // base64
	Format    string     `json:"format,omitempty"`
	Width     int        `json:"width,omitempty"`
	Height    int        `json:"height,omitempty"`
	Filename  string     `json:"filename,omitempty"`
	ElapsedMs int64      `json:"elapsed_ms,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorType string     `json:"error_type,omitempty"`
}

// StateInfo describes the session after an edit.
type StateInfo struct {
	ImageWidth  int               `json:"image_width"`
	ImageHeight int               `json:"image_height"`
	Transform   cropper.Transform `json:"transform"`
	Region      geom.Rect         `json:"region"`
	ImageRect   geom.Rect         `json:"image_rect"`
	AspectLock  bool              `json:"aspect_lock"`
	Shape       string            `json:"shape"`
	Aspects     []AspectInfo      `json:"aspects"`
	Shapes      []string          `json:"shapes"`
	// ViewScale and ViewOffset place region space on the screen.
	ViewScale  float64     `json:"view_scale"`
	ViewOffset geom.Offset `json:"view_offset"`
	Dragging   bool        `json:"dragging"`
	Zooming    bool        `json:"zooming"`
}

// AspectInfo is an entry of the aspect menu.
type AspectInfo struct {
	Name   string `json:"name"`
	Ratio  string `json:"ratio"`
	Active bool   `json:"active"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}
