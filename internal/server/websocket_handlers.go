package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/menta2k/image-cropper/internal/utils"
	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/imgsrc"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/shape"
)

const (
	// suggestMaxDim bounds the thumbnail handed to the suggester.
	suggestMaxDim = 512
	// fitStep is the share of the remaining distance an animated fit covers
	// per frame.
	fitStep = 0.3
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// session is the crop state of one connection.
type session struct {
	srv     *Server
	conn    WebSocketConnWriter
	logger  *slog.Logger
	ctx     context.Context
	cropper *cropper.Cropper

	writeMu sync.Mutex

	mu       sync.Mutex
	state    *cropper.State
	gestures *cropper.Gestures
}

func (s *Server) newSession(ctx context.Context, conn WebSocketConnWriter, logger *slog.Logger) *session {
	sess := &session{srv: s, conn: conn, logger: logger, ctx: ctx}
	sess.cropper = s.newCropper(sess)
	return sess
}

// sessionWebSocketHandler upgrades the connection and runs one session on it.
func (s *Server) sessionWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	logger := s.logger.With("remote_addr", r.RemoteAddr)
	logger.Info("WebSocket connection established")

	// the session outlives the handshake request
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.SetReadLimit(int64(s.cfg.MaxUploadMB) << 21) // base64 headroom
	s.handleWebSocketConnection(ctx, conn, s.newSession(ctx, conn, logger))
}

// handleWebSocketConnection processes messages until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, sess *session) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				sess.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			sess.handleMessage(data)
		}
	}
}

func (sess *session) handleMessage(data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		sess.sendError("invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	switch req.Type {
	case MsgOpen:
		sess.open(req)
	case MsgSuggest:
		sess.suggest()
	case MsgPreview:
		sess.preview()
	case MsgDragStart, MsgDragMove, MsgDragEnd, MsgZoomStart, MsgZoom, MsgZoomEnd,
		MsgRotateLeft, MsgRotateRight, MsgFlipHorizontal, MsgFlipVertical, MsgReset,
		MsgAspect, MsgLock, MsgShape, MsgRegion, MsgFit, MsgAccept, MsgCancel:
		sess.edit(req)
	default:
		sess.sendError("invalid_request", "Unsupported message type: "+req.Type)
	}
}

// open starts a crop of the uploaded image, superseding any crop in progress.
func (sess *session) open(req Request) {
	if len(req.Image) == 0 {
		sess.sendError("invalid_request", "No image data provided")
		return
	}
	format := req.Format
	if format == "" {
		format = sess.srv.cfg.Format
	}
	format, err := processing.NormalizeFormat(format)
	if err != nil {
		sess.sendError("invalid_request", err.Error())
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = "crop"
	}

	data, minSize := req.Image, sess.srv.cfg.MinImageSize
	go func() {
		res := sess.cropper.Crop(sess.ctx, func(ctx context.Context) (imgsrc.ImageSrc, error) {
			src, err := imgsrc.FromBytes(data)
			if err != nil {
				return nil, err
			}
			if err := imgsrc.Validate(src, minSize); err != nil {
				return nil, err
			}
			return src, nil
		})
		sess.finish(res, filename, format)
	}()
}

func (sess *session) current() (*cropper.State, *cropper.Gestures) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state, sess.gestures
}

// edit applies a gesture or menu action to the current session.
func (sess *session) edit(req Request) {
	st, g := sess.current()
	if st == nil {
		sess.sendError("no_session", "No crop session in progress")
		return
	}

	switch req.Type {
	case MsgDragStart, MsgDragMove, MsgZoomStart, MsgZoom:
		if req.Pos == nil {
			sess.sendError("invalid_request", req.Type+" needs pos")
			return
		}
	}

	switch req.Type {
	case MsgDragStart:
		g.DragStart(*req.Pos)
	case MsgDragMove:
		g.DragMove(*req.Pos)
	case MsgDragEnd:
		g.DragEnd()
	case MsgZoomStart:
		g.ZoomStart(*req.Pos)
	case MsgZoom:
		g.Zoom(*req.Pos, req.Scale)
	case MsgZoomEnd:
		g.ZoomEnd()
	case MsgRotateLeft:
		st.RotLeft()
	case MsgRotateRight:
		st.RotRight()
	case MsgFlipHorizontal:
		st.FlipHorizontal()
	case MsgFlipVertical:
		st.FlipVertical()
	case MsgReset:
		st.Reset()
		g.SnapFit(st.ImageRect(), sess.srv.cfg.View.Rect().ToRect())
	case MsgAspect:
		a, err := cropper.ParseAspectRatio(req.Value)
		if err != nil {
			sess.sendError("invalid_request", err.Error())
			return
		}
		st.SetAspect(a)
	case MsgLock:
		st.SetAspectLock(req.Lock)
	case MsgShape:
		sh, err := shape.ByName(req.Value)
		if err != nil {
			sess.sendError("invalid_request", err.Error())
			return
		}
		st.SetShape(sh)
	case MsgRegion:
		if req.Rect == nil {
			sess.sendError("invalid_request", "region needs rect")
			return
		}
		st.SetRegion(*req.Rect)
	case MsgFit:
		inner := st.Region()
		if req.Value == "image" {
			inner = st.ImageRect()
		}
		outer := sess.srv.cfg.View.Rect().ToRect()
		if req.Animate {
			g.AnimateFit(inner, outer, fitStep, func(geom.Matrix) { sess.sendState(st, g) })
			return
		}
		g.SnapFit(inner, outer)
	case MsgAccept:
		st.Done(true)
		return
	case MsgCancel:
		st.Done(false)
		return
	}
	sess.sendState(st, g)
}

// preview renders the current view and sends it as a JPEG.
func (sess *session) preview() {
	st, g := sess.current()
	if st == nil {
		sess.sendError("no_session", "No crop session in progress")
		return
	}

	start := time.Now()
	view := sess.srv.cfg.View
	p := st.Snapshot()
	vm := g.ViewMatrix()
	total := p.Transform.Matrix(p.Src.Size()).Then(vm)
	if params, ok := imgsrc.ParamsFor(view, p.Src.Size(), total); ok {
		n := params.Subset.Width() * params.Subset.Height() / (params.SampleSize * params.SampleSize)
		decodedPixels.Observe(float64(n))
	}

	img, err := cropper.RenderPreview(sess.ctx, p, vm, view, st.Style())
	if err != nil {
		sess.sendError("preview_error", err.Error())
		return
	}
	encoded, err := sess.srv.cfg.Processor.EncodeBase64(img, processing.FormatJPEG)
	if err != nil {
		sess.sendError("preview_error", err.Error())
		return
	}
	previewDuration.Observe(time.Since(start).Seconds())

	sess.send(Response{
		Type:   RespPreview,
		Image:  encoded,
		Format: processing.FormatJPEG,
		Width:  view.Width,
		Height: view.Height,
	})
}

// suggest locates the subject in the background and moves the region onto it.
func (sess *session) suggest() {
	sg := sess.srv.cfg.Suggester
	if sg == nil {
		sess.sendError("suggest_unavailable", "No suggestion backend configured")
		return
	}
	st, g := sess.current()
	if st == nil {
		sess.sendError("no_session", "No crop session in progress")
		return
	}

	go func() {
		thumb, err := imgsrc.Thumbnail(sess.ctx, st.Src(), suggestMaxDim)
		if err != nil {
			suggestionsTotal.WithLabelValues("error").Inc()
			sess.sendError("suggest_error", err.Error())
			return
		}
		res, err := sg.Suggest(sess.ctx, thumb)
		if err != nil {
			suggestionsTotal.WithLabelValues("error").Inc()
			sess.sendError("suggest_error", err.Error())
			return
		}
		if res.None() {
			suggestionsTotal.WithLabelValues("none").Inc()
		} else {
			suggestionsTotal.WithLabelValues("applied").Inc()
			st.ApplySuggestion(res.Box)
		}
		sess.logger.Debug("Region suggested", "label", res.Label, "confidence", res.Confidence)
		sess.sendState(st, g)
	}()
}

// finish reports how a crop ended.
func (sess *session) finish(res cropper.Result, filename, format string) {
	sess.mu.Lock()
	if sess.state != nil {
		select {
		case <-sess.state.Finished():
			sess.state, sess.gestures = nil, nil
		default:
		}
	}
	sess.mu.Unlock()

	switch res.Status {
	case cropper.Success:
		encoded, err := sess.srv.cfg.Processor.EncodeBase64(res.Image, format)
		if err != nil {
			sess.sendError("saving", err.Error())
			return
		}
		b := res.Image.Bounds()
		name := utils.GenerateOutputFilename(utils.SanitizeFilename(filename), "",
			sess.srv.cfg.Prefix, sess.srv.cfg.Suffix, format)
		sess.send(Response{
			Type:     RespResult,
			Status:   res.Status.String(),
			Image:    encoded,
			Format:   format,
			Width:    b.Dx(),
			Height:   b.Dy(),
			Filename: name,
		})
	case cropper.Cancelled:
		sess.send(Response{Type: RespResult, Status: res.Status.String()})
	default:
		errType := "processing_error"
		var ce *cropper.Error
		if errors.As(res.Err, &ce) {
			errType = ce.Kind.String()
		}
		sess.sendError(errType, res.Err.Error())
	}
}

func (sess *session) onStatus(s cropper.LoadingStatus) {
	sess.send(Response{Type: RespStatus, Status: s.String()})
}

// onSession shows a new session with the whole image fitted to the view.
func (sess *session) onSession(st *cropper.State) {
	viewSize := sess.srv.cfg.View
	view := cropper.NewViewMat()
	view.SnapFit(st.ImageRect(), viewSize.Rect().ToRect())
	limits := cropper.NewZoomLimits(st.Src().Size(), viewSize, st.Style().MinCropSize)
	g := cropper.NewGestures(st, view, limits)

	sess.mu.Lock()
	sess.state, sess.gestures = st, g
	sess.mu.Unlock()
	sess.sendState(st, g)
}

func (sess *session) onResult(res cropper.Result, elapsed time.Duration) {
	cropsTotal.WithLabelValues(res.Status.String()).Inc()
	if res.Status != cropper.Success {
		return
	}
	composeDuration.Observe(elapsed.Seconds())
	b := res.Image.Bounds()
	resultPixels.Observe(float64(b.Dx() * b.Dy()))
}

func stateInfo(st *cropper.State, g *cropper.Gestures) *StateInfo {
	style := st.Style()
	size := st.Src().Size()
	region := st.Region()

	aspects := make([]AspectInfo, 0, len(style.Aspects))
	for _, a := range style.Aspects {
		aspects = append(aspects, AspectInfo{Name: a.Name, Ratio: a.String(), Active: a.IsAspect(region.Size())})
	}
	shapes := make([]string, 0, len(style.Shapes))
	for _, sh := range style.Shapes {
		shapes = append(shapes, sh.Name())
	}
	m := g.ViewMatrix()
	return &StateInfo{
		ImageWidth:  size.Width,
		ImageHeight: size.Height,
		Transform:   st.Transform(),
		Region:      region,
		ImageRect:   st.ImageRect(),
		AspectLock:  st.AspectLock(),
		Shape:       st.Shape().Name(),
		Aspects:     aspects,
		Shapes:      shapes,
		ViewScale:   m.ScaleFactor(),
		ViewOffset:  geom.Offset{X: m.C, Y: m.F},
		Dragging:    g.Pending() != nil,
		Zooming:     g.Zooming(),
	}
}

func (sess *session) sendState(st *cropper.State, g *cropper.Gestures) {
	sess.send(Response{Type: RespState, State: stateInfo(st, g)})
}

// send writes a response. Writes are serialised since hooks fire from the
// crop goroutine.
func (sess *session) send(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		sess.logger.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	sess.writeMu.Lock()
	err = sess.conn.WriteMessage(websocket.TextMessage, data)
	sess.writeMu.Unlock()
	if err != nil {
		sess.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendError sends an error message over WebSocket.
func (sess *session) sendError(errorType, message string) {
	sess.send(Response{Type: RespError, Error: message, ErrorType: errorType})
}
