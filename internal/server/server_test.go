package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/suggest"
)

type fixedSuggester struct {
	box geom.Rect
}

func (f fixedSuggester) Suggest(ctx context.Context, img image.Image) (*suggest.Suggestion, error) {
	return &suggest.Suggestion{Label: "subject", Confidence: 0.9, Box: f.box}, nil
}

func testConfig() Config {
	return Config{
		View:   geom.IntSize{Width: 400, Height: 300},
		Format: "png",
		Suffix: "_cropped",
	}
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewServer(cfg).SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readUntil skips messages until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) Response {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var resp Response
		require.NoError(t, conn.ReadJSON(&resp))
		if resp.Type == typ {
			return resp
		}
		if resp.Type == RespError {
			t.Fatalf("unexpected error while waiting for %s: %s (%s)", typ, resp.Error, resp.ErrorType)
		}
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeBase64Image(t *testing.T, s string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func openSession(t *testing.T, conn *websocket.Conn) *StateInfo {
	t.Helper()
	sendJSON(t, conn, Request{Type: MsgOpen, Image: encodePNG(t, 400, 300), Filename: "photo.jpg"})
	resp := readUntil(t, conn, RespState)
	require.NotNil(t, resp.State)
	return resp.State
}

func TestHealthHandler(t *testing.T) {
	s := NewServer(Config{Version: "1.2.3"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.healthHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)

	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	w = httptest.NewRecorder()
	s.healthHandler(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "image_cropper_websocket_active_connections")
}

func TestSessionCropFlow(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := dial(t, ts)

	st := openSession(t, conn)
	assert.Equal(t, 400, st.ImageWidth)
	assert.Equal(t, 300, st.ImageHeight)
	assert.Equal(t, geom.Rect{Right: 400, Bottom: 300}, st.Region)
	assert.InDelta(t, 1, st.ViewScale, 1e-9)
	assert.Equal(t, "rect", st.Shape)
	assert.Equal(t, []string{"rect", "oval", "triangle", "star"}, st.Shapes)

	sendJSON(t, conn, Request{Type: MsgAspect, Value: "square"})
	st = readUntil(t, conn, RespState).State
	assert.InDelta(t, 300, st.Region.Width(), 1e-6)
	assert.InDelta(t, 300, st.Region.Height(), 1e-6)
	require.NotEmpty(t, st.Aspects)
	assert.Equal(t, "square", st.Aspects[0].Name)
	assert.True(t, st.Aspects[0].Active)

	sendJSON(t, conn, Request{Type: MsgRotateRight})
	st = readUntil(t, conn, RespState).State
	assert.Equal(t, 90, st.Transform.AngleDeg)
	assert.InDelta(t, 300, st.Region.Width(), 1e-6)

	sendJSON(t, conn, Request{Type: MsgShape, Value: "oval"})
	st = readUntil(t, conn, RespState).State
	assert.Equal(t, "oval", st.Shape)

	sendJSON(t, conn, Request{Type: MsgPreview})
	preview := readUntil(t, conn, RespPreview)
	assert.Equal(t, 400, preview.Width)
	assert.Equal(t, 300, preview.Height)
	assert.Equal(t, image.Rect(0, 0, 400, 300), decodeBase64Image(t, preview.Image).Bounds())

	sendJSON(t, conn, Request{Type: MsgAccept})
	result := readUntil(t, conn, RespResult)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "png", result.Format)
	assert.Equal(t, 300, result.Width)
	assert.Equal(t, 300, result.Height)
	assert.Equal(t, "photo_cropped.png", result.Filename)
	assert.Equal(t, image.Rect(0, 0, 300, 300), decodeBase64Image(t, result.Image).Bounds())

	// the session is over
	sendJSON(t, conn, Request{Type: MsgReset})
	errResp := readUntil(t, conn, RespError)
	assert.Equal(t, "no_session", errResp.ErrorType)
}

func TestSessionDrag(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := dial(t, ts)
	openSession(t, conn)

	sendJSON(t, conn, Request{Type: MsgRegion, Rect: &geom.Rect{Left: 100, Top: 100, Right: 300, Bottom: 200}})
	readUntil(t, conn, RespState)

	sendJSON(t, conn, Request{Type: MsgDragStart, Pos: &geom.Offset{X: 200, Y: 150}})
	assert.True(t, readUntil(t, conn, RespState).State.Dragging)
	sendJSON(t, conn, Request{Type: MsgDragMove, Pos: &geom.Offset{X: 230, Y: 140}})
	st := readUntil(t, conn, RespState).State
	assert.InDelta(t, 130, st.Region.Left, 1e-6)
	assert.InDelta(t, 90, st.Region.Top, 1e-6)
	assert.InDelta(t, 200, st.Region.Width(), 1e-6)
	sendJSON(t, conn, Request{Type: MsgDragEnd})
	assert.False(t, readUntil(t, conn, RespState).State.Dragging)

	sendJSON(t, conn, Request{Type: MsgDragMove})
	errResp := readUntil(t, conn, RespError)
	assert.Equal(t, "invalid_request", errResp.ErrorType)
}

func TestSessionCancel(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := dial(t, ts)
	openSession(t, conn)

	sendJSON(t, conn, Request{Type: MsgCancel})
	result := readUntil(t, conn, RespResult)
	assert.Equal(t, "cancelled", result.Status)
	assert.Empty(t, result.Image)
}

func TestSessionSupersede(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := dial(t, ts)
	openSession(t, conn)

	// a second open cancels the first crop and starts a new session
	sendJSON(t, conn, Request{Type: MsgOpen, Image: encodePNG(t, 200, 100)})
	// the old result and the new state may arrive in either order
	var result Response
	var st *StateInfo
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for result.Type == "" || st == nil {
		var resp Response
		require.NoError(t, conn.ReadJSON(&resp))
		switch resp.Type {
		case RespResult:
			result = resp
		case RespState:
			st = resp.State
		}
	}
	assert.Equal(t, "cancelled", result.Status)
	assert.Equal(t, 200, st.ImageWidth)
}

func TestSessionSuggest(t *testing.T) {
	cfg := testConfig()
	cfg.Suggester = fixedSuggester{box: geom.Rect{Left: 0.25, Top: 0.25, Right: 0.75, Bottom: 0.75}}
	ts := newTestServer(t, cfg)
	conn := dial(t, ts)
	openSession(t, conn)

	sendJSON(t, conn, Request{Type: MsgSuggest})
	st := readUntil(t, conn, RespState).State
	assert.InDelta(t, 100, st.Region.Left, 1e-6)
	assert.InDelta(t, 75, st.Region.Top, 1e-6)
	assert.InDelta(t, 300, st.Region.Right, 1e-6)
	assert.InDelta(t, 225, st.Region.Bottom, 1e-6)
}

func TestSessionFit(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := dial(t, ts)
	openSession(t, conn)

	sendJSON(t, conn, Request{Type: MsgRegion, Rect: &geom.Rect{Left: 100, Top: 100, Right: 300, Bottom: 200}})
	readUntil(t, conn, RespState)

	// the preview reply marks the end of the animation frames
	sendJSON(t, conn, Request{Type: MsgFit, Animate: true})
	sendJSON(t, conn, Request{Type: MsgPreview})
	var scales []float64
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var resp Response
		require.NoError(t, conn.ReadJSON(&resp))
		if resp.Type == RespPreview {
			break
		}
		if resp.Type == RespState {
			scales = append(scales, resp.State.ViewScale)
		}
	}
	require.Greater(t, len(scales), 1)
	assert.InDelta(t, 2, scales[len(scales)-1], 1e-3)
	for i := 1; i < len(scales); i++ {
		assert.Greater(t, scales[i], scales[i-1])
	}

	sendJSON(t, conn, Request{Type: MsgFit, Value: "image"})
	st := readUntil(t, conn, RespState).State
	assert.InDelta(t, 1, st.ViewScale, 1e-9)
}

func TestSessionZoomWhileSuggesting(t *testing.T) {
	cfg := testConfig()
	cfg.Suggester = fixedSuggester{box: geom.Rect{Left: 0.25, Top: 0.25, Right: 0.75, Bottom: 0.75}}
	ts := newTestServer(t, cfg)
	conn := dial(t, ts)
	openSession(t, conn)

	// the suggestion reports state from its own goroutine while zooms land
	c := &geom.Offset{X: 200, Y: 150}
	sendJSON(t, conn, Request{Type: MsgZoomStart, Pos: c})
	sendJSON(t, conn, Request{Type: MsgSuggest})
	const zooms = 20
	for i := 0; i < zooms; i++ {
		sendJSON(t, conn, Request{Type: MsgZoom, Pos: c, Scale: 1.05})
	}
	sendJSON(t, conn, Request{Type: MsgZoomEnd})

	// zoom start, suggestion, zooms and zoom end each send one state
	var maxScale float64
	suggested, zooming := false, false
	for i := 0; i < zooms+3; i++ {
		st := readUntil(t, conn, RespState).State
		maxScale = math.Max(maxScale, st.ViewScale)
		suggested = suggested || geom.Eq(st.Region.Left, 100)
		zooming = zooming || st.Zooming
	}
	assert.True(t, suggested)
	assert.True(t, zooming)
	assert.InDelta(t, math.Pow(1.05, zooms), maxScale, 1e-6)
}

func TestSessionErrors(t *testing.T) {
	cfg := testConfig()
	cfg.MinImageSize = 100
	ts := newTestServer(t, cfg)
	conn := dial(t, ts)

	tests := []struct {
		name    string
		msg     any
		errType string
	}{
		{"no session", Request{Type: MsgRotateLeft}, "no_session"},
		{"no preview without session", Request{Type: MsgPreview}, "no_session"},
		{"unknown type", Request{Type: "teleport"}, "invalid_request"},
		{"invalid json", "not json", "invalid_request"},
		{"empty image", Request{Type: MsgOpen}, "invalid_request"},
		{"bad format", Request{Type: MsgOpen, Image: []byte{1}, Format: "gif"}, "invalid_request"},
		{"suggest unavailable", Request{Type: MsgSuggest}, "suggest_unavailable"},
		{"undecodable image", Request{Type: MsgOpen, Image: []byte("garbage")}, "loading"},
		{"image too small", Request{Type: MsgOpen, Image: encodePNG(t, 50, 50)}, "loading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s, ok := tt.msg.(string); ok {
				require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(s)))
			} else {
				sendJSON(t, conn, tt.msg)
			}
			resp := readUntil(t, conn, RespError)
			assert.Equal(t, tt.errType, resp.ErrorType)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSessionInvalidEdits(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := dial(t, ts)
	openSession(t, conn)

	for _, req := range []Request{
		{Type: MsgAspect, Value: "wide"},
		{Type: MsgShape, Value: "hexagon"},
		{Type: MsgRegion},
		{Type: MsgZoom, Scale: 2},
	} {
		sendJSON(t, conn, req)
		resp := readUntil(t, conn, RespError)
		assert.Equal(t, "invalid_request", resp.ErrorType, req.Type)
	}
}
