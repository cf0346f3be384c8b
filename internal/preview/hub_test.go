package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/reel/internal/decoder"
	"github.com/junsooki/reel/internal/encoder"
)

func testInfo() decoder.MediaInfo {
	return decoder.MediaInfo{
		Input:       "clip.mp4",
		FormatName:  "mov,mp4,m4a,3gp,3g2,mj2",
		VideoStream: 0,
		AudioStream: -1,
		Width:       32,
		Height:      16,
	}
}

func testFrame(n int64) *decoder.Frame {
	return &decoder.Frame{
		Number: n,
		Width:  32,
		Height: 16,
		Image:  image.NewRGBA(image.Rect(0, 0, 32, 16)),
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/frames"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubInfo(t *testing.T) {
	hub := NewHub("", testInfo(), encoder.NewJPEGEncoder(70), 0)
	defer hub.Close()

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	w := httptest.NewRecorder()
	hub.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var got decoder.MediaInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, testInfo().Input, got.Input)
	assert.Equal(t, 32, got.Width)
	assert.Equal(t, -1, got.AudioStream)
}

func TestHubMethodNotAllowed(t *testing.T) {
	hub := NewHub("", testInfo(), encoder.NewJPEGEncoder(70), 0)
	defer hub.Close()

	for _, path := range []string{"/info", "/frames"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		hub.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
	}
}

func TestHubStreamsJPEG(t *testing.T) {
	hub := NewHub("", testInfo(), encoder.NewJPEGEncoder(70), 0)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, hub.WriteFrame(context.Background(), testFrame(1)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestHubSkipsWithoutClients(t *testing.T) {
	hub := NewHub("", testInfo(), encoder.NewJPEGEncoder(70), 0)
	defer hub.Close()

	require.NoError(t, hub.WriteFrame(context.Background(), testFrame(1)))
	data, seq, _ := hub.snapshot()
	assert.Nil(t, data)
	assert.Equal(t, uint64(0), seq)
}

func TestHubThrottle(t *testing.T) {
	hub := NewHub("", testInfo(), encoder.NewJPEGEncoder(70), 5)
	defer hub.Close()
	hub.clients = 1

	now := time.Unix(0, 0)
	hub.now = func() time.Time { return now }

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, hub.WriteFrame(context.Background(), testFrame(i)))
		now = now.Add(40 * time.Millisecond)
	}
	// 400ms at 5 fps: frames at 0, 200ms.
	_, seq, _ := hub.snapshot()
	assert.Equal(t, uint64(2), seq)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub("", testInfo(), encoder.NewJPEGEncoder(70), 0)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubServeStopsOnCancel(t *testing.T) {
	hub := NewHub("", testInfo(), encoder.NewJPEGEncoder(70), 0)
	defer hub.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/info")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8090", true},
		{"[::1]:8090", true},
		{"localhost:8090", true},
		{":8090", false},
		{"0.0.0.0:8090", false},
		{"192.168.1.10:8090", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, isLoopback(tt.addr))
		})
	}
}

func dialWithOrigin(srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/frames"
	return websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{origin}})
}

func TestHubRejectsForeignOriginOffLoopback(t *testing.T) {
	hub := NewHub("0.0.0.0:8090", testInfo(), encoder.NewJPEGEncoder(70), 0)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	_, resp, err := dialWithOrigin(srv, "http://evil.example")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, resp, err := dialWithOrigin(srv, srv.URL)
	require.NoError(t, err, "same-origin pages are allowed")
	resp.Body.Close()
	conn.Close()
}

func TestHubAcceptsAnyOriginOnLoopback(t *testing.T) {
	hub := NewHub("127.0.0.1:8090", testInfo(), encoder.NewJPEGEncoder(70), 0)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	conn, resp, err := dialWithOrigin(srv, "http://tool.example")
	require.NoError(t, err)
	resp.Body.Close()
	conn.Close()
}

func TestHubDropsClientSendingLargeMessages(t *testing.T) {
	hub := NewHub("", testInfo(), encoder.NewJPEGEncoder(70), 0)
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 4*readLimit)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}
