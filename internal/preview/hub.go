package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/junsooki/reel/internal/decoder"
	"github.com/junsooki/reel/internal/encoder"
)

const (
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
	// Clients only send control frames.
	readLimit = 512
)

// Hub encodes decoded frames to JPEG and streams the latest one to every
// connected websocket client. Slow clients skip frames.
type Hub struct {
	addr     string
	info     decoder.MediaInfo
	enc      encoder.Encoder
	interval time.Duration
	upgrader websocket.Upgrader

	mu      sync.Mutex
	latest  []byte
	seq     uint64
	updated chan struct{}
	lastAt  time.Time
	clients int
	done    chan struct{}
	closed  bool
	srv     *http.Server

	now func() time.Time
}

// NewHub creates a Hub. fps <= 0 disables throttling.
func NewHub(addr string, info decoder.MediaInfo, enc encoder.Encoder, fps int) *Hub {
	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	// Off loopback only same-origin pages may connect.
	var upgrader websocket.Upgrader
	if isLoopback(addr) {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		addr:     addr,
		info:     info,
		enc:      enc,
		interval: interval,
		upgrader: upgrader,
		updated:  make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// WriteFrame encodes f and publishes it to clients, unless the previous
// frame was published less than 1/fps ago or nobody is watching.
func (h *Hub) WriteFrame(_ context.Context, f *decoder.Frame) error {
	if f.Image == nil {
		return nil
	}
	h.mu.Lock()
	if h.closed || h.clients == 0 {
		h.mu.Unlock()
		return nil
	}
	now := h.now()
	if h.interval > 0 && !h.lastAt.IsZero() && now.Sub(h.lastAt) < h.interval {
		h.mu.Unlock()
		return nil
	}
	h.lastAt = now
	h.mu.Unlock()

	data, err := h.enc.Encode(f.Image)
	if err != nil {
		return fmt.Errorf("encode preview frame %d: %w", f.Number, err)
	}
	h.publish(data)
	return nil
}

func (h *Hub) publish(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = data
	h.seq++
	close(h.updated)
	h.updated = make(chan struct{})
}

// snapshot returns the latest frame, its sequence number and a channel
// closed on the next update.
func (h *Hub) snapshot() ([]byte, uint64, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.seq, h.updated
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

// Handler returns the HTTP routes served by the hub.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/frames", h.serveFrames)
	mux.HandleFunc("/info", h.serveInfo)
	return mux
}

func (h *Hub) serveInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.info); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "serveInfo",
			"error":    err,
		}).Warn("Unable to write media info")
	}
}

func (h *Hub) serveFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		return
	}
	log := logrus.WithFields(logrus.Fields{
		"function": "serveFrames",
		"remote":   r.RemoteAddr,
	})

	h.mu.Lock()
	h.clients++
	h.mu.Unlock()
	log.Info("Preview client connected")

	defer func() {
		h.mu.Lock()
		h.clients--
		h.mu.Unlock()
		conn.Close()
		log.Info("Preview client disconnected")
	}()

	// Reads are only needed to process control frames and notice a close.
	conn.SetReadLimit(readLimit)
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.stream(conn, gone); err != nil {
		log.WithField("error", err).Debug("Preview stream ended")
	}
}

func (h *Hub) stream(conn *websocket.Conn, gone <-chan struct{}) error {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var sent uint64
	for {
		data, seq, updated := h.snapshot()
		if seq != sent && data != nil {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return err
			}
			sent = seq
			continue
		}

		select {
		case <-updated:
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		case <-gone:
			return nil
		case <-h.done:
			return conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeTimeout))
		}
	}
}

// Serve listens on the configured address until ctx is cancelled or the hub
// is closed.
func (h *Hub) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("preview listen on %s: %w", h.addr, err)
	}
	return h.serve(ctx, ln)
}

func (h *Hub) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ln.Close()
		return nil
	}
	h.srv = srv
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Serve",
		"addr":     ln.Addr().String(),
	}).Info("Preview server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("preview server: %w", err)
	case <-ctx.Done():
	case <-h.done:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("preview shutdown: %w", err)
	}
	return nil
}

// Close disconnects all clients and stops the server.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.done)
	srv := h.srv
	h.mu.Unlock()

	var result *multierror.Error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
