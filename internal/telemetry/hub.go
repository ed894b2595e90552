// Package telemetry streams live run snapshots to websocket viewers. The hub
// is a snapshot sink: each tick fans out to every connected gauge panel as a
// JSON text frame, throttled per viewer and dropped rather than buffered when
// a viewer falls behind. The simulation never waits on a socket.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/ratelimit"
)

// Config holds telemetry server settings.
type Config struct {
	// Addr is the listen address for the websocket server.
	Addr string `yaml:"addr"`

	// MaxFramesPerSec bounds the snapshot frame rate delivered to each
	// viewer. Runs step far faster than a gauge panel can redraw.
	MaxFramesPerSec float64 `yaml:"max_frames_per_sec"`

	// SendBuffer is the per-viewer outbound frame buffer. When it fills,
	// further frames are dropped for that viewer.
	SendBuffer int `yaml:"send_buffer"`
}

// DefaultConfig returns the default telemetry configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "localhost:8089",
		MaxFramesPerSec: 20,
		SendBuffer:      64,
	}
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.MaxFramesPerSec <= 0 {
		return fmt.Errorf("max_frames_per_sec must be positive, got %v", c.MaxFramesPerSec)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Viewers are local tooling; any origin may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub maintains the set of connected viewers and broadcasts snapshots to
// them. It satisfies the stepper's snapshot sink.
type Hub struct {
	cfg     Config
	log     *slog.Logger
	limiter *ratelimit.Limiter

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	key  string
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a telemetry hub. A nil logger disables hub logging.
func NewHub(cfg Config, log *slog.Logger) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// One second's worth of frames as burst so a fresh viewer gets an
	// immediate first frame.
	burst := int(cfg.MaxFramesPerSec)
	if burst < 1 {
		burst = 1
	}

	return &Hub{
		cfg:     cfg,
		log:     log,
		limiter: ratelimit.NewLimiter(cfg.MaxFramesPerSec, burst),
		clients: make(map[*client]struct{}),
	}, nil
}

// Emit broadcasts one snapshot to every connected viewer. Frames beyond a
// viewer's rate budget or buffer are dropped; Emit never blocks on a socket.
func (h *Hub) Emit(snap models.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return nil
	}

	data, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	for c := range h.clients {
		if !h.limiter.Allow(c.key) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Viewer is not keeping up; drop the frame
		}
	}
	return nil
}

// ClientCount reports the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request and registers the viewer.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		key:  conn.RemoteAddr().String(),
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("viewer connected", "remote", c.key, "viewers", n)

	go h.writePump(c)
	go h.readPump(c)
}

// writePump delivers buffered frames to one viewer until its channel closes
// or a write fails.
func (h *Hub) writePump(c *client) {
	defer h.drop(c)
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readPump discards inbound messages and notices the close handshake.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// drop unregisters a viewer. Safe to call from both pumps; only the first
// call removes the client and closes its channel.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, registered := h.clients[c]
	if registered {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	c.conn.Close()
	if registered {
		h.limiter.Forget(c.key)
		h.log.Info("viewer disconnected", "remote", c.key, "viewers", n)
	}
}

// Serve runs the telemetry HTTP server until ctx is canceled, then shuts
// down gracefully and disconnects remaining viewers.
func (h *Hub) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)

	srv := &http.Server{Addr: h.cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	h.log.Info("telemetry listening", "addr", h.cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			h.log.Warn("telemetry shutdown", "error", err)
		}
		h.closeClients()
		return nil
	case err := <-errCh:
		return fmt.Errorf("telemetry server: %w", err)
	}
}

// closeClients drops every connected viewer. Shutdown does not touch
// upgraded connections, so the hub closes them itself.
func (h *Hub) closeClients() {
	h.mu.Lock()
	cs := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		cs = append(cs, c)
	}
	h.mu.Unlock()

	for _, c := range cs {
		h.drop(c)
	}
}
