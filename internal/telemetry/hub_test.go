package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/criticalsim/heatup/internal/models"
)

// hubSnap builds a small broadcast snapshot.
func hubSnap(step int) models.Snapshot {
	var snap models.Snapshot
	snap.Step = step
	snap.TimeHr = float64(step) / 360.0
	snap.TavgF = 160 + float64(step)
	snap.RCSPressurePsig = 325
	snap.Startup = models.StartupS1
	snap.SGOverall = models.SGLadder1
	snap.Dump = models.DumpState{Mode: models.DumpModeOff, Bridge: models.BridgeUnavailable}
	snap.SGs = make([]models.SGState, 2)
	return snap
}

func newTestHub(t *testing.T, mutate func(*Config)) (*Hub, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	hub, err := NewHub(cfg, nil)
	if err != nil {
		t.Fatalf("NewHub() error = %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForViewers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
}

func TestNewHub_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendBuffer = 0
	if _, err := NewHub(cfg, nil); err == nil {
		t.Error("NewHub() expected error for zero send buffer")
	}
}

func TestHub_BroadcastsSnapshotFrames(t *testing.T) {
	hub, srv := newTestHub(t, nil)
	conn := dialHub(t, srv)
	waitForViewers(t, hub, 1)

	if err := hub.Emit(hubSnap(7)); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var got models.Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("frame is not snapshot JSON: %v", err)
	}
	if got.Step != 7 {
		t.Errorf("frame Step = %d, want 7", got.Step)
	}
	if got.TavgF != 167 {
		t.Errorf("frame TavgF = %v, want 167", got.TavgF)
	}
	if got.Startup != models.StartupS1 {
		t.Errorf("frame Startup = %v, want %v", got.Startup, models.StartupS1)
	}
}

func TestHub_EmitWithoutViewers(t *testing.T) {
	hub, _ := newTestHub(t, nil)

	if err := hub.Emit(hubSnap(1)); err != nil {
		t.Errorf("Emit() error = %v with no viewers", err)
	}
}

func TestHub_TwoViewersBothReceive(t *testing.T) {
	hub, srv := newTestHub(t, nil)
	first := dialHub(t, srv)
	second := dialHub(t, srv)
	waitForViewers(t, hub, 2)

	if err := hub.Emit(hubSnap(3)); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	for i, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("viewer %d ReadMessage() error = %v", i, err)
		}
		var got models.Snapshot
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("viewer %d frame is not snapshot JSON: %v", i, err)
		}
		if got.Step != 3 {
			t.Errorf("viewer %d frame Step = %d, want 3", i, got.Step)
		}
	}
}

func TestHub_SlowViewerDropsFramesWithoutBlocking(t *testing.T) {
	hub, srv := newTestHub(t, func(c *Config) {
		c.SendBuffer = 2
		c.MaxFramesPerSec = 1e6
	})
	conn := dialHub(t, srv)
	waitForViewers(t, hub, 1)

	// Large frames fill the socket buffers of an unread connection, so the
	// send channel backs up and later frames drop.
	snap := hubSnap(1)
	snap.Inputs.SGFeedGPM = make([]float64, 20000)

	const emitted = 100
	start := time.Now()
	for i := 1; i <= emitted; i++ {
		snap.Step = i
		if err := hub.Emit(snap); err != nil {
			t.Fatalf("Emit() error = %v at frame %d", err, i)
		}
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("emitting %d frames took %v; broadcast must not block on a slow viewer", emitted, elapsed)
	}

	received := 0
	for {
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		received++
	}
	if received == 0 {
		t.Error("slow viewer received no frames at all")
	}
	if received >= emitted {
		t.Errorf("slow viewer received all %d frames; expected drops", emitted)
	}
}

func TestHub_PerViewerFrameRateLimit(t *testing.T) {
	hub, srv := newTestHub(t, func(c *Config) {
		c.MaxFramesPerSec = 1
	})
	conn := dialHub(t, srv)
	waitForViewers(t, hub, 1)

	for i := 1; i <= 5; i++ {
		if err := hub.Emit(hubSnap(i)); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	}

	// Burst of one: exactly one frame arrives, the rest were rate limited
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage() error = %v for first frame", err)
	}

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("second frame arrived; expected rate limiting at 1 frame/sec")
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, srv := newTestHub(t, nil)
	conn := dialHub(t, srv)
	waitForViewers(t, hub, 1)

	conn.Close()
	waitForViewers(t, hub, 0)

	// Broadcasting after the viewer left must not fail
	if err := hub.Emit(hubSnap(1)); err != nil {
		t.Errorf("Emit() error = %v after disconnect", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"empty addr", func(c *Config) { c.Addr = "" }, true},
		{"zero frame rate", func(c *Config) { c.MaxFramesPerSec = 0 }, true},
		{"negative frame rate", func(c *Config) { c.MaxFramesPerSec = -5 }, true},
		{"zero send buffer", func(c *Config) { c.SendBuffer = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
