package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tmpim/nfp"
	"github.com/tmpim/nfp/config"
	"github.com/tmpim/nfp/logger"
)

// blockingRunner records its calls and finishes once released or cancelled.
type blockingRunner struct {
	release chan struct{}
	calls   chan nfp.ConvertOptions
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		release: make(chan struct{}),
		calls:   make(chan nfp.ConvertOptions, 1),
	}
}

func (r *blockingRunner) run(ctx context.Context, input string, dec nfp.DecoderOptions,
	opts nfp.ConvertOptions) (*nfp.Result, error) {
	r.calls <- opts
	opts.OnProgress(nfp.Progress{Frame: 1, Written: 1})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.release:
	}

	b := nfp.NewManifestBuilder(opts.Geometry, opts.FPS, opts.Slug)
	b.Set(1, nfp.FrameName(1))
	return &nfp.Result{Manifest: b.Build()}, nil
}

func newTestManager(t *testing.T) (*Manager, *blockingRunner) {
	t.Helper()

	cfg := config.Defaults()
	cfg.Root = t.TempDir()

	runner := newBlockingRunner()
	mgr := NewManager(cfg, logger.NewRecorder())
	mgr.SetRunner(runner.run)

	return mgr, runner
}

func waitIdle(t *testing.T, mgr *Manager) State {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, ok := mgr.WaitForState(ctx, StateIdle)
	if !ok {
		t.Fatal("timed out waiting for idle state")
	}
	return state
}

func TestRequest_Apply(t *testing.T) {
	base := config.Defaults()

	cfg := Request{Input: "a.mp4", Slug: "intro", FPS: 5}.apply(base)
	if cfg.Slug != "intro" || cfg.FPS != 5 {
		t.Errorf("request values not applied: %+v", cfg)
	}
	if cfg.Width != base.Width || cfg.Height != base.Height {
		t.Errorf("expected base geometry, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestManager_StartAndFinish(t *testing.T) {
	mgr, runner := newTestManager(t)

	state, err := mgr.Start(Request{Input: "clip.mp4", Slug: "clip", Width: 51, Height: 19})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if state.State != StateConverting || state.Title != "clip" {
		t.Errorf("unexpected state %+v", state)
	}

	opts := <-runner.calls
	if opts.OutputDir != filepath.Join(mgr.base.Root, "clip") {
		t.Errorf("unexpected output dir %s", opts.OutputDir)
	}
	if opts.Geometry.Width != 51 || opts.Geometry.Height != 19 {
		t.Errorf("unexpected geometry %+v", opts.Geometry)
	}

	if _, err := mgr.Start(Request{Input: "other.mp4"}); err == nil {
		t.Error("expected second Start to be rejected while converting")
	}

	close(runner.release)

	final := waitIdle(t, mgr)
	if final.Err != "" {
		t.Errorf("expected no error, got %s", final.Err)
	}
	if final.Written != 1 {
		t.Errorf("expected 1 frame written, got %d", final.Written)
	}
}

func TestManager_StartValidation(t *testing.T) {
	mgr, _ := newTestManager(t)

	if _, err := mgr.Start(Request{}); err == nil {
		t.Error("expected error for missing input")
	}
	if _, err := mgr.Start(Request{Input: "a.mp4", Slug: "../escape"}); err == nil {
		t.Error("expected error for invalid slug")
	}
	if _, err := mgr.Start(Request{Input: "a.mp4", Slug: "my video"}); err == nil {
		t.Error("expected error for slug with a space")
	}
	if _, err := mgr.Start(Request{Input: "a.mp4", Width: 1 << 13, Height: 1 << 12}); err == nil {
		t.Error("expected error for oversized grid")
	}
	if _, err := mgr.Start(Request{Input: "a.mp4", Width: -1}); err == nil {
		t.Error("expected error for negative width")
	}
	if mgr.State().State != StateIdle {
		t.Error("expected manager to stay idle")
	}
}

func TestManager_Cancel(t *testing.T) {
	mgr, runner := newTestManager(t)

	if _, err := mgr.Cancel(); err == nil {
		t.Error("expected error when nothing is running")
	}

	if _, err := mgr.Start(Request{Input: "clip.mp4"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-runner.calls

	state, err := mgr.Cancel()
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if state.State != StateIdle {
		t.Errorf("expected idle, got %d", state.State)
	}
	if !strings.Contains(state.Err, "canceled") {
		t.Errorf("expected cancellation error, got %q", state.Err)
	}
}

func TestManager_Videos(t *testing.T) {
	mgr, _ := newTestManager(t)
	root := mgr.base.Root

	for _, slug := range []string{"b-clip", "a-clip"} {
		dir := filepath.Join(root, slug)
		if err := os.MkdirAll(filepath.Join(dir, nfp.FramesDir), 0755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		os.WriteFile(filepath.Join(dir, nfp.FramesDir, nfp.FrameName(1)), []byte("1 1\nf"), 0644)

		b := nfp.NewManifestBuilder(nfp.Geometry{Width: 1, Height: 1}, 10, slug)
		b.Set(1, nfp.FrameName(1))
		if err := nfp.WriteManifest(dir, b.Build()); err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}
	}

	// a failed conversion leaves frames without a manifest
	os.MkdirAll(filepath.Join(root, "broken", nfp.FramesDir), 0755)

	slugs, err := mgr.Videos()
	if err != nil {
		t.Fatalf("Videos failed: %v", err)
	}
	if len(slugs) != 2 || slugs[0] != "a-clip" || slugs[1] != "b-clip" {
		t.Errorf("unexpected slugs %v", slugs)
	}

	m, err := mgr.Video("a-clip")
	if err != nil {
		t.Fatalf("Video failed: %v", err)
	}
	if m.Slug != "a-clip" || m.FrameCount != 1 {
		t.Errorf("unexpected manifest %+v", m)
	}

	if _, err := mgr.Video("broken"); err == nil {
		t.Error("expected error for conversion without manifest")
	}
	if _, err := mgr.Video("../a-clip"); err == nil {
		t.Error("expected error for path escaping the root")
	}
}

func TestManager_VideosMissingRoot(t *testing.T) {
	cfg := config.Defaults()
	cfg.Root = filepath.Join(t.TempDir(), "missing")

	slugs, err := NewManager(cfg, logger.NewNoop()).Videos()
	if err != nil {
		t.Fatalf("Videos failed: %v", err)
	}
	if len(slugs) != 0 {
		t.Errorf("expected no videos, got %v", slugs)
	}
}

func readPacket(t *testing.T, conn *websocket.Conn) (byte, map[string]interface{}) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty packet")
	}

	var body map[string]interface{}
	if err := json.Unmarshal(data[1:], &body); err != nil {
		t.Fatalf("packet %d body is not JSON: %v", data[0], err)
	}
	return data[0], body
}

func TestManager_Websocket(t *testing.T) {
	mgr, runner := newTestManager(t)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mgr.HandleConn(ws)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	control := WebsocketControl{ID: "test", Subscription: uint32(SubscriptionProgress | SubscriptionState)}
	if err := conn.WriteJSON(control); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	packet, body := readPacket(t, conn)
	if packet != PacketState || body["state"] != float64(StateIdle) {
		t.Fatalf("expected idle state packet, got %d %v", packet, body)
	}

	if _, err := mgr.Start(Request{Input: "clip.mp4", Slug: "clip"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	packet, body = readPacket(t, conn)
	if packet != PacketState || body["state"] != float64(StateConverting) {
		t.Fatalf("expected converting state packet, got %d %v", packet, body)
	}

	packet, body = readPacket(t, conn)
	if packet != PacketProgress || body["written"] != float64(1) {
		t.Fatalf("expected progress packet, got %d %v", packet, body)
	}

	close(runner.release)

	packet, body = readPacket(t, conn)
	if packet != PacketDone || body["slug"] != "clip" || body["frameCount"] != float64(1) {
		t.Fatalf("expected done packet, got %d %v", packet, body)
	}

	packet, body = readPacket(t, conn)
	if packet != PacketState || body["state"] != float64(StateIdle) {
		t.Fatalf("expected idle state packet, got %d %v", packet, body)
	}
}
