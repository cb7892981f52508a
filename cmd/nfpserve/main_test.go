package main

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

	"github.com/tmpim/nfp"
	"github.com/tmpim/nfp/config"
	"github.com/tmpim/nfp/logger"
	"github.com/tmpim/nfp/stream"
)

func newTestServer(t *testing.T) (*stream.Manager, http.Handler, string) {
	t.Helper()

	cfg := config.Defaults()
	cfg.Root = t.TempDir()

	mgr := stream.NewManager(cfg, logger.NewNoop())
	return mgr, newServer(mgr, cfg.Root), cfg.Root
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_State(t *testing.T) {
	_, h, _ := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["state"] != float64(stream.StateIdle) {
		t.Errorf("expected idle, got %v", body["state"])
	}
}

func TestServer_CancelWhenIdle(t *testing.T) {
	_, h, _ := newTestServer(t)

	if rec := do(h, http.MethodPost, "/api/cancel", ""); rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestServer_ConvertFailure(t *testing.T) {
	mgr, h, root := newTestServer(t)

	missing := filepath.Join(t.TempDir(), "missing.mp4")
	rec := do(h, http.MethodPost, "/api/convert", `{"input":"`+missing+`","slug":"clip"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, ok := mgr.WaitForState(ctx, stream.StateIdle)
	if !ok {
		t.Fatal("timed out waiting for conversion to finish")
	}
	if state.Err == "" {
		t.Error("expected the missing input to be reported")
	}

	if _, err := os.Stat(filepath.Join(root, "clip", nfp.ManifestName)); !os.IsNotExist(err) {
		t.Error("expected no manifest")
	}
}

func TestServer_ConvertRejectsInvalid(t *testing.T) {
	_, h, _ := newTestServer(t)

	if rec := do(h, http.MethodPost, "/api/convert", `{"slug":"clip"}`); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for missing input, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/convert", `{"input":`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestServer_Videos(t *testing.T) {
	_, h, root := newTestServer(t)

	dir := filepath.Join(root, "intro")
	os.MkdirAll(filepath.Join(dir, nfp.FramesDir), 0755)
	os.WriteFile(filepath.Join(dir, nfp.FramesDir, nfp.FrameName(1)), []byte("1 1\n0"), 0644)

	b := nfp.NewManifestBuilder(nfp.Geometry{Width: 1, Height: 1}, 10, "intro")
	b.Set(1, nfp.FrameName(1))
	if err := nfp.WriteManifest(dir, b.Build()); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}

	rec := do(h, http.MethodGet, "/api/videos", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var slugs []string
	json.Unmarshal(rec.Body.Bytes(), &slugs)
	if len(slugs) != 1 || slugs[0] != "intro" {
		t.Errorf("unexpected slugs %v", slugs)
	}

	rec = do(h, http.MethodGet, "/api/videos/intro", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var m nfp.Manifest
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid manifest JSON: %v", err)
	}
	if m.FrameCount != 1 || m.Slug != "intro" {
		t.Errorf("unexpected manifest %+v", m)
	}

	if rec := do(h, http.MethodGet, "/api/videos/nothing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = do(h, http.MethodGet, "/videos/intro/frames/frame_0001.nfp", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "1 1\n0" {
		t.Errorf("expected frame to be served, got %d %q", rec.Code, rec.Body.String())
	}
}
