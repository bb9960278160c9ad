package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"voxelcraft.ai/advancements/internal/sim/catalogs"
	"voxelcraft.ai/advancements/internal/sim/tuning"
	"voxelcraft.ai/advancements/internal/sim/world"
)

func findRepoRootForServerTests(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not locate go.mod from %s", dir)
		}
		dir = parent
	}
}

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	root := findRepoRootForServerTests(t)
	cats, err := catalogs.Load(filepath.Join(root, "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load(filepath.Join(root, "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	w, err := world.New(worldConfig("test_world", tune), cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func TestMetricsHandler(t *testing.T) {
	w := newTestWorld(t)
	rec := httptest.NewRecorder()
	metricsHandler(w, nil)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`advancements_world_players{world="test_world"} 0`,
		`advancements_registered{world="test_world",kind="tree"} 2`,
		`advancements_events_total{world="test_world",event="grant"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
	if strings.Contains(body, "advancements_index_") {
		t.Fatalf("index metrics without an index")
	}
}

func TestStateHandler_LoopbackOnly(t *testing.T) {
	w := newTestWorld(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "192.0.2.10:5000"
	rec := httptest.NewRecorder()
	stateHandler(w)(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status %d", rec.Code)
	}

	req.RemoteAddr = "127.0.0.1:5000"
	rec = httptest.NewRecorder()
	stateHandler(w)(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("loopback status %d", rec.Code)
	}
	var resp struct {
		WorldID string `json:"world_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.WorldID != "test_world" {
		t.Fatalf("body %s: %v", rec.Body.String(), err)
	}
}

func TestParseEnv(t *testing.T) {
	t.Setenv("ADV_ADDR", ":9999")
	t.Setenv("ADV_OPERATORS", "Notch,jeb_")
	t.Setenv("ADV_INDEX_BACKEND", " None ")
	t.Setenv("DEPLOY_ENV", "production")

	e, err := parseEnv()
	if err != nil {
		t.Fatalf("parseEnv: %v", err)
	}
	if e.IndexBackend != "none" || !reflect.DeepEqual(e.Operators, []string{"Notch", "jeb_"}) {
		t.Fatalf("env: %+v", e)
	}
	if e.adminHTTP() {
		t.Fatalf("admin http enabled in production")
	}
	addr := ":8080"
	override(&addr, e.Addr)
	dir := "./configs"
	override(&dir, e.ConfigDir)
	if addr != ":9999" || dir != "./configs" {
		t.Fatalf("override: addr=%s dir=%s", addr, dir)
	}

	t.Setenv("ADV_ENABLE_ADMIN_HTTP", "true")
	e, _ = parseEnv()
	if !e.adminHTTP() {
		t.Fatalf("explicit enable ignored")
	}

	t.Setenv("ADV_ENABLE_PPROF_HTTP", "maybe")
	if _, err := parseEnv(); err == nil || !strings.HasPrefix(err.Error(), "parse env:") {
		t.Fatalf("bad bool: %v", err)
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	dir := t.TempDir()
	if idx, err := openRuntimeIndex(dir, "sqlite", true); idx != nil || err != nil {
		t.Fatalf("disabled: %v %v", idx, err)
	}
	if idx, err := openRuntimeIndex(dir, "off", false); idx != nil || err != nil {
		t.Fatalf("off: %v %v", idx, err)
	}
	if _, err := openRuntimeIndex(dir, "d1", false); err == nil {
		t.Fatalf("unknown backend accepted")
	}
	idx, err := openRuntimeIndex(dir, "sqlite", false)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer idx.Close()
	if _, err := os.Stat(filepath.Join(dir, "index", "advancements.sqlite")); err != nil {
		t.Fatalf("db file: %v", err)
	}
}
