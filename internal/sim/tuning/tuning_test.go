package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("sync_every_ticks: 4\noperators: [alex]\ncodec:\n  max_nbt_depth: 8\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Defaults()
	if got.SyncEveryTicks != 4 || got.Codec.MaxNBTDepth != 8 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.TickRateHz != def.TickRateHz || got.Codec.MaxFrameBytes != def.Codec.MaxFrameBytes {
		t.Fatalf("defaults lost: %+v", got)
	}
	if len(got.Operators) != 1 || got.Operators[0] != "alex" {
		t.Fatalf("operators %v", got.Operators)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad_yaml.yaml":  "tick_rate_hz: [",
		"zero_tick.yaml": "tick_rate_hz: 0\n",
		"keepalive.yaml": "keepalive_every_ticks: 100\nkeepalive_timeout_ticks: 50\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("missing file: expected error")
	}
}

func TestRepoTuningLoads(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ProtocolVersion != 340 {
		t.Fatalf("protocol_version %d", got.ProtocolVersion)
	}
}
