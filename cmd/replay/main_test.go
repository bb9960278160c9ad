package main

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	persistlog "voxelcraft.ai/advancements/internal/persistence/log"
	"voxelcraft.ai/advancements/internal/persistence/snapshot"
	"voxelcraft.ai/advancements/internal/sim/catalogs"
	"voxelcraft.ai/advancements/internal/sim/world"
)

func loadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func TestVerify(t *testing.T) {
	cats := loadCatalogs(t)
	id := uuid.NewMD5(uuid.NameSpaceOID, []byte("alex"))
	grant := func(key string, at int64) world.AuditEntry {
		return world.AuditEntry{Time: at, Kind: "grant", PlayerID: id.String(), Player: "alex", Advancement: key}
	}
	snap := snapshot.PlayerV1{
		Header: snapshot.Header{PlayerID: id.String(), Name: "alex", SavedAt: 300},
		Progress: map[string]map[string]int64{
			"story/root":       {"crafting_table": 100},
			"story/mine_stone": {"get_stone": 200},
		},
	}

	diffs, err := verify(cats, snap, []world.AuditEntry{
		grant("story/root", 100),
		grant("story/mine_stone", 200),
		{Time: 400, Kind: "revoke", PlayerID: id.String(), Advancement: "story/root"},
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(diffs) != 0 {
		t.Fatalf("consistent player: %+v", diffs)
	}

	snap.Progress["story/sprint_far"] = map[string]int64{"sneak": 220}
	snap.Progress["story/gone"] = map[string]int64{"x": 1}
	diffs, err = verify(cats, snap, []world.AuditEntry{
		grant("story/root", 100),
		grant("story/mine_stone", 200),
		grant("story/upgrade_tools", 250),
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	got := map[string]string{}
	for _, d := range diffs {
		got[d.Advancement] = d.Reason
	}
	want := map[string]string{
		"":                    "1 saved stamps no longer match the catalog",
		"story/upgrade_tools": "granted in audit, not achieved in snapshot",
		"story/sprint_far":    "achieved without an audit entry",
	}
	if len(got) != len(want) {
		t.Fatalf("diffs: %+v", diffs)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%q: got %q want %q", k, got[k], v)
		}
	}
}

func TestLoadTrail(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewAuditLogger(dir)
	for _, e := range []world.AuditEntry{
		{Tick: 1, Kind: "grant", PlayerID: "a", Advancement: "story/root"},
		{Tick: 2, Kind: "grant", PlayerID: "b", Advancement: "story/root"},
		{Tick: 3, Kind: "revoke", PlayerID: "a", Advancement: "story/root"},
	} {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	trail, err := loadTrail(dir)
	if err != nil {
		t.Fatalf("loadTrail: %v", err)
	}
	if len(trail["a"]) != 2 || trail["a"][1].Kind != "revoke" || len(trail["b"]) != 1 {
		t.Fatalf("trail: %+v", trail)
	}
}
