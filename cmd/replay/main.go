package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	persistlog "voxelcraft.ai/advancements/internal/persistence/log"
	"voxelcraft.ai/advancements/internal/persistence/snapshot"
	"voxelcraft.ai/advancements/internal/sim/advancement"
	"voxelcraft.ai/advancements/internal/sim/catalogs"
	"voxelcraft.ai/advancements/internal/sim/world"
)

// replay folds the audit trail into the set of advancements each player
// should hold and checks it against their saved snapshot.
func main() {
	var (
		dataDir   = flag.String("data", "./data", "runtime data directory")
		configDir = flag.String("configs", "./configs", "config directory")
		player    = flag.String("player", "", "player uuid (default: every saved player)")
	)
	flag.Parse()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	store := snapshot.NewStore(filepath.Join(*dataDir, "players"))

	var ids []uuid.UUID
	if *player != "" {
		id, err := uuid.Parse(*player)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -player:", err)
			os.Exit(2)
		}
		ids = []uuid.UUID{id}
	} else if ids, err = store.List(); err != nil {
		fmt.Fprintln(os.Stderr, "list players:", err)
		os.Exit(1)
	}

	trail, err := loadTrail(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}

	bad := 0
	for _, id := range ids {
		snap, ok, err := store.Load(id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load", id, err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "no saved player", id)
			os.Exit(2)
		}
		diffs, err := verify(cats, snap, trail[id.String()])
		if err != nil {
			fmt.Fprintln(os.Stderr, "verify", snap.Header.Name, err)
			os.Exit(1)
		}
		for _, d := range diffs {
			fmt.Printf("%s %s: %s\n", snap.Header.Name, d.Advancement, d.Reason)
		}
		if len(diffs) > 0 {
			bad++
		}
	}
	fmt.Printf("replay: checked=%d mismatched=%d\n", len(ids), bad)
	if bad > 0 {
		os.Exit(1)
	}
}

type mismatch struct {
	Advancement string
	Reason      string
}

// loadTrail groups every audit entry by player id, oldest first.
func loadTrail(dataDir string) (map[string][]world.AuditEntry, error) {
	files, err := persistlog.Files(persistlog.AuditDir(dataDir), "audit")
	if err != nil {
		return nil, err
	}
	out := map[string][]world.AuditEntry{}
	for _, path := range files {
		err := persistlog.ReadFile(path, func(e world.AuditEntry) bool {
			out[e.PlayerID] = append(out[e.PlayerID], e)
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// verify restores snap into a fresh registry and compares what it holds
// with the last audited grant or revoke of each advancement. Entries newer
// than the snapshot are ignored.
func verify(cats *catalogs.Catalogs, snap snapshot.PlayerV1, trail []world.AuditEntry) ([]mismatch, error) {
	reg := advancement.NewRegistry(advancement.Options{})
	if err := cats.Install(reg); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(snap.Header.PlayerID)
	if err != nil {
		return nil, err
	}
	p, err := reg.AddPlayer(id, snap.Header.Name, nil)
	if err != nil {
		return nil, err
	}
	var diffs []mismatch
	if n := p.Restore(snap.Progress); n > 0 {
		diffs = append(diffs, mismatch{Reason: fmt.Sprintf("%d saved stamps no longer match the catalog", n)})
	}

	want := map[string]bool{}
	for _, e := range trail {
		if e.Time > snap.Header.SavedAt {
			continue
		}
		want[e.Advancement] = e.Kind == "grant"
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		a, ok := reg.Get(key)
		if !ok {
			diffs = append(diffs, mismatch{Advancement: key, Reason: "audited but not in catalog"})
			continue
		}
		switch got := p.IsAchieved(a); {
		case want[key] && !got:
			diffs = append(diffs, mismatch{Advancement: key, Reason: "granted in audit, not achieved in snapshot"})
		case !want[key] && got:
			diffs = append(diffs, mismatch{Advancement: key, Reason: "revoked in audit, achieved in snapshot"})
		}
	}
	for _, a := range reg.All() {
		if len(a.Requirements()) == 0 {
			continue
		}
		if _, audited := want[a.Key()]; !audited && p.IsAchieved(a) {
			diffs = append(diffs, mismatch{Advancement: a.Key(), Reason: "achieved without an audit entry"})
		}
	}
	return diffs, nil
}
