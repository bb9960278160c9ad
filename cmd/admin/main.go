package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	persistlog "voxelcraft.ai/advancements/internal/persistence/log"
	"voxelcraft.ai/advancements/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "sessions":
			sessionsCmd(os.Args[2:])
			return
		case "players":
			playersCmd(os.Args[2:])
			return
		case "player":
			playerCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <db|audit|sessions|players|player|state> [flags]")
	os.Exit(2)
}

type auditFilter struct {
	Player      string
	Advancement string
	Kind        string
	Since       int64 // unix millis, inclusive
	Limit       int
}

func (f auditFilter) match(e world.AuditEntry) bool {
	switch {
	case f.Player != "" && !strings.EqualFold(e.Player, f.Player) && e.PlayerID != f.Player:
		return false
	case f.Advancement != "" && e.Advancement != f.Advancement:
		return false
	case f.Kind != "" && e.Kind != f.Kind:
		return false
	case f.Since > 0 && e.Time < f.Since:
		return false
	}
	return true
}

// readAudit scans the rotated audit files oldest first.
func readAudit(dataDir string, f auditFilter) ([]world.AuditEntry, error) {
	files, err := persistlog.Files(persistlog.AuditDir(dataDir), "audit")
	if err != nil {
		return nil, err
	}
	var out []world.AuditEntry
	for _, path := range files {
		err := persistlog.ReadFile(path, func(e world.AuditEntry) bool {
			if f.match(e) {
				out = append(out, e)
			}
			return f.Limit <= 0 || len(out) < f.Limit
		})
		if err != nil {
			return nil, err
		}
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "player name or uuid")
	adv := fs.String("advancement", "", "advancement key")
	kind := fs.String("kind", "", "grant or revoke")
	since := fs.Duration("since", 0, "only entries newer than this (e.g. 24h)")
	limit := fs.Int("limit", 0, "max entries (0 = all)")
	_ = fs.Parse(args)

	f := auditFilter{Player: *player, Advancement: *adv, Kind: *kind, Limit: *limit}
	if *since > 0 {
		f.Since = time.Now().Add(-*since).UnixMilli()
	}
	recs, err := readAudit(*dataDir, f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, r := range recs {
		printJSON(r)
	}
}

func sessionsCmd(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "player name or uuid")
	_ = fs.Parse(args)

	files, err := persistlog.Files(persistlog.SessionDir(*dataDir), "sessions")
	if err != nil {
		fmt.Fprintln(os.Stderr, "read sessions:", err)
		os.Exit(1)
	}
	for _, path := range files {
		err := persistlog.ReadFile(path, func(e world.SessionEntry) bool {
			if *player == "" || strings.EqualFold(e.Player, *player) || e.PlayerID == *player {
				printJSON(e)
			}
			return true
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read sessions:", err)
			os.Exit(1)
		}
	}
}
