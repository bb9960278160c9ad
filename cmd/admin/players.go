package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"voxelcraft.ai/advancements/internal/persistence/snapshot"
)

type playerRow struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	SavedAt  int64  `json:"saved_at"`
	Path     string `json:"path"`
}

// listPlayers reads only the headers of every saved player.
func listPlayers(store *snapshot.Store) ([]playerRow, error) {
	ids, err := store.List()
	if err != nil {
		return nil, err
	}
	rows := make([]playerRow, 0, len(ids))
	for _, id := range ids {
		path := store.Path(id)
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		rows = append(rows, playerRow{PlayerID: h.PlayerID, Name: h.Name, SavedAt: h.SavedAt, Path: path})
	}
	sort.Slice(rows, func(i, j int) bool { return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name) })
	return rows, nil
}

// findPlayer resolves a uuid or a (case-insensitive) saved name.
func findPlayer(store *snapshot.Store, who string) (uuid.UUID, bool, error) {
	if id, err := uuid.Parse(who); err == nil {
		return id, true, nil
	}
	rows, err := listPlayers(store)
	if err != nil {
		return uuid.Nil, false, err
	}
	for _, r := range rows {
		if strings.EqualFold(r.Name, who) {
			id, err := uuid.Parse(r.PlayerID)
			return id, err == nil, err
		}
	}
	return uuid.Nil, false, nil
}

func playersCmd(args []string) {
	fs := flag.NewFlagSet("players", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	rows, err := listPlayers(snapshot.NewStore(filepath.Join(*dataDir, "players")))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list players:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		printJSON(r)
	}
}

func playerCmd(args []string) {
	fs := flag.NewFlagSet("player", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin player [-data dir] <name|uuid>")
		os.Exit(2)
	}

	store := snapshot.NewStore(filepath.Join(*dataDir, "players"))
	id, ok, err := findPlayer(store, fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "find player:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "no saved player", fs.Arg(0))
		os.Exit(2)
	}
	snap, found, err := store.Load(id)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}
	if !found {
		fmt.Fprintln(os.Stderr, "no saved player", id)
		os.Exit(2)
	}
	printJSON(snap)
}
