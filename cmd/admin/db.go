package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type auditRow struct {
	Tick        int64  `json:"tick"`
	Time        int64  `json:"time"`
	Kind        string `json:"kind"`
	PlayerID    string `json:"player_id"`
	Player      string `json:"player"`
	Advancement string `json:"advancement"`
	Criterion   string `json:"criterion,omitempty"`
	Actor       string `json:"actor,omitempty"`
}

type sessionRow struct {
	Tick     int64  `json:"tick"`
	Time     int64  `json:"time"`
	Kind     string `json:"kind"`
	PlayerID string `json:"player_id"`
	Player   string `json:"player"`
	Locale   string `json:"locale,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type saveRow struct {
	PlayerID     string `json:"player_id"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	SavedAt      int64  `json:"saved_at"`
	Advancements int    `json:"advancements"`
	Criteria     int    `json:"criteria"`
}

type catalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/advancements.sqlite)")
	player := fs.String("player", "", "player name or uuid filter")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "audits"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "advancements.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}
	var out any
	switch q {
	case "audits":
		out, err = queryAudits(db, *player, *limit)
	case "sessions":
		out, err = querySessions(db, *player, *limit)
	case "saves":
		out, err = querySaves(db, *limit)
	case "catalogs":
		out, err = queryCatalogs(db)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want audits|sessions|saves|catalogs)")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	printJSON(out)
}

func queryAudits(db *sql.DB, player string, limit int) ([]auditRow, error) {
	rows, err := db.Query(`SELECT tick,time,kind,player_id,player,advancement,COALESCE(criterion,''),COALESCE(actor,'')
		FROM audits WHERE (?1 = '' OR player_id = ?1 OR player = ?1 COLLATE NOCASE)
		ORDER BY tick DESC, seq DESC LIMIT ?2`, player, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []auditRow
	for rows.Next() {
		var r auditRow
		if err := rows.Scan(&r.Tick, &r.Time, &r.Kind, &r.PlayerID, &r.Player, &r.Advancement, &r.Criterion, &r.Actor); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func querySessions(db *sql.DB, player string, limit int) ([]sessionRow, error) {
	rows, err := db.Query(`SELECT tick,time,kind,player_id,player,COALESCE(locale,''),COALESCE(reason,'')
		FROM sessions WHERE (?1 = '' OR player_id = ?1 OR player = ?1 COLLATE NOCASE)
		ORDER BY tick DESC, seq DESC LIMIT ?2`, player, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sessionRow
	for rows.Next() {
		var r sessionRow
		if err := rows.Scan(&r.Tick, &r.Time, &r.Kind, &r.PlayerID, &r.Player, &r.Locale, &r.Reason); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func querySaves(db *sql.DB, limit int) ([]saveRow, error) {
	rows, err := db.Query(`SELECT player_id,name,path,saved_at,advancements,criteria FROM saves ORDER BY saved_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []saveRow
	for rows.Next() {
		var r saveRow
		if err := rows.Scan(&r.PlayerID, &r.Name, &r.Path, &r.SavedAt, &r.Advancements, &r.Criteria); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryCatalogs(db *sql.DB) ([]catalogRow, error) {
	rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalogRow
	for rows.Next() {
		var r catalogRow
		if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
