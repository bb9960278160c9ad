package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"voxelcraft.ai/advancements/internal/sim/world"
)

// worldState mirrors the server's /admin/v1/state body.
type worldState struct {
	WorldID string             `json:"world_id"`
	Tick    uint64             `json:"tick"`
	Metrics world.WorldMetrics `json:"metrics"`
}

func fetchState(cl *http.Client, baseURL string) (worldState, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/state"
	resp, err := cl.Get(u)
	if err != nil {
		return worldState{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return worldState{}, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var st worldState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return worldState{}, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

func (st worldState) summary() string {
	m := st.Metrics
	return fmt.Sprintf("world=%s tick=%d players=%d trees=%d advancements=%d grants=%d revokes=%d kicks=%d save_drops=%d step_ms=%.2f inbox=%d",
		st.WorldID, st.Tick, m.Players, m.Trees, m.Advancements,
		m.GrantsTotal, m.RevokesTotal, m.KicksTotal, m.SaveDropsTotal, m.StepMS, m.QueueDepths.Inbox)
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	asJSON := fs.Bool("json", false, "print the raw state as json")
	_ = fs.Parse(args)

	st, err := fetchState(&http.Client{Timeout: 5 * time.Second}, *baseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "state:", err)
		os.Exit(1)
	}
	if *asJSON {
		printJSON(st)
		return
	}
	fmt.Println(st.summary())
}
