package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"voxelcraft.ai/advancements/internal/sim/world"
)

// metricsHandler serves the Prometheus text exposition format.
func metricsHandler(w *world.World, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		id := w.ID()
		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		fmt.Fprintf(rw, "# HELP advancements_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE advancements_world_tick gauge\n")
		fmt.Fprintf(rw, "advancements_world_tick{world=%q} %d\n", id, tick)

		fmt.Fprintf(rw, "# HELP advancements_world_players Connected players.\n")
		fmt.Fprintf(rw, "# TYPE advancements_world_players gauge\n")
		fmt.Fprintf(rw, "advancements_world_players{world=%q} %d\n", id, m.Players)

		fmt.Fprintf(rw, "# HELP advancements_registered Registered advancements and trees.\n")
		fmt.Fprintf(rw, "# TYPE advancements_registered gauge\n")
		fmt.Fprintf(rw, "advancements_registered{world=%q,kind=%q} %d\n", id, "advancement", m.Advancements)
		fmt.Fprintf(rw, "advancements_registered{world=%q,kind=%q} %d\n", id, "tree", m.Trees)

		fmt.Fprintf(rw, "# HELP advancements_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE advancements_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "advancements_world_queue_depth{world=%q,queue=%q} %d\n", id, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "advancements_world_queue_depth{world=%q,queue=%q} %d\n", id, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "advancements_world_queue_depth{world=%q,queue=%q} %d\n", id, "leave", m.QueueDepths.Leave)

		fmt.Fprintf(rw, "# HELP advancements_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE advancements_world_step_ms gauge\n")
		fmt.Fprintf(rw, "advancements_world_step_ms{world=%q} %.3f\n", id, m.StepMS)

		fmt.Fprintf(rw, "# HELP advancements_events_total Counted world events.\n")
		fmt.Fprintf(rw, "# TYPE advancements_events_total counter\n")
		fmt.Fprintf(rw, "advancements_events_total{world=%q,event=%q} %d\n", id, "grant", m.GrantsTotal)
		fmt.Fprintf(rw, "advancements_events_total{world=%q,event=%q} %d\n", id, "revoke", m.RevokesTotal)
		fmt.Fprintf(rw, "advancements_events_total{world=%q,event=%q} %d\n", id, "kick", m.KicksTotal)
		fmt.Fprintf(rw, "advancements_events_total{world=%q,event=%q} %d\n", id, "encode_error", m.EncodeErrorsTotal)
		fmt.Fprintf(rw, "advancements_events_total{world=%q,event=%q} %d\n", id, "save_drop", m.SaveDropsTotal)

		if idx == nil {
			return
		}
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP advancements_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE advancements_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "advancements_index_queue_depth %d\n", s.QueueDepth)

		fmt.Fprintf(rw, "# HELP advancements_index_dropped_total Index rows dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE advancements_index_dropped_total counter\n")
		fmt.Fprintf(rw, "advancements_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
		fmt.Fprintf(rw, "advancements_index_dropped_total{kind=%q} %d\n", "session", s.DropSessionTotal)
		fmt.Fprintf(rw, "advancements_index_dropped_total{kind=%q} %d\n", "save", s.DropSaveTotal)
	}
}

// stateHandler is a local-only JSON view of the world metrics.
func stateHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: w.ID(),
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
