package world

// WorldMetrics is published once per tick for the metrics endpoint.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players      int `json:"players"`
	Advancements int `json:"advancements"`
	Trees        int `json:"trees"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	GrantsTotal       uint64 `json:"grants_total"`
	RevokesTotal      uint64 `json:"revokes_total"`
	KicksTotal        uint64 `json:"kicks_total"`
	EncodeErrorsTotal uint64 `json:"encode_errors_total"`
	SaveDropsTotal    uint64 `json:"save_drops_total"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

// counters are only touched by the world goroutine.
type counters struct {
	grants       uint64
	revokes      uint64
	kicks        uint64
	encodeErrors uint64
	saveDrops    uint64
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(nowTick uint64, stepMS float64) {
	w.metrics.Store(WorldMetrics{
		Tick:         nowTick,
		Players:      len(w.clients),
		Advancements: len(w.reg.All()),
		Trees:        len(w.reg.Trees()),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS:            stepMS,
		GrantsTotal:       w.stats.grants,
		RevokesTotal:      w.stats.revokes,
		KicksTotal:        w.stats.kicks,
		EncodeErrorsTotal: w.stats.encodeErrors,
		SaveDropsTotal:    w.stats.saveDrops,
	})
}
