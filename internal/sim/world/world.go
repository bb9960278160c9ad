// Package world runs the game loop that owns every connected player's
// advancement state. Transports talk to it only through channels.
package world

import (
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voxelcraft.ai/advancements/internal/persistence/snapshot"
	"voxelcraft.ai/advancements/internal/sim/advancement"
	"voxelcraft.ai/advancements/internal/sim/catalogs"
)

type World struct {
	cfg WorldConfig
	log *log.Logger
	now func() time.Time

	reg       *advancement.Registry
	operators map[string]bool

	tick         atomic.Uint64
	nextEntityID int32

	clients map[uuid.UUID]*client

	// actor and actorCriterion describe the command being run, for audit
	// entries.
	actor          string
	actorCriterion string

	inbox chan PacketEnvelope
	join  chan JoinRequest
	leave chan LeaveRequest
	stop  chan struct{}

	auditLogger   AuditLogger
	sessionLogger SessionLogger
	snapshotSink  chan<- snapshot.PlayerV1

	stats   counters
	metrics atomic.Value
}

// New builds a world and installs the catalog advancements. cats may be nil
// for an empty registry.
func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()
	w := &World{
		cfg:       cfg,
		log:       log.New(io.Discard, "", 0),
		now:       time.Now,
		operators: map[string]bool{},
		clients:   map[uuid.UUID]*client{},
		inbox:     make(chan PacketEnvelope, 8192),
		join:      make(chan JoinRequest, 256),
		leave:     make(chan LeaveRequest, 1024),
		stop:      make(chan struct{}),
	}
	for _, name := range cfg.Operators {
		w.operators[name] = true
	}
	w.reg = advancement.NewRegistry(advancement.Options{
		Clock:    func() time.Time { return w.now() },
		Notifier: w,
		Announce: cfg.AnnounceAdvancements,
	})
	if cats != nil {
		if err := cats.Install(w.reg); err != nil {
			return nil, err
		}
	}
	w.publishMetrics(0, 0)
	return w, nil
}

func (w *World) SetLogger(l *log.Logger)                     { w.log = l }
func (w *World) SetAuditLogger(l AuditLogger)                { w.auditLogger = l }
func (w *World) SetSessionLogger(l SessionLogger)            { w.sessionLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.PlayerV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- PacketEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- LeaveRequest   { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

// Registry is only safe to use before Run starts or from the world
// goroutine.
func (w *World) Registry() *advancement.Registry { return w.reg }

func (w *World) nowMillis() int64 { return w.now().UnixMilli() }
