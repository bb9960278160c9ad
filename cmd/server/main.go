package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voxelcraft.ai/advancements/internal/i18n"
	persistlog "voxelcraft.ai/advancements/internal/persistence/log"
	"voxelcraft.ai/advancements/internal/persistence/snapshot"
	"voxelcraft.ai/advancements/internal/sim/catalogs"
	"voxelcraft.ai/advancements/internal/sim/tuning"
	"voxelcraft.ai/advancements/internal/sim/world"
	"voxelcraft.ai/advancements/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "overworld", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (audit, sessions, saves, catalogs)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	senv, err := parseEnv()
	if err != nil {
		logger.Fatalf("%v", err)
	}
	override(addr, senv.Addr)
	override(configDir, senv.ConfigDir)
	override(dataDir, senv.DataDir)
	override(tuningPath, senv.TuningPath)

	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	tune.Operators = append(tune.Operators, senv.Operators...)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		logger.Fatalf("load locales: %v", err)
	}
	locale, err := i18n.ParseLocale(tune.DefaultLocale)
	if err != nil {
		logger.Fatalf("default_locale: %v", err)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}
	idx, err := openRuntimeIndex(*dataDir, senv.IndexBackend, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	w, err := world.New(worldConfig(*worldID, tune), cats)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetLogger(logger)
	logger.Printf("world %s: %d advancements in %d trees", *worldID, len(w.Registry().All()), len(w.Registry().Trees()))

	auditLog := persistlog.NewAuditLogger(*dataDir)
	sessionLog := persistlog.NewSessionLogger(*dataDir)
	defer auditLog.Close()
	defer sessionLog.Close()
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	w.SetSessionLogger(multiSessionLogger{a: sessionLog, b: idx})

	store := snapshot.NewStore(filepath.Join(*dataDir, "players"))
	snapCh := make(chan snapshot.PlayerV1, 256)
	w.SetSnapshotSink(snapCh)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx))
	if senv.adminHTTP() {
		mux.HandleFunc("/admin/v1/state", stateHandler(w))
	} else {
		logger.Printf("admin endpoints disabled (ADV_ENABLE_ADMIN_HTTP=false)")
	}
	if senv.EnablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, store, ws.Config{
		DefaultLocale: locale,
		Localizer:     bundle,
		Items:         cats.Items,
		MaxFrameBytes: tune.Codec.MaxFrameBytes,
		MaxNBTDepth:   tune.Codec.MaxNBTDepth,
		MaxNBTBytes:   tune.Codec.MaxNBTBytes,
		OutboundQueue: tune.OutboundQueue,
	}, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Shutdown saves every player; the drainer stops once they are written.
		defer close(snapCh)
		if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		store.Drain(snapCh, func(path string, snap snapshot.PlayerV1, err error) {
			if err != nil {
				logger.Printf("save %s: %v", snap.Header.Name, err)
				return
			}
			if idx != nil {
				idx.RecordSave(path, snap)
			}
		})
		return nil
	})
	g.Go(func() error {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}

func worldConfig(id string, tune tuning.Tuning) world.WorldConfig {
	return world.WorldConfig{
		ID:                    id,
		TickRateHz:            tune.TickRateHz,
		SyncEveryTicks:        tune.SyncEveryTicks,
		SaveEveryTicks:        tune.SaveEveryTicks,
		KeepAliveEveryTicks:   tune.KeepAliveEveryTicks,
		KeepAliveTimeoutTicks: tune.KeepAliveTimeoutTicks,
		MaxPlayers:            tune.MaxPlayers,
		AnnounceAdvancements:  tune.AnnounceAdvancements,
		Operators:             tune.Operators,
		TravelStepBlocks:      tune.TravelStepBlocks,
		RateLimits: world.RateLimitConfig{
			ChatWindowTicks: tune.RateLimits.ChatWindowTicks,
			ChatMax:         tune.RateLimits.ChatMax,
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
