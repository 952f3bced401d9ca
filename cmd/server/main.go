package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "voxelterrain.ai/internal/persistence/log"
	"voxelterrain.ai/internal/persistence/snapshot"
	"voxelterrain.ai/internal/sim/world/terrain/store"
	"voxelterrain.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 0, "world seed override for a fresh world (0 keeps tuning.yaml)")
		noise      = flag.String("noise", "", "noise override for a fresh world: opensimplex|perlin|flat")
		configDir  = flag.String("configs", "./configs", "config directory")
		configsSrc = flag.String("configs_src", "", "fetch the config directory from this go-getter source into <data>/configs first")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite chunk index")
		disableLog = flag.Bool("disable_gen_log", false, "disable the per-chunk generation log")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	if src := strings.TrimSpace(*configsSrc); src != "" {
		dst := filepath.Join(*dataDir, "configs")
		if err := fetchConfigs(src, dst, logger); err != nil {
			logger.Fatalf("%v", err)
		}
		*configDir = dst
	}

	cats, err := loadCatalogs(*configDir, logger)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := loadTuning(tp, tuningOverrides{Seed: *seed, Noise: *noise}, logger)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	// Optional read model; it never feeds back into generation.
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.LatestSnapshot(filepath.Join(worldDir, "snapshots"))
	}
	st, err := openStore(tune, snapshotToLoad, *worldID, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	var observers store.Observers
	if !*disableLog {
		genLog := persistlog.NewGenLogger(worldDir, logger)
		defer genLog.Close()
		observers = append(observers, genLog)
	}
	if idx != nil {
		observers = append(observers, idx)
	}
	st.SetObserver(observers)

	ctx, cancel := signalContext()
	defer cancel()

	if err := pregenerate(ctx, st, tune, logger); err != nil {
		logger.Fatalf("spawn region: %v", err)
	}

	snaps := &snapshotWriter{
		worldDir: worldDir,
		worldID:  *worldID,
		store:    st,
		cats:     cats,
		idx:      idx,
		logger:   logger,
		now:      time.Now,
	}
	go snaps.Run(ctx, time.Duration(tune.SnapshotEverySeconds)*time.Second)

	wsSrv := ws.NewServer(st, cats, ws.Config{ChunkRequestsPerSecond: tune.ChunkRequestsPerSecond}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(*worldID, st, wsSrv, idx))
	if envBool("VT_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Loopback only.
		mux.HandleFunc("/admin/v1/state", adminStateHandler(*worldID, st, wsSrv))
		mux.HandleFunc("/admin/v1/snapshot", adminSnapshotHandler(snaps))
	} else {
		logger.Printf("admin endpoints disabled (VT_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("VT_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (VT_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), time.Duration(envInt("VT_SHUTDOWN_TIMEOUT_SEC", 5))*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (seed=%d noise=%s)", *addr, st.Gen.Seed, st.Gen.Noise)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	// Shutdown does not wait for hijacked websocket conns; stop them before
	// the generation log and index close.
	wsSrv.Close()

	if _, err := snaps.Write(); err != nil {
		logger.Printf("final snapshot: %v", err)
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
