package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	persistlog "primsim.ai/internal/persistence/log"
	"primsim.ai/internal/persistence/snapshot"
	"primsim.ai/internal/sim/tuning"
	"primsim.ai/internal/sim/world"
	"primsim.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		regionName = flag.String("region", "region_1", "region name (data directory)")
		regionID   = flag.String("region_id", "", "region uuid (default: from snapshot, else random)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite event/snapshot index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	regionDir := filepath.Join(*dataDir, "regions", *regionName)
	_ = os.MkdirAll(regionDir, 0o755)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(regionDir)
	}
	var snap *snapshot.SnapshotV1
	if snapshotToLoad != "" {
		s, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		snap = &s
	}

	id, err := resolveRegionID(*regionID, snap)
	if err != nil {
		logger.Fatalf("region id: %v", err)
	}

	region := world.NewRegion(world.RegionConfig{
		ID:                 id,
		Name:               *regionName,
		TickRateHz:         tune.TickRateHz,
		MaxLinks:           tune.MaxLinks,
		SnapshotEveryTicks: tune.SnapshotEveryTicks,
	}, world.NewScriptRegistry(), nil, log.New(os.Stdout, "[region] ", log.LstdFlags|log.Lmicroseconds))

	if snap != nil {
		if err := region.ImportSnapshot(*snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d groups=%d", filepath.Base(snapshotToLoad), region.CurrentTick(), len(snap.Groups))
	}

	// Optional read-model index; the JSONL event log stays authoritative.
	idx, err := openRuntimeIndex(regionDir, *disableDB || !tune.Index)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		region.AddEventLogger(idx)
	}
	if tune.EventLog {
		eventLog := persistlog.NewEventLogger(regionDir)
		defer eventLog.Close()
		region.AddEventLogger(eventLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	writeSnapshot := func(s snapshot.SnapshotV1) error {
		path := snapshot.SnapshotPath(regionDir, s.Header.Tick)
		if err := snapshot.WriteSnapshot(path, s); err != nil {
			return err
		}
		if idx != nil {
			idx.RecordSnapshot(path, s)
		}
		return nil
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	region.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-snapCh:
				if err := writeSnapshot(s); err != nil {
					logger.Printf("snapshot write: %v", err)
				}
			}
		}
	}()

	go region.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, region, idx)
	})

	obsSrv := observer.NewServer(region, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds), observer.Options{
		MaxQueue:     tune.Observer.MaxQueue,
		WriteTimeout: time.Duration(tune.Observer.WriteTimeoutMs) * time.Millisecond,
		SendWait:     time.Duration(tune.Observer.SendWaitMs) * time.Millisecond,
		LoopbackOnly: tune.Observer.LoopbackOnly,
	})
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())
	mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/admin/v1/observer/schemas/{name}", obsSrv.SchemaHandler())

	if envBool("PS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		admin := &adminHandlers{
			region: region,
			log:    logger,
			snapshot: func() (uint64, error) {
				s := region.ExportSnapshot()
				return s.Header.Tick, writeSnapshot(s)
			},
		}
		admin.register(mux)
	} else {
		logger.Printf("admin endpoints disabled (PS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("PS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("region %s (%s) listening on %s", *regionName, region.ID(), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// resolveRegionID prefers the flag, then the snapshot header. A flag that
// disagrees with the snapshot is an error.
func resolveRegionID(flagID string, snap *snapshot.SnapshotV1) (uuid.UUID, error) {
	var fromSnap uuid.UUID
	if snap != nil && snap.Header.RegionID != "" {
		id, err := uuid.Parse(snap.Header.RegionID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("snapshot region id: %w", err)
		}
		fromSnap = id
	}
	flagID = strings.TrimSpace(flagID)
	if flagID == "" {
		if fromSnap != uuid.Nil {
			return fromSnap, nil
		}
		return uuid.New(), nil
	}
	id, err := uuid.Parse(flagID)
	if err != nil {
		return uuid.Nil, err
	}
	if fromSnap != uuid.Nil && fromSnap != id {
		return uuid.Nil, fmt.Errorf("snapshot region id mismatch: flag=%s snap=%s", id, fromSnap)
	}
	return id, nil
}

func writeMetrics(rw http.ResponseWriter, r *world.Region, idx runtimeIndex) {
	groups := r.Groups()
	parts := 0
	for _, g := range groups {
		parts += g.Size()
	}
	id := r.ID().String()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP primsim_region_tick Current region tick.\n")
	fmt.Fprintf(rw, "# TYPE primsim_region_tick gauge\n")
	fmt.Fprintf(rw, "primsim_region_tick{region=%q} %d\n", id, r.CurrentTick())

	fmt.Fprintf(rw, "# HELP primsim_region_groups Live linksets.\n")
	fmt.Fprintf(rw, "# TYPE primsim_region_groups gauge\n")
	fmt.Fprintf(rw, "primsim_region_groups{region=%q} %d\n", id, len(groups))

	fmt.Fprintf(rw, "# HELP primsim_region_parts Live parts.\n")
	fmt.Fprintf(rw, "# TYPE primsim_region_parts gauge\n")
	fmt.Fprintf(rw, "primsim_region_parts{region=%q} %d\n", id, parts)

	fmt.Fprintf(rw, "# HELP primsim_region_observers Connected observers.\n")
	fmt.Fprintf(rw, "# TYPE primsim_region_observers gauge\n")
	fmt.Fprintf(rw, "primsim_region_observers{region=%q} %d\n", id, len(r.Observers()))

	if idx == nil {
		return
	}
	st := idx.Stats()
	fmt.Fprintf(rw, "# HELP primsim_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE primsim_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "primsim_index_queue_depth{region=%q} %d\n", id, st.QueueDepth)
	fmt.Fprintf(rw, "# HELP primsim_index_dropped_total Index writes dropped under load.\n")
	fmt.Fprintf(rw, "# TYPE primsim_index_dropped_total counter\n")
	fmt.Fprintf(rw, "primsim_index_dropped_total{region=%q,kind=%q} %d\n", id, "event", st.DropEventTotal)
	fmt.Fprintf(rw, "primsim_index_dropped_total{region=%q,kind=%q} %d\n", id, "snapshot", st.DropSnapshotTotal)
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
