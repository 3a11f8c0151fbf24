package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trailgo/internal/api"
	"trailgo/pkg/config"
	"trailgo/pkg/core"
	"trailgo/pkg/db"
	"trailgo/pkg/db/maintenance"
	"trailgo/pkg/ephemeris"
	"trailgo/pkg/features"
	"trailgo/pkg/logging"
	"trailgo/pkg/marker"
	"trailgo/pkg/probe"
	"trailgo/pkg/sim"
	"trailgo/pkg/store"
	"trailgo/pkg/tracker"
	"trailgo/pkg/trail"
	"trailgo/pkg/version"
)

const ephemerisCSV = "data/ephemeris.csv"

var (
	configPath = flag.String("config", "configs/trailgo.yaml", "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("TrailGo Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, dbConn, ephemerisCSV); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	prov := config.NewProvider(appCfg, st)

	resolver, err := initResolver(ctx, appCfg, st)
	if err != nil {
		return err
	}

	flags := features.New(ctx, features.State{
		Trajectories: appCfg.Features.Trajectories,
		PlanetMarks:  appCfg.Features.PlanetMarks,
		SunFlares:    appCfg.Features.SunFlares,
	}, st)
	tr := tracker.New()

	clock, err := initClock(ctx, appCfg, prov, st)
	if err != nil {
		return err
	}

	observerName, observer := prov.Observer(ctx)
	sched := core.NewScheduler(prov.FrameInterval(ctx), clock, observer)

	trailsH := api.NewTrailHandler(sched, st)
	hub := api.NewStreamHub(trailsH)
	defer hub.Close()
	sched.AddSink(hub)

	if err := initScene(ctx, appCfg, prov, resolver, flags, tr, sched, trailsH); err != nil {
		return err
	}

	if err := verifyStartup(ctx, appCfg, dbConn, resolver, clock, observer); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	sched.AddJob(core.NewClockPersistenceJob(st, time.Duration(appCfg.Ticker.PersistInterval)))
	go sched.Start(ctx)

	slog.Info("Scene ready", "observer", observerName, "time", clock.Status().UTC, "speed", clock.Status().Speed)

	err = runServer(ctx, appCfg, prov, st, tr, flags, clock, sched, trailsH, hub, observerName)

	// Save the final clock time so the next start resumes here.
	if serr := st.SetState(context.Background(), core.ClockTimeKey, strconv.FormatFloat(clock.Now(), 'f', 3, 64)); serr != nil {
		slog.Error("Failed to save clock time", "error", serr)
	}
	return err
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initResolver builds the position provider from the configured sources in
// priority order.
func initResolver(ctx context.Context, cfg *config.Config, st store.EphemerisStore) (*ephemeris.Resolver, error) {
	var sources []ephemeris.Source
	for _, name := range cfg.Ephemeris.Sources {
		switch name {
		case "table":
			tracks, err := st.LoadEphemerisTracks(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to load ephemeris tables: %w", err)
			}
			slog.Info("Ephemeris tables loaded", "bodies", len(tracks))
			sources = append(sources, ephemeris.NewTable(tracks))
		case "kepler":
			orbits := make(map[string]ephemeris.Orbit, len(cfg.Ephemeris.Bodies))
			for body, oc := range cfg.Ephemeris.Bodies {
				o, err := oc.Orbit()
				if err != nil {
					return nil, fmt.Errorf("invalid orbit for %s: %w", body, err)
				}
				orbits[body] = o
			}
			sources = append(sources, ephemeris.NewKepler(orbits))
		}
	}
	return ephemeris.NewResolver(cfg.Ephemeris.Root, cfg.Ephemeris.Frames, sources...), nil
}

func initClock(ctx context.Context, cfg *config.Config, prov config.Provider, st store.StateStore) (*sim.Clock, error) {
	start, err := cfg.Clock.StartTime(time.Now())
	if err != nil {
		return nil, fmt.Errorf("invalid clock start: %w", err)
	}
	clock := sim.NewClock(start, prov.ClockSpeed(ctx), nil)
	if cfg.Clock.Restore {
		if core.RestoreClock(ctx, st, clock) {
			slog.Info("Clock restored", "utc", clock.Status().UTC)
		}
	}
	return clock, nil
}

// initScene creates a sampler per configured trail and a marker per dot or
// flare, registered in name order so frames are computed deterministically.
func initScene(ctx context.Context, cfg *config.Config, prov config.Provider, resolver ephemeris.Provider, flags *features.Flags, tr *tracker.Tracker, sched *core.Scheduler, trailsH *api.TrailHandler) error {
	names := make([]string, 0, len(cfg.Trajectories))
	for name := range cfg.Trajectories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tc := cfg.Trajectories[name]
		anchor := cfg.Anchors[name]
		window, err := anchor.Window()
		if err != nil {
			return fmt.Errorf("invalid existence for %s: %w", name, err)
		}
		color := trail.Color{R: tc.Color[0], G: tc.Color[1], B: tc.Color[2]}

		var sampler *trail.Sampler
		if tc.Trail != nil {
			sampler, err = trail.NewSampler(trail.Config{
				Name:    name,
				Target:  anchor.Anchor(),
				Parent:  tc.Trail.Parent(),
				Length:  prov.TrailLength(ctx, name).Seconds(),
				Samples: prov.TrailSamples(ctx, name),
				Color:   color,
				Window:  window,
			}, resolver, flags,
				trail.WithUploader(trailsH),
				trail.WithStats(tr),
				trail.WithLogger(slog.With("component", "trail")),
			)
			if err != nil {
				return fmt.Errorf("failed to create trail %s: %w", name, err)
			}
			sched.AddUpdater(sampler)
			trailsH.Register(sampler)
			slog.Debug("Trail configured", "trail", name, "length", sampler.Length(), "samples", sampler.SampleCount())
		}

		kinds := map[marker.Kind]bool{marker.KindDot: tc.DrawDot, marker.KindFlare: tc.DrawFlare}
		for _, kind := range []marker.Kind{marker.KindDot, marker.KindFlare} {
			if !kinds[kind] {
				continue
			}
			opts := []marker.Option{marker.WithSink(trailsH)}
			if sampler != nil && kind == marker.KindDot {
				opts = append(opts, marker.WithTrail(sampler))
			}
			m := marker.New(marker.Config{
				Name:   name,
				Kind:   kind,
				Target: anchor.Anchor(),
				Color:  color,
				Window: window,
			}, resolver, flags, opts...)
			sched.AddUpdater(m)
		}
	}
	return nil
}

// verifyStartup fails only when the database is unusable. Trails that cannot
// be resolved right now are reported and left to the sampler's failure handling.
func verifyStartup(ctx context.Context, cfg *config.Config, dbConn *db.DB, resolver ephemeris.Provider, clock *sim.Clock, observer ephemeris.Anchor) error {
	probes := []probe.Probe{
		{Name: "Database", Check: probe.Database(dbConn), Critical: true},
	}

	names := make([]string, 0, len(cfg.Trajectories))
	for name, tc := range cfg.Trajectories {
		if tc.Trail != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		probes = append(probes, probe.Probe{
			Name:  "Trail " + name,
			Check: probe.Resolves(resolver, cfg.Anchors[name].Anchor(), cfg.Trajectories[name].Trail.Parent(), clock.Now),
		})
	}
	if observer.Center != "" {
		probes = append(probes, probe.Probe{
			Name:  "Observer " + observer.Center,
			Check: probe.Resolves(resolver, ephemeris.Anchor{Center: cfg.Ephemeris.Root, Frame: observer.Frame}, observer, clock.Now),
		})
	}

	return probe.AnalyzeResults(probe.Run(ctx, probes, probe.DefaultTimeout))
}

func runServer(ctx context.Context, cfg *config.Config, prov config.Provider, st store.Store, tr *tracker.Tracker, flags *features.Flags, clock *sim.Clock, sched *core.Scheduler, trailsH *api.TrailHandler, hub *api.StreamHub, observer string) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		trailsH,
		hub,
		api.NewClockHandler(clock, sched, prov, st, observer),
		api.NewFeaturesHandler(flags),
		api.NewStatsHandler(tr),
		api.NewRunsHandler(st),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
