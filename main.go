package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/mun0404/IRIS/internal/api"
	"github.com/mun0404/IRIS/internal/archive"
	"github.com/mun0404/IRIS/internal/camera"
	"github.com/mun0404/IRIS/internal/checkpoint"
	"github.com/mun0404/IRIS/internal/detect"
	"github.com/mun0404/IRIS/internal/fsutil"
	"github.com/mun0404/IRIS/internal/httputil"
	"github.com/mun0404/IRIS/internal/inspect"
	"github.com/mun0404/IRIS/internal/pipeline"
	"github.com/mun0404/IRIS/internal/runstore"
	"github.com/mun0404/IRIS/internal/timeutil"
	"github.com/mun0404/IRIS/internal/version"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode    = flag.Bool("dev", false, "Run in dev mode: replayed frames, mocked detections, static files from disk")
	listen     = flag.String("listen", ":8080", "Listen address")
	configPath = flag.String("config", "config/checkpoints.yaml", "Checkpoint definitions file")
	dataDir    = flag.String("data", "data", "Data directory for run state and the archive")
	detectURL  = flag.String("detect-url", "http://127.0.0.1:8500/detect", "Detection service endpoint")
	throttleHz = flag.Float64("throttle-hz", runstore.DefaultThrottleHz, "Max live events per second per checkpoint (0 disables)")
	replaySecs = flag.Float64("replay-interval", 2, "Dev mode: seconds between replayed frames")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	log.Printf("iris %s (%s)", version.Version, version.GitSHA)

	defs, err := checkpoint.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("failed to load checkpoint definitions: %v", err)
	}
	log.Printf("loaded %d checkpoint definitions from %s", defs.Len(), *configPath)

	osfs := fsutil.OSFileSystem{}
	clock := timeutil.RealClock{}

	if err := osfs.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	arch, err := archive.Open(filepath.Join(*dataDir, "archive.db"), clock)
	if err != nil {
		log.Fatalf("failed to open run archive: %v", err)
	}
	defer arch.Close()

	store := runstore.New(osfs, clock, filepath.Join(*dataDir, "current"), defs,
		runstore.WithThrottleHz(*throttleHz),
		runstore.WithSupersedeHook(func(run runstore.RunRecord) {
			if err := arch.SaveRun(run); err != nil {
				log.Printf("failed to archive run %s: %v", run.RunID, err)
			}
		}),
	)

	if store.Resume() {
		run, _ := store.Run()
		log.Printf("resumed run %s (%s)", run.RunID, run.RunState)
	} else {
		run, err := store.StartRun()
		if err != nil {
			log.Fatalf("failed to start run: %v", err)
		}
		log.Printf("started run %s", run.RunID)
	}

	var detector detect.Detector
	if *devMode {
		// Dev detections report every door closed and nothing blocking, so
		// replayed frames walk the run to a clean PASS.
		mock := detect.NewMockDetector()
		mock.Default = []inspect.Detection{{ClassLabel: inspect.LabelDoorClosed, Confidence: 0.93}}
		detector = mock
	} else {
		detector = detect.NewHTTPDetector(
			httputil.NewStandardClient(&http.Client{Timeout: 30 * time.Second}),
			*detectURL,
		)
	}

	frames := camera.NewMux()
	defer frames.Close()

	evaluator := inspect.NewEvaluator()
	if *devMode {
		// Replace the panel_power placeholder with a seeded simulated
		// strategy so demo runs show varied non-gating results.
		evaluator.SetStrategy(inspect.CondPanelPower,
			inspect.NewSimulatedRandom(inspect.CondPanelPower, clock.Now().UnixNano()))
	}
	pipe := pipeline.New(frames, detector, evaluator, store, defs)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("pipeline terminated: %v", err)
		}
		log.Print("pipeline routine terminated")
	}()

	if *devMode {
		ids := make([]string, 0, defs.Len())
		for _, d := range defs.All() {
			ids = append(ids, d.ID)
		}
		replay := camera.NewReplaySource(clock, time.Duration(*replaySecs*float64(time.Second)), ids)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := replay.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("replay source terminated: %v", err)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := frames.Monitor(ctx, replay.Frames()); err != nil && err != context.Canceled {
				log.Printf("frame monitor terminated: %v", err)
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		srv := api.NewServer(store, defs, evaluator, osfs, clock, frames, arch)
		apiMux := srv.ServeMux()

		mux := http.NewServeMux()
		for _, prefix := range []string{"/api/", "/download/", "/images/", "/charts/"} {
			mux.Handle(prefix, apiMux)
		}

		// read static files from the embedded filesystem in production or
		// from the local ./static in dev for easier iteration without
		// restarting the server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			sub, err := fs.Sub(staticFiles, "static")
			if err != nil {
				log.Fatalf("failed to mount static files: %v", err)
			}
			staticHandler = http.FileServer(http.FS(sub))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Print("shutdown complete")
}
