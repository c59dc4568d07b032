// Package api serves the inspection dashboard's HTTP surface: run state
// reads, report downloads, checkpoint images, frame ingest, and the demo
// simulation endpoints.
package api

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mun0404/IRIS/internal/archive"
	"github.com/mun0404/IRIS/internal/camera"
	"github.com/mun0404/IRIS/internal/checkpoint"
	"github.com/mun0404/IRIS/internal/fsutil"
	"github.com/mun0404/IRIS/internal/httputil"
	"github.com/mun0404/IRIS/internal/inspect"
	"github.com/mun0404/IRIS/internal/report"
	"github.com/mun0404/IRIS/internal/runstore"
	"github.com/mun0404/IRIS/internal/security"
	"github.com/mun0404/IRIS/internal/timeutil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxFrameBytes bounds one ingested frame body.
const maxFrameBytes = 10 << 20

// RunLister lists archived runs. Nil disables /api/runs.
type RunLister interface {
	ListRuns(limit int) ([]archive.ArchivedRun, error)
}

type Server struct {
	store     *runstore.Store
	defs      *checkpoint.Set
	evaluator *inspect.Evaluator
	fs        fsutil.FileSystem
	clock     timeutil.Clock
	frames    *camera.Mux
	runs      RunLister

	// rand feeds the demo endpoints' synthetic confidences. rand.Rand is
	// not safe for concurrent use; handlers draw through randFloat64.
	randMu sync.Mutex
	rand   *rand.Rand

	// validatePath confines image serving to the images directory. Swapped
	// out in tests running over the in-memory filesystem.
	validatePath func(path, safeDir string) error
}

func NewServer(store *runstore.Store, defs *checkpoint.Set, evaluator *inspect.Evaluator, fs fsutil.FileSystem, clock timeutil.Clock, frames *camera.Mux, runs RunLister) *Server {
	return &Server{
		store:        store,
		defs:         defs,
		evaluator:    evaluator,
		fs:           fs,
		clock:        clock,
		frames:       frames,
		runs:         runs,
		rand:         rand.New(rand.NewSource(clock.Now().UnixNano())),
		validatePath: security.ValidatePathWithinDirectory,
	}
}

func (s *Server) randFloat64() float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.Float64()
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/latest", s.showLatest)
	mux.HandleFunc("/api/run", s.showRun)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/frames/", s.ingestFrame)
	mux.HandleFunc("/api/demo/start", s.demoStart)
	mux.HandleFunc("/api/demo/reset", s.demoReset)
	mux.HandleFunc("/api/demo/simulate_pass", s.demoSimulatePass)
	mux.HandleFunc("/api/demo/simulate_fail", s.demoSimulateFail)
	mux.HandleFunc("/download/json", s.downloadJSON)
	mux.HandleFunc("/download/csv", s.downloadCSV)
	mux.HandleFunc("/images/", s.serveImage)
	mux.HandleFunc("/charts/summary", s.summaryChart)
	return mux
}

// showLatest serves the latest-per-checkpoint snapshot exactly as persisted,
// so polling clients see byte-identical bodies between events.
func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteRawJSON(w, s.store.ReadLatest())
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteRawJSON(w, s.store.ReadRun())
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	rows, err := report.Build(s.fs, s.store.EventsPath())
	if err != nil {
		httputil.InternalServerError(w, "failed to read event log")
		return
	}
	stats := report.Stats(rows)
	if stats == nil {
		stats = []report.CheckpointStats{}
	}
	httputil.WriteJSONOK(w, stats)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.runs == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "run archive not enabled")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []archive.ArchivedRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

// ingestFrame accepts one captured frame for a checkpoint from the robot and
// hands it to the evaluation pipeline via the frame mux.
func (s *Server) ingestFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.frames == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "frame ingest not enabled")
		return
	}

	checkpointID := strings.TrimPrefix(r.URL.Path, "/api/frames/")
	if checkpointID == "" || strings.Contains(checkpointID, "/") {
		httputil.BadRequest(w, "missing checkpoint id")
		return
	}
	if _, ok := s.defs.Get(checkpointID); !ok {
		httputil.NotFound(w, fmt.Sprintf("unknown checkpoint %q", checkpointID))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes+1))
	if err != nil {
		httputil.BadRequest(w, "failed to read frame body")
		return
	}
	if len(body) == 0 {
		httputil.BadRequest(w, "empty frame body")
		return
	}
	if len(body) > maxFrameBytes {
		httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}

	s.frames.Publish(camera.Frame{
		CheckpointID: checkpointID,
		Data:         body,
		CapturedAt:   s.clock.Now(),
	})
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":        "accepted",
		"checkpoint_id": checkpointID,
	})
}

func (s *Server) downloadJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	body, err := s.fs.ReadFile(s.store.ReportJSONPath())
	if err != nil {
		body = []byte("[]")
	}
	httputil.WriteAttachment(w, s.reportFilename("json"), "application/json", body)
}

// downloadCSV serves the CSV export. Before any event the file is zero bytes
// with no header; that is the documented empty-report shape.
func (s *Server) downloadCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	body, err := s.fs.ReadFile(s.store.ReportCSVPath())
	if err != nil {
		body = nil
	}
	httputil.WriteAttachment(w, s.reportFilename("csv"), "text/csv", body)
}

func (s *Server) reportFilename(ext string) string {
	if run, ok := s.store.Run(); ok {
		return fmt.Sprintf("report-%s.%s", run.RunID, ext)
	}
	return "report." + ext
}

func (s *Server) serveImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/images/")
	if name == "" || name != filepath.Base(name) {
		httputil.BadRequest(w, "invalid image name")
		return
	}

	path := filepath.Join(s.store.ImagesDir(), name)
	if err := s.validatePath(path, s.store.ImagesDir()); err != nil {
		httputil.BadRequest(w, "invalid image path")
		return
	}

	body, err := s.fs.ReadFile(path)
	if err != nil {
		httputil.NotFound(w, "image not found")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(body)
}
