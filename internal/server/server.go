// Package server exposes the article pipeline over HTTP: uploads start
// runs, progress streams over SSE or WebSocket, and finished artifacts are
// downloadable.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Gmabatah93/Project2Article/internal/archive"
	"github.com/Gmabatah93/Project2Article/internal/artifact"
	"github.com/Gmabatah93/Project2Article/internal/article"
	"github.com/Gmabatah93/Project2Article/internal/export"
	"github.com/Gmabatah93/Project2Article/internal/llm"
	"github.com/Gmabatah93/Project2Article/internal/pipeline"
	"github.com/Gmabatah93/Project2Article/internal/project"
	"github.com/Gmabatah93/Project2Article/internal/runstore"
)

// multipartOverhead is allowed on top of the archive size limit for form
// fields and boundaries.
const multipartOverhead = 1 << 20

// Options configure a Server.
type Options struct {
	// Driver options shared by every run. Progress and Observer are set
	// per run by the server.
	Driver pipeline.Options
	// MaxRuns caps concurrent runs; zero means 4.
	MaxRuns int
	// MaxUploadBytes caps the archive size; zero means archive.DefaultMaxBytes.
	MaxUploadBytes int64
	// RegistrySize caps the runs kept in memory; zero means 256.
	RegistrySize int
	Artifacts    artifact.Store
	History      *runstore.Store
	Logger       *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	opts     Options
	sem      *semaphore.Weighted
	registry *Registry
	logger   *slog.Logger
	// baseCtx outlives requests; runs are cancelled when it is.
	baseCtx    context.Context
	cancelRuns context.CancelFunc
}

// New creates a Server. Artifact and history hooks are appended to the
// driver hooks when the corresponding stores are set.
func New(opts Options) (*Server, error) {
	if opts.MaxRuns <= 0 {
		opts.MaxRuns = 4
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = archive.DefaultMaxBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg, err := NewRegistry(opts.RegistrySize)
	if err != nil {
		return nil, err
	}
	hooks := append([]pipeline.Hook(nil), opts.Driver.Hooks...)
	if opts.Artifacts != nil {
		hooks = append(hooks, artifact.NewHook(opts.Artifacts, logger))
	}
	if opts.History != nil {
		hooks = append(hooks, runstore.NewHook(opts.History))
	}
	opts.Driver.Hooks = hooks
	opts.Driver.Logger = logger
	opts.Driver.Archive.MaxBytes = opts.MaxUploadBytes

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:       opts,
		sem:        semaphore.NewWeighted(int64(opts.MaxRuns)),
		registry:   reg,
		logger:     logger,
		baseCtx:    ctx,
		cancelRuns: cancel,
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleCancelRun)
	mux.HandleFunc("GET /api/runs/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /api/runs/{id}/ws", s.handleWS)
	mux.HandleFunc("GET /api/runs/{id}/artifacts", s.handleListArtifacts)
	mux.HandleFunc("GET /api/runs/{id}/artifacts/{name}", s.handleArtifact)
	return mux
}

// Serve listens on addr until ctx is done, then shuts down gracefully and
// cancels in-flight runs.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.cancelRuns()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close cancels every in-flight run.
func (s *Server) Close() { s.cancelRuns() }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createRunResponse is returned by POST /api/runs.
type createRunResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
	Events string `json:"events"`
	WS     string `json:"ws"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, archive.ErrSizeExceeded.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("archive")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing archive file field")
		return
	}
	defer file.Close()

	if _, err := archive.ValidateUpload(header.Filename, header.Size, s.opts.MaxUploadBytes); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read archive: "+err.Error())
		return
	}

	cfg, err := configFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.sem.TryAcquire(1) {
		writeError(w, http.StatusTooManyRequests, "too many runs in progress; try again shortly")
		return
	}
	e, err := s.start(pipeline.Upload{Name: header.Filename, Data: data}, cfg)
	if err != nil {
		s.sem.Release(1)
		writeError(w, statusFor(err), err.Error())
		return
	}

	// Wait for extraction so archive problems are reported on this request.
	select {
	case <-e.started:
	case <-r.Context().Done():
		return
	}
	if st, _, _ := e.snapshot(); st.Failure != nil && st.Failure.Step == pipeline.StepExtraction {
		writeError(w, statusFor(st.Failure), st.Failure.Error())
		return
	}

	base := "/api/runs/" + e.id
	writeJSON(w, http.StatusAccepted, createRunResponse{
		RunID:  e.id,
		Status: base,
		Events: base + "/events",
		WS:     base + "/ws",
	})
}

// start registers a run and executes it in the background. The caller
// holds one semaphore slot, released when the run ends.
func (s *Server) start(up pipeline.Upload, cfg article.Config) (*runEntry, error) {
	newID := s.opts.Driver.NewRunID
	if newID == nil {
		newID = uuid.NewString
	}
	id := newID()
	ctx, cancel := context.WithCancel(s.baseCtx)
	e := newRunEntry(id, pipeline.NewState(id, cfg), cancel)
	if err := s.registry.create(e); err != nil {
		cancel()
		return nil, err
	}

	progress := pipeline.NewProgressReporter()
	dopts := s.opts.Driver
	dopts.Progress = progress
	dopts.Observer = e.observe
	driver := pipeline.NewDriver(dopts)

	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		for ev := range progress.Subscribe() {
			e.publish(ev)
		}
	}()
	go func() {
		defer s.sem.Release(1)
		defer cancel()
		res, err := driver.RunWithID(ctx, id, up, cfg)
		progress.Close()
		<-pumped
		if err != nil {
			s.logger.Warn("run failed", "run", id, "error", err)
		} else {
			s.logger.Info("run finished", "run", id, "warnings", len(res.Warnings))
		}
		e.finish(res, err)
	}()
	return e, nil
}

// configFromForm reads the generation settings from form fields.
func configFromForm(r *http.Request) (article.Config, error) {
	var cfg article.Config
	var err error
	if cfg.Depth, err = project.ParseDepth(r.FormValue("depth")); err != nil {
		return cfg, err
	}
	if cfg.Tone, err = article.ParseTone(r.FormValue("tone")); err != nil {
		return cfg, err
	}
	if cfg.Audience, err = article.ParseAudience(r.FormValue("audience")); err != nil {
		return cfg, err
	}
	p, ok := llm.ParseProvider(r.FormValue("provider"))
	if !ok {
		return cfg, fmt.Errorf("unknown provider %q (choose one of: %s)", r.FormValue("provider"), llm.ProviderChoices())
	}
	cfg.Provider = p
	cfg.Credential = strings.TrimSpace(r.FormValue("api_key"))
	cfg.Title = strings.TrimSpace(r.FormValue("title"))
	cfg.ProjectName = strings.TrimSpace(r.FormValue("project_name"))
	cfg.Model = strings.TrimSpace(r.FormValue("model"))
	return cfg, nil
}

// runStatus is returned by GET /api/runs/{id}.
type runStatus struct {
	*export.RunReport
	Stage     pipeline.Stage   `json:"stage"`
	Current   int              `json:"current,omitempty"`
	Total     int              `json:"total"`
	Artifacts []string         `json:"artifacts,omitempty"`
	History   *runstore.Record `json:"history,omitempty"`
	Events    int              `json:"events"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := s.registry.get(id)
	if !ok {
		s.historyOnly(w, r, id)
		return
	}
	st, _, _ := e.snapshot()
	e.mu.Lock()
	n := len(e.events)
	e.mu.Unlock()

	out := runStatus{
		RunReport: export.BuildReport(st, time.Now()),
		Stage:     st.Stage,
		Current:   st.Current,
		Total:     st.Total(),
		Events:    n,
	}
	if st.Stage.Terminal() && s.opts.Artifacts != nil {
		out.Artifacts, _ = s.opts.Artifacts.List(r.Context(), id)
	}
	writeJSON(w, http.StatusOK, out)
}

// historyOnly answers for runs evicted from memory or run by an earlier
// process.
func (s *Server) historyOnly(w http.ResponseWriter, r *http.Request, id string) {
	if s.opts.History == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	rec, err := s.opts.History.Get(r.Context(), id)
	if errors.Is(err, runstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runStatus{RunReport: &export.RunReport{RunID: id, Status: rec.Status, Title: rec.Title}, History: &rec})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.History != nil {
		recs, err := s.opts.History.List(r.Context(), 50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": recs})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runIds": s.registry.IDs()})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	e, ok := s.registry.get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	e.cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": e.id, "status": "cancelling"})
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.opts.Artifacts == nil {
		writeError(w, http.StatusNotFound, "artifact storage is disabled")
		return
	}
	names, err := s.opts.Artifacts.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": names})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if s.opts.Artifacts == nil {
		writeError(w, http.StatusNotFound, "artifact storage is disabled")
		return
	}
	id, name := r.PathValue("id"), r.PathValue("name")
	if r.URL.Query().Get("redirect") == "1" {
		if u, err := s.opts.Artifacts.GetURL(r.Context(), id, name); err == nil && strings.HasPrefix(u, "http") {
			http.Redirect(w, r, u, http.StatusFound)
			return
		}
	}
	data, err := s.opts.Artifacts.Get(r.Context(), id, name)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// statusFor maps errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, archive.ErrSizeExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, archive.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, archive.ErrUnsafeArchive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, artifact.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, ErrRegistryFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
