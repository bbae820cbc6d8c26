// Package devserver emulates the content-generation backend for local
// development: the generate endpoint, the latest-result endpoint and the
// realtime channel.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/syllabus-go/internal/channel"
	"github.com/raphaelgruber/syllabus-go/internal/client"
	"github.com/raphaelgruber/syllabus-go/internal/progress"
	"github.com/raphaelgruber/syllabus-go/internal/syllabus"
)

const (
	maxUploadSize = 32 << 20
	maxClasses    = 52
)

// Options configures a Server.
type Options struct {
	// StepDelay separates consecutive progress events.
	StepDelay time.Duration
	// Steps is the number of processing events per job.
	Steps int
	// Heartbeat is the websocket ping interval; zero disables pings.
	Heartbeat time.Duration
	// Token, when set, is required as a bearer token on REST calls.
	Token  string
	Logger *slog.Logger
}

// Server is an in-memory backend. The latest result is shared by all callers.
type Server struct {
	opts   Options
	hub    *Hub
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup

	mu     sync.RWMutex
	latest []syllabus.ResultItem
}

// New creates a server. Call Close to stop running jobs.
func New(opts Options) *Server {
	if opts.StepDelay <= 0 {
		opts.StepDelay = 500 * time.Millisecond
	}
	if opts.Steps <= 0 {
		opts.Steps = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	logger := opts.Logger.With("component", "devserver")
	return &Server{
		opts:   opts,
		hub:    NewHub(opts.Heartbeat, logger),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Hub returns the realtime hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+client.PathGenerateContent, s.requireToken(s.handleGenerate))
	mux.HandleFunc("GET "+client.PathLatestSyllabus, s.requireToken(s.handleLatest))
	mux.Handle("GET /realtime", s.hub)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return LoggingMiddleware(s.logger, mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close cancels running jobs and disconnects realtime clients.
func (s *Server) Close() {
	s.cancel()
	s.jobs.Wait()
	s.hub.CloseAll()
}

// Latest returns the most recent generated result.
func (s *Server) Latest() []syllabus.ResultItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// =============================================================================
// HANDLERS
// =============================================================================

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid multipart body"})
		return
	}

	file, header, err := r.FormFile("pdfFile")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "pdfFile is required"})
		return
	}
	defer file.Close()
	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "could not read pdfFile"})
		return
	}

	classes, err := strconv.Atoi(strings.TrimSpace(r.FormValue("noOfClasses")))
	if err != nil || classes < 1 || classes > maxClasses {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("noOfClasses must be between 1 and %d", maxClasses)})
		return
	}

	socketID := r.FormValue("socketId")
	if socketID == "" || !s.hub.Has(socketID) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "socketId does not name a connected client"})
		return
	}

	subject := subjectFromFile(header.Filename)
	s.logger.Info("job accepted", "file", header.Filename, "bytes", size, "classes", classes, "channel", socketID)

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.runJob(socketID, subject, classes, size == 0)
	}()

	writeJSON(w, http.StatusOK, client.GenerateResponse{Message: "Course generation started"})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	items := s.Latest()
	if items == nil {
		items = []syllabus.ResultItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"syllabus": items})
}

// =============================================================================
// JOBS
// =============================================================================

func (s *Server) emit(socketID string, e progress.Event) {
	if !s.hub.Send(socketID, channel.EventProgress, e) {
		s.logger.Debug("progress event not delivered", "channel", socketID, "status", e.Status)
	}
}

func (s *Server) wait() bool {
	t := time.NewTimer(s.opts.StepDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Server) runJob(socketID, subject string, classes int, empty bool) {
	logger := s.logger.With("channel", socketID)

	s.emit(socketID, progress.Event{Status: progress.StatusStarting, Progress: "0% completed", Message: "Reading document"})
	if !s.wait() {
		return
	}

	if empty {
		logger.Warn("job failed: empty document")
		s.emit(socketID, progress.Event{Status: progress.StatusError, Progress: "0% completed", Message: "The uploaded PDF is empty"})
		return
	}

	for i := 1; i <= s.opts.Steps; i++ {
		pct := i * 100 / (s.opts.Steps + 1)
		class := max(1, i*classes/s.opts.Steps)
		s.emit(socketID, progress.Event{
			Status:   progress.StatusProcessing,
			Progress: fmt.Sprintf("%d%% completed", pct),
			Message:  fmt.Sprintf("Generating class %d of %d", class, classes),
		})
		if !s.wait() {
			return
		}
	}

	items := synthesize(subject, classes, time.Now())
	s.mu.Lock()
	s.latest = items
	s.mu.Unlock()

	logger.Info("job completed", "classes", len(items))
	s.emit(socketID, progress.Event{Status: progress.StatusCompleted, Progress: "100% completed", Message: "Course content generated"})
}
