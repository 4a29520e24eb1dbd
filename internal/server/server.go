// Package server exposes the learning tracker and the signal bus over HTTP:
// the summary statistics endpoint polled by the progress panel, answer
// logging, and a Server-Sent Events stream of learning signals.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/abhisek/tutorbar/internal/notify"
	"github.com/abhisek/tutorbar/internal/tracker"
)

const (
	maxBodyBytes    = 64 * 1024
	shutdownTimeout = 5 * time.Second

	// Request defaults for answers logged without a topic or result.
	defaultTopic      = "math"
	defaultDifficulty = "medium"
)

// Options configures a Server. Tracker and Bus are created when nil.
type Options struct {
	Tracker *tracker.Tracker
	Bus     *notify.Bus
	Metrics *Metrics
	Logger  *zap.Logger
}

// Server wires HTTP handlers to the tracker and the signal bus.
type Server struct {
	router  chi.Router
	tracker *tracker.Tracker
	bus     *notify.Bus
	metrics *Metrics
	logger  *zap.Logger
}

// New constructs a Server with middleware and routes and starts the first
// learning session.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		tracker: opts.Tracker,
		bus:     opts.Bus,
		metrics: opts.Metrics,
		logger:  logger.Named("server"),
	}
	if s.tracker == nil {
		s.tracker = tracker.New(tracker.Options{})
	}
	if s.bus == nil {
		s.bus = notify.NewBus(notify.BusConfig{Logger: logger})
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if _, ok := s.tracker.CurrentSession(); !ok {
		s.tracker.StartSession()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/learning", func(r chi.Router) {
		r.Get("/progress", s.getProgress)
		r.Post("/log_answer", s.logAnswer)
		r.Post("/reset", s.reset)
		r.Get("/topics/{topic}", s.getTopic)
		r.Get("/objectives", s.listObjectives)
		r.Post("/objectives", s.addObjective)
		r.Post("/objectives/complete", s.completeObjective)
	})

	r.Get("/signals", s.streamSignals)
	r.Post("/signals/{name}", s.publishSignal)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Progress())
}

type logAnswerRequest struct {
	Topic      string `json:"topic"`
	IsCorrect  bool   `json:"is_correct"`
	Difficulty string `json:"difficulty"`
}

type topicResponse struct {
	Name            string        `json:"name"`
	Correct         int           `json:"correct_answers"`
	Incorrect       int           `json:"incorrect_answers"`
	Accuracy        float64       `json:"accuracy"`
	Level           tracker.Level `json:"level"`
	LastStudied     time.Time     `json:"last_studied"`
	NeedsAssessment bool          `json:"needs_assessment"`
}

func newTopicResponse(p tracker.TopicProgress) topicResponse {
	return topicResponse{
		Name:            p.Name,
		Correct:         p.Correct,
		Incorrect:       p.Incorrect,
		Accuracy:        p.Accuracy(),
		Level:           p.Level(),
		LastStudied:     p.LastStudied,
		NeedsAssessment: !p.Assessed(),
	}
}

func (s *Server) logAnswer(w http.ResponseWriter, r *http.Request) {
	var req logAnswerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Topic == "" {
		req.Topic = defaultTopic
	}
	if req.Difficulty == "" {
		req.Difficulty = defaultDifficulty
	}

	p, err := s.tracker.LogAnswer(req.Topic, req.IsCorrect)
	if errors.Is(err, tracker.ErrNoSession) {
		s.tracker.StartSession()
		p, err = s.tracker.LogAnswer(req.Topic, req.IsCorrect)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.observeAnswer(req.IsCorrect)
	s.logger.Info("answer logged",
		zap.String("topic", req.Topic),
		zap.Bool("correct", req.IsCorrect),
		zap.String("difficulty", req.Difficulty),
	)

	ctx := r.Context()
	s.broadcast(ctx, notify.SignalAnswerValidated, nil)
	s.broadcast(ctx, notify.SignalAnswerResult, notify.EncodeAnswerResult(req.IsCorrect))

	writeJSON(w, http.StatusOK, newTopicResponse(p))
}

func (s *Server) getTopic(w http.ResponseWriter, r *http.Request) {
	p, ok := s.tracker.Topic(chi.URLParam(r, "topic"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	writeJSON(w, http.StatusOK, newTopicResponse(p))
}

type objectiveRequest struct {
	Topic      string `json:"topic"`
	Objective  string `json:"objective"`
	Difficulty string `json:"difficulty"`
}

func (s *Server) listObjectives(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.ActiveObjectives())
}

func (s *Server) addObjective(w http.ResponseWriter, r *http.Request) {
	var req objectiveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Objective == "" {
		writeError(w, http.StatusBadRequest, "objective is required")
		return
	}
	if req.Topic == "" {
		req.Topic = defaultTopic
	}
	writeJSON(w, http.StatusCreated, s.tracker.AddObjective(req.Topic, req.Objective, req.Difficulty))
}

func (s *Server) completeObjective(w http.ResponseWriter, r *http.Request) {
	var req objectiveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	o, err := s.tracker.CompleteObjective(req.Objective)
	if errors.Is(err, tracker.ErrObjectiveNotFound) {
		writeError(w, http.StatusNotFound, "objective not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) reset(w http.ResponseWriter, _ *http.Request) {
	s.tracker.Reset()
	s.tracker.StartSession()
	s.logger.Info("learning progress reset")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Learning progress reset"})
}

func (s *Server) publishSignal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !notify.KnownSignal(name) {
		writeError(w, http.StatusNotFound, "unknown signal")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	var payload json.RawMessage
	switch {
	case len(body) == 0:
	case json.Valid(body):
		payload = body
	default:
		// Carried through as a JSON string; subscribers reject it on parse.
		payload, _ = json.Marshal(string(body))
	}

	s.broadcast(r.Context(), name, payload)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *Server) broadcast(ctx context.Context, name string, payload json.RawMessage) {
	if err := s.bus.Publish(ctx, name, payload); err != nil {
		s.logger.Warn("publish signal failed", zap.String("name", name), zap.Error(err))
		return
	}
	s.metrics.observeSignal(name)
}

func (s *Server) streamSignals(w http.ResponseWriter, r *http.Request) {
	names := r.URL.Query()["name"]
	for _, name := range names {
		if !notify.KnownSignal(name) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown signal %q", name))
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	ch, cancel, err := s.bus.Subscribe(ctx, names...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cancel()

	s.metrics.subscribers.Inc()
	defer s.metrics.subscribers.Dec()
	s.logger.Debug("signal stream opened",
		zap.String("req_id", middleware.GetReqID(ctx)),
		zap.Strings("names", names),
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := notify.WriteEvent(w, n); err != nil {
				s.logger.Debug("signal stream write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("req_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
