package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/flows"
	"github.com/aretw0/tapestry/pkg/mode"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxAwait caps how long POST /sessions/{id}/await blocks.
const maxAwait = 30 * time.Second

// Server exposes a session manager over JSON HTTP.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics serves g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithStreams shares a stream manager whose sinks were handed to the session factory.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// NewServer creates a server over mgr.
func NewServer(mgr *session.Manager, opts ...Option) *Server {
	s := &Server{
		Sessions: mgr,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/flows", s.listFlows)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Get("/model", s.getModel)
			r.Get("/events", s.subscribeEvents)
			r.Post("/flows/{key}", s.runFlow)
			r.Post("/click", s.click)
			r.Post("/motion", s.motion)
			r.Post("/answer", s.answer)
			r.Post("/cancel", s.cancel)
			r.Post("/undo", s.undo)
			r.Post("/redo", s.redo)
			r.Post("/await", s.await)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Result is the response to every trigger.
type Result struct {
	Progress string           `json:"progress,omitempty"`
	Click    string           `json:"click,omitempty"`
	Feedback *domain.Feedback `json:"feedback,omitempty"`
	Entry    *changelog.Entry `json:"entry,omitempty"`
	Outcome  string           `json:"outcome,omitempty"`
	Status   tapestry.Status  `json:"status"`
}

// FlowInfo describes a registered flow.
type FlowInfo struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled,omitempty"`
}

type createRequest struct {
	ID string `json:"id"`
}

type flowRequest struct {
	Preload map[string]any `json:"preload"`
}

type pointRequest struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Shifted bool    `json:"shifted"`
}

type answerRequest struct {
	Choice string         `json:"choice"`
	Values map[string]any `json:"values"`
}

type cancelRequest struct {
	Mask string `json:"mask"`
	Job  bool   `json:"job"`
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "tapestry-http",
		"version": strings.TrimSpace(tapestry.Version),
	})
}

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		all := flows.All()
		infos := make([]FlowInfo, len(all))
		for i, f := range all {
			infos[i] = FlowInfo{Key: f.Key(), Name: f.Name()}
		}
		writeJSON(w, http.StatusOK, infos)
		return
	}
	var infos []FlowInfo
	err := s.Sessions.Do(r.Context(), id, func(_ context.Context, eng *tapestry.Engine) error {
		infos = flowInfos(eng)
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func flowInfos(eng *tapestry.Engine) []FlowInfo {
	c := eng.Context()
	all := eng.Flows()
	out := make([]FlowInfo, len(all))
	for i, f := range all {
		enabled := f.IsEnabled(c)
		out[i] = FlowInfo{Key: f.Key(), Name: f.Name(), Enabled: &enabled}
	}
	return out
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sessions.List())
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.badRequest(w, err)
			return
		}
	}
	eng, err := s.Sessions.Create(r.Context(), body.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	var st tapestry.Status
	if err := eng.Do(r.Context(), func() error { st = eng.Status(); return nil }); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, func(context.Context, *tapestry.Engine, *Result) error { return nil })
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	var models []tapestry.ModelSummary
	err := s.Sessions.Do(r.Context(), chi.URLParam(r, "id"), func(_ context.Context, eng *tapestry.Engine) error {
		models = eng.Describe()
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) runFlow(w http.ResponseWriter, r *http.Request) {
	var body flowRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.badRequest(w, err)
			return
		}
	}
	key := chi.URLParam(r, "key")
	s.trigger(w, r, func(ctx context.Context, eng *tapestry.Engine, res *Result) error {
		var env flow.Envelope
		var err error
		if body.Preload != nil {
			env, err = eng.Preload(ctx, key, body.Preload)
		} else {
			env, err = eng.Invoke(ctx, key)
		}
		setEnvelope(res, env)
		return err
	})
}

func (s *Server) click(w http.ResponseWriter, r *http.Request) {
	var body pointRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, err)
		return
	}
	s.trigger(w, r, func(ctx context.Context, eng *tapestry.Engine, res *Result) error {
		click, err := eng.Click(ctx, domain.Point{X: body.X, Y: body.Y}, body.Shifted)
		res.Click = click.String()
		return err
	})
}

func (s *Server) motion(w http.ResponseWriter, r *http.Request) {
	var body pointRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, err)
		return
	}
	s.trigger(w, r, func(ctx context.Context, eng *tapestry.Engine, _ *Result) error {
		return eng.Motion(ctx, domain.Point{X: body.X, Y: body.Y})
	})
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	var body answerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, err)
		return
	}
	s.trigger(w, r, func(ctx context.Context, eng *tapestry.Engine, res *Result) error {
		env, err := eng.Answer(ctx, domain.Answer{Choice: domain.ParseAnswer(body.Choice), Values: body.Values})
		setEnvelope(res, env)
		return err
	})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	var body cancelRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.badRequest(w, err)
			return
		}
	}
	mask, err := ports.ParseCancelMask(body.Mask)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.trigger(w, r, func(_ context.Context, eng *tapestry.Engine, _ *Result) error {
		if body.Job {
			eng.CancelJob()
		}
		eng.CancelMode(mask)
		return nil
	})
}

func (s *Server) undo(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, func(ctx context.Context, eng *tapestry.Engine, res *Result) error {
		entry, err := eng.Undo(ctx)
		if err == nil {
			res.Entry = &entry
		}
		return err
	})
}

func (s *Server) redo(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, func(ctx context.Context, eng *tapestry.Engine, res *Result) error {
		entry, err := eng.Redo(ctx)
		if err == nil {
			res.Entry = &entry
		}
		return err
	})
}

// await blocks until the session's background job settles. It waits outside
// the session lock so other requests (such as cancel) can get through.
func (s *Server) await(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	eng, err := s.Sessions.Get(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), maxAwait)
	defer cancel()
	job, err := eng.Await(ctx)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.trigger(w, r, func(_ context.Context, _ *tapestry.Engine, res *Result) error {
		if job != nil {
			res.Outcome = job.Outcome()
		}
		return nil
	})
}

// trigger runs fn on the session's interaction goroutine and writes the
// result with a fresh status.
func (s *Server) trigger(w http.ResponseWriter, r *http.Request, fn func(context.Context, *tapestry.Engine, *Result) error) {
	id := chi.URLParam(r, "id")
	var res Result
	var runErr error
	err := s.Sessions.Do(r.Context(), id, func(ctx context.Context, eng *tapestry.Engine) error {
		runErr = fn(ctx, eng, &res)
		res.Status = eng.Status()
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	if runErr != nil {
		s.logger.Debug("Trigger failed", "session_id", id, "path", r.URL.Path, "err", runErr)
		writeJSON(w, statusFor(runErr), struct {
			Error string `json:"error"`
			Result
		}{runErr.Error(), res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func setEnvelope(res *Result, env flow.Envelope) {
	res.Progress = env.Progress.String()
	if env.Click != domain.ClickNone {
		res.Click = env.Click.String()
	}
	res.Feedback = env.Feedback
}

// statusFor maps engine errors to HTTP statuses.
func statusFor(err error) int {
	var bounds *domain.BoundsError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrUnknownFlow):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFlowBusy), errors.Is(err, domain.ErrJobRunning),
		errors.Is(err, domain.ErrFlowDisabled), errors.Is(err, mode.ErrModeRefused),
		errors.Is(err, domain.ErrNothingToUndo), errors.Is(err, domain.ErrNothingToRedo):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoActiveFlow), errors.Is(err, domain.ErrPreloadUnsupported),
		errors.Is(err, domain.ErrPreloadRequired), errors.As(err, &bounds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("Request failed", "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.logger.Warn("Invalid request body", "err", err)
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// subscribeEvents streams the session's change log events as SSE.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Sessions.Get(id); err != nil {
		s.fail(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.Streams.Subscribe(id)
	defer unsubscribe()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
