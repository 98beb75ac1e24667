package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/eventreduce/pkg/event"
	"github.com/vango-dev/eventreduce/pkg/reactive"
)

var (
	// ErrNotFound is returned for unknown cells and events.
	ErrNotFound = errors.New("devtools: not found")

	// ErrBadRequest is returned for malformed requests.
	ErrBadRequest = errors.New("devtools: bad request")
)

// maxPayload bounds the size of an event payload.
const maxPayload = 1 << 20

// Config configures the devtools server.
type Config struct {
	// PathPrefix mounts every route under a prefix (default: "").
	PathPrefix string

	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// CheckOrigin validates websocket origins.
	// Default: SameOriginCheck
	CheckOrigin func(r *http.Request) bool

	// RequestTimeout bounds how long a request waits for the loop
	// (default: 5s).
	RequestTimeout time.Duration

	// MaxChanges bounds the recorded session (default: DefaultMaxChanges).
	MaxChanges int

	// Logger is used for request and loop logging.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Server exposes a registry over HTTP and websocket.
//
// Routes:
//
//	GET  /api/cells               inspected cells
//	GET  /api/cells/{id}          one cell
//	GET  /api/cells/{id}/sources  dependency tree of a cell
//	GET  /api/events              registered events
//	POST /api/events/{name}       fire an event with the JSON request body
//	GET  /api/recording           the recorded session so far
//	GET  /metrics                 Prometheus metrics
//	GET  /ws                      live change stream
type Server struct {
	config   Config
	loop     *Loop
	registry *Registry
	hub      *Hub
	recorder *Recorder
	router   chi.Router
	logger   *slog.Logger
}

// NewServer creates a server for registry. Engine access goes through
// loop, which the caller must run.
func NewServer(loop *Loop, registry *Registry, config Config) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   config,
		loop:     loop,
		registry: registry,
		hub:      NewHub(config.CheckOrigin, logger),
		recorder: NewRecorder(config.MaxChanges),
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

// Attach subscribes the hub and the recorder to registry changes. It must
// run on the loop; Start does that.
func (s *Server) Attach() reactive.Unsubscribe {
	return s.registry.OnChange(func(ch Change) {
		s.recorder.Record(ch)
		s.hub.Broadcast(ch)
	})
}

// Start attaches the server to the registry through the loop.
func (s *Server) Start(ctx context.Context) (reactive.Unsubscribe, error) {
	var unsub reactive.Unsubscribe
	err := s.loop.Do(ctx, func() error {
		unsub = s.Attach()
		return nil
	})
	return unsub, err
}

// Recorder returns the session recorder.
func (s *Server) Recorder() *Recorder {
	return s.recorder
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	mount := func(r chi.Router) {
		r.Route("/api", func(r chi.Router) {
			r.Get("/cells", s.handleCells)
			r.Get("/cells/{id}", s.handleCell)
			r.Get("/cells/{id}/sources", s.handleSources)
			r.Get("/events", s.handleEvents)
			r.Post("/events/{name}", s.handleFire)
			r.Get("/recording", s.handleRecording)
		})
		if s.config.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
		}
		r.Handle("/ws", s.hub)
	}

	prefix := strings.TrimSuffix(s.config.PathPrefix, "/")
	if prefix == "" {
		mount(r)
	} else {
		r.Route(prefix, mount)
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("devtools request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// do runs fn on the loop with the request timeout.
func (s *Server) do(r *http.Request, fn func() error) error {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()
	return s.loop.Do(ctx, fn)
}

// query runs fn on the loop and returns its result. The result is only read
// once the loop has finished fn; a request that gives up earlier returns
// the zero value.
func query[T any](s *Server, r *http.Request, fn func() (T, error)) (T, error) {
	var out T
	if err := s.do(r, func() (err error) {
		out, err = fn()
		return err
	}); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	cells, err := query(s, r, func() ([]CellInfo, error) {
		return s.registry.Cells(), nil
	})
	s.respond(w, cells, err)
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respond(w, nil, err)
		return
	}
	cell, err := query(s, r, func() (CellInfo, error) {
		return s.registry.Cell(id)
	})
	s.respond(w, cell, err)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respond(w, nil, err)
		return
	}
	tree, err := query(s, r, func() ([]reactive.SourceNode, error) {
		return s.registry.Sources(id)
	})
	s.respond(w, tree, err)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := query(s, r, func() ([]EventInfo, error) {
		return s.registry.Events(), nil
	})
	s.respond(w, events, err)
}

func (s *Server) handleFire(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayload))
	if err != nil {
		s.respond(w, nil, errors.Join(ErrBadRequest, err))
		return
	}
	err = s.do(r, func() error {
		return s.registry.Fire(name, payload)
	})
	if err != nil {
		s.respond(w, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.recorder.Snapshot().Encode(w); err != nil {
		s.logger.Error("encode recording failed", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, v any, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("devtools request failed", "error", err)
		}
		resp := errorResponse{Error: err.Error()}
		var coded interface{ Code() string }
		if errors.As(err, &coded) {
			resp.Code = coded.Code()
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
		return
	}
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var coded interface{ Code() string }
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest), errors.Is(err, event.ErrPayload):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrLoopClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &coded):
		// Engine errors raised by reducers and formulas.
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
