package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sytabaresa/robot"
	"github.com/sytabaresa/robot/internal/logging"
	"github.com/sytabaresa/robot/internal/presentation/graph"
	"github.com/sytabaresa/robot/pkg/domain"
)

// Snapshot is the JSON view of a service and its active descendants.
type Snapshot struct {
	ServiceID string         `json:"service_id"`
	Machine   string         `json:"machine"`
	State     string         `json:"state"`
	Final     bool           `json:"final"`
	Context   domain.Context `json:"context"`
	Child     *Snapshot      `json:"child,omitempty"`
}

// NewSnapshot captures svc and its child chain. It must run where the service is owned.
func NewSnapshot(svc *robot.Service) *Snapshot {
	if svc == nil {
		return nil
	}
	return &Snapshot{
		ServiceID: svc.ID(),
		Machine:   svc.Definition().Label(),
		State:     svc.Current(),
		Final:     svc.Final(),
		Context:   svc.Context(),
		Child:     NewSnapshot(svc.Child()),
	}
}

// EventRequest is the body of POST /events.
type EventRequest struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Server exposes one service tree over HTTP.
type Server struct {
	root     *robot.Service
	loop     *robot.Loop
	mu       sync.Mutex
	streams  *StreamManager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLoop routes every service access through loop.Do. Use it when the
// service was interpreted with that Loop as its scheduler; loop.Run must be active.
func WithLoop(loop *robot.Loop) Option {
	return func(s *Server) {
		s.loop = loop
	}
}

// WithStreams enables GET /stream. The manager's Hooks must be registered on the service tree.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithGatherer enables GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates the HTTP handler for a service tree.
func NewHandler(root *robot.Service, opts ...Option) http.Handler {
	s := &Server{
		root:   root,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/state", s.GetState)
	r.Post("/events", s.PostEvent)
	r.Get("/graph", s.GetGraph)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.streams != nil {
		r.Get("/stream", s.SubscribeEvents)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// access runs fn where the service tree is owned.
func (s *Server) access(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.loop != nil {
		return s.loop.Do(ctx, fn)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}

// GetState handles the GET /state request.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	var snap *Snapshot
	err := s.access(r.Context(), func(context.Context) error {
		snap = NewSnapshot(s.root)
		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("State error: %v", err), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, snap)
}

// PostEvent handles the POST /events request. The depth query parameter
// targets the N-th descendant of the root service.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	var body EventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostEvent: invalid request body", "err", err)
		return
	}
	name, err := domain.SanitizeEventType(body.Type)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid event type: %v", err), http.StatusBadRequest)
		return
	}

	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid depth", http.StatusBadRequest)
			return
		}
		depth = n
	}

	ev := domain.Event{Type: name, Data: body.Data}
	var snap *Snapshot
	errNoTarget := errors.New("no active service at depth")
	err = s.access(r.Context(), func(ctx context.Context) error {
		target := s.root
		for i := 0; i < depth && target != nil; i++ {
			target = target.Child()
		}
		if target == nil {
			return errNoTarget
		}
		sendErr := target.Send(ctx, ev)
		snap = NewSnapshot(s.root)
		return sendErr
	})

	var unhandled *domain.UnhandledEventError
	var cascade *domain.CascadeDepthError
	switch {
	case err == nil:
		s.logger.Debug("event dispatched", "event", ev.Type, "depth", depth)
		writeJSON(w, s.logger, http.StatusOK, snap)
	case errors.Is(err, errNoTarget):
		http.Error(w, fmt.Sprintf("%v: %d", err, depth), http.StatusNotFound)
	case errors.As(err, &unhandled):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &cascade):
		http.Error(w, err.Error(), http.StatusConflict)
		s.logger.Error("PostEvent: cascade aborted", "err", err)
	default:
		http.Error(w, fmt.Sprintf("Send error: %v", err), http.StatusInternalServerError)
		s.logger.Error("PostEvent failed", "event", ev.Type, "err", err)
	}
}

// GetGraph handles the GET /graph request with a live overlay of the service tree.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var (
		def     *domain.Definition
		overlay graph.GraphOverlay
	)
	err := s.access(r.Context(), func(context.Context) error {
		def = s.root.Definition()
		for svc := s.root; svc != nil; svc = svc.Child() {
			overlay.CurrentPath = append(overlay.CurrentPath, svc.Current())
		}
		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("Graph error: %v", err), http.StatusServiceUnavailable)
		return
	}
	if s.streams != nil {
		overlay.VisitedStates = append([]string{def.Initial()}, s.streams.Visited(s.root.ID())...)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(w, graph.GenerateMermaid(def, &overlay)); err != nil {
		s.logger.Error("GetGraph response write failed", "err", err)
	}
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":     "robot-http",
		"version": strings.TrimSpace(robot.Version),
		"machine": s.root.Definition().Label(),
	})
}

// SubscribeEvents handles the GET /stream request (SSE). The service query
// parameter narrows the stream to one service, type to a comma list of record types.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	serviceID := r.URL.Query().Get("service")
	if serviceID == "" {
		serviceID = AllServices
	}
	var types map[domain.EventType]bool
	if raw := r.URL.Query().Get("type"); raw != "" {
		types = make(map[domain.EventType]bool)
		for _, t := range strings.Split(raw, ",") {
			types[domain.EventType(strings.TrimSpace(t))] = true
		}
	}

	ch, cancel := s.streams.Subscribe(serviceID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE client subscribed", "service_id", serviceID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "service_id", serviceID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if types != nil && !types[msg.Type] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, msg.Data)
			flusher.Flush()
		}
	}
}

// writeJSON encodes v before sending the status, so an unencodable context
// (a channel or func stored by a task) becomes a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
		http.Error(w, fmt.Sprintf("Cannot encode response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
