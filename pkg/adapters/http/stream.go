package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/sytabaresa/robot/internal/logging"
	"github.com/sytabaresa/robot/pkg/domain"
)

// AllServices subscribes to the records of every service of the tree.
const AllServices = "*"

// StreamMessage is one hook record ready to be written as a server-sent event.
type StreamMessage struct {
	Type      domain.EventType
	ServiceID string
	Data      []byte
}

// StreamManager fans hook records out to active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan StreamMessage]struct{} // ServiceID -> Set of Channels
	visited     map[string][]string // ServiceID -> distinct states, first visit first
	tracked     []string            // ServiceIDs in visited, least recently active first
	maxTracked  int
	buffer      int
	logger      *slog.Logger
}

// StreamOption configures a StreamManager.
type StreamOption func(*StreamManager)

// WithStreamLogger sets the logger for dropped or unencodable records.
func WithStreamLogger(logger *slog.Logger) StreamOption {
	return func(sm *StreamManager) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithBuffer sets the per-subscriber buffer. Records are dropped for slow clients.
func WithBuffer(n int) StreamOption {
	return func(sm *StreamManager) {
		if n > 0 {
			sm.buffer = n
		}
	}
}

// WithVisitedServices bounds how many services keep a visited history.
// The least recently active service is forgotten first.
func WithVisitedServices(n int) StreamOption {
	return func(sm *StreamManager) {
		if n > 0 {
			sm.maxTracked = n
		}
	}
}

// NewStreamManager creates a StreamManager with no subscribers.
func NewStreamManager(opts ...StreamOption) *StreamManager {
	sm := &StreamManager{
		subscribers: make(map[string]map[chan StreamMessage]struct{}),
		visited:     make(map[string][]string),
		maxTracked:  256,
		buffer:      16,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// Subscribe registers a channel for the records of serviceID, or of every
// service when serviceID is AllServices. The returned func unsubscribes.
func (sm *StreamManager) Subscribe(serviceID string) (<-chan StreamMessage, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan StreamMessage, sm.buffer)
	if _, ok := sm.subscribers[serviceID]; !ok {
		sm.subscribers[serviceID] = make(map[chan StreamMessage]struct{})
	}
	sm.subscribers[serviceID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[serviceID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, serviceID)
			}
		}
	}
}

// Broadcast delivers msg to the subscribers of its service and to wildcard subscribers.
func (sm *StreamManager) Broadcast(msg StreamMessage) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, key := range []string{msg.ServiceID, AllServices} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				sm.logger.Warn("SSE client buffer full, dropping record", "service_id", msg.ServiceID, "type", msg.Type)
			}
		}
	}
}

// Visited returns the distinct states serviceID entered through transitions,
// in order of first visit.
func (sm *StreamManager) Visited(serviceID string) []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return append([]string(nil), sm.visited[serviceID]...)
}

// Hooks returns hooks that broadcast enter, unhandled and task records.
// Register them on the service tree the handler serves.
func (sm *StreamManager) Hooks() domain.Hooks {
	return domain.Hooks{
		OnEnter: func(ctx context.Context, e *domain.EnterEvent) {
			sm.visit(e.ServiceID, e.To)
			sm.publish(ctx, e.HookBase, e)
		},
		OnUnhandledEvent: func(ctx context.Context, e *domain.UnhandledEvent) {
			sm.publish(ctx, e.HookBase, e)
		},
		OnTaskReturn: func(ctx context.Context, e *domain.TaskEvent) {
			payload := struct {
				*domain.TaskEvent
				Error string `json:"error,omitempty"`
			}{TaskEvent: e}
			if e.Err != nil {
				payload.Error = e.Err.Error()
			}
			sm.publish(ctx, e.HookBase, payload)
		},
	}
}

func (sm *StreamManager) visit(serviceID, state string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	states, known := sm.visited[serviceID]
	if known {
		// Most recently active last, so a busy root service is never the one forgotten.
		if i := slices.Index(sm.tracked, serviceID); i >= 0 {
			sm.tracked = append(slices.Delete(sm.tracked, i, i+1), serviceID)
		}
	} else {
		sm.tracked = append(sm.tracked, serviceID)
		if len(sm.tracked) > sm.maxTracked {
			delete(sm.visited, sm.tracked[0])
			sm.tracked = slices.Delete(sm.tracked, 0, 1)
		}
	}
	if !slices.Contains(states, state) {
		sm.visited[serviceID] = append(states, state)
	}
}

func (sm *StreamManager) publish(ctx context.Context, base domain.HookBase, record any) {
	data, err := json.Marshal(record)
	if err != nil {
		sm.logger.WarnContext(ctx, "cannot encode hook record", "type", base.Type, "err", err)
		return
	}
	sm.Broadcast(StreamMessage{Type: base.Type, ServiceID: base.ServiceID, Data: data})
}
