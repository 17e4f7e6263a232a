package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from the transports
// ─────────────────────────────────────────────────────────────

// EventEmitter pushes events to whatever is attached to the process: the MCP
// server's notifications, the HTTP event log, or nothing at all.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

const (
	EventMessage      = "ai:message"
	EventBusy         = "ai:busy"
	EventModeChanged  = "interaction:mode-changed"
	EventHistoryPrune = "history:pruned"
)

// NopEmitter drops every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any) {}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded events called event, in emission order.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// FanoutEmitter forwards every event to each of its emitters.
type FanoutEmitter []EventEmitter

func (f FanoutEmitter) Emit(ctx context.Context, event string, data any) {
	for _, e := range f {
		if e != nil {
			e.Emit(ctx, event, data)
		}
	}
}

// Hub is an EventEmitter whose subscribers can be attached after it has been
// handed to the services, e.g. transports that are built last.
type Hub struct {
	mu   sync.RWMutex
	subs []EventEmitter
}

func (h *Hub) Attach(e EventEmitter) {
	if e == nil {
		return
	}
	h.mu.Lock()
	h.subs = append(h.subs, e)
	h.mu.Unlock()
}

func (h *Hub) Emit(ctx context.Context, event string, data any) {
	h.mu.RLock()
	subs := h.subs
	h.mu.RUnlock()
	for _, e := range subs {
		e.Emit(ctx, event, data)
	}
}
