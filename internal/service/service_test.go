package service_test

import (
	"context"
	"testing"
	"time"

	"whiteboard/internal/service"
)

// ─────────────────────────────────────────────────────────────
// runningGuard tests
// ─────────────────────────────────────────────────────────────

func TestRunningGuard_TryLock(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("req-1") {
		t.Fatal("expected first TryLock to succeed")
	}
	if g.TryLock("req-1") {
		t.Fatal("expected second TryLock for same key to fail")
	}
	if !g.TryLock("req-2") {
		t.Fatal("expected TryLock for different key to succeed")
	}
	if got := g.Count(); got != 2 {
		t.Fatalf("expected 2 running, got %d", got)
	}
	g.Unlock("req-1")
	g.Unlock("req-2")
	g.Unlock("req-2") // releasing twice is harmless

	if got := g.Count(); got != 0 {
		t.Fatalf("expected 0 running, got %d", got)
	}
	if !g.TryLock("req-1") {
		t.Fatal("expected TryLock to succeed after unlock")
	}
	g.Unlock("req-1")
}

func TestRunningGuard_WaitAll(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("req-a") {
		t.Fatal("expected lock to succeed")
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("req-a")
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

// ─────────────────────────────────────────────────────────────
// Emitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)
	m.Emit(ctx, "test:event", 3)

	if len(m.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(m.Events))
	}
	named := m.Named("test:event")
	if len(named) != 2 {
		t.Fatalf("expected 2 'test:event' events, got %d", len(named))
	}
	if named[1].Data != 3 {
		t.Errorf("expected data 3, got %v", named[1].Data)
	}
}

func TestFanoutEmitter(t *testing.T) {
	a, b := &service.MockEmitter{}, &service.MockEmitter{}
	f := service.FanoutEmitter{a, nil, b}
	f.Emit(context.Background(), "x", nil)
	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Fatalf("expected one event on each emitter, got %d and %d", len(a.Events), len(b.Events))
	}
}

func TestHub_LateAttach(t *testing.T) {
	var hub service.Hub
	hub.Emit(context.Background(), "before", nil)

	m := &service.MockEmitter{}
	hub.Attach(m)
	hub.Attach(nil)
	hub.Emit(context.Background(), "after", 1)

	if len(m.Events) != 1 || m.Events[0].Event != "after" {
		t.Fatalf("expected only the event emitted after attach, got %+v", m.Events)
	}
}
