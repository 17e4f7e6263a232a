package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"whiteboard/internal/action"
	"whiteboard/internal/ai"
	"whiteboard/internal/canvas"
	"whiteboard/internal/placement"
	"whiteboard/internal/service"
	"whiteboard/internal/storage"
	"whiteboard/internal/template"
)

// fakeLLM answers with canned replies. When gate is set, every call blocks
// until the gate is closed.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	gate    chan struct{}
	calls   int
}

func (f *fakeLLM) Complete(ctx context.Context, _ ai.Request) (string, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return `{"message":"ok","actions":[]}`, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

type fixture struct {
	canvas   *service.CanvasService
	sessions *service.SessionService
	chat     *service.ChatService
	history  *storage.HistoryStore
	emitter  *service.MockEmitter
}

func newFixture(t *testing.T, llm ai.Client) *fixture {
	t.Helper()
	em := &service.MockEmitter{}
	doc := canvas.NewDocument(canvas.NewMemoryCollaborator(canvas.SeedElements()...), em, nil)
	t.Cleanup(doc.Close)

	cat := template.Builtin()
	cs := service.NewCanvasService(doc, action.NewInterpreter(cat, placement.NewEngine(), nil), cat, nil)

	db, err := storage.New(storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	history := storage.NewHistoryStore(db)

	orch := ai.NewOrchestrator(llm, ai.Options{TemplateIDs: cat.IDs()})
	return &fixture{
		canvas:   cs,
		sessions: service.NewSessionService(cs, em, nil),
		chat:     service.NewChatService(orch, cs, history, em, nil),
		history:  history,
		emitter:  em,
	}
}

func (f *fixture) session(t *testing.T) *service.Session {
	t.Helper()
	s, err := f.sessions.Open()
	require.NoError(t, err)
	return s
}
