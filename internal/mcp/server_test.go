package mcpserver

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard/internal/action"
	"whiteboard/internal/ai"
	"whiteboard/internal/canvas"
	"whiteboard/internal/domain"
	"whiteboard/internal/placement"
	"whiteboard/internal/service"
	"whiteboard/internal/storage"
	"whiteboard/internal/template"
)

type stubLLM struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (s *stubLLM) Complete(context.Context, ai.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply, s.err
}

func newTestServer(t *testing.T, llm ai.Client) (*Server, *service.MockEmitter) {
	t.Helper()
	em := &service.MockEmitter{}
	doc := canvas.NewDocument(canvas.NewMemoryCollaborator(canvas.SeedElements()...), em, nil)
	t.Cleanup(doc.Close)

	cat := template.Builtin()
	cs := service.NewCanvasService(doc, action.NewInterpreter(cat, placement.NewEngine(), nil), cat, nil)

	db, err := storage.New(storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	orch := ai.NewOrchestrator(llm, ai.Options{TemplateIDs: cat.IDs()})
	s, err := New(context.Background(), Deps{
		Canvas:          cs,
		Sessions:        service.NewSessionService(cs, em, nil),
		Chat:            service.NewChatService(orch, cs, storage.NewHistoryStore(db), em, nil),
		Emitter:         em,
		ApprovalTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return s, em
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &v))
	return v
}

func TestListElements(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{})
	ctx := context.Background()

	res, err := s.handleListElements(ctx, callTool("list_elements", nil))
	require.NoError(t, err)
	assert.Len(t, decodeResult[[]domain.Element](t, res), 3)

	res, err = s.handleListElements(ctx, callTool("list_elements", map[string]any{"kind": "shape"}))
	require.NoError(t, err)
	shapes := decodeResult[[]domain.Element](t, res)
	require.Len(t, shapes, 2)
	assert.Equal(t, "node-2", shapes[0].ID)

	res, err = s.handleListElements(ctx, callTool("list_elements", map[string]any{"kind": "banana"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAddStickyNotes(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{})

	handler := s.addHandler(action.TypeAddSticky)
	res, err := handler(context.Background(), callTool("add_sticky_notes", map[string]any{
		"items": `[{"text":"Buy milk"},{"text":"Call mom","color":"pink"},{"text":5}]`,
		"x":     100.0,
		"y":     100.0,
	}))
	require.NoError(t, err)
	out := decodeResult[applyOutput](t, res)

	require.Len(t, out.Created, 2)
	assert.Equal(t, domain.Point{X: 100, Y: 100}, out.Created[0].Position)
	assert.Equal(t, "Buy milk", out.Created[0].Data.Text)
	assert.Equal(t, domain.DefaultStickyColor, out.Created[0].Data.Color)
	assert.Equal(t, "#fbcfe8", out.Created[1].Data.Color)
	require.Len(t, out.Dropped, 1)
	assert.Equal(t, 2, out.Dropped[0].Item)
	assert.Len(t, s.canvas.Elements(), 5)
}

func TestAddShapes_AcceptsDecodedArray(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{})

	handler := s.addHandler(action.TypeAddShape)
	res, err := handler(context.Background(), callTool("add_shapes", map[string]any{
		"items": []any{map[string]any{"label": "box"}},
	}))
	require.NoError(t, err)
	out := decodeResult[applyOutput](t, res)
	require.Len(t, out.Created, 1)
	assert.Equal(t, domain.ShapeRectangle, out.Created[0].Data.ShapeType)
	assert.Equal(t, domain.DefaultShapeColor, out.Created[0].Data.Color)
	assertClearOf(t, out.Created, canvas.SeedElements())
}

// assertClearOf checks that no element of got overlaps an element of others.
func assertClearOf(t *testing.T, got, others []domain.Element) {
	t.Helper()
	for _, g := range got {
		for _, o := range others {
			overlap := g.Position.X < o.Position.X+o.Size.Width && g.Position.X+g.Size.Width > o.Position.X &&
				g.Position.Y < o.Position.Y+o.Size.Height && g.Position.Y+g.Size.Height > o.Position.Y
			assert.False(t, overlap, "%s at %v overlaps %s at %v", g.ID, g.Position, o.ID, o.Position)
		}
	}
}

func TestApplyCanvasActions_NoPositionUsesFreeSpace(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{})

	res, err := s.handleApplyActions(context.Background(), callTool("apply_canvas_actions", map[string]any{
		"actions": `[{"type":"add_sticky","items":[{"text":"a"},{"text":"b"},{"text":"c"},{"text":"d"},{"text":"e"}]},{"type":"add_template","templateId":"kanban"}]`,
	}))
	require.NoError(t, err)
	out := decodeResult[applyOutput](t, res)
	require.Len(t, out.Created, 9)
	assertClearOf(t, out.Created, canvas.SeedElements())
}

func TestActionTypesHelp_ListsEveryType(t *testing.T) {
	help := actionTypesHelp()
	for _, typ := range action.Types {
		assert.Contains(t, help, string(typ)+" {", "missing payload for %s", typ)
	}
}

func TestApplyCanvasActions(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{})
	ctx := context.Background()

	res, err := s.handleApplyActions(ctx, callTool("apply_canvas_actions", map[string]any{
		"actions": `[{"type":"add_template","templateId":"kanban"},{"type":"explode"},{"type":"update_color","nodeIds":["node-2","ghost"],"color":"green"}]`,
	}))
	require.NoError(t, err)
	out := decodeResult[applyOutput](t, res)
	assert.Len(t, out.Created, 4)
	require.Len(t, out.Updated, 1)
	assert.Equal(t, "#bbf7d0", out.Updated[0].Data.Color)
	require.Len(t, out.Dropped, 1)
	assert.Equal(t, 1, out.Dropped[0].Index)

	res, err = s.handleApplyActions(ctx, callTool("apply_canvas_actions", map[string]any{"actions": `{"type":"add_text"}`}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAddTemplate_UnknownID(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{})

	res, err := s.handleAddTemplate(context.Background(), callTool("add_template", map[string]any{"templateId": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "kanban")
}

func TestUpdateColor_CommaSeparated(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{})

	res, err := s.handleUpdateColor(context.Background(), callTool("update_color", map[string]any{
		"nodeIds": "node-2, node-3",
		"color":   "#fed7aa",
	}))
	require.NoError(t, err)
	out := decodeResult[applyOutput](t, res)
	assert.Len(t, out.Updated, 2)

	el, ok := s.canvas.Element("node-3")
	require.True(t, ok)
	assert.Equal(t, "#fed7aa", el.Data.Color)
}

func TestConnectAndEditText(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{})
	ctx := context.Background()

	res, err := s.handleConnect(ctx, callTool("connect_elements", map[string]any{"source": "node-2", "target": "node-3"}))
	require.NoError(t, err)
	edge := decodeResult[domain.Edge](t, res)
	assert.Equal(t, "node-2", edge.SourceID)
	assert.True(t, edge.SourceAnchor.Valid())

	res, err = s.handleConnect(ctx, callTool("connect_elements", map[string]any{"source": "node-2", "target": "ghost"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleEditText(ctx, callTool("edit_text", map[string]any{"id": "node-2", "text": "Hello"}))
	require.NoError(t, err)
	assert.Equal(t, "Hello", decodeResult[domain.Element](t, res).Data.Label)

	res, err = s.handleEditText(ctx, callTool("edit_text", map[string]any{"id": "ghost", "text": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRemoveElements_RequiresApproval(t *testing.T) {
	s, em := newTestServer(t, &stubLLM{})
	ctx := context.Background()

	type outcome struct {
		res *mcp.CallToolResult
		err error
	}
	run := func() chan outcome {
		done := make(chan outcome, 1)
		go func() {
			res, err := s.handleRemoveElements(ctx, callTool("remove_elements", map[string]any{"ids": "node-2,ghost"}))
			done <- outcome{res, err}
		}()
		require.Eventually(t, func() bool { return len(s.approval.Pending()) == 1 }, time.Second, 5*time.Millisecond)
		return done
	}

	done := run()
	pending := s.approval.Pending()[0]
	assert.Equal(t, []string{"node-2"}, pending.ElementIDs)
	require.NoError(t, s.approval.Reject(pending.ID))
	got := <-done
	require.NoError(t, got.err)
	assert.True(t, got.res.IsError)
	_, ok := s.canvas.Element("node-2")
	assert.True(t, ok)

	done = run()
	require.NoError(t, s.approval.Approve(s.approval.Pending()[0].ID))
	got = <-done
	require.NoError(t, got.err)
	assert.False(t, got.res.IsError)
	_, ok = s.canvas.Element("node-2")
	assert.False(t, ok)

	assert.Len(t, em.Named(EventApprovalRequired), 2)
	assert.ErrorIs(t, s.approval.Approve("missing"), ErrUnknownApproval)
}

func TestApprovalQueue_Timeout(t *testing.T) {
	em := &service.MockEmitter{}
	q := NewApprovalQueue(context.Background(), em, 20*time.Millisecond)

	err := q.Request(context.Background(), "remove_elements", "Remove node-1", "node-1")
	assert.ErrorIs(t, err, ErrApprovalTimeout)
	assert.Empty(t, q.Pending())
	assert.Len(t, em.Named(EventApprovalDismissed), 1)
}

func TestAskCanvas(t *testing.T) {
	llm := &stubLLM{reply: `{"message":"Added a note","actions":[{"type":"add_sticky","items":[{"text":"From agent"}]}]}`}
	s, _ := newTestServer(t, llm)

	res, err := s.handleAskCanvas(context.Background(), callTool("ask_canvas", map[string]any{"prompt": "add a note"}))
	require.NoError(t, err)
	reply := decodeResult[service.ChatReply](t, res)
	assert.Equal(t, "Added a note", reply.Message.Content)
	require.Len(t, reply.Result.NewElements, 1)
	assert.Equal(t, "From agent", reply.Result.NewElements[0].Data.Text)

	res, err = s.handleAskCanvas(context.Background(), callTool("ask_canvas", map[string]any{"prompt": "  "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAskCanvas_Unavailable(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{err: ai.ErrServiceUnavailable})

	res, err := s.handleAskCanvas(context.Background(), callTool("ask_canvas", map[string]any{"prompt": "hi"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, service.UnavailableMessage, resultText(t, res))
}

func TestResources(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{})
	ctx := context.Background()

	var req mcp.ReadResourceRequest
	req.Params.URI = elementsURI
	contents, err := s.handleElementsResource(ctx, req)
	require.NoError(t, err)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(contents[0].(mcp.TextResourceContents).Text), &snap))
	assert.Len(t, snap.Elements, 3)

	req.Params.URI = "canvas://template/kanban"
	contents, err = s.handleTemplateResource(ctx, req)
	require.NoError(t, err)
	var tpl domain.Template
	require.NoError(t, json.Unmarshal([]byte(contents[0].(mcp.TextResourceContents).Text), &tpl))
	assert.Equal(t, "kanban", tpl.ID)
	assert.Len(t, tpl.Elements, 4)

	req.Params.URI = "canvas://template/missing"
	_, err = s.handleTemplateResource(ctx, req)
	assert.Error(t, err)
}

func TestTemplateIDFromURI(t *testing.T) {
	assert.Equal(t, "kanban", templateIDFromURI("canvas://template/kanban"))
	assert.Equal(t, "", templateIDFromURI("canvas://template/a/b"))
	assert.Equal(t, "", templateIDFromURI("canvas://elements"))
}

func TestPrompts(t *testing.T) {
	s, _ := newTestServer(t, &stubLLM{})

	var req mcp.GetPromptRequest
	req.Params.Arguments = map[string]string{"team": "Platform"}
	res, err := s.handleRetrospectivePrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0].Content.(mcp.TextContent).Text, `"Platform"`)
}
