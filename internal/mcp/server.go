package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"whiteboard/internal/canvas"
	"whiteboard/internal/service"
)

const (
	serverName    = "whiteboard-mcp"
	serverVersion = "1.0.0"
)

// Server exposes the canvas to MCP clients.
type Server struct {
	mcp      *server.MCPServer
	emitter  service.EventEmitter
	approval *ApprovalQueue
	log      *zap.Logger

	canvas   *service.CanvasService
	sessions *service.SessionService
	chat     *service.ChatService

	// agent is the editing session shared by every MCP call. Its anchor is
	// where assistant results land; add_* batches without a position go to
	// the first free area instead.
	agent *service.Session
}

// Deps holds all service dependencies for the MCP server.
type Deps struct {
	Canvas   *service.CanvasService
	Sessions *service.SessionService
	Chat     *service.ChatService
	Emitter  service.EventEmitter
	Logger   *zap.Logger
	// ApprovalTimeout bounds how long destructive tools wait for a user
	// decision. Zero means two minutes.
	ApprovalTimeout time.Duration
}

// New creates and configures the MCP server with all tools, resources and
// prompts registered.
func New(ctx context.Context, deps Deps) (*Server, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	emitter := deps.Emitter
	if emitter == nil {
		emitter = service.NopEmitter{}
	}

	agent, err := deps.Sessions.Open()
	if err != nil {
		return nil, fmt.Errorf("open agent session: %w", err)
	}

	s := &Server{
		emitter:  emitter,
		approval: NewApprovalQueue(ctx, emitter, deps.ApprovalTimeout),
		log:      log.With(zap.String("component", "mcp")),
		canvas:   deps.Canvas,
		sessions: deps.Sessions,
		chat:     deps.Chat,
		agent:    agent,
	}

	s.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	s.registerCanvasTools()
	s.registerAITools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

const instructions = `This server controls a collaborative whiteboard.
Use list_elements to read the canvas, the add_* tools or apply_canvas_actions to create content,
and ask_canvas to let the built-in assistant act on a natural language request.
Element ids look like node-12 (node-<peer>-12 on a shared board); update_color, connect_elements and edit_text only accept existing ids.`

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// HTTPHandler serves the streamable HTTP transport. Every request is
// handled statelessly.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

// AgentSession is the session MCP calls place content through.
func (s *Server) AgentSession() *service.Session { return s.agent }

// Approvals is the queue destructive tools wait on.
func (s *Server) Approvals() *ApprovalQueue { return s.approval }

// Emit tells connected clients that the canvas resource changed. It lets the
// server sit in the process event hub.
func (s *Server) Emit(_ context.Context, event string, _ any) {
	switch event {
	case canvas.EventElementsChanged, canvas.EventEdgeAdded:
		s.mcp.SendNotificationToAllClients("notifications/resources/updated", map[string]any{"uri": elementsURI})
	}
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult reports a tool failure to the agent without failing the
// JSON-RPC call.
func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: fmt.Sprintf(format, args...)},
		},
	}
}
