package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"whiteboard/internal/service"
)

// OpenBoardMessage is returned by open_canvas_board.
const OpenBoardMessage = "Canvas Board opened successfully! You can now collaborate in real-time."

func (s *Server) registerAITools() {
	// ── ask_canvas ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("ask_canvas",
		mcp.WithDescription("Ask the whiteboard assistant. It answers and may add or recolor elements on the canvas."),
		mcp.WithString("prompt", mcp.Description("Natural language request"), mcp.Required()),
	), s.handleAskCanvas)

	// ── brainstorm_notes ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("brainstorm_notes",
		mcp.WithDescription("Generate colored sticky notes about a topic"),
		mcp.WithString("topic", mcp.Description("Topic to brainstorm"), mcp.Required()),
		mcp.WithNumber("count", mcp.Description("Number of notes (default 4)")),
	), s.handleBrainstorm)

	// ── organize_notes ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("organize_notes",
		mcp.WithDescription("Group the sticky notes into categories and move each category into a column"),
	), s.chatTool(func(ctx context.Context, sess *service.Session) (service.ChatReply, error) {
		return s.chat.Organize(ctx, sess)
	}))

	// ── summarize_canvas ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("summarize_canvas",
		mcp.WithDescription("Summarize the canvas content"),
	), s.chatTool(func(ctx context.Context, sess *service.Session) (service.ChatReply, error) {
		return s.chat.Summarize(ctx, sess)
	}))

	// ── suggest_next_steps ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("suggest_next_steps",
		mcp.WithDescription("Suggest up to five next steps based on the canvas"),
	), s.chatTool(func(ctx context.Context, sess *service.Session) (service.ChatReply, error) {
		return s.chat.NextSteps(ctx, sess)
	}))

	// ── analyze_sentiment ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("analyze_sentiment",
		mcp.WithDescription("Count sticky notes by tone"),
	), s.chatTool(func(ctx context.Context, sess *service.Session) (service.ChatReply, error) {
		return s.chat.Sentiment(ctx, sess)
	}))

	// ── open_canvas_board ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_canvas_board",
		mcp.WithDescription("Open the collaborative canvas board"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult(OpenBoardMessage), nil
	})
}

func (s *Server) handleAskCanvas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := getString(req.GetArguments(), "prompt", "")
	if prompt == "" {
		return errorResult("prompt is required"), nil
	}
	return chatResult(s.chat.Ask(ctx, s.agent, prompt))
}

func (s *Server) handleBrainstorm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	topic := getString(args, "topic", "")
	if topic == "" {
		return errorResult("topic is required"), nil
	}
	return chatResult(s.chat.Brainstorm(ctx, s.agent, topic, int(getFloat(args, "count", 4))))
}

func (s *Server) chatTool(fn func(context.Context, *service.Session) (service.ChatReply, error)) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return chatResult(fn(ctx, s.agent))
	}
}

// chatResult marks unavailable replies as tool errors so agents can retry.
func chatResult(reply service.ChatReply, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult("%v", err), nil
	}
	if reply.Unavailable {
		return errorResult("%s", reply.Message.Content), nil
	}
	return jsonResult(reply)
}
