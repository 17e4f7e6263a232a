package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("brainstorm",
		mcp.WithPromptDescription("Run a brainstorming session on the canvas"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("Topic to brainstorm"),
			mcp.RequiredArgument(),
		),
	), s.handleBrainstormPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("retrospective",
		mcp.WithPromptDescription("Set up and fill a team retrospective board"),
		mcp.WithArgument("team",
			mcp.ArgumentDescription("Team or project name"),
			mcp.RequiredArgument(),
		),
	), s.handleRetrospectivePrompt)
}

func (s *Server) handleBrainstormPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Brainstorm: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Run a brainstorming session about "%s" on the whiteboard. Follow these steps:

1. Use add_template with templateId "brainstorm-grid" to lay out the board
2. Use add_sticky_notes to add 6-8 ideas, yellow for ideas, purple for creative thoughts, orange for action items
3. Use organize_notes to group the notes into categories
4. Use suggest_next_steps and report the result

Keep each note under 30 words.`, topic),
				},
			},
		},
	}, nil
}

func (s *Server) handleRetrospectivePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	team := req.Params.Arguments["team"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Retrospective for %s", team),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Facilitate a retrospective for "%s". Follow these steps:

1. Use add_template with templateId "feedback" to create the board
2. Use list_elements to find the column headers and their positions
3. Add sticky notes under each column with add_sticky_notes, passing x and y below the header: green for what went well, pink for what to improve, orange for action items
4. Use analyze_sentiment to report the overall tone
5. Use connect_elements to link each action item to the problem it addresses`, team),
				},
			},
		},
	}, nil
}
