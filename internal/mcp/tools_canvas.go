package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"whiteboard/internal/action"
	"whiteboard/internal/canvas"
	"whiteboard/internal/domain"
)

// actionFields shows the payload of each action type in tool descriptions.
var actionFields = map[action.Type]string{
	action.TypeAddSticky:   "{items:[{text,color}]}",
	action.TypeAddText:     "{items:[{text}]}",
	action.TypeAddShape:    "{items:[{shapeType,color,label}]}",
	action.TypeAddTemplate: "{templateId}",
	action.TypeUpdateColor: "{nodeIds,color}",
}

func actionTypesHelp() string {
	parts := make([]string, 0, len(action.Types))
	for _, t := range action.Types {
		parts = append(parts, strings.TrimSpace(string(t)+" "+actionFields[t]))
	}
	return "Action types: " + strings.Join(parts, ", ") + "."
}

func (s *Server) registerCanvasTools() {
	// ── list_elements ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_elements",
		mcp.WithDescription("List the elements on the canvas, optionally filtered by kind"),
		mcp.WithString("kind", mcp.Description("Filter by kind: sticky, text, shape, resizable (optional)")),
	), s.handleListElements)

	// ── list_templates ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List the built-in board templates"),
	), s.handleListTemplates)

	// ── apply_canvas_actions ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("apply_canvas_actions",
		mcp.WithDescription("Apply a batch of canvas actions. Malformed actions are dropped and reported, the rest are applied.\n"+actionTypesHelp()),
		mcp.WithString("actions",
			mcp.Description(`JSON array of actions, e.g. [{"type":"add_sticky","items":[{"text":"Idea"}]}]`),
			mcp.Required(),
		),
		mcp.WithNumber("x", mcp.Description("Anchor X for new elements (optional, defaults to the first free area of the board)")),
		mcp.WithNumber("y", mcp.Description("Anchor Y for new elements (optional)")),
	), s.handleApplyActions)

	// ── add_sticky_notes ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_sticky_notes",
		mcp.WithDescription("Add sticky notes laid out in a grid. Colors may be hex values or yellow, pink, blue, green, purple, orange."),
		mcp.WithString("items",
			mcp.Description(`JSON array of notes [{"text":"...","color":"yellow"}, ...]`),
			mcp.Required(),
		),
		mcp.WithNumber("x", mcp.Description("Anchor X (optional)")),
		mcp.WithNumber("y", mcp.Description("Anchor Y (optional)")),
	), s.addHandler(action.TypeAddSticky))

	// ── add_text_boxes ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_text_boxes",
		mcp.WithDescription("Add text boxes laid out in a grid"),
		mcp.WithString("items",
			mcp.Description(`JSON array [{"text":"..."}, ...]`),
			mcp.Required(),
		),
		mcp.WithNumber("x", mcp.Description("Anchor X (optional)")),
		mcp.WithNumber("y", mcp.Description("Anchor Y (optional)")),
	), s.addHandler(action.TypeAddText))

	// ── add_shapes ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_shapes",
		mcp.WithDescription("Add shapes laid out in a grid. Shapes: rectangle, circle, diamond, triangle, hexagon, star, line."),
		mcp.WithString("items",
			mcp.Description(`JSON array [{"shapeType":"circle","color":"#3b82f6","label":"..."}, ...]`),
			mcp.Required(),
		),
		mcp.WithNumber("x", mcp.Description("Anchor X (optional)")),
		mcp.WithNumber("y", mcp.Description("Anchor Y (optional)")),
	), s.addHandler(action.TypeAddShape))

	// ── add_template ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_template",
		mcp.WithDescription("Stamp a board template at a position"),
		mcp.WithString("templateId", mcp.Description("Template ID, see list_templates"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("Anchor X (optional)")),
		mcp.WithNumber("y", mcp.Description("Anchor Y (optional)")),
	), s.handleAddTemplate)

	// ── update_color ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_color",
		mcp.WithDescription("Change the color of existing elements. Unknown ids are skipped."),
		mcp.WithString("nodeIds", mcp.Description("Comma-separated element IDs"), mcp.Required()),
		mcp.WithString("color", mcp.Description("Hex color or palette token"), mcp.Required()),
	), s.handleUpdateColor)

	// ── connect_elements ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("connect_elements",
		mcp.WithDescription("Draw a connector between two elements. Anchors are picked automatically when omitted."),
		mcp.WithString("source", mcp.Description("Source element ID"), mcp.Required()),
		mcp.WithString("target", mcp.Description("Target element ID"), mcp.Required()),
		mcp.WithString("sourceAnchor", mcp.Description("top, right, bottom or left (optional)")),
		mcp.WithString("targetAnchor", mcp.Description("top, right, bottom or left (optional)")),
	), s.handleConnect)

	// ── edit_text ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("edit_text",
		mcp.WithDescription("Replace the text of a note or text box, or the label of a shape"),
		mcp.WithString("id", mcp.Description("Element ID"), mcp.Required()),
		mcp.WithString("text", mcp.Description("New text"), mcp.Required()),
	), s.handleEditText)

	// ── remove_elements (destructive) ──────────────────
	s.mcp.AddTool(mcp.NewTool("remove_elements",
		mcp.WithDescription("DESTRUCTIVE: Remove elements and their connectors. Requires user approval."),
		mcp.WithString("ids", mcp.Description("Comma-separated element IDs"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveElements)
}

func boolPtr(v bool) *bool { return &v }

// applyOutput is what the mutating tools return.
type applyOutput struct {
	Created []domain.Element `json:"created"`
	Updated []domain.Element `json:"updated"`
	Dropped []action.Drop    `json:"dropped,omitempty"`
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := domain.ElementKind(getString(req.GetArguments(), "kind", ""))
	if kind != "" && !kind.Valid() {
		return errorResult("unknown kind %q", kind), nil
	}

	els := s.canvas.Elements()
	if kind == "" {
		return jsonResult(els)
	}
	filtered := []domain.Element{}
	for _, el := range els {
		if el.Kind == kind {
			filtered = append(filtered, el)
		}
	}
	return jsonResult(filtered)
}

type templateSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Elements    int    `json:"elements"`
}

func (s *Server) handleListTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tpls := s.canvas.Templates()
	out := make([]templateSummary, len(tpls))
	for i, t := range tpls {
		out[i] = templateSummary{ID: t.ID, Name: t.Name, Description: t.Description, Elements: len(t.Elements)}
	}
	return jsonResult(out)
}

func (s *Server) handleApplyActions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	raw := getString(args, "actions", "")
	if raw == "" {
		return errorResult("actions is required"), nil
	}
	acts, drops, err := action.Decode([]byte(raw))
	if err != nil {
		return errorResult("actions must be a JSON array: %v", err), nil
	}
	return s.apply(ctx, args, acts, drops)
}

// addHandler builds the handler of one add_* tool. Items go through the
// same decoding as model replies, so invalid items are dropped, not fatal.
func (s *Server) addHandler(t action.Type) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		var items []json.RawMessage
		if err := decodeItems(args["items"], &items); err != nil {
			return errorResult("items must be a JSON array: %v", err), nil
		}
		entry, err := json.Marshal(map[string]any{"type": t, "items": items})
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		acts, drops := action.DecodeEach([]json.RawMessage{entry})
		return s.apply(ctx, args, acts, drops)
	}
}

func (s *Server) handleAddTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id := getString(args, "templateId", "")
	if _, ok := s.canvas.Template(id); !ok {
		return errorResult("unknown template %q (available: %s)", id, strings.Join(s.canvas.TemplateIDs(), ", ")), nil
	}
	return s.apply(ctx, args, []action.Action{action.AddTemplate{TemplateID: id}}, nil)
}

func (s *Server) handleUpdateColor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ids := splitIDs(args["nodeIds"])
	color := getString(args, "color", "")
	if len(ids) == 0 || color == "" {
		return errorResult("nodeIds and color are required"), nil
	}
	return s.apply(ctx, args, []action.Action{action.UpdateColor{NodeIDs: ids, Color: color}}, nil)
}

func (s *Server) apply(ctx context.Context, args map[string]any, acts []action.Action, drops []action.Drop) (*mcp.CallToolResult, error) {
	var (
		res action.Result
		err error
	)
	if anchor, ok := getPoint(args); ok {
		res, err = s.canvas.ApplyActions(ctx, acts, anchor)
	} else {
		res, err = s.canvas.ApplyActionsInFreeSpace(ctx, acts)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("tool applied actions",
		zap.Int("actions", len(acts)),
		zap.Int("dropped", len(drops)),
		zap.Int("created", len(res.NewElements)))

	out := applyOutput{Created: res.NewElements, Updated: res.UpdatedElements, Dropped: drops}
	if out.Created == nil {
		out.Created = []domain.Element{}
	}
	if out.Updated == nil {
		out.Updated = []domain.Element{}
	}
	return jsonResult(out)
}

func (s *Server) handleConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	edge, err := s.canvas.Connect(ctx,
		getString(args, "source", ""),
		getString(args, "target", ""),
		domain.Anchor(getString(args, "sourceAnchor", "")),
		domain.Anchor(getString(args, "targetAnchor", "")),
	)
	if err != nil {
		return errorResult("connect: %v", err), nil
	}
	return jsonResult(edge)
}

func (s *Server) handleEditText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	text, _ := args["text"].(string)
	el, err := s.canvas.EditText(ctx, getString(args, "id", ""), text)
	if errors.Is(err, canvas.ErrUnknownElement) {
		return errorResult("%v", err), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(el)
}

func (s *Server) handleRemoveElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var ids []string
	for _, id := range splitIDs(req.GetArguments()["ids"]) {
		if _, ok := s.canvas.Element(id); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return errorResult("none of the given ids exist"), nil
	}

	desc := fmt.Sprintf("Remove %d element(s): %s", len(ids), strings.Join(ids, ", "))
	if err := s.approval.Request(ctx, "remove_elements", desc, ids...); err != nil {
		return errorResult("%v", err), nil
	}
	if err := s.canvas.Remove(ctx, ids...); err != nil {
		return nil, fmt.Errorf("remove elements: %w", err)
	}
	return textResult(fmt.Sprintf("Removed %d element(s)", len(ids))), nil
}
