package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	elementsURI       = "canvas://elements"
	templatesURI      = "canvas://templates"
	templateURIPrefix = "canvas://template/"
)

func (s *Server) registerResources() {
	// ── canvas://elements ──────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		elementsURI,
		"Canvas Snapshot",
		mcp.WithResourceDescription("Every element and connector on the canvas"),
		mcp.WithMIMEType("application/json"),
	), s.handleElementsResource)

	// ── canvas://templates ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		templatesURI,
		"Board Templates",
		mcp.WithMIMEType("application/json"),
	), s.handleTemplatesResource)

	// ── canvas://template/{id} ─────────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			templateURIPrefix+"{id}",
			"Template Definition",
		),
		s.handleTemplateResource,
	)
}

func (s *Server) handleElementsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(elementsURI, s.canvas.Snapshot())
}

func (s *Server) handleTemplatesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	tpls := s.canvas.Templates()
	out := make([]templateSummary, len(tpls))
	for i, t := range tpls {
		out[i] = templateSummary{ID: t.ID, Name: t.Name, Description: t.Description, Elements: len(t.Elements)}
	}
	return jsonContents(templatesURI, out)
}

func (s *Server) handleTemplateResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := templateIDFromURI(uri)
	if id == "" {
		return nil, fmt.Errorf("could not extract template id from URI: %s", uri)
	}
	tpl, ok := s.canvas.Template(id)
	if !ok {
		return nil, fmt.Errorf("unknown template: %s", id)
	}
	return jsonContents(uri, tpl)
}

// templateIDFromURI extracts the id from "canvas://template/{id}".
func templateIDFromURI(uri string) string {
	id, ok := strings.CutPrefix(uri, templateURIPrefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
