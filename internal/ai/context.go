package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"whiteboard/internal/domain"
)

// DefaultContextBudget bounds the serialized element and edge summaries.
const DefaultContextBudget = 1000

// CanvasContext is the bounded snapshot summary sent with a prompt.
type CanvasContext struct {
	ElementCount int    `json:"elementCount"`
	Elements     string `json:"elements"`
	EdgeCount    int    `json:"edgeCount"`
	Edges        string `json:"edges,omitempty"`
	Truncated    bool   `json:"truncated,omitempty"`
}

type elementSummary struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Color string `json:"color,omitempty"`
	Shape string `json:"shape,omitempty"`
}

// Summarize builds a CanvasContext whose element and edge summaries each fit
// in budget bytes. Known palette colors are named by token.
func Summarize(snap domain.Snapshot, budget int) CanvasContext {
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	items := make([]elementSummary, 0, len(snap.Elements))
	for _, el := range snap.Elements {
		s := elementSummary{
			ID:    el.ID,
			Type:  string(el.Kind),
			Text:  el.DisplayText(),
			Color: el.Data.Color,
			Shape: string(el.Data.ShapeType),
		}
		if tok, ok := domain.LookupColor(el.Data.Color); ok {
			s.Color = string(tok)
		}
		items = append(items, s)
	}
	elems, _ := json.Marshal(items)

	edges := make([]string, 0, len(snap.Edges))
	for _, e := range snap.Edges {
		edges = append(edges, fmt.Sprintf("%s->%s", e.SourceID, e.TargetID))
	}

	cc := CanvasContext{
		ElementCount: len(snap.Elements),
		EdgeCount:    len(snap.Edges),
	}
	var cut bool
	cc.Elements, cut = truncateFlag(string(elems), budget)
	cc.Truncated = cut
	if len(edges) > 0 {
		cc.Edges, cut = truncateFlag(strings.Join(edges, ", "), budget)
		cc.Truncated = cc.Truncated || cut
	}
	return cc
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	out, _ := truncateFlag(s, n)
	return out
}

func truncateFlag(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
