package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"whiteboard/internal/action"
	"whiteboard/internal/domain"
)

// Assistant features beyond the action protocol. Each one degrades to a
// fallback result when the model reply is not usable JSON; only
// ErrServiceUnavailable is returned as an error.

var bulletPrefix = regexp.MustCompile(`^[-*•]\s*`)

// Brainstorm generates count colored sticky notes about topic. When the model
// does not return note objects it retries as a plain idea list.
func (o *Orchestrator) Brainstorm(ctx context.Context, topic string, count int) ([]action.StickyItem, error) {
	if count <= 0 {
		count = 4
	}
	raw, err := o.complete(ctx, "brainstorm", Request{
		System: "You are a creative brainstorming assistant. Return only valid JSON arrays with text and color properties.",
		Prompt: fmt.Sprintf(`Generate %d sticky notes about: %q

Return ONLY a JSON array of objects with this exact format:
[
  {"text": "Note content here", "color": "#fef08a"},
  {"text": "Note content here", "color": "#fbcfe8"}
]

Color options (choose the most appropriate for each note):
- Yellow: #fef08a (default for ideas)
- Pink: #fbcfe8 (for highlights)
- Blue: #bfdbfe (for information)
- Green: #bbf7d0 (for positive/agreements)
- Purple: #e9d5ff (for creative thoughts)
- Orange: #fed7aa (for action items)

Each text should be max 30 words and meaningful.`, count, topic),
	})
	if err != nil {
		return nil, err
	}

	var notes []action.StickyItem
	if decodeJSON(raw, '[', &notes) {
		notes = nonEmptyNotes(notes)
		if len(notes) > 0 {
			o.metrics.AIRequest("brainstorm", OutcomeOK)
			return notes, nil
		}
	}

	ideas, err := o.Ideas(ctx, topic)
	if err != nil {
		return nil, err
	}
	notes = make([]action.StickyItem, 0, len(ideas))
	for _, idea := range ideas {
		notes = append(notes, action.StickyItem{Text: idea, Color: domain.DefaultStickyColor})
	}
	return notes, nil
}

func nonEmptyNotes(in []action.StickyItem) []action.StickyItem {
	out := in[:0]
	for _, n := range in {
		if strings.TrimSpace(n.Text) != "" {
			out = append(out, n)
		}
	}
	return out
}

// Ideas returns up to 8 short brainstorming ideas.
func (o *Orchestrator) Ideas(ctx context.Context, topic string) ([]string, error) {
	raw, err := o.complete(ctx, "ideas", Request{
		System: "You are a creative brainstorming assistant. Return only valid JSON arrays.",
		Prompt: fmt.Sprintf("Generate 8 creative and diverse brainstorming ideas about: %q\n\nFormat: Return ONLY a JSON array of strings, each idea max 15 words.\nExample: [\"Idea 1\", \"Idea 2\", ...]", topic),
	})
	if err != nil {
		return nil, err
	}
	return o.stringList("ideas", raw, 8), nil
}

// Category is a named group of element ids.
type Category struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

type Organization struct {
	Categories []Category `json:"categories"`
}

// Organize groups the sticky notes of els into categories. A reply without
// usable JSON yields no categories.
func (o *Orchestrator) Organize(ctx context.Context, els []domain.Element) (Organization, error) {
	type note struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	var notes []note
	for _, el := range els {
		if el.Kind != domain.ElementKindSticky {
			continue
		}
		text := el.Data.Text
		if text == "" {
			text = "Untitled"
		}
		notes = append(notes, note{ID: el.ID, Text: text})
	}
	if len(notes) == 0 {
		return Organization{}, nil
	}

	listing, _ := json.MarshalIndent(notes, "", "  ")
	raw, err := o.complete(ctx, "organize", Request{
		System: "You are an organizational assistant. Return only valid JSON.",
		Prompt: fmt.Sprintf("Analyze these sticky notes and group them into 3-5 logical categories:\n\n%s\n\nReturn ONLY a JSON object with this format:\n{\n  \"categories\": [\n    {\"name\": \"Category Name\", \"items\": [\"note id 1\", \"note id 2\"]}\n  ]\n}", listing),
	})
	if err != nil {
		return Organization{}, err
	}

	var org Organization
	if !decodeJSON(raw, '{', &org) {
		o.metrics.AIRequest("organize", OutcomeRawText)
		return Organization{}, nil
	}
	o.metrics.AIRequest("organize", OutcomeOK)
	return org, nil
}

// Arrange moves the elements named by org into one column per category,
// starting at (100,100). Ids that no longer exist are skipped.
func Arrange(org Organization, els []domain.Element) []domain.Element {
	byID := make(map[string]domain.Element, len(els))
	for _, el := range els {
		byID[el.ID] = el
	}
	var moved []domain.Element
	for c, cat := range org.Categories {
		for i, id := range cat.Items {
			el, ok := byID[id]
			if !ok {
				continue
			}
			el = el.Clone()
			el.Position = domain.Point{X: 100 + float64(c)*500, Y: 100 + float64(i)*220}
			moved = append(moved, el)
		}
	}
	return moved
}

type contentEntry struct {
	Type     string        `json:"type"`
	Text     string        `json:"text"`
	Position *domain.Point `json:"position,omitempty"`
}

func contentOf(els []domain.Element, withPosition bool) string {
	entries := make([]contentEntry, 0, len(els))
	for _, el := range els {
		e := contentEntry{Type: string(el.Kind), Text: el.DisplayText()}
		if withPosition {
			p := el.Position
			e.Position = &p
		}
		entries = append(entries, e)
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return string(out)
}

// Summarize returns a free-text summary of the canvas.
func (o *Orchestrator) Summarize(ctx context.Context, els []domain.Element) (string, error) {
	raw, err := o.complete(ctx, "summarize", Request{
		System: "You are a helpful assistant that creates concise, actionable summaries.",
		Prompt: fmt.Sprintf("Summarize this whiteboard canvas content:\n\n%s\n\nProvide:\n1. Key themes (2-3 bullet points)\n2. Main ideas (3-5 bullet points)\n3. Action items (if any)\n4. Overall summary (1 paragraph)", contentOf(els, false)),
	})
	if err != nil {
		return "", err
	}
	o.metrics.AIRequest("summarize", OutcomeOK)
	return strings.TrimSpace(raw), nil
}

// NextSteps suggests up to 5 concrete next steps.
func (o *Orchestrator) NextSteps(ctx context.Context, els []domain.Element) ([]string, error) {
	raw, err := o.complete(ctx, "next_steps", Request{
		System: "You are a strategic planning assistant. Return only valid JSON arrays.",
		Prompt: fmt.Sprintf("Based on this whiteboard content, suggest 5 concrete next steps:\n\n%s\n\nReturn ONLY a JSON array of strings, each step max 20 words.\nExample: [\"Step 1...\", \"Step 2...\", ...]", contentOf(els, false)),
	})
	if err != nil {
		return nil, err
	}
	return o.stringList("next_steps", raw, 5), nil
}

// Sentiment buckets sticky note ids by tone.
type Sentiment struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
	Neutral  []string `json:"neutral"`
	Concerns []string `json:"concerns"`
}

func emptySentiment() Sentiment {
	return Sentiment{Positive: []string{}, Negative: []string{}, Neutral: []string{}, Concerns: []string{}}
}

func (o *Orchestrator) Sentiment(ctx context.Context, els []domain.Element) (Sentiment, error) {
	type note struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	var notes []note
	for _, el := range els {
		if el.Kind == domain.ElementKindSticky {
			notes = append(notes, note{ID: el.ID, Text: el.Data.Text})
		}
	}
	if len(notes) == 0 {
		return emptySentiment(), nil
	}

	listing, _ := json.MarshalIndent(notes, "", "  ")
	raw, err := o.complete(ctx, "sentiment", Request{
		System: "You are a sentiment analysis assistant. Return only valid JSON.",
		Prompt: fmt.Sprintf("Analyze sentiment of these notes and categorize:\n\n%s\n\nReturn ONLY a JSON object:\n{\n  \"positive\": [\"id1\", \"id2\"],\n  \"negative\": [\"id3\"],\n  \"neutral\": [\"id4\"],\n  \"concerns\": [\"id5\"]\n}", listing),
	})
	if err != nil {
		return Sentiment{}, err
	}

	s := emptySentiment()
	if !decodeJSON(raw, '{', &s) {
		o.metrics.AIRequest("sentiment", OutcomeRawText)
		return emptySentiment(), nil
	}
	o.metrics.AIRequest("sentiment", OutcomeOK)
	return s, nil
}

// TemplateDraft is a proposed name and description for the current canvas.
type TemplateDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (o *Orchestrator) TemplateFromCanvas(ctx context.Context, els []domain.Element) (TemplateDraft, error) {
	raw, err := o.complete(ctx, "template", Request{
		System: "You are a template creation assistant. Return only valid JSON.",
		Prompt: fmt.Sprintf("Based on this canvas structure, create a template:\n\n%s\n\nReturn ONLY a JSON object:\n{\n  \"name\": \"Template Name (3-5 words)\",\n  \"description\": \"Brief description (1 sentence)\"\n}", contentOf(els, true)),
	})
	if err != nil {
		return TemplateDraft{}, err
	}

	var d TemplateDraft
	if !decodeJSON(raw, '{', &d) || d.Name == "" {
		o.metrics.AIRequest("template", OutcomeRawText)
		return TemplateDraft{Name: "Custom Template", Description: "Generated from current canvas"}, nil
	}
	o.metrics.AIRequest("template", OutcomeOK)
	return d, nil
}

// stringList decodes a JSON array of strings, falling back to one entry per
// non-empty line with list bullets removed.
func (o *Orchestrator) stringList(feature, raw string, max int) []string {
	var list []string
	if decodeJSON(raw, '[', &list) {
		o.metrics.AIRequest(feature, OutcomeOK)
		if len(list) > max {
			list = list[:max]
		}
		return list
	}

	o.metrics.AIRequest(feature, OutcomeRawText)
	out := []string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, strings.TrimSpace(bulletPrefix.ReplaceAllString(line, "")))
		if len(out) == max {
			break
		}
	}
	return out
}

// decodeJSON unmarshals raw into v, retrying with the first balanced
// bracketed substring when raw carries extra prose or code fences.
func decodeJSON(raw string, open byte, v any) bool {
	text := strings.TrimSpace(raw)
	if json.Unmarshal([]byte(text), v) == nil {
		return true
	}
	var (
		sub string
		ok  bool
	)
	if open == '[' {
		sub, ok = FirstArray(text)
	} else {
		sub, ok = FirstObject(text)
	}
	return ok && json.Unmarshal([]byte(sub), v) == nil
}
