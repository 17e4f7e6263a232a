package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"whiteboard/internal/action"
	"whiteboard/internal/ai"
	"whiteboard/internal/domain"
)

// fakeClient returns canned replies in order and records requests.
type fakeClient struct {
	mu      sync.Mutex
	replies []string
	err     error
	reqs    []ai.Request
}

func (f *fakeClient) Complete(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

// ─────────────────────────────────────────────────────────────
// Reply parsing
// ─────────────────────────────────────────────────────────────

func TestParseReply(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		message   string
		actions   int
		drops     int
		recovered bool
	}{
		{
			name:      "direct json",
			raw:       `{"message":"Added one","actions":[{"type":"add_text","items":[{"text":"x"}]}]}`,
			message:   "Added one",
			actions:   1,
			recovered: true,
		},
		{
			name:      "fenced json with prose",
			raw:       "Sure! Here you go:\n```json\n{\"message\":\"ok {braces} in text\",\"actions\":[]}\n```\nAnything else?",
			message:   "ok {braces} in text",
			recovered: true,
		},
		{
			name:      "plain text",
			raw:       "I can't see any notes on the board yet.",
			message:   "I can't see any notes on the board yet.",
			recovered: false,
		},
		{
			name:      "broken json falls back to text",
			raw:       `{"message": "half`,
			message:   `{"message": "half`,
			recovered: false,
		},
		{
			name:      "unrelated object falls back to text",
			raw:       `{"foo": 1}`,
			message:   `{"foo": 1}`,
			recovered: false,
		},
		{
			name:      "bad actions are dropped individually",
			raw:       `{"message":"m","actions":[{"type":"teleport"},{"type":"add_template","templateId":"kanban"}]}`,
			message:   "m",
			actions:   1,
			drops:     1,
			recovered: true,
		},
		{
			name:      "actions not an array",
			raw:       `{"message":"m","actions":"add a note"}`,
			message:   "m",
			drops:     1,
			recovered: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ai.ParseReply(tt.raw)
			assert.Equal(t, tt.message, r.Message)
			assert.Len(t, r.Actions, tt.actions)
			assert.Len(t, r.Drops, tt.drops)
			assert.Equal(t, tt.recovered, r.Recovered)
		})
	}
}

func TestFirstObject_IgnoresBracesInStrings(t *testing.T) {
	obj, ok := ai.FirstObject(`noise {"a":"}\"{","b":{"c":1}} tail}`)
	require.True(t, ok)
	assert.Equal(t, `{"a":"}\"{","b":{"c":1}}`, obj)

	_, ok = ai.FirstObject(`{"never":"closed"`)
	assert.False(t, ok)
}

// ─────────────────────────────────────────────────────────────
// Context summary
// ─────────────────────────────────────────────────────────────

func TestSummarize_RespectsBudget(t *testing.T) {
	var els []domain.Element
	for i := 0; i < 50; i++ {
		els = append(els, domain.Element{
			ID:   "node-" + strings.Repeat("9", 3),
			Kind: domain.ElementKindSticky,
			Data: domain.ElementData{Text: "ünïcödé note text that is fairly long", Color: "#fed7aa"},
		})
	}
	cc := ai.Summarize(domain.Snapshot{Elements: els}, 300)
	assert.Equal(t, 50, cc.ElementCount)
	assert.LessOrEqual(t, len(cc.Elements), 300)
	assert.True(t, cc.Truncated)
	assert.True(t, strings.HasPrefix(cc.Elements, `[{"id":"node-999","type":"sticky"`))
	assert.Contains(t, cc.Elements, `"color":"orange"`)
	assert.True(t, utf8.ValidString(cc.Elements))
}

func TestSummarize_Edges(t *testing.T) {
	snap := domain.Snapshot{
		Elements: []domain.Element{{ID: "a", Kind: domain.ElementKindShape, Data: domain.ElementData{Label: "A", Color: "#123456"}}},
		Edges:    []domain.Edge{{ID: "e1", SourceID: "a", TargetID: "b"}},
	}
	cc := ai.Summarize(snap, 0)
	assert.Equal(t, "a->b", cc.Edges)
	assert.False(t, cc.Truncated)
	assert.Contains(t, cc.Elements, `"color":"#123456"`)
	assert.Contains(t, cc.Elements, `"text":"A"`)
}

// ─────────────────────────────────────────────────────────────
// Orchestrator
// ─────────────────────────────────────────────────────────────

func TestOrchestrator_Run(t *testing.T) {
	fc := &fakeClient{replies: []string{`{"message":"Done","actions":[{"type":"add_sticky","items":[{"text":"Buy milk","color":"#bbf7d0"}]}]}`}}
	o := ai.NewOrchestrator(fc, ai.Options{TemplateIDs: []string{"kanban", "timeline"}})

	snap := domain.Snapshot{Elements: []domain.Element{{ID: "node-1", Kind: domain.ElementKindSticky, Data: domain.ElementData{Text: "hello"}}}}
	reply, err := o.Run(context.Background(), "add a note", snap)
	require.NoError(t, err)

	assert.Equal(t, "Done", reply.Message)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, action.TypeAddSticky, reply.Actions[0].Type())

	require.Len(t, fc.reqs, 1)
	assert.Equal(t, "add a note", fc.reqs[0].Prompt)
	assert.Contains(t, fc.reqs[0].System, "kanban, timeline")
	assert.Contains(t, fc.reqs[0].System, `node-1`)
}

func TestOrchestrator_RunLogsActionsInWireFormat(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	fc := &fakeClient{replies: []string{`{"message":"ok","actions":[{"type":"update_color","nodeIds":["node-1"],"color":"pink"}]}`}}
	o := ai.NewOrchestrator(fc, ai.Options{Logger: zap.New(core)})

	_, err := o.Run(context.Background(), "make it pink", domain.Snapshot{})
	require.NoError(t, err)

	entries := logs.FilterMessage("ai actions").All()
	require.Len(t, entries, 1)
	raw, ok := entries[0].ContextMap()["actions"].(string)
	require.True(t, ok)
	assert.JSONEq(t, `[{"type":"update_color","nodeIds":["node-1"],"color":"pink"}]`, raw)
}

func TestOrchestrator_RunUnavailable(t *testing.T) {
	fc := &fakeClient{err: errors.New("dial tcp: connection refused")}
	o := ai.NewOrchestrator(fc, ai.Options{})
	_, err := o.Run(context.Background(), "hi", domain.Snapshot{})
	assert.ErrorIs(t, err, ai.ErrServiceUnavailable)
}

func TestOrchestrator_BrainstormFallsBackToIdeas(t *testing.T) {
	fc := &fakeClient{replies: []string{
		"I'd rather write prose.",
		"- Idea one\n* Idea two\n\n• Idea three",
	}}
	o := ai.NewOrchestrator(fc, ai.Options{})
	notes, err := o.Brainstorm(context.Background(), "coffee", 4)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, action.StickyItem{Text: "Idea one", Color: "#fef08a"}, notes[0])
	assert.Equal(t, "Idea three", notes[2].Text)
	assert.Len(t, fc.reqs, 2)
}

func TestOrchestrator_BrainstormColoredNotes(t *testing.T) {
	fc := &fakeClient{replies: []string{`[{"text":"a","color":"#fbcfe8"},{"text":"b","color":"#bbf7d0"}]`}}
	o := ai.NewOrchestrator(fc, ai.Options{})
	notes, err := o.Brainstorm(context.Background(), "coffee", 2)
	require.NoError(t, err)
	assert.Equal(t, []action.StickyItem{{Text: "a", Color: "#fbcfe8"}, {Text: "b", Color: "#bbf7d0"}}, notes)
	assert.Len(t, fc.reqs, 1)
}

func TestOrchestrator_OrganizeDegradesSilently(t *testing.T) {
	els := []domain.Element{
		{ID: "s1", Kind: domain.ElementKindSticky, Data: domain.ElementData{Text: "one"}},
		{ID: "t1", Kind: domain.ElementKindText, Data: domain.ElementData{Text: "title"}},
	}
	o := ai.NewOrchestrator(&fakeClient{replies: []string{"categories: none really"}}, ai.Options{})
	org, err := o.Organize(context.Background(), els)
	require.NoError(t, err)
	assert.Empty(t, org.Categories)

	// No sticky notes: no call at all.
	fc := &fakeClient{}
	o = ai.NewOrchestrator(fc, ai.Options{})
	org, err = o.Organize(context.Background(), els[1:])
	require.NoError(t, err)
	assert.Empty(t, org.Categories)
	assert.Empty(t, fc.reqs)
}

func TestArrange(t *testing.T) {
	els := []domain.Element{
		{ID: "a", Kind: domain.ElementKindSticky},
		{ID: "b", Kind: domain.ElementKindSticky},
		{ID: "c", Kind: domain.ElementKindSticky},
	}
	org := ai.Organization{Categories: []ai.Category{
		{Name: "X", Items: []string{"a", "gone", "b"}},
		{Name: "Y", Items: []string{"c"}},
	}}
	moved := ai.Arrange(org, els)
	require.Len(t, moved, 3)
	assert.Equal(t, domain.Point{X: 100, Y: 100}, moved[0].Position)
	assert.Equal(t, domain.Point{X: 100, Y: 540}, moved[1].Position)
	assert.Equal(t, domain.Point{X: 600, Y: 100}, moved[2].Position)
}

func TestOrchestrator_NextStepsFallback(t *testing.T) {
	fc := &fakeClient{replies: []string{"1. a\n- b\n- c\n- d\n- e\n- f\n- g"}}
	o := ai.NewOrchestrator(fc, ai.Options{})
	steps, err := o.NextSteps(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1. a", "b", "c", "d", "e"}, steps)
}

func TestOrchestrator_SentimentAndTemplateFallbacks(t *testing.T) {
	els := []domain.Element{{ID: "s1", Kind: domain.ElementKindSticky, Data: domain.ElementData{Text: "great"}}}
	fc := &fakeClient{replies: []string{"nope", "nope"}}
	o := ai.NewOrchestrator(fc, ai.Options{})

	s, err := o.Sentiment(context.Background(), els)
	require.NoError(t, err)
	assert.Empty(t, s.Positive)
	assert.NotNil(t, s.Concerns)

	d, err := o.TemplateFromCanvas(context.Background(), els)
	require.NoError(t, err)
	assert.Equal(t, ai.TemplateDraft{Name: "Custom Template", Description: "Generated from current canvas"}, d)
}

func TestOrchestrator_SentimentParsesObject(t *testing.T) {
	els := []domain.Element{{ID: "s1", Kind: domain.ElementKindSticky, Data: domain.ElementData{Text: "great"}}}
	fc := &fakeClient{replies: []string{`{"positive":["s1"],"negative":[],"neutral":[],"concerns":[]}`}}
	s, err := ai.NewOrchestrator(fc, ai.Options{}).Sentiment(context.Background(), els)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, s.Positive)
}

// ─────────────────────────────────────────────────────────────
// HTTP client
// ─────────────────────────────────────────────────────────────

func TestHTTPClient_MessagesAPI(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"Hello "},{"type":"text","text":"there"}]}`))
	}))
	defer srv.Close()

	c := ai.NewHTTPClient(ai.Settings{BaseURL: srv.URL + "/", APIKey: "secret", Model: "test-model", MaxTokens: 2000, Timeout: 5 * time.Second}, ai.DefaultBreakerSettings(), nil)
	out, err := c.Complete(context.Background(), ai.Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)

	assert.Equal(t, "test-model", got["model"])
	assert.Equal(t, float64(2000), got["max_tokens"])
	assert.Equal(t, ai.DefaultSystemPrompt, got["system"])
}

func TestHTTPClient_ErrorsAreUnavailable(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"overloaded","message":"try later"}}`))
	}))
	defer srv.Close()

	breaker := ai.BreakerSettings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 2}
	c := ai.NewHTTPClient(ai.Settings{BaseURL: srv.URL, Model: "m", MaxTokens: 10}, breaker, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), ai.Request{Prompt: "hi"})
		require.ErrorIs(t, err, ai.ErrServiceUnavailable)
		assert.Contains(t, err.Error(), "try later")
	}

	// Breaker is open now: the server is not contacted.
	_, err := c.Complete(context.Background(), ai.Request{Prompt: "hi"})
	require.ErrorIs(t, err, ai.ErrServiceUnavailable)
	assert.Equal(t, 2, calls)
}

func TestHTTPClient_UndecodableSuccessIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html>proxy login</html>`))
	}))
	defer srv.Close()

	c := ai.NewHTTPClient(ai.Settings{BaseURL: srv.URL, Model: "m", MaxTokens: 10}, ai.BreakerSettings{}, nil)
	out, err := c.Complete(context.Background(), ai.Request{Prompt: "hi"})
	require.ErrorIs(t, err, ai.ErrServiceUnavailable)
	assert.Contains(t, err.Error(), "decode response")
	assert.Empty(t, out)
}

func TestHTTPClient_Configure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"` + r.Header.Get("x-api-key") + `"}]}`))
	}))
	defer srv.Close()

	c := ai.NewHTTPClient(ai.Settings{BaseURL: srv.URL, APIKey: "old"}, ai.DefaultBreakerSettings(), nil)
	c.Configure(ai.Settings{BaseURL: srv.URL, APIKey: "new"})
	out, err := c.Complete(context.Background(), ai.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "new", out)
}
