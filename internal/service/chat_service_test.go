package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard/internal/domain"
	"whiteboard/internal/service"
)

func find(t *testing.T, f *fixture, id string) domain.Element {
	t.Helper()
	el, ok := f.canvas.Element(id)
	require.True(t, ok, "element %s not found", id)
	return el
}

func TestChat_AskAddsStickyAtDefaultAnchor(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{"message":"Added it","actions":[{"type":"add_sticky","items":[{"text":"Buy milk"}]}]}`}}
	f := newFixture(t, llm)
	sess := f.session(t)

	reply, err := f.chat.Ask(context.Background(), sess, "remind me to buy milk")
	require.NoError(t, err)

	assert.Equal(t, "Added it", reply.Message.Content)
	assert.Equal(t, domain.RoleAssistant, reply.Message.Role)
	require.Len(t, reply.Result.NewElements, 1)

	el := find(t, f, reply.Result.NewElements[0].ID)
	assert.Equal(t, domain.ElementKindSticky, el.Kind)
	assert.Equal(t, "Buy milk", el.Data.Text)
	assert.Equal(t, domain.DefaultStickyColor, el.Data.Color)
	assert.Equal(t, domain.Point{X: 100, Y: 100}, el.Position)
}

func TestChat_AskUsesLastClick(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{"message":"","actions":[{"type":"add_text","items":[{"text":"a"},{"text":"b"}]}]}`}}
	f := newFixture(t, llm)
	sess := f.session(t)
	ctx := context.Background()

	_, err := sess.Click(ctx, domain.Point{X: 500, Y: 700})
	require.NoError(t, err)

	reply, err := f.chat.Ask(ctx, sess, "two boxes")
	require.NoError(t, err)
	require.Len(t, reply.Result.NewElements, 2)
	assert.Equal(t, domain.Point{X: 500, Y: 700}, reply.Result.NewElements[0].Position)
	assert.Equal(t, domain.Point{X: 720, Y: 700}, reply.Result.NewElements[1].Position)
	assert.Equal(t, "Added 2 and updated 0 element(s).", reply.Message.Content)
}

func TestChat_AskRecolorLastWins(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{"message":"recolored","actions":[
		{"type":"update_color","nodeIds":["node-2","gone"],"color":"#fed7aa"},
		{"type":"update_color","nodeIds":["node-2"],"color":"#bbf7d0"}
	]}`}}
	f := newFixture(t, llm)

	reply, err := f.chat.Ask(context.Background(), f.session(t), "make it green")
	require.NoError(t, err)
	require.Len(t, reply.Result.UpdatedElements, 1)
	assert.Equal(t, "#bbf7d0", find(t, f, "node-2").Data.Color)
}

func TestChat_AskReportsDroppedActions(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{"message":"m","actions":[{"type":"explode"},{"type":"add_template","templateId":"kanban"}]}`}}
	f := newFixture(t, llm)

	reply, err := f.chat.Ask(context.Background(), f.session(t), "kanban please")
	require.NoError(t, err)
	assert.Len(t, reply.Result.NewElements, 4)
	require.Len(t, reply.Dropped, 1)
	assert.Len(t, f.canvas.Elements(), 7)
}

func TestChat_UnavailableKeepsHistory(t *testing.T) {
	f := newFixture(t, &fakeLLM{err: errors.New("connection refused")})
	sess := f.session(t)

	reply, err := f.chat.Ask(context.Background(), sess, "hello")
	require.NoError(t, err)
	assert.True(t, reply.Unavailable)
	assert.Equal(t, service.UnavailableMessage, reply.Message.Content)
	assert.Len(t, f.canvas.Elements(), 3)

	msgs, err := f.chat.History(sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, msgs[0].ID, msgs[1].RequestID)
}

func TestChat_EmptyPrompt(t *testing.T) {
	f := newFixture(t, &fakeLLM{})
	_, err := f.chat.Ask(context.Background(), f.session(t), "   ")
	assert.ErrorIs(t, err, service.ErrEmptyInput)
}

func TestChat_InFlightCount(t *testing.T) {
	llm := &fakeLLM{gate: make(chan struct{})}
	f := newFixture(t, llm)
	sess := f.session(t)

	done := make(chan error, 1)
	go func() {
		_, err := f.chat.Ask(context.Background(), sess, "slow one")
		done <- err
	}()

	require.Eventually(t, func() bool { return sess.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	// Other interactions are not blocked while the request is pending.
	_, err := sess.Click(context.Background(), domain.Point{X: 1, Y: 2})
	require.NoError(t, err)

	close(llm.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 0, sess.InFlight())
	assert.Len(t, f.emitter.Named(service.EventBusy), 2)
}

func TestChat_Brainstorm(t *testing.T) {
	llm := &fakeLLM{replies: []string{`[{"text":"a","color":"#fbcfe8"},{"text":"b"}]`}}
	f := newFixture(t, llm)

	reply, err := f.chat.Brainstorm(context.Background(), f.session(t), "coffee", 2)
	require.NoError(t, err)
	require.Len(t, reply.Result.NewElements, 2)
	assert.Equal(t, "#fbcfe8", reply.Result.NewElements[0].Data.Color)
	assert.Equal(t, domain.DefaultStickyColor, reply.Result.NewElements[1].Data.Color)
	assert.Contains(t, reply.Message.Content, "Generated 2 colored sticky notes at position (100, 100)")

	msgs, err := f.history.ListMessages(reply.Message.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Generate ideas for: coffee", msgs[0].Content)
}

func TestChat_OrganizeMovesNotesIntoColumns(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		`{"message":"","actions":[{"type":"add_sticky","items":[{"text":"milk"},{"text":"eggs"},{"text":"call mom"}]}]}`,
		`Here you go: {"categories":[{"name":"Food","items":["node-101","node-100"]},{"name":"Family","items":["node-102"]}]}`,
	}}
	f := newFixture(t, llm)
	sess := f.session(t)
	ctx := context.Background()

	_, err := f.chat.Ask(ctx, sess, "add notes")
	require.NoError(t, err)

	reply, err := f.chat.Organize(ctx, sess)
	require.NoError(t, err)
	assert.Contains(t, reply.Message.Content, "Organized into 2 categories")
	assert.Contains(t, reply.Message.Content, "**Food** (2 notes)")

	assert.Equal(t, domain.Point{X: 100, Y: 100}, find(t, f, "node-101").Position)
	assert.Equal(t, domain.Point{X: 100, Y: 320}, find(t, f, "node-100").Position)
	assert.Equal(t, domain.Point{X: 600, Y: 100}, find(t, f, "node-102").Position)
}

func TestChat_OrganizeWithoutNotes(t *testing.T) {
	llm := &fakeLLM{}
	f := newFixture(t, llm)

	reply, err := f.chat.Organize(context.Background(), f.session(t))
	require.NoError(t, err)
	assert.Equal(t, "No sticky notes found to organize.", reply.Message.Content)
	assert.Equal(t, 0, llm.calls)
}

func TestChat_NextStepsAndSentiment(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		`["Ship it","Tell people"]`,
		`not json at all`,
	}}
	f := newFixture(t, llm)
	sess := f.session(t)
	ctx := context.Background()

	reply, err := f.chat.NextSteps(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "Suggested Next Steps:\n\n1. Ship it\n2. Tell people", reply.Message.Content)

	// No sticky notes on the seed canvas: sentiment needs no call.
	reply, err = f.chat.Sentiment(ctx, sess)
	require.NoError(t, err)
	assert.Contains(t, reply.Message.Content, "Positive: 0 notes")
}

func TestChat_ClearHistory(t *testing.T) {
	f := newFixture(t, &fakeLLM{})
	sess := f.session(t)
	ctx := context.Background()

	_, err := f.chat.Summarize(ctx, sess)
	require.NoError(t, err)
	msgs, err := f.chat.History(sess.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	require.NoError(t, f.chat.ClearHistory(sess.ID))
	msgs, err = f.chat.History(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
