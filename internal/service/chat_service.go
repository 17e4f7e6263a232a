package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whiteboard/internal/action"
	"whiteboard/internal/ai"
	"whiteboard/internal/domain"
)

// UnavailableMessage is recorded as the assistant's reply when the language
// model cannot be reached. The user retries manually.
const UnavailableMessage = "The AI assistant is unavailable right now. Please try again in a moment."

var ErrEmptyInput = errors.New("service: empty input")

// ─────────────────────────────────────────────────────────────
// Chat Service — AI requests, canvas effects and history
// ─────────────────────────────────────────────────────────────

// ChatReply is the outcome of one assistant request.
type ChatReply struct {
	Message     domain.Message `json:"message"`
	Result      action.Result  `json:"result"`
	Dropped     []action.Drop  `json:"dropped,omitempty"`
	Unavailable bool           `json:"unavailable,omitempty"`
}

type ChatService struct {
	orch    *ai.Orchestrator
	canvas  *CanvasService
	history domain.MessageStore
	emitter EventEmitter
	log     *zap.Logger
	now     func() time.Time
}

func NewChatService(orch *ai.Orchestrator, canvas *CanvasService, history domain.MessageStore, emitter EventEmitter, log *zap.Logger) *ChatService {
	if log == nil {
		log = zap.NewNop()
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &ChatService{
		orch:    orch,
		canvas:  canvas,
		history: history,
		emitter: emitter,
		log:     log.With(zap.String("component", "chat")),
		now:     time.Now,
	}
}

// Ask sends prompt to the assistant with the current canvas and applies the
// returned actions at the session's anchor. The snapshot and the anchor are
// read when the reply arrives, so concurrent requests apply in arrival order.
func (s *ChatService) Ask(ctx context.Context, sess *Session, prompt string) (ChatReply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ChatReply{}, fmt.Errorf("ask: %w", ErrEmptyInput)
	}
	return s.run(ctx, sess, prompt, func(ctx context.Context) (string, action.Result, []action.Drop, error) {
		reply, err := s.orch.Run(ctx, prompt, s.canvas.Snapshot())
		if err != nil {
			return "", action.Result{}, nil, err
		}
		res, err := s.canvas.ApplyActions(ctx, reply.Actions, sess.Anchor())
		if err != nil {
			return "", action.Result{}, nil, err
		}
		msg := reply.Message
		if msg == "" && len(reply.Actions) > 0 {
			msg = fmt.Sprintf("Added %d and updated %d element(s).", len(res.NewElements), len(res.UpdatedElements))
		}
		return msg, res, reply.Drops, nil
	})
}

// Brainstorm adds colored sticky notes about topic at the session's anchor.
func (s *ChatService) Brainstorm(ctx context.Context, sess *Session, topic string, count int) (ChatReply, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ChatReply{}, fmt.Errorf("brainstorm topic: %w", ErrEmptyInput)
	}
	return s.run(ctx, sess, "Generate ideas for: "+topic, func(ctx context.Context) (string, action.Result, []action.Drop, error) {
		notes, err := s.orch.Brainstorm(ctx, topic, count)
		if err != nil {
			return "", action.Result{}, nil, err
		}
		if len(notes) == 0 {
			return "I couldn't come up with ideas for that topic.", action.Result{}, nil, nil
		}
		anchor := sess.Anchor()
		res, err := s.canvas.ApplyActions(ctx, []action.Action{action.AddSticky{Items: notes}}, anchor)
		if err != nil {
			return "", action.Result{}, nil, err
		}
		msg := fmt.Sprintf("Generated %d colored sticky notes at position (%d, %d). You can drag them to reposition.",
			len(res.NewElements), int(math.Round(anchor.X)), int(math.Round(anchor.Y)))
		return msg, res, nil, nil
	})
}

// Organize groups the sticky notes into categories and moves each category
// into its own column.
func (s *ChatService) Organize(ctx context.Context, sess *Session) (ChatReply, error) {
	return s.run(ctx, sess, "Organize sticky notes by category", func(ctx context.Context) (string, action.Result, []action.Drop, error) {
		org, err := s.orch.Organize(ctx, s.canvas.Elements())
		if err != nil {
			return "", action.Result{}, nil, err
		}
		if len(org.Categories) == 0 {
			return "No sticky notes found to organize.", action.Result{}, nil, nil
		}

		moved := ai.Arrange(org, s.canvas.Elements())
		if err := s.canvas.Move(ctx, moved...); err != nil {
			return "", action.Result{}, nil, err
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Organized into %d categories:\n\n", len(org.Categories))
		for _, c := range org.Categories {
			fmt.Fprintf(&sb, "**%s** (%d notes)\n", c.Name, len(c.Items))
		}
		return strings.TrimRight(sb.String(), "\n"), action.Result{UpdatedElements: moved}, nil, nil
	})
}

func (s *ChatService) Summarize(ctx context.Context, sess *Session) (ChatReply, error) {
	return s.run(ctx, sess, "Summarize canvas content", func(ctx context.Context) (string, action.Result, []action.Drop, error) {
		summary, err := s.orch.Summarize(ctx, s.canvas.Elements())
		return summary, action.Result{}, nil, err
	})
}

func (s *ChatService) NextSteps(ctx context.Context, sess *Session) (ChatReply, error) {
	return s.run(ctx, sess, "Suggest next steps", func(ctx context.Context) (string, action.Result, []action.Drop, error) {
		steps, err := s.orch.NextSteps(ctx, s.canvas.Elements())
		if err != nil {
			return "", action.Result{}, nil, err
		}
		lines := make([]string, len(steps))
		for i, step := range steps {
			lines[i] = fmt.Sprintf("%d. %s", i+1, step)
		}
		return "Suggested Next Steps:\n\n" + strings.Join(lines, "\n"), action.Result{}, nil, nil
	})
}

func (s *ChatService) Sentiment(ctx context.Context, sess *Session) (ChatReply, error) {
	return s.run(ctx, sess, "Analyze sentiment", func(ctx context.Context) (string, action.Result, []action.Drop, error) {
		st, err := s.orch.Sentiment(ctx, s.canvas.Elements())
		if err != nil {
			return "", action.Result{}, nil, err
		}
		report := fmt.Sprintf("Sentiment Analysis:\n\nPositive: %d notes\nNegative: %d notes\nNeutral: %d notes\nConcerns: %d notes",
			len(st.Positive), len(st.Negative), len(st.Neutral), len(st.Concerns))
		return report, action.Result{}, nil, nil
	})
}

func (s *ChatService) TemplateFromCanvas(ctx context.Context, sess *Session) (ChatReply, error) {
	return s.run(ctx, sess, "Create template from canvas", func(ctx context.Context) (string, action.Result, []action.Drop, error) {
		d, err := s.orch.TemplateFromCanvas(ctx, s.canvas.Elements())
		if err != nil {
			return "", action.Result{}, nil, err
		}
		return fmt.Sprintf("Template Created!\n\n**Name:** %s\n**Description:** %s", d.Name, d.Description), action.Result{}, nil, nil
	})
}

func (s *ChatService) History(sessionID string) ([]domain.Message, error) {
	msgs, err := s.history.ListMessages(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

func (s *ChatService) ClearHistory(sessionID string) error {
	return s.history.ClearMessages(sessionID)
}

type runFunc func(ctx context.Context) (string, action.Result, []action.Drop, error)

// run records the user's message, tracks the request as in flight, and
// records the assistant's reply. A model outage becomes an assistant message
// rather than an error; the history is kept either way.
func (s *ChatService) run(ctx context.Context, sess *Session, userText string, fn runFunc) (ChatReply, error) {
	userMsg, err := s.appendMessage(ctx, sess.ID, domain.RoleUser, userText, "")
	if err != nil {
		return ChatReply{}, err
	}

	if sess.requests.TryLock(userMsg.ID) {
		s.emitter.Emit(ctx, EventBusy, map[string]any{"sessionId": sess.ID, "inFlight": sess.InFlight()})
		defer func() {
			sess.requests.Unlock(userMsg.ID)
			s.emitter.Emit(ctx, EventBusy, map[string]any{"sessionId": sess.ID, "inFlight": sess.InFlight()})
		}()
	}

	text, res, drops, err := fn(ctx)
	reply := ChatReply{Result: res, Dropped: drops}
	if err != nil {
		if !errors.Is(err, ai.ErrServiceUnavailable) {
			return ChatReply{}, err
		}
		s.log.Warn("assistant unavailable", zap.String("session", sess.ID), zap.Error(err))
		text = UnavailableMessage
		reply.Unavailable = true
	}

	reply.Message, err = s.appendMessage(ctx, sess.ID, domain.RoleAssistant, text, userMsg.ID)
	if err != nil {
		return reply, err
	}
	return reply, nil
}

func (s *ChatService) appendMessage(ctx context.Context, sessionID string, role domain.MessageRole, content, requestID string) (domain.Message, error) {
	m := domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		RequestID: requestID,
		CreatedAt: s.now(),
	}
	if err := s.history.AppendMessage(&m); err != nil {
		return domain.Message{}, fmt.Errorf("append %s message: %w", role, err)
	}
	s.emitter.Emit(ctx, EventMessage, m)
	return m, nil
}
