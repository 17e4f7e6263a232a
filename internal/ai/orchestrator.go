package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whiteboard/internal/action"
	"whiteboard/internal/domain"
)

// Metrics receives orchestration counters. Implemented by the observability
// collector.
type Metrics interface {
	AIRequest(feature, outcome string)
	ObserveLLMLatency(feature string, d time.Duration)
	ActionDropped(reason string)
}

type nopMetrics struct{}

func (nopMetrics) AIRequest(string, string)                {}
func (nopMetrics) ObserveLLMLatency(string, time.Duration) {}
func (nopMetrics) ActionDropped(string)                    {}

const (
	OutcomeOK          = "ok"
	OutcomeRecovered   = "recovered"
	OutcomeRawText     = "raw_text"
	OutcomeUnavailable = "unavailable"
)

const actionSystemPrompt = `You are the assistant of a collaborative whiteboard. You can answer questions and change the canvas.
Reply with exactly one JSON object and nothing else:
{"message": "<short answer for the user>", "actions": [<zero or more actions>]}

Actions:
{"type":"add_sticky","items":[{"text":"...","color":"#fef08a"}]}
{"type":"add_text","items":[{"text":"..."}]}
{"type":"add_shape","items":[{"shapeType":"circle","color":"#3b82f6","label":"..."}]}
{"type":"add_template","templateId":"kanban"}
{"type":"update_color","nodeIds":["node-12"],"color":"#bbf7d0"}

Shapes: rectangle, circle, diamond, triangle, hexagon, star, line.
Templates: %s.
Colors: yellow #fef08a (ideas), pink #fbcfe8 (highlights), blue #bfdbfe (information), green #bbf7d0 (positive/agreements), purple #e9d5ff (creative thoughts), orange #fed7aa (action items).
update_color may only reference ids that exist in the canvas context below.

Canvas context: %s`

// Orchestrator sends a prompt plus a bounded canvas summary to the language
// model and parses the structured reply.
type Orchestrator struct {
	client      Client
	templateIDs []string
	budget      atomic.Int64
	metrics     Metrics
	log         *zap.Logger
}

type Options struct {
	// TemplateIDs are advertised to the model as valid add_template ids.
	TemplateIDs   []string
	ContextBudget int
	Metrics       Metrics
	Logger        *zap.Logger
}

func NewOrchestrator(client Client, opts Options) *Orchestrator {
	o := &Orchestrator{
		client:      client,
		templateIDs: opts.TemplateIDs,
		metrics:     opts.Metrics,
		log:         opts.Logger,
	}
	o.budget.Store(int64(DefaultContextBudget))
	o.SetContextBudget(opts.ContextBudget)
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	o.log = o.log.With(zap.String("component", "orchestrator"))
	return o
}

// SetContextBudget changes the summary size for subsequent requests.
func (o *Orchestrator) SetContextBudget(n int) {
	if n > 0 {
		o.budget.Store(int64(n))
	}
}

// Run asks the model to act on prompt given snap. The only error is
// ErrServiceUnavailable; malformed replies are recovered into a Reply.
func (o *Orchestrator) Run(ctx context.Context, prompt string, snap domain.Snapshot) (Reply, error) {
	reqID := uuid.NewString()
	cc := Summarize(snap, int(o.budget.Load()))
	ccJSON, _ := json.Marshal(cc)

	system := fmt.Sprintf(actionSystemPrompt, strings.Join(o.templateIDs, ", "), ccJSON)
	log := o.log.With(zap.String("request_id", reqID))
	log.Info("ai request", zap.String("prompt", truncate(prompt, 100)), zap.Int("elements", cc.ElementCount))

	raw, err := o.complete(ctx, "chat", Request{System: system, Prompt: prompt})
	if err != nil {
		log.Warn("ai request failed", zap.Error(err))
		return Reply{}, err
	}

	reply := ParseReply(raw)
	reply.RequestID = reqID
	for _, d := range reply.Drops {
		o.metrics.ActionDropped(d.Reason)
	}
	switch {
	case !reply.Recovered:
		o.metrics.AIRequest("chat", OutcomeRawText)
	case len(reply.Drops) > 0:
		o.metrics.AIRequest("chat", OutcomeRecovered)
	default:
		o.metrics.AIRequest("chat", OutcomeOK)
	}
	log.Info("ai response",
		zap.String("message", truncate(reply.Message, 100)),
		zap.Int("actions", len(reply.Actions)),
		zap.Int("dropped", len(reply.Drops)))
	if len(reply.Actions) > 0 && log.Core().Enabled(zap.DebugLevel) {
		if data, err := action.Marshal(reply.Actions); err == nil {
			log.Debug("ai actions", zap.ByteString("actions", data))
		}
	}
	return reply, nil
}

// complete calls the client and records latency. Any client error is
// reported as ErrServiceUnavailable.
func (o *Orchestrator) complete(ctx context.Context, feature string, req Request) (string, error) {
	start := time.Now()
	raw, err := o.client.Complete(ctx, req)
	o.metrics.ObserveLLMLatency(feature, time.Since(start))
	if err != nil {
		o.metrics.AIRequest(feature, OutcomeUnavailable)
		if errors.Is(err, ErrServiceUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return raw, nil
}
