package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"whiteboard/internal/service"
)

const (
	EventApprovalRequired  = "mcp:approval-required"
	EventApprovalDismissed = "mcp:approval-dismissed"
)

var (
	ErrRejected         = errors.New("action rejected by user")
	ErrApprovalTimeout  = errors.New("approval timed out")
	ErrUnknownApproval  = errors.New("unknown approval")
	defaultApprovalWait = 120 * time.Second
)

// PendingAction is a destructive operation awaiting user approval.
type PendingAction struct {
	ID          string   `json:"id"`
	Tool        string   `json:"tool"`
	Description string   `json:"description"`
	ElementIDs  []string `json:"elementIds,omitempty"`
	CreatedAt   string   `json:"createdAt"`
}

type pending struct {
	action PendingAction
	result chan bool
}

// ApprovalQueue holds destructive MCP tool calls until a human approves or
// rejects them through the HTTP surface.
type ApprovalQueue struct {
	mu      sync.Mutex
	pending map[string]*pending
	ctx     context.Context
	emitter service.EventEmitter
	timeout time.Duration
}

func NewApprovalQueue(ctx context.Context, emitter service.EventEmitter, timeout time.Duration) *ApprovalQueue {
	if timeout <= 0 {
		timeout = defaultApprovalWait
	}
	if emitter == nil {
		emitter = service.NopEmitter{}
	}
	return &ApprovalQueue{
		pending: make(map[string]*pending),
		ctx:     ctx,
		emitter: emitter,
		timeout: timeout,
	}
}

// Request announces an approval request and blocks until it is decided,
// times out, or ctx ends.
func (q *ApprovalQueue) Request(ctx context.Context, tool, description string, elementIDs ...string) error {
	p := &pending{
		action: PendingAction{
			ID:          uuid.NewString(),
			Tool:        tool,
			Description: description,
			ElementIDs:  elementIDs,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		},
		result: make(chan bool, 1),
	}

	q.mu.Lock()
	q.pending[p.action.ID] = p
	q.mu.Unlock()
	defer q.cleanup(p.action.ID)

	q.emitter.Emit(ctx, EventApprovalRequired, p.action)

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case ok := <-p.result:
		if !ok {
			return fmt.Errorf("%w: %s", ErrRejected, tool)
		}
		return nil
	case <-timer.C:
		q.emitter.Emit(ctx, EventApprovalDismissed, map[string]string{"id": p.action.ID})
		return fmt.Errorf("%w after %s: %s", ErrApprovalTimeout, q.timeout, tool)
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ctx.Done():
		return q.ctx.Err()
	}
}

// Pending lists undecided requests, oldest first.
func (q *ApprovalQueue) Pending() []PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingAction, 0, len(q.pending))
	for _, p := range q.pending {
		out = append(out, p.action)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (q *ApprovalQueue) Approve(id string) error { return q.decide(id, true) }

func (q *ApprovalQueue) Reject(id string) error { return q.decide(id, false) }

func (q *ApprovalQueue) decide(id string, approved bool) error {
	q.mu.Lock()
	p, ok := q.pending[id]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownApproval, id)
	}
	select {
	case p.result <- approved:
	default:
		// already decided
	}
	return nil
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
