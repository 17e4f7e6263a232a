package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	mcpserver "whiteboard/internal/mcp"
	"whiteboard/internal/service"
)

type askRequest struct {
	Prompt string `json:"prompt" validate:"required,max=8000"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	sess, ok := rt.session(w, r)
	if !ok {
		return
	}
	var req askRequest
	if err := rt.decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rt.chatReply(w, r, func(ctx context.Context) (service.ChatReply, error) {
		return rt.chat.Ask(ctx, sess, req.Prompt)
	})
}

type brainstormRequest struct {
	Topic string `json:"topic" validate:"required,max=1000"`
	Count int    `json:"count" validate:"omitempty,min=1,max=20"`
}

// assist runs one of the assistant features by name.
func (rt *Router) assist(w http.ResponseWriter, r *http.Request) {
	sess, ok := rt.session(w, r)
	if !ok {
		return
	}

	var fn func(context.Context) (service.ChatReply, error)
	switch chi.URLParam(r, "feature") {
	case "brainstorm":
		var req brainstormRequest
		if err := rt.decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		fn = func(ctx context.Context) (service.ChatReply, error) {
			return rt.chat.Brainstorm(ctx, sess, req.Topic, req.Count)
		}
	case "organize":
		fn = func(ctx context.Context) (service.ChatReply, error) { return rt.chat.Organize(ctx, sess) }
	case "summarize":
		fn = func(ctx context.Context) (service.ChatReply, error) { return rt.chat.Summarize(ctx, sess) }
	case "next-steps":
		fn = func(ctx context.Context) (service.ChatReply, error) { return rt.chat.NextSteps(ctx, sess) }
	case "sentiment":
		fn = func(ctx context.Context) (service.ChatReply, error) { return rt.chat.Sentiment(ctx, sess) }
	case "template":
		fn = func(ctx context.Context) (service.ChatReply, error) { return rt.chat.TemplateFromCanvas(ctx, sess) }
	default:
		respondError(w, http.StatusNotFound, "unknown assistant feature")
		return
	}
	rt.chatReply(w, r, fn)
}

// chatReply answers 200 even when the model was unavailable: the reply
// carries the assistant message and the unavailable flag.
func (rt *Router) chatReply(w http.ResponseWriter, r *http.Request, fn func(context.Context) (service.ChatReply, error)) {
	reply, err := fn(r.Context())
	if errors.Is(err, service.ErrEmptyInput) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		rt.internalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (rt *Router) history(w http.ResponseWriter, r *http.Request) {
	sess, ok := rt.session(w, r)
	if !ok {
		return
	}
	msgs, err := rt.chat.History(sess.ID)
	if err != nil {
		rt.internalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (rt *Router) clearHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := rt.session(w, r)
	if !ok {
		return
	}
	if err := rt.chat.ClearHistory(sess.ID); err != nil {
		rt.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Approvals ──────────────────────────────────────────────

func (rt *Router) listApprovals(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, rt.mcp.Approvals().Pending())
}

func (rt *Router) decideApproval(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "approvalID")
		q := rt.mcp.Approvals()
		var err error
		if approve {
			err = q.Approve(id)
		} else {
			err = q.Reject(id)
		}
		if errors.Is(err, mcpserver.ErrUnknownApproval) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			rt.internalError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
