package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"whiteboard/internal/action"
	"whiteboard/internal/canvas"
	"whiteboard/internal/domain"
	"whiteboard/internal/interaction"
	"whiteboard/internal/service"
)

// ── Canvas ─────────────────────────────────────────────────

func (rt *Router) getSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, rt.canvas.Snapshot())
}

type patchElementRequest struct {
	Text  *string `json:"text"`
	Color *string `json:"color" validate:"omitempty,min=1,max=64"`
}

func (rt *Router) patchElement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "elementID")
	var req patchElementRequest
	if err := rt.decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	el, ok := rt.canvas.Element(id)
	if !ok {
		respondError(w, http.StatusNotFound, "element not found")
		return
	}
	var err error
	if req.Text != nil {
		if el, err = rt.canvas.EditText(r.Context(), id, *req.Text); err != nil {
			rt.canvasError(w, err)
			return
		}
	}
	if req.Color != nil {
		if el, err = rt.canvas.SetColor(r.Context(), id, *req.Color); err != nil {
			rt.canvasError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, el)
}

func (rt *Router) deleteElement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "elementID")
	if _, ok := rt.canvas.Element(id); !ok {
		respondError(w, http.StatusNotFound, "element not found")
		return
	}
	if err := rt.canvas.Remove(r.Context(), id); err != nil {
		rt.canvasError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createEdgeRequest struct {
	Source       string        `json:"source" validate:"required"`
	Target       string        `json:"target" validate:"required"`
	SourceAnchor domain.Anchor `json:"sourceHandle" validate:"omitempty,oneof=top right bottom left"`
	TargetAnchor domain.Anchor `json:"targetHandle" validate:"omitempty,oneof=top right bottom left"`
}

func (rt *Router) createEdge(w http.ResponseWriter, r *http.Request) {
	var req createEdgeRequest
	if err := rt.decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	edge, err := rt.canvas.Connect(r.Context(), req.Source, req.Target, req.SourceAnchor, req.TargetAnchor)
	if err != nil {
		rt.canvasError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, edge)
}

type applyActionsRequest struct {
	Actions json.RawMessage `json:"actions" validate:"required"`
	// Anchor overrides the session's last click. Without either, the batch
	// goes to the first free area of the board.
	Anchor    *domain.Point `json:"anchor"`
	SessionID string        `json:"sessionId"`
}

type applyActionsResponse struct {
	action.Result
	Dropped []action.Drop `json:"dropped"`
}

func (rt *Router) applyActions(w http.ResponseWriter, r *http.Request) {
	var req applyActionsRequest
	if err := rt.decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	acts, drops, err := action.Decode(req.Actions)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var res action.Result
	switch {
	case req.Anchor != nil:
		res, err = rt.canvas.ApplyActions(r.Context(), acts, *req.Anchor)
	case req.SessionID != "":
		sess, serr := rt.sessions.Get(req.SessionID)
		if serr != nil {
			respondError(w, http.StatusNotFound, serr.Error())
			return
		}
		res, err = rt.canvas.ApplyActions(r.Context(), acts, sess.Anchor())
	default:
		res, err = rt.canvas.ApplyActionsInFreeSpace(r.Context(), acts)
	}
	if err != nil {
		rt.internalError(w, err)
		return
	}
	if drops == nil {
		drops = []action.Drop{}
	}
	respondJSON(w, http.StatusOK, applyActionsResponse{Result: res, Dropped: drops})
}

func (rt *Router) listTemplates(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, rt.canvas.Templates())
}

func (rt *Router) getTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, ok := rt.canvas.Template(chi.URLParam(r, "templateID"))
	if !ok {
		respondError(w, http.StatusNotFound, "template not found")
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

func (rt *Router) canvasError(w http.ResponseWriter, err error) {
	if errors.Is(err, canvas.ErrUnknownElement) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusBadRequest, err.Error())
}

func (rt *Router) internalError(w http.ResponseWriter, err error) {
	rt.log.Error("request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}

// ── Sessions ───────────────────────────────────────────────

type sessionResponse struct {
	ID       string           `json:"id"`
	Mode     interaction.Mode `json:"mode"`
	Anchor   domain.Point     `json:"anchor"`
	InFlight int              `json:"inFlight"`
}

func describe(s *service.Session) sessionResponse {
	return sessionResponse{ID: s.ID, Mode: s.Mode(), Anchor: s.Anchor(), InFlight: s.InFlight()}
}

// session resolves the {sessionID} path parameter, answering 404 itself.
func (rt *Router) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	sess, err := rt.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

func (rt *Router) openSession(w http.ResponseWriter, r *http.Request) {
	sess, err := rt.sessions.Open()
	if err != nil {
		rt.internalError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, describe(sess))
}

func (rt *Router) listSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, rt.sessions.IDs())
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := rt.session(w, r); ok {
		respondJSON(w, http.StatusOK, describe(sess))
	}
}

func (rt *Router) closeSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := rt.session(w, r); ok {
		rt.sessions.Close(sess.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

type modeRequest struct {
	Kind       string           `json:"kind" validate:"required,oneof=shape template tool cancel"`
	Shape      domain.ShapeType `json:"shape" validate:"required_if=Kind shape"`
	Color      string           `json:"color" validate:"max=64"`
	TemplateID string           `json:"templateId" validate:"required_if=Kind template"`
	Tool       interaction.Tool `json:"tool" validate:"required_if=Kind tool"`
}

func (rt *Router) setMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := rt.session(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if err := rt.decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		mode interaction.Mode
		err  error
	)
	switch req.Kind {
	case "shape":
		mode, err = sess.SelectShape(r.Context(), req.Shape, req.Color)
	case "template":
		mode, err = sess.SelectTemplate(r.Context(), req.TemplateID)
	case "tool":
		mode, err = sess.SelectTool(r.Context(), req.Tool)
	default:
		mode = sess.Cancel(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, mode)
}

type clickResponse struct {
	Placed []domain.Element  `json:"placed"`
	Mode   interaction.Mode `json:"mode"`
}

func (rt *Router) click(w http.ResponseWriter, r *http.Request) {
	sess, ok := rt.session(w, r)
	if !ok {
		return
	}
	var p domain.Point
	if err := rt.decodeBody(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	placed, err := sess.Click(r.Context(), p)
	if err != nil {
		rt.internalError(w, err)
		return
	}
	if placed == nil {
		placed = []domain.Element{}
	}
	respondJSON(w, http.StatusOK, clickResponse{Placed: placed, Mode: sess.Mode()})
}

type dropRequest struct {
	Shape domain.ShapeType `json:"shape" validate:"required"`
	Color string           `json:"color" validate:"max=64"`
	X     float64          `json:"x"`
	Y     float64          `json:"y"`
}

func (rt *Router) drop(w http.ResponseWriter, r *http.Request) {
	sess, ok := rt.session(w, r)
	if !ok {
		return
	}
	var req dropRequest
	if err := rt.decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	el, err := sess.Drop(r.Context(), req.Shape, req.Color, domain.Point{X: req.X, Y: req.Y})
	if errors.Is(err, interaction.ErrUnknownShape) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		rt.internalError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, el)
}
