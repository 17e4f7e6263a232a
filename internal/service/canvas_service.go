package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"whiteboard/internal/action"
	"whiteboard/internal/canvas"
	"whiteboard/internal/domain"
	"whiteboard/internal/template"
)

// ─────────────────────────────────────────────────────────────
// Canvas Service — document access shared by every session
// ─────────────────────────────────────────────────────────────

// CanvasService owns the shared document and applies batches to it. Batches
// are applied one at a time, in the order they arrive.
type CanvasService struct {
	doc       *canvas.Document
	interp    *action.Interpreter
	templates *template.Catalog
	log       *zap.Logger

	applyMu sync.Mutex
}

func NewCanvasService(doc *canvas.Document, interp *action.Interpreter, templates *template.Catalog, log *zap.Logger) *CanvasService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CanvasService{
		doc:       doc,
		interp:    interp,
		templates: templates,
		log:       log.With(zap.String("component", "canvas")),
	}
}

// Document exposes the underlying document, e.g. as an id allocator.
func (s *CanvasService) Document() *canvas.Document { return s.doc }

func (s *CanvasService) Snapshot() domain.Snapshot { return s.doc.Snapshot() }

func (s *CanvasService) Elements() []domain.Element { return s.doc.Elements() }

func (s *CanvasService) Element(id string) (domain.Element, bool) { return s.doc.Element(id) }

func (s *CanvasService) Templates() []domain.Template { return s.templates.List() }

func (s *CanvasService) Template(id string) (domain.Template, bool) { return s.templates.Get(id) }

func (s *CanvasService) TemplateIDs() []string { return s.templates.IDs() }

// ApplyActions interprets actions against the current elements and commits
// the result. New items are laid out from anchor.
func (s *CanvasService) ApplyActions(ctx context.Context, actions []action.Action, anchor domain.Point) (action.Result, error) {
	if len(actions) == 0 {
		return action.Result{}, nil
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	return s.apply(ctx, actions, anchor)
}

// ApplyActionsInFreeSpace is ApplyActions for callers without a position:
// the batch is anchored at the first free area of the board.
func (s *CanvasService) ApplyActionsInFreeSpace(ctx context.Context, actions []action.Action) (action.Result, error) {
	if len(actions) == 0 {
		return action.Result{}, nil
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	anchor := s.interp.FreeAnchor(actions, s.doc.Elements())
	return s.apply(ctx, actions, anchor)
}

func (s *CanvasService) apply(ctx context.Context, actions []action.Action, anchor domain.Point) (action.Result, error) {
	res := s.interp.Apply(actions, s.doc.Elements(), anchor, s.doc)
	if err := s.doc.Commit(ctx, res.NewElements, res.UpdatedElements); err != nil {
		return action.Result{}, fmt.Errorf("apply actions: %w", err)
	}
	s.log.Info("applied actions",
		zap.Int("actions", len(actions)),
		zap.Int("created", len(res.NewElements)),
		zap.Int("updated", len(res.UpdatedElements)),
		zap.Float64("x", anchor.X),
		zap.Float64("y", anchor.Y))
	return res, nil
}

// Place adds elements created by a gesture.
func (s *CanvasService) Place(ctx context.Context, els ...domain.Element) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	return s.doc.Commit(ctx, els, nil)
}

// Move replaces existing elements, typically with new positions.
func (s *CanvasService) Move(ctx context.Context, els ...domain.Element) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	return s.doc.Commit(ctx, nil, els)
}

func (s *CanvasService) Remove(ctx context.Context, ids ...string) error {
	return s.doc.Remove(ctx, ids...)
}

func (s *CanvasService) Connect(ctx context.Context, src, dst string, srcAnchor, dstAnchor domain.Anchor) (domain.Edge, error) {
	return s.doc.Connect(ctx, src, dst, srcAnchor, dstAnchor)
}

func (s *CanvasService) EditText(ctx context.Context, id, text string) (domain.Element, error) {
	return s.doc.EditText(ctx, id, text)
}

func (s *CanvasService) SetColor(ctx context.Context, id, color string) (domain.Element, error) {
	return s.doc.SetColor(ctx, id, color)
}
