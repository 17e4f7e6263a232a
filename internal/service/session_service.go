package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"whiteboard/internal/domain"
	"whiteboard/internal/idgen"
	"whiteboard/internal/interaction"
)

var ErrUnknownSession = errors.New("service: unknown session")

// ─────────────────────────────────────────────────────────────
// Session — one participant's interaction state
// ─────────────────────────────────────────────────────────────

// Session pairs a participant's interaction machine with the shared canvas.
// Every session has its own armed tool, AI anchor and in-flight AI requests.
type Session struct {
	ID string

	canvas   *CanvasService
	machine  *interaction.Machine
	emitter  EventEmitter
	requests runningGuard
}

func (s *Session) Mode() interaction.Mode { return s.machine.Mode() }

// Anchor is where the next AI batch of this session will be placed.
func (s *Session) Anchor() domain.Point { return s.machine.Anchor() }

// InFlight reports how many AI requests of this session are waiting for the
// language model.
func (s *Session) InFlight() int { return s.requests.Count() }

func (s *Session) SelectShape(ctx context.Context, shape domain.ShapeType, color string) (interaction.Mode, error) {
	m, err := s.machine.SelectShape(shape, color)
	if err != nil {
		return m, err
	}
	s.modeChanged(ctx, m)
	return m, nil
}

func (s *Session) SelectTemplate(ctx context.Context, id string) (interaction.Mode, error) {
	m, err := s.machine.SelectTemplate(id)
	if err != nil {
		return m, err
	}
	s.modeChanged(ctx, m)
	return m, nil
}

func (s *Session) SelectTool(ctx context.Context, tool interaction.Tool) (interaction.Mode, error) {
	m, err := s.machine.SelectTool(tool)
	if err != nil {
		return m, err
	}
	s.modeChanged(ctx, m)
	return m, nil
}

func (s *Session) Cancel(ctx context.Context) interaction.Mode {
	m := s.machine.Cancel()
	s.modeChanged(ctx, m)
	return m
}

// Click handles a canvas click and commits whatever it placed. When the
// commit fails, a single-shot placement stays armed for another try.
func (s *Session) Click(ctx context.Context, p domain.Point) ([]domain.Element, error) {
	before := s.machine.Mode()
	els := s.machine.Click(p)
	if len(els) > 0 {
		if err := s.canvas.Place(ctx, els...); err != nil {
			if before.State != interaction.Idle {
				s.machine.Restore(before)
			}
			return nil, fmt.Errorf("place click: %w", err)
		}
	}
	if after := s.machine.Mode(); after != before {
		s.modeChanged(ctx, after)
	}
	return els, nil
}

// Drop places a shape dragged from the palette at p.
func (s *Session) Drop(ctx context.Context, shape domain.ShapeType, color string, p domain.Point) (domain.Element, error) {
	el, err := s.machine.Drop(shape, color, p)
	if err != nil {
		return domain.Element{}, err
	}
	if err := s.canvas.Place(ctx, el); err != nil {
		return domain.Element{}, fmt.Errorf("place drop: %w", err)
	}
	return el, nil
}

func (s *Session) modeChanged(ctx context.Context, m interaction.Mode) {
	s.emit(ctx, EventModeChanged, map[string]any{"sessionId": s.ID, "mode": m})
}

func (s *Session) emit(ctx context.Context, event string, data any) {
	if s.emitter != nil {
		s.emitter.Emit(ctx, event, data)
	}
}

// ─────────────────────────────────────────────────────────────
// Session Service
// ─────────────────────────────────────────────────────────────

type SessionService struct {
	canvas  *CanvasService
	emitter EventEmitter
	log     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionService(canvas *CanvasService, emitter EventEmitter, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		canvas:   canvas,
		emitter:  emitter,
		log:      log.With(zap.String("component", "session")),
		sessions: make(map[string]*Session),
	}
}

// Open starts a new session in the Idle state.
func (s *SessionService) Open() (*Session, error) {
	id, err := idgen.New(idgen.SessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	sess := &Session{
		ID:      id,
		canvas:  s.canvas,
		machine: interaction.NewMachine(s.canvas.templates, s.canvas.doc, s.log),
		emitter: s.emitter,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Debug("session opened", zap.String("session", id))
	return sess, nil
}

func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	return sess, nil
}

// GetOrOpen returns the session called id, or a new one when id is empty.
func (s *SessionService) GetOrOpen(id string) (*Session, error) {
	if id == "" {
		return s.Open()
	}
	return s.Get(id)
}

func (s *SessionService) Close(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// IDs lists open sessions in lexical order.
func (s *SessionService) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until no session has an AI request in flight or ctx ends.
func (s *SessionService) Wait(ctx context.Context) {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()
	for _, sess := range list {
		sess.requests.WaitAll(ctx)
	}
}
