package interaction

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"whiteboard/internal/action"
	"whiteboard/internal/domain"
	"whiteboard/internal/placement"
)

var (
	ErrUnknownTemplate = errors.New("interaction: unknown template")
	ErrUnknownShape    = errors.New("interaction: unknown shape type")
	ErrUnknownTool     = errors.New("interaction: unknown tool")
)

type State int

const (
	Idle State = iota
	ShapeArmed
	TemplateArmed
	ToolArmed
)

func (s State) String() string {
	switch s {
	case ShapeArmed:
		return "shape"
	case TemplateArmed:
		return "template"
	case ToolArmed:
		return "tool"
	}
	return "idle"
}

// Tool is a persistent drawing tool.
type Tool string

const (
	ToolText   Tool = "text"
	ToolSticky Tool = "sticky"
)

// DefaultAnchor is where AI batches go before the user has clicked the canvas.
var DefaultAnchor = domain.Point{X: 100, Y: 100}

// Mode is the active placement mode. Only the fields of the current state
// are set.
type Mode struct {
	State      State            `json:"-"`
	Name       string           `json:"state"`
	Shape      domain.ShapeType `json:"shape,omitempty"`
	Color      string           `json:"color,omitempty"`
	TemplateID string           `json:"templateId,omitempty"`
	Tool       Tool             `json:"tool,omitempty"`
}

func idle() Mode { return Mode{State: Idle, Name: Idle.String()} }

// Templates instantiates templates at a point.
type Templates interface {
	Get(id string) (domain.Template, bool)
	Instantiate(id string, anchor domain.Point, alloc domain.IDAllocator) ([]domain.Element, bool)
}

// Machine decides what a canvas click creates. It runs for the lifetime of
// an editing session.
type Machine struct {
	mu        sync.Mutex
	mode      Mode
	anchor    domain.Point
	templates Templates
	alloc     domain.IDAllocator
	log       *zap.Logger
}

func NewMachine(templates Templates, alloc domain.IDAllocator, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		mode:      idle(),
		anchor:    DefaultAnchor,
		templates: templates,
		alloc:     alloc,
		log:       log.With(zap.String("component", "interaction")),
	}
}

func (m *Machine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Anchor is the last canvas click, used to place AI batches.
func (m *Machine) Anchor() domain.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.anchor
}

// SelectShape arms shape placement. Selecting the armed shape again disarms.
// An empty color uses the palette color of the shape.
func (m *Machine) SelectShape(shape domain.ShapeType, color string) (Mode, error) {
	if !shape.Valid() {
		return m.Mode(), fmt.Errorf("%w: %q", ErrUnknownShape, shape)
	}
	if color == "" {
		color = domain.ShapePaletteColor(shape)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode.State == ShapeArmed && m.mode.Shape == shape {
		m.mode = idle()
		return m.mode, nil
	}
	m.mode = Mode{State: ShapeArmed, Name: ShapeArmed.String(), Shape: shape, Color: color}
	return m.mode, nil
}

// SelectTemplate arms template placement. Selecting the armed template again
// disarms.
func (m *Machine) SelectTemplate(id string) (Mode, error) {
	if _, ok := m.templates.Get(id); !ok {
		return m.Mode(), fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode.State == TemplateArmed && m.mode.TemplateID == id {
		m.mode = idle()
		return m.mode, nil
	}
	m.mode = Mode{State: TemplateArmed, Name: TemplateArmed.String(), TemplateID: id}
	return m.mode, nil
}

// SelectTool arms a persistent tool. Selecting the armed tool again disarms.
func (m *Machine) SelectTool(tool Tool) (Mode, error) {
	if tool != ToolText && tool != ToolSticky {
		return m.Mode(), fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode.State == ToolArmed && m.mode.Tool == tool {
		m.mode = idle()
		return m.mode, nil
	}
	m.mode = Mode{State: ToolArmed, Name: ToolArmed.String(), Tool: tool}
	return m.mode, nil
}

// Cancel returns to Idle from any state.
func (m *Machine) Cancel() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = idle()
	return m.mode
}

// Click handles a canvas click at p and returns the elements it creates.
// Shape and template placement are single-shot; the text and sticky tools
// stay armed. Every click becomes the new AI anchor.
func (m *Machine) Click(p domain.Point) []domain.Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anchor = p

	switch m.mode.State {
	case TemplateArmed:
		els, ok := m.templates.Instantiate(m.mode.TemplateID, p, m.alloc)
		m.log.Debug("placed template", zap.String("template", m.mode.TemplateID), zap.Int("elements", len(els)))
		m.mode = idle()
		if !ok {
			return nil
		}
		return els

	case ShapeArmed:
		el := m.shape(m.mode.Shape, m.mode.Color, p)
		m.log.Debug("placed shape", zap.String("shape", string(m.mode.Shape)))
		m.mode = idle()
		return []domain.Element{el}

	case ToolArmed:
		var el domain.Element
		switch m.mode.Tool {
		case ToolText:
			el = domain.Element{
				ID:   m.alloc.NextID(),
				Kind: domain.ElementKindText,
				Size: action.TextSize,
			}
		case ToolSticky:
			el = domain.Element{
				ID:   m.alloc.NextID(),
				Kind: domain.ElementKindSticky,
				Size: action.StickySize,
				Data: domain.ElementData{Color: domain.DefaultStickyColor},
			}
		}
		return []domain.Element{placement.Place(el, p)}
	}
	return nil
}

// Restore re-arms prev after a click whose elements could not be committed.
// It only applies while the machine is still Idle, so a selection made in the
// meantime wins.
func (m *Machine) Restore(prev Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode.State != Idle {
		return false
	}
	m.mode = prev
	return true
}

// Drop places a shape dragged from the palette at p. The armed state is left
// untouched.
func (m *Machine) Drop(shape domain.ShapeType, color string, p domain.Point) (domain.Element, error) {
	if !shape.Valid() {
		return domain.Element{}, fmt.Errorf("%w: %q", ErrUnknownShape, shape)
	}
	if color == "" {
		color = domain.ShapePaletteColor(shape)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shape(shape, color, p), nil
}

func (m *Machine) shape(shape domain.ShapeType, color string, p domain.Point) domain.Element {
	return placement.Place(domain.Element{
		ID:   m.alloc.NextID(),
		Kind: domain.ElementKindShape,
		Size: action.ShapeSize,
		Data: domain.ElementData{ShapeType: shape, Color: color},
	}, p)
}
