package action

import (
	"whiteboard/internal/domain"
	"whiteboard/internal/placement"
)

var (
	StickySize = domain.Size{Width: 200, Height: 200}
	TextSize   = domain.Size{Width: 200, Height: 100}
	ShapeSize  = domain.Size{Width: 120, Height: 120}
)

// Templates looks up template definitions by id.
type Templates interface {
	Get(id string) (domain.Template, bool)
}

// Metrics receives counts of what the interpreter did. Implemented by the
// observability collector.
type Metrics interface {
	ActionApplied(t string)
	ElementCreated(kind string)
}

// Result is a pure description of the changes a batch of actions makes.
type Result struct {
	NewElements     []domain.Element `json:"newElements"`
	UpdatedElements []domain.Element `json:"updatedElements"`
}

// Interpreter turns actions into new and updated elements. It never touches
// the live document; callers commit the Result.
type Interpreter struct {
	templates Templates
	engine    *placement.Engine
	metrics   Metrics
}

func NewInterpreter(templates Templates, engine *placement.Engine, metrics Metrics) *Interpreter {
	if engine == nil {
		engine = placement.NewEngine()
	}
	return &Interpreter{templates: templates, engine: engine, metrics: metrics}
}

// Footprint estimates the area a batch of actions covers once laid out: the
// grid taken by every created item, or the largest template, whichever is
// bigger. Mixed batches are sized with the note stride.
func (in *Interpreter) Footprint(actions []Action) domain.Size {
	var (
		n     int
		kind  = domain.ElementKindShape
		bound domain.Size
	)
	for _, a := range actions {
		switch v := a.(type) {
		case AddSticky:
			n += len(v.Items)
			if len(v.Items) > 0 {
				kind = domain.ElementKindSticky
			}
		case AddText:
			n += len(v.Items)
			if len(v.Items) > 0 {
				kind = domain.ElementKindSticky
			}
		case AddShape:
			n += len(v.Items)
		case AddTemplate:
			if in.templates == nil {
				continue
			}
			tpl, ok := in.templates.Get(v.TemplateID)
			if !ok {
				continue
			}
			n += len(tpl.Elements)
			for _, te := range tpl.Elements {
				bound.Width = max(bound.Width, te.Offset.X+te.Size.Width)
				bound.Height = max(bound.Height, te.Offset.Y+te.Size.Height)
			}
		}
	}
	grid := placement.BatchSize(n, kind)
	return domain.Size{
		Width:  max(grid.Width, bound.Width),
		Height: max(grid.Height, bound.Height),
	}
}

// FreeAnchor returns the first spot where the batch fits without overlapping
// existing elements.
func (in *Interpreter) FreeAnchor(actions []Action, existing []domain.Element) domain.Point {
	return in.engine.NextFree(existing, in.Footprint(actions))
}

// Apply interprets actions in order. All added elements, across every add
// action, are laid out as one batch at anchor. Color updates apply to
// existing elements only; missing ids are skipped and the last update naming
// an id wins. Unknown template ids are a no-op.
func (in *Interpreter) Apply(actions []Action, existing []domain.Element, anchor domain.Point, alloc domain.IDAllocator) Result {
	var (
		items    []placement.Item
		recolors = make(map[string]string)
	)

	for _, a := range actions {
		switch v := a.(type) {
		case AddSticky:
			for _, it := range v.Items {
				color := ResolveColor(it.Color)
				if color == "" {
					color = domain.DefaultStickyColor
				}
				items = append(items, placement.Item{Element: domain.Element{
					ID:   alloc.NextID(),
					Kind: domain.ElementKindSticky,
					Size: StickySize,
					Data: domain.ElementData{Text: it.Text, Color: color},
				}})
			}
		case AddText:
			for _, it := range v.Items {
				items = append(items, placement.Item{Element: domain.Element{
					ID:   alloc.NextID(),
					Kind: domain.ElementKindText,
					Size: TextSize,
					Data: domain.ElementData{Text: it.Text},
				}})
			}
		case AddShape:
			for _, it := range v.Items {
				shape := it.ShapeType
				if shape == "" {
					shape = domain.ShapeRectangle
				}
				color := ResolveColor(it.Color)
				if color == "" {
					color = domain.DefaultShapeColor
				}
				items = append(items, placement.Item{Element: domain.Element{
					ID:   alloc.NextID(),
					Kind: domain.ElementKindShape,
					Size: ShapeSize,
					Data: domain.ElementData{ShapeType: shape, Color: color, Label: it.Label},
				}})
			}
		case AddTemplate:
			if in.templates == nil {
				continue
			}
			tpl, ok := in.templates.Get(v.TemplateID)
			if !ok {
				continue
			}
			for _, te := range tpl.Elements {
				el := domain.Element{
					ID:       alloc.NextID(),
					Kind:     te.Kind,
					Position: te.Offset,
					Size:     te.Size,
					Data:     te.Data,
					Style:    te.Style,
				}
				items = append(items, placement.Item{Element: el.Clone(), Fixed: true})
			}
		case UpdateColor:
			color := ResolveColor(v.Color)
			for _, id := range v.NodeIDs {
				recolors[id] = color
			}
		default:
			continue
		}
		in.record(a.Type())
	}

	var res Result
	if len(items) > 0 {
		res.NewElements = in.engine.Layout(items, anchor)
		if in.metrics != nil {
			for _, el := range res.NewElements {
				in.metrics.ElementCreated(string(el.Kind))
			}
		}
	}
	if len(recolors) > 0 {
		for _, el := range existing {
			color, ok := recolors[el.ID]
			if !ok {
				continue
			}
			updated := el.Clone()
			updated.Data.Color = color
			res.UpdatedElements = append(res.UpdatedElements, updated)
		}
	}
	return res
}

func (in *Interpreter) record(t Type) {
	if in.metrics != nil {
		in.metrics.ActionApplied(string(t))
	}
}

// ResolveColor maps a semantic color token to its hex value and passes any
// other value through unchanged.
func ResolveColor(c string) string {
	if hex := domain.ColorToken(c).Hex(); hex != "" {
		return hex
	}
	return c
}
