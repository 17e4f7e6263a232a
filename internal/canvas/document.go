package canvas

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"whiteboard/internal/domain"
)

var ErrUnknownElement = errors.New("canvas: unknown element")

// EventEmitter notifies local observers (UI bridge, MCP clients) of changes.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

const (
	EventElementsChanged = "canvas:elements-changed"
	EventEdgeAdded       = "canvas:edge-added"
)

// Document is the local participant's view of the shared canvas. All mutations
// are submitted through the Collaborator so other participants see them.
type Document struct {
	collab  Collaborator
	ids     *Counter
	edgeIDs *Counter
	emitter EventEmitter
	log     *zap.Logger
	unsub   func()
}

// IDScoper is implemented by collaborators shared with other writers. A
// non-empty scope is embedded in every id the document mints, so two
// participants allocating at the same time never produce the same id.
type IDScoper interface {
	IDScope() string
}

func NewDocument(collab Collaborator, emitter EventEmitter, log *zap.Logger) *Document {
	if log == nil {
		log = zap.NewNop()
	}
	nodePrefix, edgePrefix := "node", "edge"
	if s, ok := collab.(IDScoper); ok && s.IDScope() != "" {
		nodePrefix += "-" + s.IDScope()
		edgePrefix += "-" + s.IDScope()
	}
	d := &Document{
		collab:  collab,
		ids:     NewCounter(nodePrefix, FirstNodeID),
		edgeIDs: NewCounter(edgePrefix, 1),
		emitter: emitter,
		log:     log,
	}
	for _, e := range collab.Elements() {
		d.ids.Observe(e.ID)
	}
	for _, ed := range collab.Edges() {
		d.edgeIDs.Observe(ed.ID)
	}
	d.unsub = collab.OnChange(d.observe)
	return d
}

// Close detaches the document from its collaborator.
func (d *Document) Close() {
	if d.unsub != nil {
		d.unsub()
	}
}

func (d *Document) observe(p Patch) {
	for _, e := range p.Added {
		d.ids.Observe(e.ID)
	}
	for _, ed := range p.Edges {
		d.edgeIDs.Observe(ed.ID)
	}
	if p.Replace != nil {
		for _, e := range p.Replace.Elements {
			d.ids.Observe(e.ID)
		}
		for _, ed := range p.Replace.Edges {
			d.edgeIDs.Observe(ed.ID)
		}
	}
}

// NextID allocates a fresh element id.
func (d *Document) NextID() string {
	return d.ids.NextID()
}

func (d *Document) Elements() []domain.Element { return d.collab.Elements() }
func (d *Document) Edges() []domain.Edge       { return d.collab.Edges() }

func (d *Document) Snapshot() domain.Snapshot {
	return domain.Snapshot{Elements: d.collab.Elements(), Edges: d.collab.Edges()}
}

// Element looks up a single element by id.
func (d *Document) Element(id string) (domain.Element, bool) {
	for _, e := range d.collab.Elements() {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Element{}, false
}

// Commit appends added and replaces updated elements in a single patch.
func (d *Document) Commit(ctx context.Context, added, updated []domain.Element) error {
	p := Patch{Added: added, Updated: updated}
	if p.Empty() {
		return nil
	}
	if err := d.collab.Submit(p); err != nil {
		return fmt.Errorf("commit patch: %w", err)
	}
	d.log.Debug("canvas patch committed", zap.Int("added", len(added)), zap.Int("updated", len(updated)))
	d.emit(ctx, EventElementsChanged, map[string]int{"added": len(added), "updated": len(updated)})
	return nil
}

// Remove deletes elements and any edges touching them.
func (d *Document) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := d.collab.Submit(Patch{Removed: ids}); err != nil {
		return fmt.Errorf("remove elements: %w", err)
	}
	d.emit(ctx, EventElementsChanged, map[string]int{"removed": len(ids)})
	return nil
}

// Connect adds an edge from src to dst. Empty anchors are chosen from the
// relative position of the two elements.
func (d *Document) Connect(ctx context.Context, srcID, dstID string, srcAnchor, dstAnchor domain.Anchor) (domain.Edge, error) {
	src, ok := d.Element(srcID)
	if !ok {
		return domain.Edge{}, fmt.Errorf("%w: %s", ErrUnknownElement, srcID)
	}
	dst, ok := d.Element(dstID)
	if !ok {
		return domain.Edge{}, fmt.Errorf("%w: %s", ErrUnknownElement, dstID)
	}
	if srcAnchor == "" || dstAnchor == "" {
		s, t := BestAnchors(src, dst)
		if srcAnchor == "" {
			srcAnchor = s
		}
		if dstAnchor == "" {
			dstAnchor = t
		}
	}
	if !srcAnchor.Valid() || !dstAnchor.Valid() {
		return domain.Edge{}, fmt.Errorf("invalid anchor %q -> %q", srcAnchor, dstAnchor)
	}

	edge := domain.Edge{
		ID:           d.edgeIDs.NextID(),
		SourceID:     srcID,
		TargetID:     dstID,
		SourceAnchor: srcAnchor,
		TargetAnchor: dstAnchor,
	}
	if err := d.collab.Submit(Patch{Edges: []domain.Edge{edge}}); err != nil {
		return domain.Edge{}, fmt.Errorf("connect: %w", err)
	}
	d.emit(ctx, EventEdgeAdded, edge)
	return edge, nil
}

// EditText replaces the text of a note or the label of a shape.
func (d *Document) EditText(ctx context.Context, id, text string) (domain.Element, error) {
	el, ok := d.Element(id)
	if !ok {
		return domain.Element{}, fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	if el.Kind == domain.ElementKindShape || el.Kind == domain.ElementKindResizable {
		el.Data.Label = text
	} else {
		el.Data.Text = text
	}
	if err := d.Commit(ctx, nil, []domain.Element{el}); err != nil {
		return domain.Element{}, err
	}
	return el, nil
}

// SetColor changes an element's color, accepting either a semantic token
// or a raw color value.
func (d *Document) SetColor(ctx context.Context, id, color string) (domain.Element, error) {
	el, ok := d.Element(id)
	if !ok {
		return domain.Element{}, fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	if hex := domain.ColorToken(color).Hex(); hex != "" {
		color = hex
	}
	el.Data.Color = color
	if err := d.Commit(ctx, nil, []domain.Element{el}); err != nil {
		return domain.Element{}, err
	}
	return el, nil
}

func (d *Document) emit(ctx context.Context, event string, data any) {
	if d.emitter != nil {
		d.emitter.Emit(ctx, event, data)
	}
}

// BestAnchors picks the facing sides of two elements: vertical when they are
// further apart vertically than horizontally, horizontal otherwise.
func BestAnchors(src, dst domain.Element) (domain.Anchor, domain.Anchor) {
	srcCX, srcCY := src.Position.X+src.Size.Width/2, src.Position.Y+src.Size.Height/2
	dstCX, dstCY := dst.Position.X+dst.Size.Width/2, dst.Position.Y+dst.Size.Height/2
	dx := dstCX - srcCX
	dy := dstCY - srcCY

	if math.Abs(dy) > math.Abs(dx) {
		if dy > 0 {
			return domain.AnchorBottom, domain.AnchorTop
		}
		return domain.AnchorTop, domain.AnchorBottom
	}
	if dx >= 0 {
		return domain.AnchorRight, domain.AnchorLeft
	}
	return domain.AnchorLeft, domain.AnchorRight
}
