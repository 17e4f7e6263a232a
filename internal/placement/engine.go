package placement

import (
	"math"

	"whiteboard/internal/domain"
)

const (
	Columns     = 4
	NoteStride  = 220.0 // sticky and text cells
	ShapeStride = 160.0

	GridSize = 30.0 // snap granularity for free-space search
	Padding  = 60.0 // 2 grid cells between elements
	MaxRowW  = 1800.0
)

// Item is an element waiting for a position. When Fixed is set, the element's
// Position is an offset from the anchor (template elements) and is kept, but
// the item still occupies a slot of the batch grid.
type Item struct {
	Element domain.Element
	Fixed   bool
}

// Engine computes positions for new elements.
type Engine struct {
	columns   int
	gridSize  float64
	padding   float64
	maxRowW   float64
	maxSearch float64
}

func NewEngine() *Engine {
	return &Engine{
		columns:   Columns,
		gridSize:  GridSize,
		padding:   Padding,
		maxRowW:   MaxRowW,
		maxSearch: 100000,
	}
}

// Stride returns the cell size used for elements of kind k.
func Stride(k domain.ElementKind) float64 {
	if k == domain.ElementKindShape {
		return ShapeStride
	}
	return NoteStride
}

// Cell returns the grid position of slot i for an element of kind k.
func (e *Engine) Cell(i int, k domain.ElementKind, anchor domain.Point) domain.Point {
	s := Stride(k)
	return domain.Point{
		X: anchor.X + float64(i%e.columns)*s,
		Y: anchor.Y + float64(i/e.columns)*s,
	}
}

// Layout positions a batch of items on a 4-column grid at anchor. Slot
// indices run across the whole batch regardless of kind. Because shapes use
// a tighter stride than notes, a large mixed batch can map two slots onto the
// same point; such a slot is skipped so every item gets its own position.
func (e *Engine) Layout(items []Item, anchor domain.Point) []domain.Element {
	out := make([]domain.Element, 0, len(items))
	used := make(map[domain.Point]bool, len(items))
	slot := 0
	for _, it := range items {
		el := it.Element.Clone()
		if it.Fixed {
			el.Position = anchor.Add(el.Position)
		} else {
			pos := e.Cell(slot, el.Kind, anchor)
			for used[pos] {
				slot++
				pos = e.Cell(slot, el.Kind, anchor)
			}
			el.Position = pos
		}
		used[el.Position] = true
		slot++
		out = append(out, el)
	}
	return out
}

// Place puts a single element exactly at p (click-to-place, drag-and-drop).
func Place(el domain.Element, p domain.Point) domain.Element {
	out := el.Clone()
	out.Position = p
	return out
}

// snap rounds v to the nearest grid point.
func (e *Engine) snap(v float64) float64 {
	return math.Round(v/e.gridSize) * e.gridSize
}

type rect struct {
	x, y, w, h float64
}

func (a rect) intersects(b rect) bool {
	return a.x < b.x+b.w && a.x+a.w > b.x &&
		a.y < b.y+b.h && a.y+a.h > b.y
}

// NextFree finds the first grid point where a box of the given size fits
// without touching existing elements. Used as the anchor for batches that
// arrive without a user click (MCP tools, HTTP API).
func (e *Engine) NextFree(existing []domain.Element, size domain.Size) domain.Point {
	if len(existing) == 0 {
		return domain.Point{}
	}

	occupied := make([]rect, len(existing))
	for i, el := range existing {
		occupied[i] = rect{
			x: el.Position.X - e.padding,
			y: el.Position.Y - e.padding,
			w: el.Size.Width + e.padding*2,
			h: el.Size.Height + e.padding*2,
		}
	}

	candidate := rect{w: size.Width, h: size.Height}
	for y := 0.0; y < e.maxSearch; y += e.gridSize {
		for x := 0.0; x < e.maxRowW; x += e.gridSize {
			candidate.x = e.snap(x)
			candidate.y = e.snap(y)

			free := true
			for _, occ := range occupied {
				if candidate.intersects(occ) {
					free = false
					break
				}
			}
			if free {
				return domain.Point{X: candidate.x, Y: candidate.y}
			}
		}
	}

	maxY := 0.0
	for _, el := range existing {
		maxY = math.Max(maxY, el.Position.Y+el.Size.Height)
	}
	return domain.Point{Y: e.snap(maxY + e.padding)}
}

// BatchSize estimates the footprint of a laid-out batch of n items of kind k,
// for use with NextFree.
func BatchSize(n int, k domain.ElementKind) domain.Size {
	if n <= 0 {
		return domain.Size{}
	}
	cols := n
	if cols > Columns {
		cols = Columns
	}
	rows := (n + Columns - 1) / Columns
	s := Stride(k)
	return domain.Size{Width: float64(cols) * s, Height: float64(rows) * s}
}
