package domain

type ElementKind string

const (
	ElementKindSticky    ElementKind = "sticky"
	ElementKindText      ElementKind = "text"
	ElementKindShape     ElementKind = "shape"
	ElementKindResizable ElementKind = "resizable"
)

// Valid reports whether k is one of the known element kinds.
func (k ElementKind) Valid() bool {
	switch k {
	case ElementKindSticky, ElementKindText, ElementKindShape, ElementKindResizable:
		return true
	}
	return false
}

type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeDiamond   ShapeType = "diamond"
	ShapeTriangle  ShapeType = "triangle"
	ShapeHexagon   ShapeType = "hexagon"
	ShapeStar      ShapeType = "star"
	ShapeLine      ShapeType = "line"
)

// ShapeTypes lists every shape in palette order.
var ShapeTypes = []ShapeType{
	ShapeLine, ShapeRectangle, ShapeCircle, ShapeDiamond, ShapeTriangle, ShapeHexagon, ShapeStar,
}

func (s ShapeType) Valid() bool {
	for _, t := range ShapeTypes {
		if t == s {
			return true
		}
	}
	return false
}

type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p translated by o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns the offset from o to p.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// ElementData is the kind-specific payload of an element.
// Sticky uses Text+Color, text uses Text (+Color), shape uses ShapeType+Color+Label,
// resizable uses Label.
type ElementData struct {
	Text      string    `json:"text,omitempty" yaml:"text,omitempty"`
	Color     string    `json:"color,omitempty" yaml:"color,omitempty"`
	ShapeType ShapeType `json:"shapeType,omitempty" yaml:"shapeType,omitempty"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
}

// Element is a single placeable unit on the canvas.
type Element struct {
	ID       string            `json:"id"`
	Kind     ElementKind       `json:"type"`
	Position Point             `json:"position"`
	Size     Size              `json:"size"`
	Data     ElementData       `json:"data"`
	Style    map[string]string `json:"style,omitempty"` // border, backgroundColor, fontWeight, ...
}

// Clone returns a deep copy of e.
func (e Element) Clone() Element {
	out := e
	if e.Style != nil {
		out.Style = make(map[string]string, len(e.Style))
		for k, v := range e.Style {
			out.Style[k] = v
		}
	}
	return out
}

// DisplayText returns the text shown on the element (text for notes, label for shapes).
func (e Element) DisplayText() string {
	if e.Data.Text != "" {
		return e.Data.Text
	}
	return e.Data.Label
}
