package domain

// TemplateElement is an element without an id, positioned relative to the
// placement anchor.
type TemplateElement struct {
	Kind   ElementKind       `json:"type" yaml:"type"`
	Offset Point             `json:"position" yaml:"position"`
	Size   Size              `json:"size" yaml:"size"`
	Data   ElementData       `json:"data" yaml:"data"`
	Style  map[string]string `json:"style,omitempty" yaml:"style,omitempty"`
}

// Template is a named, pre-authored group of elements instantiated as a unit.
type Template struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Elements    []TemplateElement `json:"elements" yaml:"-"`
}
