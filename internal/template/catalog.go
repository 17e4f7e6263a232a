package template

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"whiteboard/internal/domain"
)

//go:embed templates.yaml
var builtinYAML []byte

// Catalog is an immutable id → template registry.
type Catalog struct {
	order []string
	byID  map[string]domain.Template
}

var (
	builtinOnce sync.Once
	builtin     *Catalog
	builtinErr  error
)

// Builtin returns the catalog of built-in templates, parsed once per process.
// A parse failure of the embedded data is a build defect and panics.
func Builtin() *Catalog {
	builtinOnce.Do(func() {
		builtin, builtinErr = Parse(builtinYAML)
	})
	if builtinErr != nil {
		panic(fmt.Sprintf("template: built-in catalog: %v", builtinErr))
	}
	return builtin
}

// ─────────────────────────────────────────────────────────────
// YAML representation
// ─────────────────────────────────────────────────────────────

type catalogFile struct {
	Templates []templateSpec `yaml:"templates"`
}

type templateSpec struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Elements    []elementSpec `yaml:"elements"`
}

type elementSpec struct {
	domain.TemplateElement `yaml:",inline"`
	Repeat                 *repeatSpec `yaml:"repeat,omitempty"`
}

type repeatSpec struct {
	Count    int                      `yaml:"count"`
	Wrap     int                      `yaml:"wrap"`
	Order    string                   `yaml:"order"`
	Step     domain.Point             `yaml:"step"`
	Elements []domain.TemplateElement `yaml:"elements"`
}

// Parse builds a catalog from its YAML representation, expanding repeat
// blocks into plain elements.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	c := &Catalog{byID: make(map[string]domain.Template, len(f.Templates))}
	for _, ts := range f.Templates {
		if ts.ID == "" {
			return nil, fmt.Errorf("template without id")
		}
		if _, dup := c.byID[ts.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", ts.ID)
		}
		els, err := expand(ts.Elements)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", ts.ID, err)
		}
		c.byID[ts.ID] = domain.Template{
			ID:          ts.ID,
			Name:        ts.Name,
			Description: ts.Description,
			Elements:    els,
		}
		c.order = append(c.order, ts.ID)
	}
	return c, nil
}

func expand(specs []elementSpec) ([]domain.TemplateElement, error) {
	var out []domain.TemplateElement
	for i, s := range specs {
		if s.Repeat == nil {
			if !s.Kind.Valid() {
				return nil, fmt.Errorf("element %d: unknown type %q", i, s.Kind)
			}
			out = append(out, s.TemplateElement)
			continue
		}

		r := s.Repeat
		if r.Count <= 0 {
			return nil, fmt.Errorf("element %d: repeat count must be positive", i)
		}
		wrap := r.Wrap
		if wrap <= 0 {
			wrap = r.Count
		}
		for n := 0; n < r.Count; n++ {
			col, row := n%wrap, n/wrap
			if r.Order == "columns" {
				col, row = n/wrap, n%wrap
			}
			shift := domain.Point{X: float64(col) * r.Step.X, Y: float64(row) * r.Step.Y}
			for _, e := range r.Elements {
				if !e.Kind.Valid() {
					return nil, fmt.Errorf("element %d: unknown type %q", i, e.Kind)
				}
				copied := e
				copied.Offset = e.Offset.Add(shift)
				copied.Data.Text = strings.ReplaceAll(e.Data.Text, "{n}", fmt.Sprint(n+1))
				copied.Style = cloneStyle(e.Style)
				out = append(out, copied)
			}
		}
	}
	return out, nil
}

func cloneStyle(s map[string]string) map[string]string {
	if s == nil {
		return nil
	}
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ─────────────────────────────────────────────────────────────
// Lookup & instantiation
// ─────────────────────────────────────────────────────────────

// Get returns the template with the given id.
func (c *Catalog) Get(id string) (domain.Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// List returns every template in definition order.
func (c *Catalog) List() []domain.Template {
	out := make([]domain.Template, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns the sorted template ids.
func (c *Catalog) IDs() []string {
	ids := append([]string(nil), c.order...)
	sort.Strings(ids)
	return ids
}

// Instantiate creates the elements of template id with fresh ids, positioned
// at anchor plus each element's offset. ok is false for unknown ids.
func (c *Catalog) Instantiate(id string, anchor domain.Point, alloc domain.IDAllocator) ([]domain.Element, bool) {
	t, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	out := make([]domain.Element, len(t.Elements))
	for i, te := range t.Elements {
		out[i] = domain.Element{
			ID:       alloc.NextID(),
			Kind:     te.Kind,
			Position: anchor.Add(te.Offset),
			Size:     te.Size,
			Data:     te.Data,
			Style:    cloneStyle(te.Style),
		}
	}
	return out, true
}
