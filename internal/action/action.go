package action

import (
	"encoding/json"

	"whiteboard/internal/domain"
)

// Type is the wire tag of an action.
type Type string

const (
	TypeAddSticky   Type = "add_sticky"
	TypeAddText     Type = "add_text"
	TypeAddShape    Type = "add_shape"
	TypeAddTemplate Type = "add_template"
	TypeUpdateColor Type = "update_color"
)

// Types lists every known action type.
var Types = []Type{TypeAddSticky, TypeAddText, TypeAddShape, TypeAddTemplate, TypeUpdateColor}

// Action is one structured canvas mutation. The concrete types are AddSticky,
// AddText, AddShape, AddTemplate and UpdateColor.
type Action interface {
	Type() Type
	isAction()
}

type StickyItem struct {
	Text  string `json:"text" validate:"max=4000"`
	Color string `json:"color,omitempty" validate:"omitempty,max=64"`
}

type TextItem struct {
	Text string `json:"text" validate:"max=4000"`
}

type ShapeItem struct {
	ShapeType domain.ShapeType `json:"shapeType,omitempty" validate:"omitempty,shapetype"`
	Color     string           `json:"color,omitempty" validate:"omitempty,max=64"`
	Label     string           `json:"label,omitempty" validate:"max=1000"`
}

type AddSticky struct {
	Items []StickyItem `json:"items"`
}

type AddText struct {
	Items []TextItem `json:"items"`
}

type AddShape struct {
	Items []ShapeItem `json:"items"`
}

type AddTemplate struct {
	TemplateID string `json:"templateId" validate:"required"`
}

type UpdateColor struct {
	NodeIDs []string `json:"nodeIds"`
	Color   string   `json:"color" validate:"required,max=64"`
}

func (AddSticky) Type() Type   { return TypeAddSticky }
func (AddText) Type() Type     { return TypeAddText }
func (AddShape) Type() Type    { return TypeAddShape }
func (AddTemplate) Type() Type { return TypeAddTemplate }
func (UpdateColor) Type() Type { return TypeUpdateColor }

func (AddSticky) isAction()   {}
func (AddText) isAction()     {}
func (AddShape) isAction()    {}
func (AddTemplate) isAction() {}
func (UpdateColor) isAction() {}

// Marshal encodes actions in their wire format, with the "type" tag inline.
func Marshal(actions []Action) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(actions))
	for _, a := range actions {
		raw, err := marshalOne(a)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func marshalOne(a Action) (json.RawMessage, error) {
	switch v := a.(type) {
	case AddSticky:
		return json.Marshal(struct {
			Type Type `json:"type"`
			AddSticky
		}{v.Type(), v})
	case AddText:
		return json.Marshal(struct {
			Type Type `json:"type"`
			AddText
		}{v.Type(), v})
	case AddShape:
		return json.Marshal(struct {
			Type Type `json:"type"`
			AddShape
		}{v.Type(), v})
	case AddTemplate:
		return json.Marshal(struct {
			Type Type `json:"type"`
			AddTemplate
		}{v.Type(), v})
	case UpdateColor:
		return json.Marshal(struct {
			Type Type `json:"type"`
			UpdateColor
		}{v.Type(), v})
	}
	return json.Marshal(map[string]any{"type": a.Type()})
}
