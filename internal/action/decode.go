package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"whiteboard/internal/domain"
)

// Drop reasons reported for discarded actions and items.
const (
	ReasonMalformed   = "malformed"
	ReasonUnknownType = "unknown_type"
	ReasonInvalidItem = "invalid_item"
	ReasonEmpty       = "empty"
)

// Drop records one discarded action or item. Item is -1 when the whole
// action was discarded.
type Drop struct {
	Index  int    `json:"index"`
	Item   int    `json:"item"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// ─────────────────────────────────────────────────────────────
// Schemas
// ─────────────────────────────────────────────────────────────

var schemaSources = map[string]string{
	"envelope.json": `{
		"type": "object",
		"required": ["type"],
		"properties": {"type": {"type": "string"}}
	}`,
	"add_items.json": `{
		"type": "object",
		"required": ["items"],
		"properties": {"items": {"type": "array"}}
	}`,
	"add_template.json": `{
		"type": "object",
		"required": ["templateId"],
		"properties": {"templateId": {"type": "string", "minLength": 1}}
	}`,
	"update_color.json": `{
		"type": "object",
		"required": ["nodeIds", "color"],
		"properties": {
			"nodeIds": {"type": "array", "items": {"type": "string"}},
			"color": {"type": "string", "minLength": 1}
		}
	}`,
	"sticky_item.json": `{
		"type": "object",
		"required": ["text"],
		"properties": {
			"text": {"type": "string"},
			"color": {"type": "string"}
		}
	}`,
	"text_item.json": `{
		"type": "object",
		"required": ["text"],
		"properties": {"text": {"type": "string"}}
	}`,
	"shape_item.json": `{
		"type": "object",
		"properties": {
			"shapeType": {"type": "string"},
			"color": {"type": "string"},
			"label": {"type": "string"}
		}
	}`,
}

type schemaSet struct {
	byName map[string]*jsonschema.Schema
}

var (
	schemasOnce sync.Once
	schemas     *schemaSet
	schemasErr  error

	validate = newValidator()
)

func loadSchemas() (*schemaSet, error) {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		for name, src := range schemaSources {
			if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
				schemasErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}
		set := &schemaSet{byName: make(map[string]*jsonschema.Schema, len(schemaSources))}
		for name := range schemaSources {
			s, err := compiler.Compile(name)
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			set.byName[name] = s
		}
		schemas = set
	})
	return schemas, schemasErr
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("shapetype", func(fl validator.FieldLevel) bool {
		return domain.ShapeType(fl.Field().String()).Valid()
	})
	return v
}

func (s *schemaSet) check(name string, instance any) error {
	return s.byName[name].Validate(instance)
}

// ─────────────────────────────────────────────────────────────
// Decoding
// ─────────────────────────────────────────────────────────────

// Decode parses a JSON array of wire-format actions. Unknown action types and
// malformed actions or items are dropped individually and reported; they
// never fail the whole batch. An error is returned only when raw is not a
// JSON array at all.
func Decode(raw []byte) ([]Action, []Drop, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, fmt.Errorf("decode actions: %w", err)
	}
	acts, drops := DecodeEach(entries)
	return acts, drops, nil
}

// DecodeEach decodes already-split action entries.
func DecodeEach(entries []json.RawMessage) ([]Action, []Drop) {
	set, err := loadSchemas()
	if err != nil {
		// The schemas are compiled from constants; this only fires on a broken build.
		panic(err)
	}

	var (
		out   []Action
		drops []Drop
	)
	for i, raw := range entries {
		a, itemDrops, drop := decodeOne(set, raw)
		for _, d := range itemDrops {
			d.Index = i
			drops = append(drops, d)
		}
		if drop != nil {
			drop.Index = i
			drop.Item = -1
			drops = append(drops, *drop)
			continue
		}
		out = append(out, a)
	}
	return out, drops
}

func decodeOne(set *schemaSet, raw json.RawMessage) (Action, []Drop, *Drop) {
	var inst any
	if err := unmarshalInstance(raw, &inst); err != nil {
		return nil, nil, &Drop{Reason: ReasonMalformed, Detail: err.Error()}
	}
	if err := set.check("envelope.json", inst); err != nil {
		return nil, nil, &Drop{Reason: ReasonMalformed, Detail: err.Error()}
	}
	t := Type(inst.(map[string]any)["type"].(string))

	switch t {
	case TypeAddSticky:
		items, drops := decodeItems[StickyItem](set, "sticky_item.json", inst)
		if items == nil {
			return nil, drops, emptyOr(set, inst)
		}
		return AddSticky{Items: items}, drops, nil
	case TypeAddText:
		items, drops := decodeItems[TextItem](set, "text_item.json", inst)
		if items == nil {
			return nil, drops, emptyOr(set, inst)
		}
		return AddText{Items: items}, drops, nil
	case TypeAddShape:
		items, drops := decodeItems[ShapeItem](set, "shape_item.json", inst)
		if items == nil {
			return nil, drops, emptyOr(set, inst)
		}
		for i := range items {
			if items[i].ShapeType == "" {
				items[i].ShapeType = domain.ShapeRectangle
			}
		}
		return AddShape{Items: items}, drops, nil
	case TypeAddTemplate:
		var a AddTemplate
		if d := decodeStruct(set, "add_template.json", inst, raw, &a); d != nil {
			return nil, nil, d
		}
		return a, nil, nil
	case TypeUpdateColor:
		var a UpdateColor
		if d := decodeStruct(set, "update_color.json", inst, raw, &a); d != nil {
			return nil, nil, d
		}
		return a, nil, nil
	}
	return nil, nil, &Drop{Reason: ReasonUnknownType, Detail: string(t)}
}

func decodeStruct(set *schemaSet, schema string, inst any, raw json.RawMessage, dst any) *Drop {
	if err := set.check(schema, inst); err != nil {
		return &Drop{Reason: ReasonMalformed, Detail: err.Error()}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Drop{Reason: ReasonMalformed, Detail: err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		return &Drop{Reason: ReasonMalformed, Detail: formatValidationError(err)}
	}
	return nil
}

// decodeItems validates each element of "items" on its own. It returns nil
// items when the action has no usable item left.
func decodeItems[T any](set *schemaSet, schema string, inst any) ([]T, []Drop) {
	if set.check("add_items.json", inst) != nil {
		return nil, nil
	}
	rawItems := inst.(map[string]any)["items"].([]any)

	var (
		items []T
		drops []Drop
	)
	for j, it := range rawItems {
		if err := set.check(schema, it); err != nil {
			drops = append(drops, Drop{Item: j, Reason: ReasonInvalidItem, Detail: err.Error()})
			continue
		}
		buf, err := json.Marshal(it)
		if err != nil {
			drops = append(drops, Drop{Item: j, Reason: ReasonInvalidItem, Detail: err.Error()})
			continue
		}
		var v T
		if err := json.Unmarshal(buf, &v); err != nil {
			drops = append(drops, Drop{Item: j, Reason: ReasonInvalidItem, Detail: err.Error()})
			continue
		}
		if err := validate.Struct(v); err != nil {
			drops = append(drops, Drop{Item: j, Reason: ReasonInvalidItem, Detail: formatValidationError(err)})
			continue
		}
		items = append(items, v)
	}
	return items, drops
}

// emptyOr explains why an add action produced no items.
func emptyOr(set *schemaSet, inst any) *Drop {
	if err := set.check("add_items.json", inst); err != nil {
		return &Drop{Reason: ReasonMalformed, Detail: err.Error()}
	}
	return &Drop{Reason: ReasonEmpty}
}

func unmarshalInstance(raw []byte, v *any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func formatValidationError(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		case "shapetype":
			parts = append(parts, fmt.Sprintf("%s %q is not a known shape", field, e.Value()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
