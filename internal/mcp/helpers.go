package mcpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"whiteboard/internal/domain"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// getString returns a trimmed string argument or fallback.
func getString(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

// getPoint reads an optional x/y pair. Both coordinates must be present.
func getPoint(args map[string]any) (domain.Point, bool) {
	x, okX := args["x"].(float64)
	y, okY := args["y"].(float64)
	if !okX || !okY {
		return domain.Point{}, false
	}
	return domain.Point{X: x, Y: y}, true
}

// splitIDs accepts either a JSON array or a comma-separated list.
func splitIDs(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(t, ",")
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// decodeItems accepts items either as a JSON string or as an already
// decoded array argument.
func decodeItems(v any, target any) error {
	switch t := v.(type) {
	case string:
		return parseJSON(t, target)
	case nil:
		return fmt.Errorf("items is required")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, target)
	}
}
