package canvas

import "whiteboard/internal/domain"

// FirstNodeID is the first counter value handed out for new elements.
// Seed content uses node-1 through node-3.
const FirstNodeID = 100

// SeedElements returns the starter content of a fresh board.
func SeedElements() []domain.Element {
	return []domain.Element{
		{
			ID:       "node-1",
			Kind:     domain.ElementKindResizable,
			Position: domain.Point{X: 250, Y: 50},
			Size:     domain.Size{Width: 300, Height: 80},
			Data:     domain.ElementData{Label: "Welcome to Collaborative Whiteboard!"},
			Style: map[string]string{
				"border":          "2px solid #3b82f6",
				"borderRadius":    "8px",
				"backgroundColor": "white",
			},
		},
		{
			ID:       "node-2",
			Kind:     domain.ElementKindShape,
			Position: domain.Point{X: 100, Y: 200},
			Size:     domain.Size{Width: 120, Height: 120},
			Data:     domain.ElementData{ShapeType: domain.ShapeCircle, Color: "#8b5cf6", Label: "Drag me!"},
		},
		{
			ID:       "node-3",
			Kind:     domain.ElementKindShape,
			Position: domain.Point{X: 400, Y: 200},
			Size:     domain.Size{Width: 140, Height: 140},
			Data:     domain.ElementData{ShapeType: domain.ShapeHexagon, Color: "#f59e0b", Label: "Resizable"},
		},
	}
}
