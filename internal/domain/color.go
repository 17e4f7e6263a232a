package domain

import "strings"

type ColorToken string

const (
	ColorYellow ColorToken = "yellow"
	ColorPink   ColorToken = "pink"
	ColorBlue   ColorToken = "blue"
	ColorGreen  ColorToken = "green"
	ColorPurple ColorToken = "purple"
	ColorOrange ColorToken = "orange"
)

// Palette is the closed set of semantic note colors, in menu order.
// The first entry is the default for new sticky notes.
var Palette = []ColorToken{ColorYellow, ColorPink, ColorBlue, ColorGreen, ColorPurple, ColorOrange}

var colorHex = map[ColorToken]string{
	ColorYellow: "#fef08a", // ideas
	ColorPink:   "#fbcfe8", // highlights
	ColorBlue:   "#bfdbfe", // information
	ColorGreen:  "#bbf7d0", // positive / agreements
	ColorPurple: "#e9d5ff", // creative thoughts
	ColorOrange: "#fed7aa", // action items
}

// DefaultStickyColor is the hex value of the first semantic color.
var DefaultStickyColor = ColorYellow.Hex()

// DefaultShapeColor is used when an AI-issued shape omits its color.
const DefaultShapeColor = "#3b82f6"

// Hex returns the fixed hex value of the token, or "" for unknown tokens.
func (c ColorToken) Hex() string {
	return colorHex[c]
}

// LookupColor maps a hex string back to its semantic token.
// Free-form colors are not "known" and return false.
func LookupColor(hex string) (ColorToken, bool) {
	h := strings.ToLower(strings.TrimSpace(hex))
	for tok, v := range colorHex {
		if v == h {
			return tok, true
		}
	}
	return "", false
}

// ShapePaletteColor is the color a shape gets when picked from the shapes panel.
func ShapePaletteColor(s ShapeType) string {
	switch s {
	case ShapeCircle:
		return "#8b5cf6"
	case ShapeDiamond:
		return "#ec4899"
	case ShapeTriangle:
		return "#10b981"
	case ShapeHexagon:
		return "#f59e0b"
	case ShapeStar:
		return "#ef4444"
	}
	return DefaultShapeColor
}
