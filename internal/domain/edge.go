package domain

type Anchor string

const (
	AnchorTop    Anchor = "top"
	AnchorRight  Anchor = "right"
	AnchorBottom Anchor = "bottom"
	AnchorLeft   Anchor = "left"
)

func (a Anchor) Valid() bool {
	switch a {
	case AnchorTop, AnchorRight, AnchorBottom, AnchorLeft:
		return true
	}
	return false
}

// Edge is a directed connector between two elements' anchor points.
// Any anchor can be used as inbound or outbound.
type Edge struct {
	ID           string `json:"id"`
	SourceID     string `json:"source"`
	TargetID     string `json:"target"`
	SourceAnchor Anchor `json:"sourceHandle"`
	TargetAnchor Anchor `json:"targetHandle"`
}
