package domain

// Snapshot is the complete state of a canvas at one point in time.
// It is what the AI orchestrator summarizes and what MCP resources return.
type Snapshot struct {
	Elements []Element `json:"elements"`
	Edges    []Edge    `json:"edges"`
}
