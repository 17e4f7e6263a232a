package canvas

import (
	"sync"

	"whiteboard/internal/domain"
)

// Patch describes one change to the shared document. Replace, when set, is a
// whole-list replacement applied before the targeted changes.
type Patch struct {
	Origin  string           `json:"origin,omitempty"`
	Replace *domain.Snapshot `json:"replace,omitempty"`
	Added   []domain.Element `json:"added,omitempty"`
	Updated []domain.Element `json:"updated,omitempty"`
	Removed []string         `json:"removed,omitempty"`
	Edges   []domain.Edge    `json:"edges,omitempty"`
}

// Empty reports whether the patch carries no change.
func (p Patch) Empty() bool {
	return p.Replace == nil && len(p.Added) == 0 && len(p.Updated) == 0 &&
		len(p.Removed) == 0 && len(p.Edges) == 0
}

// Collaborator is the synchronization service that owns the shared node/edge
// lists. It is the only component allowed to broadcast changes to other
// participants.
type Collaborator interface {
	Elements() []domain.Element
	Edges() []domain.Edge
	Submit(p Patch) error
	OnChange(fn func(Patch)) (unsubscribe func())
}

// ─────────────────────────────────────────────────────────────
// MemoryCollaborator — single-process collaborator
// ─────────────────────────────────────────────────────────────

// MemoryCollaborator keeps the lists in memory and notifies local listeners.
// It is used for tests, the standalone MCP server, and as the local replica
// behind the NATS bus.
type MemoryCollaborator struct {
	mu        sync.RWMutex
	elements  []domain.Element
	edges     []domain.Edge
	listeners map[int]func(Patch)
	nextSub   int
}

// NewMemoryCollaborator creates a collaborator holding the given elements.
func NewMemoryCollaborator(seed ...domain.Element) *MemoryCollaborator {
	m := &MemoryCollaborator{listeners: make(map[int]func(Patch))}
	for _, e := range seed {
		m.elements = append(m.elements, e.Clone())
	}
	return m
}

func (m *MemoryCollaborator) Elements() []domain.Element {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Element, len(m.elements))
	for i, e := range m.elements {
		out[i] = e.Clone()
	}
	return out
}

func (m *MemoryCollaborator) Edges() []domain.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Edge, len(m.edges))
	copy(out, m.edges)
	return out
}

// Submit applies p and notifies listeners. Updates naming elements that no
// longer exist are dropped. An added element whose id is already present is
// ignored, so the first writer of an id wins on every replica; listeners see
// the patch without it.
func (m *MemoryCollaborator) Submit(p Patch) error {
	if p.Empty() {
		return nil
	}
	m.mu.Lock()
	p = m.apply(p)
	fns := make([]func(Patch), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
	return nil
}

func (m *MemoryCollaborator) apply(p Patch) Patch {
	if p.Replace != nil {
		m.elements = m.elements[:0]
		for _, e := range p.Replace.Elements {
			m.elements = append(m.elements, e.Clone())
		}
		m.edges = append(m.edges[:0], p.Replace.Edges...)
	}

	if len(p.Removed) > 0 {
		gone := make(map[string]bool, len(p.Removed))
		for _, id := range p.Removed {
			gone[id] = true
		}
		kept := m.elements[:0]
		for _, e := range m.elements {
			if !gone[e.ID] {
				kept = append(kept, e)
			}
		}
		m.elements = kept
		keptEdges := m.edges[:0]
		for _, ed := range m.edges {
			if !gone[ed.ID] && !gone[ed.SourceID] && !gone[ed.TargetID] {
				keptEdges = append(keptEdges, ed)
			}
		}
		m.edges = keptEdges
	}

	var added []domain.Element
	for _, e := range p.Added {
		if m.indexOf(e.ID) >= 0 {
			continue
		}
		m.elements = append(m.elements, e.Clone())
		added = append(added, e)
	}
	p.Added = added
	for _, e := range p.Updated {
		if i := m.indexOf(e.ID); i >= 0 {
			m.elements[i] = e.Clone()
		}
	}

	var edges []domain.Edge
	for _, ed := range p.Edges {
		if m.indexOf(ed.SourceID) < 0 || m.indexOf(ed.TargetID) < 0 || m.hasEdge(ed.ID) {
			continue
		}
		m.edges = append(m.edges, ed)
		edges = append(edges, ed)
	}
	p.Edges = edges
	return p
}

func (m *MemoryCollaborator) indexOf(id string) int {
	for i, e := range m.elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryCollaborator) hasEdge(id string) bool {
	for _, ed := range m.edges {
		if ed.ID == id {
			return true
		}
	}
	return false
}

// OnChange registers fn to be called after every applied patch.
func (m *MemoryCollaborator) OnChange(fn func(Patch)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}
