// Package syncbus shares a canvas document between processes over NATS.
//
// Every participant keeps a full local replica. Committed patches are
// published on the document's patch subject and applied by the other
// participants; a joining participant asks the others for the current lists
// and applies the first answer as a whole-list replacement.
package syncbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"whiteboard/internal/canvas"
	"whiteboard/internal/domain"
	"whiteboard/internal/idgen"
)

const (
	stateTimeout = 2 * time.Second
	scopeLen     = 6
)

// PatchSubject carries committed patches of a document.
func PatchSubject(documentID string) string { return "whiteboard.doc." + documentID + ".patch" }

// StateSubject answers full-state requests of a document.
func StateSubject(documentID string) string { return "whiteboard.doc." + documentID + ".state" }

// Collaborator is a canvas.Collaborator backed by a local replica and a NATS
// connection.
type Collaborator struct {
	local    *canvas.MemoryCollaborator
	conn     *nats.Conn
	ownsConn bool
	docID    string
	origin   string
	subs     []*nats.Subscription
	log      *zap.Logger
}

var (
	_ canvas.Collaborator = (*Collaborator)(nil)
	_ canvas.IDScoper     = (*Collaborator)(nil)
)

// Connect dials url and joins documentID. seed is used when no other
// participant answers the state request.
func Connect(url, documentID string, seed []domain.Element, log *zap.Logger) (*Collaborator, error) {
	nc, err := nats.Connect(url,
		nats.Name("whiteboard"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	c, err := Join(nc, documentID, canvas.NewMemoryCollaborator(seed...), log)
	if err != nil {
		nc.Close()
		return nil, err
	}
	c.ownsConn = true
	return c, nil
}

// Join attaches local to documentID on an existing connection.
func Join(nc *nats.Conn, documentID string, local *canvas.MemoryCollaborator, log *zap.Logger) (*Collaborator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	origin, err := idgen.New(idgen.PeerPrefix)
	if err != nil {
		return nil, err
	}
	c := &Collaborator{
		local:  local,
		conn:   nc,
		docID:  documentID,
		origin: origin,
		log:    log.With(zap.String("component", "syncbus"), zap.String("origin", origin)),
	}

	// Ask before answering, so this participant never receives its own state.
	if err := c.fetchState(); err != nil {
		return nil, err
	}

	patchSub, err := nc.Subscribe(PatchSubject(documentID), c.onPatch)
	if err != nil {
		return nil, fmt.Errorf("subscribing to patches: %w", err)
	}
	stateSub, err := nc.Subscribe(StateSubject(documentID), c.onStateRequest)
	if err != nil {
		_ = patchSub.Unsubscribe()
		return nil, fmt.Errorf("subscribing to state requests: %w", err)
	}
	c.subs = []*nats.Subscription{patchSub, stateSub}

	if err := nc.Flush(); err != nil {
		c.Close()
		return nil, fmt.Errorf("flushing subscriptions: %w", err)
	}
	c.log.Info("joined document", zap.String("document", documentID))
	return c, nil
}

// Origin identifies this participant in published patches.
func (c *Collaborator) Origin() string { return c.origin }

// IDScope is a short tag unique to this participant. Documents built on the
// collaborator mint ids like "node-<scope>-100".
func (c *Collaborator) IDScope() string {
	scope := strings.TrimPrefix(c.origin, idgen.PeerPrefix)
	if len(scope) > scopeLen {
		scope = scope[:scopeLen]
	}
	return scope
}

func (c *Collaborator) Elements() []domain.Element { return c.local.Elements() }
func (c *Collaborator) Edges() []domain.Edge       { return c.local.Edges() }

func (c *Collaborator) OnChange(fn func(canvas.Patch)) func() {
	return c.local.OnChange(fn)
}

// Submit applies p locally, then broadcasts it.
func (c *Collaborator) Submit(p canvas.Patch) error {
	p.Origin = c.origin
	if err := c.local.Submit(p); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling patch: %w", err)
	}
	if err := c.conn.Publish(PatchSubject(c.docID), data); err != nil {
		return fmt.Errorf("publishing patch: %w", err)
	}
	return nil
}

func (c *Collaborator) onPatch(msg *nats.Msg) {
	var p canvas.Patch
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		c.log.Warn("dropping malformed patch", zap.Error(err))
		return
	}
	if p.Origin == c.origin {
		return
	}
	if err := c.local.Submit(p); err != nil {
		c.log.Warn("applying remote patch failed", zap.String("from", p.Origin), zap.Error(err))
	}
}

func (c *Collaborator) onStateRequest(msg *nats.Msg) {
	snap := domain.Snapshot{Elements: c.local.Elements(), Edges: c.local.Edges()}
	data, err := json.Marshal(canvas.Patch{Origin: c.origin, Replace: &snap})
	if err != nil {
		c.log.Warn("encoding state failed", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		c.log.Warn("answering state request failed", zap.Error(err))
	}
}

func (c *Collaborator) fetchState() error {
	msg, err := c.conn.Request(StateSubject(c.docID), nil, stateTimeout)
	switch {
	case errors.Is(err, nats.ErrNoResponders), errors.Is(err, nats.ErrTimeout):
		c.log.Debug("no participant answered, keeping local state")
		return nil
	case err != nil:
		return fmt.Errorf("requesting state: %w", err)
	}

	var p canvas.Patch
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}
	if p.Replace == nil {
		return nil
	}
	return c.local.Submit(canvas.Patch{Origin: p.Origin, Replace: p.Replace})
}

// Close leaves the document. The connection is closed only when Connect
// opened it.
func (c *Collaborator) Close() {
	for _, s := range c.subs {
		_ = s.Unsubscribe()
	}
	c.subs = nil
	if c.ownsConn {
		c.conn.Close()
	}
}
