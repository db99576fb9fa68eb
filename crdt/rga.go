// Package crdt implements the Replicated Growable Array (RGA) sequence
// CRDT used for collaborative text editing, built directly on the
// clock package: every fragment carries a clock.Lamport identity, and
// causal readiness is checked against a clock.Vector before an incoming
// fragment is applied.
//
// This is a consumer of the logical-clock core, not part of it: it
// exists so the clock package's operations have a real caller, matching
// spec.md §2's description of a sequence CRDT using LamportClock stamps
// for "fragment insertion ordering."
package crdt

import (
	"errors"
	"sort"

	"github.com/Polqt/crdtcollab/clock"
)

// ErrUnknownNode is returned by Delete and by Apply (for a delete
// operation) when the referenced node is not present in the RGA.
var ErrUnknownNode = errors.New("crdt: unknown node")

// ErrOutOfOrder is returned by Apply when an operation's causal
// dependency (an insert's InsertAfter node, or a delete's target node)
// has not yet been observed; the caller should buffer the
// operation and retry once its version vector catches up.
var ErrOutOfOrder = errors.New("crdt: operation applied before its causal dependency")

// zeroID is the sentinel "insert at beginning" identity: the RGA never
// mints a Lamport stamp with Value == 0, so it is safe to use as a
// not-a-node marker.
var zeroID = clock.Lamport{}

// RGANode is one character in the RGA's linked array.
type RGANode struct {
	ID          clock.Lamport // unique identity of this node
	InsertAfter clock.Lamport // zeroID means "insert at the beginning"
	Char        rune
	Deleted     bool // tombstone
}

// RGA is a Replicated Growable Array for collaborative text editing.
// Not safe for concurrent use by multiple goroutines; callers (the
// session package) serialize access per document.
type RGA struct {
	nodes []RGANode               // sorted by position (invariant)
	index map[clock.Lamport]int   // ID -> index in nodes
	clk   clock.Lamport           // local Lamport clock minting new IDs
}

// NewRGA creates an empty RGA whose local inserts mint Lamport stamps
// for replicaID.
func NewRGA(replicaID clock.ReplicaID) *RGA {
	return &RGA{
		index: make(map[clock.Lamport]int),
		clk:   clock.NewLamport(replicaID),
	}
}

// Clock exposes the RGA's Lamport clock so the owning session can
// observe remote stamps into it (spec.md §2: "a replica produces...
// LamportClock stamps when the CRDT needs a totally ordered identifier").
func (r *RGA) Clock() *clock.Lamport { return &r.clk }

// Insert mints a fresh Lamport stamp for a locally-originated character
// and inserts it after afterID (zero value for "at the beginning"). On
// concurrent inserts at the same position, ties are broken by the
// Lamport total order (spec.md §4.2): a node with a greater Lamport
// stamp sorts earlier among siblings inserted after the same node, so
// that every replica converges on the same ordering without
// coordination.
func (r *RGA) Insert(afterID clock.Lamport, char rune) RGANode {
	id := r.clk.Tick()
	node := RGANode{ID: id, InsertAfter: afterID, Char: char}
	r.insertNode(node)
	return node
}

// Delete marks id as deleted (tombstone). Returns ErrUnknownNode if id
// is not present.
func (r *RGA) Delete(id clock.Lamport) error {
	idx, ok := r.index[id]
	if !ok {
		return ErrUnknownNode
	}
	r.nodes[idx].Deleted = true
	return nil
}

// Text walks the RGA in order, skipping tombstones, and returns the
// current document text.
func (r *RGA) Text() string {
	out := make([]rune, 0, len(r.nodes))
	for _, n := range r.nodes {
		if !n.Deleted {
			out = append(out, n.Char)
		}
	}
	return string(out)
}

// Apply applies a remote operation (insert or delete) once its causal
// dependency is satisfied. vv is the document's version vector; the
// dependency is op.InsertAfter for an insert (skipped when it is the
// zero/"beginning" sentinel) and op.ID for a delete. Returns
// ErrOutOfOrder if the dependency is not yet observed, in which case
// the caller should buffer op and retry after the next Observe.
func (r *RGA) Apply(op RGANode, vv clock.Vector) error {
	if op.Deleted {
		if !vv.Observed(clock.Local{ReplicaID: op.ID.ReplicaID, Value: op.ID.Value}) {
			return ErrOutOfOrder
		}
		return r.Delete(op.ID)
	}

	if op.InsertAfter != zeroID {
		dep := clock.Local{ReplicaID: op.InsertAfter.ReplicaID, Value: op.InsertAfter.Value}
		if !vv.Observed(dep) {
			return ErrOutOfOrder
		}
	}

	r.clk.Observe(op.ID)
	if _, exists := r.index[op.ID]; exists {
		return nil // already applied; idempotent
	}
	r.insertNode(op)
	return nil
}

// insertNode places node immediately after its InsertAfter node, but
// before any existing sibling whose Lamport ID is less than node's (so
// that among concurrent inserts at the same position, the greatest
// Lamport stamp ends up first — a fixed, replica-independent rule).
func (r *RGA) insertNode(node RGANode) {
	pos := 0
	if node.InsertAfter != zeroID {
		afterIdx, ok := r.index[node.InsertAfter]
		if !ok {
			// Dependency missing locally; append defensively rather than
			// panic. Callers are expected to have checked Apply's causal
			// gate before reaching here.
			afterIdx = len(r.nodes) - 1
		}
		pos = afterIdx + 1
	}

	// Skip past any siblings of this same insertion point that have a
	// greater Lamport id (they were concurrently inserted and win the
	// tie-break).
	for pos < len(r.nodes) && r.nodes[pos].InsertAfter == node.InsertAfter && node.ID.Less(r.nodes[pos].ID) {
		pos++
	}

	r.nodes = append(r.nodes, RGANode{})
	copy(r.nodes[pos+1:], r.nodes[pos:])
	r.nodes[pos] = node

	for id, idx := range r.index {
		if idx >= pos {
			r.index[id] = idx + 1
		}
	}
	r.index[node.ID] = pos
}

// SortConcurrent orders a batch of freshly-received nodes that share the
// same InsertAfter target by the Lamport total order, for callers that
// want to apply a batch in a single deterministic pass rather than one
// Apply call at a time.
func SortConcurrent(nodes []RGANode) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[j].ID.Less(nodes[i].ID)
	})
}
