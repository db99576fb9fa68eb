// Package clock implements the logical clocks and version vectors that
// stamp every causally meaningful event in a collaborative editing
// session: per-replica local clocks, a session-wide Lamport clock, and
// the version vectors used to test causality between replicas.
package clock

import "cmp"

// ReplicaID uniquely identifies a participating replica within a
// session. Id 0 is reserved for the session-coordinator ("host") replica.
type ReplicaID uint16

// Seq is a per-replica event counter. Zero means "no event yet observed
// from this replica."
type Seq uint32

// maxSeq is the saturation ceiling for Seq arithmetic. The spec leaves
// Seq overflow out of scope; this implementation saturates rather than
// wrapping or panicking (see DESIGN.md open question 1).
const maxSeq = ^Seq(0)

func addSeq(v Seq, delta Seq) Seq {
	if v > maxSeq-delta {
		return maxSeq
	}
	return v + delta
}

// Local is the pair (replica_id, value): "the value-th event originated
// on replica_id." A Local with Value == 0 is a sentinel meaning "no
// event."
type Local struct {
	ReplicaID ReplicaID
	Value     Seq
}

// LocalMin and LocalMax are sentinels for use as container-key bounds
// (e.g. the keys of a fictitious "before anything"/"after everything"
// entry). They carry no causal meaning.
var (
	LocalMin = Local{ReplicaID: 0, Value: 0}
	LocalMax = Local{ReplicaID: ^ReplicaID(0), Value: maxSeq}
)

// NewLocal returns a fresh clock for replica_id, seeded at value 1 so
// that the first Tick produces a non-sentinel stamp.
func NewLocal(replicaID ReplicaID) Local {
	return Local{ReplicaID: replicaID, Value: 1}
}

// Tick returns the current state and advances the stored value by one.
// The returned stamp uniquely identifies the event about to be
// performed; subsequent ticks return strictly greater stamps.
func (l *Local) Tick() Local {
	stamp := *l
	l.Value = addSeq(l.Value, 1)
	return stamp
}

// Observe absorbs a foreign stamp. If t originated on this same replica
// (the echo-from-a-peer case described in spec.md §4.1), the clock is
// advanced strictly past t.Value; stamps from other replicas are a
// no-op, since a Local clock only orders events within its own replica.
func (l *Local) Observe(t Local) {
	if t.ReplicaID == l.ReplicaID {
		l.Value = max(l.Value, addSeq(t.Value, 1))
	}
}

// Combine returns the pointwise-greater of l and other under the
// container-key order (ReplicaID, then Value) — not the causal order.
// Grounded in the original Zed `clock` crate's `impl Add for Local`: it
// can track "the highest stamp minted for any replica" as a single
// scalar, for container-key/debugging purposes only.
func (l Local) Combine(other Local) Local {
	if l.Less(other) {
		return other
	}
	return l
}

// CombineAssign assigns l to the pointwise-greater of l and other, by
// the same container-key order as Combine.
func (l *Local) CombineAssign(other Local) {
	if l.Less(other) {
		*l = other
	}
}

// Less implements the container-key total order: primarily by
// ReplicaID, then by Value. This order exists purely so Local can be
// used as a map/slice key; it is not a causal order.
func (l Local) Less(other Local) bool {
	return l.Compare(other) < 0
}

// Compare returns -1, 0 or 1 comparing l and other by the container-key
// order (ReplicaID, then Value).
func (l Local) Compare(other Local) int {
	if c := cmp.Compare(l.ReplicaID, other.ReplicaID); c != 0 {
		return c
	}
	return cmp.Compare(l.Value, other.Value)
}
