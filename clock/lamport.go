package clock

import "cmp"

// Lamport is also the pair (replica_id, value), but with Lamport update
// and ordering semantics rather than Local's: Observe always advances,
// regardless of the foreign stamp's replica, and the total order breaks
// ties on ReplicaID so that every replica derives the same order for the
// same multiset of stamps without coordination.
type Lamport struct {
	ReplicaID ReplicaID
	Value     Seq
}

// NewLamport returns a fresh clock for replica_id, seeded at value 1.
func NewLamport(replicaID ReplicaID) Lamport {
	return Lamport{ReplicaID: replicaID, Value: 1}
}

// Tick returns the current state and advances the stored value by one.
func (l *Lamport) Tick() Lamport {
	stamp := *l
	l.Value = addSeq(l.Value, 1)
	return stamp
}

// Observe sets the stored value to max(self.Value, t.Value) + 1,
// unconditionally — this is the Lamport happens-before property. Unlike
// Local.Observe, this fires for stamps from any replica.
func (l *Lamport) Observe(t Lamport) {
	l.Value = addSeq(max(l.Value, t.Value), 1)
}

// Less implements the documented total order: compare Value ascending,
// then break ties by ReplicaID ascending.
func (l Lamport) Less(other Lamport) bool {
	return l.Compare(other) < 0
}

// Compare returns -1, 0 or 1 comparing l and other by the Lamport total
// order (Value, then ReplicaID).
func (l Lamport) Compare(other Lamport) int {
	if c := cmp.Compare(l.Value, other.Value); c != 0 {
		return c
	}
	return cmp.Compare(l.ReplicaID, other.ReplicaID)
}

// LamportSlice adapts a []Lamport to sort.Interface using the documented
// total order, for callers that need to totally order a batch of
// concurrent stamps in one sort.Sort call.
type LamportSlice []Lamport

func (s LamportSlice) Len() int           { return len(s) }
func (s LamportSlice) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s LamportSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
