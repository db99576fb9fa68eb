package clock

// Vector is a sparse mapping from ReplicaID to Seq, representing the
// greatest value observed for each replica. Missing entries are
// semantically equal to Seq(0). The concrete representation is a dense
// array trimmed to the highest non-zero entry, per spec.md §3/§9: a
// session's replica ids are dense small integers, and every merge
// touches every component, so a trimmed dense array beats a hash map on
// both Get and Join/Meet.
type Vector struct {
	entries []Seq
}

// NewVector returns an empty version vector (every component zero).
func NewVector() Vector {
	return Vector{}
}

// CollectVector builds a vector from a batch of stamps in one call.
// Grounded in the original Zed `clock` crate's
// `impl FromIterator<Local> for Global`.
func CollectVector(stamps ...Local) Vector {
	v := NewVector()
	for _, s := range stamps {
		v.Observe(s)
	}
	return v
}

// Get returns the stored value for r, or 0 if absent.
func (v Vector) Get(r ReplicaID) Seq {
	if int(r) >= len(v.entries) {
		return 0
	}
	return v.entries[r]
}

// Observe absorbs a Local stamp: if t.Value > 0, raises the component for
// t.ReplicaID to max(existing, t.Value). Stamps with Value == 0 are
// sentinels and ignored. The representation grows to include
// t.ReplicaID if it was previously unseen.
func (v *Vector) Observe(t Local) {
	if t.Value == 0 {
		return
	}
	v.ensureLen(int(t.ReplicaID) + 1)
	if t.Value > v.entries[t.ReplicaID] {
		v.entries[t.ReplicaID] = t.Value
	}
}

// Observed reports whether this vector has already recorded the
// specific event t ("have I already seen this specific event?").
func (v Vector) Observed(t Local) bool {
	return v.Get(t.ReplicaID) >= t.Value
}

// ObservedAny reports whether there exists some replica r with
// other.Get(r) > 0 and v.Get(r) >= other.Get(r): "I share at least one
// observed event with the other vector." Iteration stops as soon as
// either vector runs out of entries, per spec.md §4.3's termination
// rule — this is a one-sided witness search over the shared prefix, not
// a symmetric intersection test (see SPEC_FULL.md open question 2: the
// spec itself flags this asymmetry and callers should confirm it
// matches their use case before relying on it).
func (v Vector) ObservedAny(other Vector) bool {
	n := min(len(v.entries), len(other.entries))
	for i := 0; i < n; i++ {
		if other.entries[i] > 0 && v.entries[i] >= other.entries[i] {
			return true
		}
	}
	return false
}

// ObservedAll reports whether v dominates other: for every replica r,
// v.Get(r) >= other.Get(r). This is the causal-past check used to
// decide whether an incoming operation is safe to apply.
func (v Vector) ObservedAll(other Vector) bool {
	for i, val := range other.entries {
		if i >= len(v.entries) {
			if val > 0 {
				return false
			}
			continue
		}
		if v.entries[i] < val {
			return false
		}
	}
	return true
}

// Join raises every component pointwise to its maximum across v and
// other: the lattice join, "the union of known events." Commutative,
// associative, idempotent.
func (v *Vector) Join(other Vector) {
	v.ensureLen(len(other.entries))
	for i, val := range other.entries {
		if val > v.entries[i] {
			v.entries[i] = val
		}
	}
}

// Meet lowers every component pointwise to its minimum across v and
// other: zero is absorbing, so a component that is zero (absent) on
// either side is zero in the result, regardless of the other side's
// value; only when both sides are positive is the ordinary minimum
// taken. The result is re-trimmed afterward. This is the lattice meet:
// "the events known to both."
func (v *Vector) Meet(other Vector) {
	v.ensureLen(len(other.entries))
	newLen := 0
	for i := range v.entries {
		var right Seq
		if i < len(other.entries) {
			right = other.entries[i]
		}
		left := v.entries[i]
		switch {
		case left == 0 || right == 0:
			v.entries[i] = 0
		default:
			v.entries[i] = min(left, right)
		}
		if v.entries[i] != 0 {
			newLen = i + 1
		}
	}
	v.entries = v.entries[:newLen]
}

// ChangedSince reports whether v has strictly more knowledge than other
// in some component, without allocating a diff.
func (v Vector) ChangedSince(other Vector) bool {
	if len(v.entries) > len(other.entries) {
		for i := len(other.entries); i < len(v.entries); i++ {
			if v.entries[i] > 0 {
				return true
			}
		}
	}
	n := min(len(v.entries), len(other.entries))
	for i := 0; i < n; i++ {
		if v.entries[i] > other.entries[i] {
			return true
		}
	}
	return false
}

// Iter returns every positive entry as a Local, ordered by ReplicaID
// ascending. The returned slice is a fresh snapshot: iterating twice
// yields identical, independent sequences.
func (v Vector) Iter() []Local {
	out := make([]Local, 0, len(v.entries))
	for i, val := range v.entries {
		if val > 0 {
			out = append(out, Local{ReplicaID: ReplicaID(i), Value: val})
		}
	}
	return out
}

// Equal reports whether v and other agree on every Get, i.e. structural
// equality after both are canonicalized (trimmed). Two trimmed vectors
// that agree on every component are guaranteed to have identical
// entries slices, so this is a straightforward slice comparison.
func (v Vector) Equal(other Vector) bool {
	if len(v.entries) != len(other.entries) {
		return false
	}
	for i, val := range v.entries {
		if val != other.entries[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	if v.entries == nil {
		return Vector{}
	}
	out := make([]Seq, len(v.entries))
	copy(out, v.entries)
	return Vector{entries: out}
}

func (v *Vector) ensureLen(n int) {
	if n <= len(v.entries) {
		return
	}
	grown := make([]Seq, n)
	copy(grown, v.entries)
	v.entries = grown
}
