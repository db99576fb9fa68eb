package clock

import "encoding/json"

// VectorEntry is the on-wire shape of one version-vector component, per
// spec.md §6: a repeated (replica_id, value) pair. Only positive entries
// are ever emitted; decoding is tolerant of any input order, duplicate
// replica ids (the greatest value wins), and zero-value entries
// (silently dropped).
type VectorEntry struct {
	ReplicaID ReplicaID `json:"replica_id"`
	Value     Seq       `json:"value"`
}

// MarshalEntries emits one VectorEntry per positive component, ordered
// by ReplicaID ascending (matching Iter's order, though the wire format
// itself does not require any particular order).
func (v Vector) MarshalEntries() []VectorEntry {
	locals := v.Iter()
	out := make([]VectorEntry, len(locals))
	for i, l := range locals {
		out[i] = VectorEntry{ReplicaID: l.ReplicaID, Value: l.Value}
	}
	return out
}

// DecodeVector reconstructs a canonical (trimmed) vector from a batch of
// wire entries, in any order. A (replica_id, value) pair with value == 0
// is silently dropped, per spec.md §7 ("Malformed wire data"); an input
// that decodes to all-zeros canonicalizes to the empty vector.
func DecodeVector(entries []VectorEntry) Vector {
	v := NewVector()
	for _, e := range entries {
		v.Observe(Local{ReplicaID: e.ReplicaID, Value: e.Value})
	}
	return v
}

// MarshalJSON encodes the vector as its wire entry list.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.MarshalEntries())
}

// UnmarshalJSON decodes a vector from its wire entry list, canonicalizing
// as DecodeVector does.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var entries []VectorEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*v = DecodeVector(entries)
	return nil
}

// wireStamp is the shared (replica_id, value) shape spec.md §6 describes
// for both Local and Lamport stamps; the distinction between the two is
// drawn from the Go field type, not an on-wire discriminator.
type wireStamp struct {
	ReplicaID ReplicaID `json:"replica_id"`
	Value     Seq       `json:"value"`
}

// MarshalJSON encodes l as {"replica_id": ..., "value": ...}.
func (l Local) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireStamp{ReplicaID: l.ReplicaID, Value: l.Value})
}

// UnmarshalJSON decodes l from {"replica_id": ..., "value": ...}.
func (l *Local) UnmarshalJSON(data []byte) error {
	var w wireStamp
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	l.ReplicaID, l.Value = w.ReplicaID, w.Value
	return nil
}

// MarshalJSON encodes l as {"replica_id": ..., "value": ...}.
func (l Lamport) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireStamp{ReplicaID: l.ReplicaID, Value: l.Value})
}

// UnmarshalJSON decodes l from {"replica_id": ..., "value": ...}.
func (l *Lamport) UnmarshalJSON(data []byte) error {
	var w wireStamp
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	l.ReplicaID, l.Value = w.ReplicaID, w.Value
	return nil
}
