package clock

import "testing"

func TestVectorObserveAndQueryScenarioC(t *testing.T) {
	v := NewVector()
	v.Observe(Local{ReplicaID: 2, Value: 5})
	v.Observe(Local{ReplicaID: 2, Value: 3})
	v.Observe(Local{ReplicaID: 4, Value: 1})

	if got := v.Get(2); got != 5 {
		t.Fatalf("Get(2) = %d, want 5", got)
	}
	if got := v.Get(4); got != 1 {
		t.Fatalf("Get(4) = %d, want 1", got)
	}
	if got := v.Get(0); got != 0 {
		t.Fatalf("Get(0) = %d, want 0", got)
	}
	if !v.Observed(Local{ReplicaID: 2, Value: 5}) {
		t.Fatal("Observed(2,5) = false, want true")
	}
	if v.Observed(Local{ReplicaID: 2, Value: 6}) {
		t.Fatal("Observed(2,6) = true, want false")
	}
}

func vectorOf(pairs ...Local) Vector {
	return CollectVector(pairs...)
}

func TestVectorJoinScenarioD(t *testing.T) {
	a := vectorOf(Local{0, 3}, Local{2, 7})
	b := vectorOf(Local{1, 4}, Local{2, 5})

	a.Join(b)
	want := vectorOf(Local{0, 3}, Local{1, 4}, Local{2, 7})
	if !a.Equal(want) {
		t.Fatalf("join = %+v, want %+v", a.Iter(), want.Iter())
	}
}

func TestVectorMeetScenarioE(t *testing.T) {
	a := vectorOf(Local{0, 3}, Local{2, 7})
	b := vectorOf(Local{0, 5}, Local{1, 4}, Local{2, 2})

	a.Meet(b)
	want := vectorOf(Local{0, 3}, Local{2, 2})
	if !a.Equal(want) {
		t.Fatalf("meet = %+v, want %+v", a.Iter(), want.Iter())
	}
}

func TestVectorObservedAllAndChangedSinceScenarioF(t *testing.T) {
	a := vectorOf(Local{0, 3}, Local{1, 2})
	b := vectorOf(Local{0, 3}, Local{1, 2}, Local{2, 1})

	if a.ObservedAll(b) {
		t.Fatal("A.ObservedAll(B) = true, want false")
	}
	if !b.ObservedAll(a) {
		t.Fatal("B.ObservedAll(A) = false, want true")
	}
	if !b.ChangedSince(a) {
		t.Fatal("B.ChangedSince(A) = false, want true")
	}
	if a.ChangedSince(b) {
		t.Fatal("A.ChangedSince(B) = true, want false")
	}
}

func TestVectorIdempotence(t *testing.T) {
	v := NewVector()
	stamp := Local{ReplicaID: 3, Value: 9}
	v.Observe(stamp)
	once := v.Clone()
	v.Observe(stamp)
	if !v.Equal(once) {
		t.Fatalf("observing twice changed the vector: %+v vs %+v", v.Iter(), once.Iter())
	}
}

func TestVectorObserveMonotonic(t *testing.T) {
	v := NewVector()
	v.Observe(Local{ReplicaID: 1, Value: 5})
	if got := v.Get(1); got < 5 {
		t.Fatalf("Get(1) = %d, want >= 5", got)
	}
	v.Observe(Local{ReplicaID: 1, Value: 3})
	if got := v.Get(1); got != 5 {
		t.Fatalf("Get(1) = %d after observing a lower value, want 5", got)
	}
}

func TestVectorJoinLatticeLaws(t *testing.T) {
	a := vectorOf(Local{0, 3}, Local{1, 1})
	b := vectorOf(Local{1, 5}, Local{2, 2})
	c := vectorOf(Local{0, 1}, Local{3, 9})

	ab := a.Clone()
	ab.Join(b)
	ba := b.Clone()
	ba.Join(a)
	if !ab.Equal(ba) {
		t.Fatal("join is not commutative")
	}

	aa := a.Clone()
	aa.Join(a)
	if !aa.Equal(a) {
		t.Fatal("join is not idempotent")
	}

	left := a.Clone()
	left.Join(b)
	left.Join(c)

	bc := b.Clone()
	bc.Join(c)
	right := a.Clone()
	right.Join(bc)

	if !left.Equal(right) {
		t.Fatal("join is not associative")
	}

	if a.ObservedAll(b) != ab.Equal(a) {
		t.Fatal("ObservedAll(B) does not agree with A.Join(B) == A")
	}
}

func TestVectorMeetDual(t *testing.T) {
	a := vectorOf(Local{0, 3}, Local{2, 7})
	b := vectorOf(Local{0, 5}, Local{1, 4}, Local{2, 2})

	ab := a.Clone()
	ab.Meet(b)
	ba := b.Clone()
	ba.Meet(a)
	if !ab.Equal(ba) {
		t.Fatal("meet is not commutative")
	}

	aa := a.Clone()
	aa.Meet(a)
	if !aa.Equal(a) {
		t.Fatal("meet is not idempotent")
	}

	if !a.ObservedAll(ab) || !b.ObservedAll(ab) {
		t.Fatal("meet is not observed-all by both operands")
	}
}

func TestVectorCanonicalization(t *testing.T) {
	v := NewVector()
	v.Observe(Local{ReplicaID: 5, Value: 1})
	v.Observe(Local{ReplicaID: 2, Value: 1})

	other := NewVector()
	other.Join(v)
	other.Meet(v)

	// After a round trip through Join then Meet with itself, the trailing
	// shape should still have no trailing zero entries.
	entries := other.MarshalEntries()
	for i, e := range entries {
		if e.Value == 0 {
			t.Fatalf("entry %d has zero value: %+v", i, e)
		}
	}

	if !v.Equal(other) {
		t.Fatalf("v = %+v, other = %+v, want equal", v.Iter(), other.Iter())
	}
}

func TestVectorRoundTrip(t *testing.T) {
	v := vectorOf(Local{0, 3}, Local{2, 7}, Local{5, 1})
	entries := v.MarshalEntries()
	got := DecodeVector(entries)
	if !v.Equal(got) {
		t.Fatalf("round trip = %+v, want %+v", got.Iter(), v.Iter())
	}
}

func TestVectorDecodeDropsZeroEntries(t *testing.T) {
	got := DecodeVector([]VectorEntry{
		{ReplicaID: 1, Value: 0},
		{ReplicaID: 2, Value: 0},
	})
	if !got.Equal(NewVector()) {
		t.Fatalf("decoding all-zero entries = %+v, want empty", got.Iter())
	}
}

func TestVectorIterOrderAndRestartability(t *testing.T) {
	v := vectorOf(Local{5, 1}, Local{0, 9}, Local{2, 4})
	first := v.Iter()
	second := v.Iter()

	if len(first) != 3 {
		t.Fatalf("len(Iter()) = %d, want 3", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].ReplicaID >= first[i].ReplicaID {
			t.Fatalf("Iter() not ascending at %d: %+v", i, first)
		}
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Iter() not restartable: %+v vs %+v", first, second)
		}
	}
}
