package clock

import "testing"

func TestLocalFreshClockScenarioA(t *testing.T) {
	c := NewLocal(3)

	first := c.Tick()
	if first != (Local{ReplicaID: 3, Value: 1}) {
		t.Fatalf("first tick = %+v, want {3 1}", first)
	}

	second := c.Tick()
	if second != (Local{ReplicaID: 3, Value: 2}) {
		t.Fatalf("second tick = %+v, want {3 2}", second)
	}

	if c.Value != 3 {
		t.Fatalf("c.Value = %d, want 3", c.Value)
	}
}

func TestLocalTickMonotonicity(t *testing.T) {
	c := NewLocal(1)
	prev := c.Tick()
	for i := 0; i < 50; i++ {
		next := c.Tick()
		if !prev.Less(next) {
			t.Fatalf("tick %d: %+v is not less than %+v", i, prev, next)
		}
		prev = next
	}
	if c.Value != prev.Value+1 {
		t.Fatalf("c.Value = %d, want %d", c.Value, prev.Value+1)
	}
}

func TestLocalSelfObservationIsNoop(t *testing.T) {
	c := NewLocal(1)
	c.Value = 7

	other := Local{ReplicaID: 2, Value: 100}
	c.Observe(other)
	if c.Value != 7 {
		t.Fatalf("observing a foreign replica changed Value to %d, want 7", c.Value)
	}
}

func TestLocalEchoAbsorption(t *testing.T) {
	withObserve := NewLocal(1)
	stamp := withObserve.Tick()
	withObserve.Observe(stamp)

	withoutObserve := NewLocal(1)
	withoutObserve.Tick()

	if withObserve.Value != withoutObserve.Value {
		t.Fatalf("observing own prior stamp changed Value: got %d, want %d",
			withObserve.Value, withoutObserve.Value)
	}
}

func TestLocalCombineIsContainerKeyOrder(t *testing.T) {
	a := Local{ReplicaID: 1, Value: 10}
	b := Local{ReplicaID: 2, Value: 1}
	// b has a higher ReplicaID, so it wins Combine regardless of Value.
	if got := a.Combine(b); got != b {
		t.Fatalf("a.Combine(b) = %+v, want %+v", got, b)
	}
	if got := b.Combine(a); got != b {
		t.Fatalf("b.Combine(a) = %+v, want %+v", got, b)
	}
}

func TestLamportScenarioB(t *testing.T) {
	c := NewLamport(5)

	c.Observe(Lamport{ReplicaID: 9, Value: 7})

	stamp := c.Tick()
	if stamp != (Lamport{ReplicaID: 5, Value: 8}) {
		t.Fatalf("tick = %+v, want {5 8}", stamp)
	}
	if c.Value != 9 {
		t.Fatalf("c.Value = %d, want 9", c.Value)
	}
}

func TestLamportObserveAdvancesFromAnyReplica(t *testing.T) {
	c := NewLamport(1)
	c.Value = 5

	c.Observe(Lamport{ReplicaID: 1, Value: 3})
	if c.Value != 6 {
		t.Fatalf("observing a lower value from self: c.Value = %d, want 6", c.Value)
	}

	c.Observe(Lamport{ReplicaID: 2, Value: 20})
	if c.Value != 21 {
		t.Fatalf("observing a higher value from another replica: c.Value = %d, want 21", c.Value)
	}
}

func TestLamportTotalOrder(t *testing.T) {
	stamps := []Lamport{
		{ReplicaID: 3, Value: 5},
		{ReplicaID: 1, Value: 5},
		{ReplicaID: 2, Value: 1},
		{ReplicaID: 0, Value: 5},
	}

	for i := range stamps {
		for j := range stamps {
			a, b := stamps[i], stamps[j]
			less := a.Less(b)
			greater := b.Less(a)
			if less && greater {
				t.Fatalf("antisymmetry violated for %+v, %+v", a, b)
			}
			if a != b && !less && !greater {
				t.Fatalf("totality violated for %+v, %+v", a, b)
			}
		}
	}

	// Value 1 < value 5, and among the value-5 ties, ReplicaID breaks
	// ascending.
	want := []Lamport{
		{ReplicaID: 2, Value: 1},
		{ReplicaID: 0, Value: 5},
		{ReplicaID: 1, Value: 5},
		{ReplicaID: 3, Value: 5},
	}
	sorted := append([]Lamport(nil), stamps...)
	sortLamports(sorted)
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("sorted[%d] = %+v, want %+v", i, sorted[i], want[i])
		}
	}
}

func sortLamports(s []Lamport) {
	slice := LamportSlice(s)
	// insertion sort is plenty for this small fixed-size test input.
	for i := 1; i < slice.Len(); i++ {
		for j := i; j > 0 && slice.Less(j, j-1); j-- {
			slice.Swap(j, j-1)
		}
	}
}

func TestLocalJSONRoundTrip(t *testing.T) {
	l := Local{ReplicaID: 42, Value: 1000}
	data, err := l.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var got Local
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if got != l {
		t.Fatalf("round trip = %+v, want %+v", got, l)
	}
}

func TestLamportJSONRoundTrip(t *testing.T) {
	l := Lamport{ReplicaID: 42, Value: 1000}
	data, err := l.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var got Lamport
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if got != l {
		t.Fatalf("round trip = %+v, want %+v", got, l)
	}
}

func TestSeqSaturatesInsteadOfOverflowing(t *testing.T) {
	c := Local{ReplicaID: 1, Value: maxSeq}
	stamp := c.Tick()
	if stamp.Value != maxSeq {
		t.Fatalf("tick at max = %+v, want Value %d", stamp, maxSeq)
	}
	if c.Value != maxSeq {
		t.Fatalf("c.Value after tick at max = %d, want %d", c.Value, maxSeq)
	}
}
