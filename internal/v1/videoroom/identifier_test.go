package videoroom

import "testing"

func TestRandomIdentifier_NeverZero(t *testing.T) {
	for i := 0; i < 1000; i++ {
		if id := randomIdentifier(); id == 0 {
			t.Fatalf("randomIdentifier returned 0")
		}
	}
}

func TestRandomIdentifier_SignBitMasked(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := randomIdentifier()
		if id&0x8000000000000000 != 0 {
			t.Fatalf("identifier %d has sign bit set", id)
		}
	}
}

func TestAllocate_SkipsTaken(t *testing.T) {
	taken := map[Identifier]bool{}
	var first Identifier
	for i := 0; i < 100; i++ {
		id := allocate(func(i Identifier) bool { return taken[i] })
		if taken[id] {
			t.Fatalf("allocate returned an id already marked taken: %d", id)
		}
		taken[id] = true
		if i == 0 {
			first = id
		}
	}
	if first == 0 {
		t.Fatal("allocate returned 0 on first call")
	}
}

func TestAllocate_RetriesUntilFree(t *testing.T) {
	calls := 0
	result := allocate(func(Identifier) bool {
		calls++
		return calls < 3
	})
	if result == 0 {
		t.Fatal("expected a non-zero identifier")
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 taken() calls, got %d", calls)
	}
}
