package util

import "testing"

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer[int](3)
	if got := rb.Len(); got != 0 {
		t.Fatalf("Len = %d, want 0", got)
	}

	rb.Push(1)
	rb.Push(2)
	got := rb.Snapshot()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Snapshot = %v, want [1 2]", got)
	}

	rb.Push(3)
	rb.Push(4) // overwrites 1
	rb.Push(5) // overwrites 2

	got = rb.Snapshot()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Snapshot = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot = %v, want %v", got, want)
		}
	}
	if rb.Len() != 3 {
		t.Fatalf("Len = %d, want 3", rb.Len())
	}
}
