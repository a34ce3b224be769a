package ring

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestAddWithinBoundKeepsAll(t *testing.T) {
	b := New[int](4)
	b.Add(1)
	b.Add(2)
	b.Add(3)
	require.Equal(t, 3, b.Len())
	if diff := cmp.Diff([]int{1, 2, 3}, b.Items()); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestAddEvictsOldestOnOverflow(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 7; i++ {
		b.Add(i)
	}
	require.Equal(t, 3, b.Len())
	if diff := cmp.Diff([]int{5, 6, 7}, b.Items()); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestItemsReturnsIndependentSnapshot(t *testing.T) {
	b := New[int](4)
	b.Add(1)
	snap := b.Items()
	b.Add(2)
	require.Len(t, snap, 1, "snapshot should not observe later mutation")
}

func TestResizeSmallerEvicts(t *testing.T) {
	b := New[int](5)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}
	b.Resize(2)
	if diff := cmp.Diff([]int{4, 5}, b.Items()); diff != "" {
		t.Fatalf("items mismatch after resize (-want +got):\n%s", diff)
	}
}

func TestResetEmptiesButKeepsBound(t *testing.T) {
	b := New[int](3)
	b.Add(1)
	b.Add(2)
	b.Reset()
	require.Equal(t, 0, b.Len())
	require.Equal(t, uint32(3), b.Bound(), "expected bound to survive reset")

	b.Add(9)
	require.Equal(t, 1, b.Len(), "expected buffer usable after reset")
}
