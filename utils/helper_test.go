package utils

import "testing"

func TestChunkSlice(t *testing.T) {
	nums := []int{1, 2, 3, 4, 5, 6, 7}

	chunks := ChunkSlice(nums, 3)
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 3 || len(chunks[1]) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("chunk sizes = %d/%d/%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if chunks[2][0] != 7 {
		t.Fatalf("last chunk = %v", chunks[2])
	}

	if got := ChunkSlice(nums, 10); len(got) != 1 || len(got[0]) != 7 {
		t.Fatalf("oversized chunk = %v", got)
	}
	if got := ChunkSlice([]int{}, 3); got != nil {
		t.Fatalf("empty input = %v, want nil", got)
	}
	if got := ChunkSlice(nums, 0); got != nil {
		t.Fatalf("zero size = %v, want nil", got)
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]string{"a", "b", "a", "c", "b"})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("UniqueSlice = %v", got)
	}
}
