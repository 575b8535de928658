package util

import (
	"slices"
	"testing"
)

func TestSortedUnique(t *testing.T) {
	in := []string{"x.png", "a.txt", "x.png", "sub/b.lua"}
	got := SortedUnique(in)
	want := []string{"a.txt", "sub/b.lua", "x.png"}
	if !slices.Equal(got, want) {
		t.Errorf("SortedUnique() = %v, want %v", got, want)
	}
	if in[0] != "x.png" {
		t.Error("SortedUnique must not modify its input")
	}
}
