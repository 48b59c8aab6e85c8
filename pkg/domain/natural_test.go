package domain

import (
	"reflect"
	"testing"
)

func TestSortNatural(t *testing.T) {
	values := []string{"16", "Annex", "7", "10", "12", "2b", "2a", "annex 3"}
	SortNatural(values)
	want := []string{"2a", "2b", "7", "10", "12", "16", "Annex", "annex 3"}
	if !reflect.DeepEqual(values, want) {
		t.Fatalf("unexpected order %v", values)
	}
}

func TestNaturalLessLeadingZeros(t *testing.T) {
	if !NaturalLess("007", "10") {
		t.Fatalf("expected 007 < 10")
	}
	if NaturalLess("10", "9") {
		t.Fatalf("expected 9 < 10")
	}
	if !NaturalLess("Floor 2", "floor 10") {
		t.Fatalf("expected case-insensitive prefix with numeric tail ordering")
	}
}
