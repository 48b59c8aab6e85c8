package openapi

import (
	"bytes"
	"os"
	"testing"
)

func TestSpecReturnsCopyAndMatchesFile(t *testing.T) {
	want, err := os.ReadFile("custodycore.yaml")
	if err != nil {
		t.Fatalf("read custodycore.yaml: %v", err)
	}
	spec := Spec()
	if !bytes.Equal(spec, want) {
		t.Fatalf("Spec does not match embedded contents")
	}
	spec[0] ^= 0xFF
	if !bytes.Equal(Spec(), want) {
		t.Fatalf("Spec mutation leaked into embedded content")
	}
	for _, fragment := range []string{"/api/equipment/assign:", "items: {type: array"} {
		if !bytes.Contains(want, []byte(fragment)) {
			t.Fatalf("contract is missing %q", fragment)
		}
	}
}
