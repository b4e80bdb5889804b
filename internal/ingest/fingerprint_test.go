package ingest

import "testing"

func TestFingerprint(t *testing.T) {
	a := [][]float64{{1, 2}, {3, 4}}
	b := [][]float64{{1, 2}, {3, 4}}
	c := [][]float64{{1, 2}, {3, 5}}

	fpA := Fingerprint(a)
	if fpA == "" {
		t.Fatal("Expected a non-empty fingerprint")
	}
	if fpA != Fingerprint(b) {
		t.Error("Expected identical matrices to share a fingerprint")
	}
	if fpA == Fingerprint(c) {
		t.Error("Expected different matrices to have different fingerprints")
	}
	// Row count is part of the digest: [[1,2],[3,4]] vs [[1,2,3,4]].
	if fpA == Fingerprint([][]float64{{1, 2, 3, 4}}) {
		t.Error("Expected shape to affect the fingerprint")
	}
}

func TestFingerprint_Empty(t *testing.T) {
	if Fingerprint(nil) == "" {
		t.Error("Expected a fingerprint even for an empty matrix")
	}
}
