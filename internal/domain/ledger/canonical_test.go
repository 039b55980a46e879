package ledger

import (
	"bytes"
	"testing"
)

func TestCanonicalJSONIgnoresKeyOrderAndWhitespace(t *testing.T) {
	a, err := CanonicalJSON([]byte(`{"b": 1, "a": {"y": true, "x": null}}`))
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	b, err := CanonicalJSON([]byte(`{
		"a": {"x": null, "y": true},
		"b": 1
	}`))
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("canonical forms differ:\n%s\n%s", a, b)
	}
}

func TestCanonicalJSONPreservesNumberText(t *testing.T) {
	a, err := CanonicalJSON([]byte(`{"v": 1.50}`))
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	b, err := CanonicalJSON([]byte(`{"v": 1.5}`))
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("distinct number literals canonicalized identically: %s", a)
	}
}

func TestCanonicalJSONRejectsInvalidPayload(t *testing.T) {
	if _, err := CanonicalJSON([]byte(`{"unterminated": `)); err == nil {
		t.Fatalf("CanonicalJSON() expected error")
	}
}

func TestPayloadChecksumStableAcrossEquivalentPayloads(t *testing.T) {
	first, err := PayloadChecksum([]byte(`{"kind":"null_rate","value":"0.25"}`))
	if err != nil {
		t.Fatalf("PayloadChecksum() error = %v", err)
	}
	second, err := PayloadChecksum([]byte(`{ "value": "0.25", "kind": "null_rate" }`))
	if err != nil {
		t.Fatalf("PayloadChecksum() error = %v", err)
	}
	if first != second {
		t.Fatalf("checksums differ: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("checksum length = %d, want 64 hex chars", len(first))
	}

	other, err := PayloadChecksum([]byte(`{"kind":"null_rate","value":"0.26"}`))
	if err != nil {
		t.Fatalf("PayloadChecksum() error = %v", err)
	}
	if other == first {
		t.Fatalf("different payloads share checksum %s", first)
	}
}
