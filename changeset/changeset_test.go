package changeset

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []Instruction{
		{Op: OpObject, Table: "Person", Key: GlobalKey{Hi: 0, Lo: 42}},
		{Op: OpOpaque, Payload: []byte("set name = 'x'")},
		{Op: OpObject, Table: "Dog", Key: GlobalKey{Hi: 7, Lo: 9}},
	}
	b := Encode(in)
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d instructions, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Op != in[i].Op || out[i].Table != in[i].Table || out[i].Key != in[i].Key {
			t.Fatalf("instruction %d mismatch: got %+v want %+v", i, out[i], in[i])
		}
	}
}

func TestRewriteGlobalKeysSubstitutesOnlyZeroHi(t *testing.T) {
	in := []Instruction{
		{Op: OpObject, Table: "Person", Key: GlobalKey{Hi: 0, Lo: 1}},
		{Op: OpObject, Table: "Person", Key: GlobalKey{Hi: 5, Lo: 2}},
	}
	b := Encode(in)
	out, err := RewriteGlobalKeys(b, 99)
	if err != nil {
		t.Fatalf("RewriteGlobalKeys: %v", err)
	}
	decoded, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded[0].Key.Hi != 99 {
		t.Fatalf("expected zero-Hi key rewritten to 99, got %d", decoded[0].Key.Hi)
	}
	if decoded[1].Key.Hi != 5 {
		t.Fatalf("non-zero-Hi key should be untouched, got %d", decoded[1].Key.Hi)
	}
}

func TestTablesTouched(t *testing.T) {
	in := []Instruction{
		{Op: OpObject, Table: "Person", Key: GlobalKey{Lo: 1}},
		{Op: OpObject, Table: "Person", Key: GlobalKey{Lo: 2}},
		{Op: OpObject, Table: "Dog", Key: GlobalKey{Lo: 3}},
		{Op: OpOpaque, Payload: []byte("x")},
	}
	got := TablesTouched(in)
	if len(got) != 2 || got[0] != "Person" || got[1] != "Dog" {
		t.Fatalf("unexpected tables: %v", got)
	}
}

func TestDecodeTruncatedStream(t *testing.T) {
	if _, err := Decode([]byte{byte(OpObject), 0, 0}); err == nil {
		t.Fatalf("expected error for truncated stream")
	}
}
