package objectid

import (
	"math/rand"
	"testing"

	"github.com/ledgerwatch/turbodb/value"
)

// P6: for every local key k with high bits zero and any sync_file_id s,
// Squeeze(k, s).LocalKey(s) == k.
func TestSqueezeRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		// Constrain to keys whose high 32 bits are zero, as required by the
		// property (the precondition for LocalKey requires Hi <= 2^30-1;
		// squeeze substitutes the file ident into Hi only when key bits 8-15
		// are zero as well).
		k := Key(rnd.Int63n(1 << 32))
		s := uint64(rnd.Int63n(1 << 20))

		id := Squeeze(k, s)
		got := id.LocalKey(s)
		if got != k {
			t.Fatalf("round trip failed: k=%d s=%d -> id=%v -> got=%d", k, s, id, got)
		}
	}
}

func TestSqueezeSubstitutesFileIdentWhenCreator(t *testing.T) {
	// A key with Hi-part zero (only bits 0-7 set) should get the file ident
	// substituted directly into Hi, per object_id.hpp's constructor.
	k := Key(0x000000FF) // low byte nonzero, rest zero
	id := Squeeze(k, 77)
	if id.Hi != 77 {
		t.Fatalf("expected file ident substituted into Hi, got %d", id.Hi)
	}
}

func TestFromIntPrimaryKey(t *testing.T) {
	id := From(value.IntVal(42))
	if id.Hi != 0 || id.Lo != 42 {
		t.Fatalf("expected {0, 42}, got %+v", id)
	}
}

func TestKeySpaceCollisionResolution(t *testing.T) {
	ks := NewKeySpace()
	k1 := ks.Resolve(100)
	if k1 != Key(100) {
		t.Fatalf("first allocation of a free key should pass through unchanged, got %d", k1)
	}
	k2 := ks.Resolve(100)
	if k2&Key(CollisionBit) == 0 {
		t.Fatalf("colliding allocation should set the collision bit, got %d", k2)
	}
	if !ks.Contains(100) {
		t.Fatalf("100 should be marked allocated")
	}
}

func TestTableMapPutGet(t *testing.T) {
	m := NewTableMap()
	id := ID{Hi: 1, Lo: 2}
	m.Put(id, Key(9))
	got, ok := m.Get(id)
	if !ok || got != Key(9) {
		t.Fatalf("expected to find key 9, got %v ok=%v", got, ok)
	}
	if _, ok := m.Get(ID{Hi: 9, Lo: 9}); ok {
		t.Fatalf("unexpected hit for absent id")
	}

	var seen []ID
	m.Put(ID{Hi: 0, Lo: 1}, Key(1))
	m.Range(func(id ID, key Key) bool {
		seen = append(seen, id)
		return true
	})
	if len(seen) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(seen))
	}
}
