package coll

import (
	"strconv"
	"testing"
)

func TestNewDictKeyWidthAndUniqueness(t *testing.T) {
	seen := map[string]bool{}
	exists := func(k string) bool { return seen[k] }
	for i := 0; i < 100; i++ {
		k, err := NewDictKey(len(seen), exists)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[k] {
			t.Fatalf("duplicate key generated: %s", k)
		}
		if k == "0" {
			t.Fatalf("generated key must be non-zero")
		}
		n, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			t.Fatalf("key %q is not a decimal number: %v", k, err)
		}
		limit := uint64(0xffff) // 16-bit keys from 16 entries up
		if i < 16 {
			limit = 0xff // 8-bit keys below 16 entries
		}
		if n > limit {
			t.Fatalf("key %s is wider than expected for size %d", k, i)
		}
		seen[k] = true
	}
}
