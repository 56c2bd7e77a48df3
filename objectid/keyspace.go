// Package objectid: per-table collision bookkeeping for the non-integer
// primary-key case of §3.3(c)/§4.4. RoaringBitmap only addresses a 32-bit
// domain, so a 62-bit key space is sharded the same way
// ethdb/bitmapdb/dbutils.go shards its append-by-OR bitmap log: the high
// bits select a shard, the low 32 bits are the bitmap's own domain.
package objectid

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

const keyspaceShardBits = 30 // low-62-bit keyspace split into 2^30 shards of 2^32 each

// KeySpace tracks which low-62-bit key values are already allocated for one
// table, so the collision check in §4.4 ("if this results in an ObjKey which
// is already in use") is O(1), and hands out the locally-generated sequence
// numbers used for the collision tail.
type KeySpace struct {
	mu      sync.Mutex
	shards  map[uint32]*roaring.Bitmap
	nextSeq uint64
}

// NewKeySpace returns an empty key space.
func NewKeySpace() *KeySpace {
	return &KeySpace{shards: make(map[uint32]*roaring.Bitmap)}
}

func split(lowKey uint64) (shard uint32, bit uint32) {
	shard = uint32(lowKey >> 32)
	bit = uint32(lowKey & 0xffffffff)
	return
}

// Contains reports whether lowKey (the optimistic low-62-bits-of-ID
// candidate local key) is already allocated.
func (ks *KeySpace) Contains(lowKey uint64) bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	shard, bit := split(lowKey)
	bm, ok := ks.shards[shard]
	if !ok {
		return false
	}
	return bm.Contains(bit)
}

// Allocate marks lowKey as in use. Call this once the candidate key (or its
// collision-remediated replacement) has been committed as a row's ObjKey.
func (ks *KeySpace) Allocate(lowKey uint64) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	shard, bit := split(lowKey)
	bm, ok := ks.shards[shard]
	if !ok {
		bm = roaring.NewBitmap()
		ks.shards[shard] = bm
	}
	bm.Add(bit)
}

// NextCollisionSeq returns the next value from this table's
// monotonically-increasing collision counter, used to build the
// locally-generated tail of a collision-remediated key (§4.4).
func (ks *KeySpace) NextCollisionSeq() uint64 {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	seq := ks.nextSeq
	ks.nextSeq++
	return seq
}

// Resolve implements the full §4.4 collision-remediation flow: given an
// optimistic low-62-bit candidate, returns it unchanged if free, or a
// collision-tagged key (bit 62 set, locally-generated tail) if taken. Either
// way the returned key is marked allocated before return.
func (ks *KeySpace) Resolve(candidateLowKey uint64) Key {
	if !ks.Contains(candidateLowKey) {
		ks.Allocate(candidateLowKey)
		return Key(int64(candidateLowKey))
	}
	seq := ks.NextCollisionSeq()
	k := WithCollisionTail(seq)
	ks.Allocate(uint64(k) &^ uint64(CollisionBit))
	return k
}
