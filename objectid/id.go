// Package objectid implements the 128-bit globally-unique ObjectID and its
// bijection to a per-table 63-bit local ObjKey, §3.3/§4.4, ported from
// src/realm/object_id.hpp (original_source) field for field, including the
// exact bit layout of the squeeze/unsqueeze operations.
package objectid

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ledgerwatch/turbodb/status"
	"github.com/ledgerwatch/turbodb/value"
)

// ID is the 128-bit wire-form object identifier, §3.3.
type ID struct {
	Hi uint64
	Lo uint64
}

// Key is the 63-bit local row identifier (ObjKey in the original). The sign
// bit is never set by this package's own allocation logic but Key is a
// signed int64 to match the original's ObjKey representation.
type Key int64

func (k Key) String() string { return fmt.Sprintf("%d", int64(k)) }

// Less orders two IDs, matching the original's operator< (hi-major,
// lo-minor).
func (id ID) Less(o ID) bool {
	if id.Hi != o.Hi {
		return id.Hi < o.Hi
	}
	return id.Lo < o.Lo
}

func (id ID) Equal(o ID) bool { return id.Hi == o.Hi && id.Lo == o.Lo }

func (id ID) String() string { return fmt.Sprintf("%d:%d", id.Hi, id.Lo) }

// FromIntPrimaryKey implements rule (b) of §3.3: the integer is the low 64
// bits, high 64 bits are zero.
func FromIntPrimaryKey(i int64) ID {
	return ID{Hi: 0, Lo: uint64(i)}
}

// FromOtherPrimaryKey implements rule (c): a 128-bit hash of the primary key
// value. The spec leaves the concrete hash unspecified beyond "128-bit
// hash"; we use SHA-256 truncated to its first 16 bytes, which the caller
// treats as opaque Hi/Lo words exactly as the original treats its own
// internal hash.
func FromOtherPrimaryKey(pk value.Value) ID {
	sum := sha256.Sum256([]byte(pk.String()))
	return ID{
		Hi: binary.BigEndian.Uint64(sum[0:8]),
		Lo: binary.BigEndian.Uint64(sum[8:16]),
	}
}

// From implements ObjectID::from(Mixed primary_key): dispatches to rule (b)
// or (c) depending on the primary key's value kind, §4.4.
func From(pk value.Value) ID {
	if pk.Unwrap().Kind == value.Int {
		return FromIntPrimaryKey(pk.Unwrap().I)
	}
	return FromOtherPrimaryKey(pk)
}

// Squeeze maps a local key with a given sync file identity into the 128-bit
// wire form, per §3.3(a)/§4.4 and object_id.hpp's ObjectID(ObjKey, uint64_t)
// constructor. Hi is built from bits 8-15 and 40-63 of the local key; when
// those bits are all zero (i.e. this object was created by the file's own
// creator before any file identity was assigned), the file-id half is
// substituted verbatim into Hi.
func Squeeze(key Key, syncFileIdent uint64) ID {
	u := uint64(key)
	lo := (u & 0xff) | ((u & 0xffffff0000) >> 8)
	hi := ((u & 0xff00) >> 8) | ((u & 0xffffff0000000000) >> 32)
	if hi == 0 {
		hi = syncFileIdent
	}
	return ID{Hi: hi, Lo: lo}
}

// LocalKey is the inverse of Squeeze: ObjectID::get_local_key(sync_file_id).
// Precondition (fatal if violated, §4.4): Hi <= 2^30-1, Lo <= 2^32-1 — an ID
// failing this precondition could not have been produced by this peer.
func (id ID) LocalKey(syncFileIdent uint64) Key {
	if id.Hi > 0x3fffffff {
		status.Fatal("objectid: ID %s has Hi exceeding 2^30-1; not producible by this peer", id)
	}
	if id.Lo > 0xffffffff {
		status.Fatal("objectid: ID %s has Lo exceeding 2^32-1; not producible by this peer", id)
	}

	hi := id.Hi
	if hi == syncFileIdent {
		hi = 0
	}
	a := id.Lo & 0xff
	b := (hi & 0xff) << 8
	c := (id.Lo & 0xffffff00) << 8
	d := (hi & 0x3fffff00) << 32
	return Key(int64(a | b | c | d))
}

// CollisionBit marks a local key as having been reassigned by the
// collision-remediation path of §3.3(c)/§4.4: bit 62 set, replacing the low
// 62 bits with a locally-generated sequence number.
const CollisionBit = int64(1) << 62

// WithCollisionTail sets bit 62 and substitutes the low 62 bits with seq,
// per §4.4's collision resolution rule.
func WithCollisionTail(seq uint64) Key {
	return Key(CollisionBit | int64(seq&((1<<62)-1)))
}
