// Package coll provides the typed collection views (list/set/dictionary)
// addressed by package path, plus the collection factory and
// locally-generated dictionary key allocator of §4.5.
package coll

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/ledgerwatch/turbodb/path"
	"github.com/ledgerwatch/turbodb/schema"
	"github.com/ledgerwatch/turbodb/value"
)

// Kind mirrors schema.CollectionKind for the concrete view types below.
type Kind = schema.CollectionKind

// List is an ordered collection of value.Value (or link targets).
type List interface {
	Len() int
	Get(i int) (value.Value, error)
}

// Set is an unordered, unique collection.
type Set interface {
	Len() int
	Contains(v value.Value) bool
	Values() []value.Value
}

// Dict is an insertion-ordered, string-keyed collection.
type Dict interface {
	Len() int
	Get(key string) (value.Value, bool)
	Keys() []string
	Values() []value.Value
}

// Ptr is the factory's result: exactly one of List/Set/Dict is non-nil,
// matching which CollectionKind the property declares.
type Ptr struct {
	List List
	Set  Set
	Dict Dict
}

// Accessor is the storage-layer collaborator GetCollectionPtr delegates to
// in order to actually materialize a collection view for a given row+path;
// storage.Paged implementations supply this.
type Accessor interface {
	List(p path.Path) (List, error)
	Set(p path.Path) (Set, error)
	Dict(p path.Path) (Dict, error)
}

// GetCollectionPtr dispatches on the column's declared CollectionKind to
// produce the right typed view, per §4.5. nestingLevel is the current Mixed
// nesting depth at this point in the path (0 at the top level); it is
// checked against path.MaxNest before delegating to acc.
func GetCollectionPtr(acc Accessor, prop *schema.Property, p path.Path, nestingLevel int) (Ptr, error) {
	if err := path.CheckLevel(nestingLevel); err != nil {
		return Ptr{}, err
	}
	switch prop.Collection {
	case schema.ListCollection:
		l, err := acc.List(p)
		if err != nil {
			return Ptr{}, err
		}
		return Ptr{List: l}, nil
	case schema.SetCollection:
		s, err := acc.Set(p)
		if err != nil {
			return Ptr{}, err
		}
		return Ptr{Set: s}, nil
	case schema.DictCollection:
		d, err := acc.Dict(p)
		if err != nil {
			return Ptr{}, err
		}
		return Ptr{Dict: d}, nil
	default:
		return Ptr{}, fmt.Errorf("coll: property %q is not a collection", prop.Name)
	}
}

// NewDictKey generates a locally-unique dictionary key for a tree of the
// given current size, choosing a width so expected insert search cost stays
// O(1): 8 bits below 16 entries, 16 bits below 4096, 32 bits otherwise
// (§4.5's last paragraph). The key is non-zero and rejection-sampled against
// exists.
func NewDictKey(size int, exists func(key string) bool) (string, error) {
	var width int
	switch {
	case size < 16:
		width = 1
	case size < 4096:
		width = 2
	default:
		width = 4
	}
	for attempt := 0; attempt < 1000; attempt++ {
		buf := make([]byte, width)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("coll: generating dictionary key: %w", err)
		}
		var n uint32
		switch width {
		case 1:
			if buf[0] == 0 {
				continue
			}
			n = uint32(buf[0])
		case 2:
			n = uint32(binary.BigEndian.Uint16(buf))
		case 4:
			n = binary.BigEndian.Uint32(buf)
		}
		if n == 0 {
			continue
		}
		key := fmt.Sprintf("%d", n)
		if !exists(key) {
			return key, nil
		}
	}
	return "", fmt.Errorf("coll: failed to allocate a unique dictionary key after many attempts")
}
