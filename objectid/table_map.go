// Package objectid: the persisted per-table ID<->Key map required by
// §3.3(c) ("the ID/key map is persisted per table"). Backed by an ordered
// red-black tree rather than a hash map so range and nearest-neighbor
// lookups over ObjectID order are possible (useful for the sync client
// scanning rows by ID order during a client reset) — the same data
// structure shape the teacher uses for its tip-tracking ordered set
// (turbo/stages/headerdownload's tipLimiter *llrb.LLRB), adapted here from
// "order tips by cumulative difficulty" to "order ObjKeys by ObjectID".
package objectid

import (
	"sync"

	"github.com/petar/GoLLRB/llrb"
)

type mapEntry struct {
	id  ID
	key Key
}

func (e *mapEntry) Less(other llrb.Item) bool {
	o := other.(*mapEntry)
	return e.id.Less(o.id)
}

// TableMap is the ordered ObjectID -> Key map for one table.
type TableMap struct {
	mu   sync.RWMutex
	tree *llrb.LLRB
}

// NewTableMap returns an empty map.
func NewTableMap() *TableMap {
	return &TableMap{tree: llrb.New()}
}

// Put records the mapping from id to key, overwriting any previous entry
// for the same id.
func (m *TableMap) Put(id ID, key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.ReplaceOrInsert(&mapEntry{id: id, key: key})
}

// Get looks up the local key for an ObjectID.
func (m *TableMap) Get(id ID) (Key, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item := m.tree.Get(&mapEntry{id: id})
	if item == nil {
		return 0, false
	}
	return item.(*mapEntry).key, true
}

// Len reports the number of tracked mappings.
func (m *TableMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Range calls fn for every (ID, Key) pair in ascending ID order, stopping
// early if fn returns false.
func (m *TableMap) Range(fn func(id ID, key Key) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	min := m.tree.Min()
	if min == nil {
		return
	}
	m.tree.AscendGreaterOrEqual(min, func(item llrb.Item) bool {
		e := item.(*mapEntry)
		return fn(e.id, e.key)
	})
}
