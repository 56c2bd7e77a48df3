// Package schema models §3.2's table schema: the set of object types a
// database file declares, each with an ordered list of persisted properties.
// This is the schema the query binder (§4.6.3) resolves paths against and
// the per-table structure C4's object-ID/key maps are keyed on.
package schema

import (
	"fmt"

	"github.com/ledgerwatch/turbodb/value"
)

// ObjectKind classifies an ObjectType, §3.2.
type ObjectKind int

const (
	TopLevel ObjectKind = iota
	TopLevelAsymmetric
	Embedded
)

// CollectionKind is the collection shape a Property may carry, §3.1.
type CollectionKind int

const (
	NoCollection CollectionKind = iota
	ListCollection
	SetCollection
	DictCollection
)

// Property is one persisted column, §3.2.
type Property struct {
	Name       string
	ValueKind  value.Kind
	Nullable   bool
	Collection CollectionKind
	// Target is the target type name for Link-kind properties (scalar or
	// within a collection).
	Target string
}

// ObjectType is one table definition, §3.2.
type ObjectType struct {
	Name       string
	Kind       ObjectKind
	PrimaryKey *Property
	Properties []Property
}

// Property looks up a property by name.
func (t *ObjectType) Property(name string) (*Property, bool) {
	for i := range t.Properties {
		if t.Properties[i].Name == name {
			return &t.Properties[i], true
		}
	}
	return nil, false
}

// Schema is the full set of object types in a file, §3.2.
type Schema struct {
	Types map[string]*ObjectType
}

// New builds a Schema from a list of types, validating the invariants of
// §3.2: a primary key property is non-nullable and unique within its type;
// an embedded type's "exactly one parent" invariant is enforced at the
// storage layer (object creation time), not here, since it depends on live
// data rather than the static schema.
func New(types ...*ObjectType) (*Schema, error) {
	s := &Schema{Types: make(map[string]*ObjectType, len(types))}
	for _, t := range types {
		if t.PrimaryKey != nil && t.PrimaryKey.Nullable {
			return nil, fmt.Errorf("schema: primary key %q.%q must be non-nullable", t.Name, t.PrimaryKey.Name)
		}
		if _, exists := s.Types[t.Name]; exists {
			return nil, fmt.Errorf("schema: duplicate type %q", t.Name)
		}
		s.Types[t.Name] = t
	}
	return s, nil
}

// Resolve finds a named type, returning (nil, false) when absent — the
// binder surfaces this as status.InvalidQueryName, §4.6.3.
func (s *Schema) Resolve(name string) (*ObjectType, bool) {
	t, ok := s.Types[name]
	return t, ok
}
