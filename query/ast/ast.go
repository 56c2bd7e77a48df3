// Package ast implements the §4.6.2 AST as a single closed tagged-union
// Node type stored in a slice-backed bump arena: nodes are referenced by
// NodeID (an index), never by pointer, so the whole tree is freed in one
// shot when the arena is dropped — the Go rendering of §9's "arena for
// parse tree, inheritance -> tagged union" guidance, and of the "closed set
// dispatched by a single type switch" note about keeping the hot AST walk
// allocation-free.
package ast

import (
	"github.com/ledgerwatch/turbodb/path"
	"github.com/ledgerwatch/turbodb/value"
)

// NodeID indexes into an Arena. The zero value is a valid index (node 0);
// use Invalid to mean "absent".
type NodeID int32

// Invalid is the sentinel for an absent optional child.
const Invalid NodeID = -1

// Kind discriminates Node, flattening §4.6.2's Query/Value/Aggregate/Geo
// union into one enum.
type Kind uint8

const (
	KOr Kind = iota
	KAnd
	KNot
	KCompare
	KBetween
	KGeoWithin
	KBoolLit
	KConstant
	KProperty
	KListAggr
	KLinkAggr
	KListLiteral
	KSubquery
	KGeoLiteral
)

func (k Kind) String() string {
	switch k {
	case KOr:
		return "Or"
	case KAnd:
		return "And"
	case KNot:
		return "Not"
	case KCompare:
		return "Compare"
	case KBetween:
		return "Between"
	case KGeoWithin:
		return "GeoWithin"
	case KBoolLit:
		return "BoolLit"
	case KConstant:
		return "Constant"
	case KProperty:
		return "Property"
	case KListAggr:
		return "ListAggr"
	case KLinkAggr:
		return "LinkAggr"
	case KListLiteral:
		return "ListLiteral"
	case KSubquery:
		return "Subquery"
	case KGeoLiteral:
		return "GeoLiteral"
	default:
		return "Unknown"
	}
}

// CompareOp is the relational/string operator of a Compare node.
type CompareOp uint8

const (
	Eq CompareOp = iota
	Neq
	Lt
	Le
	Gt
	Ge
	In
	BeginsWith
	EndsWith
	Contains
	Like
	FullText
)

// Quantifier is the collection-valued-operand prefix of §4.6.1.
type Quantifier uint8

const (
	NoQuantifier Quantifier = iota
	QAny
	QAll
	QNone
)

// PostOp is a collection/aggregate post-operator (`.@size`, `.@max`, …).
type PostOp uint8

const (
	NoPostOp PostOp = iota
	PostSize
	PostType
	PostCount
	PostMax
	PostMin
	PostSum
	PostAvg
	PostKeys
	PostValues
)

// GeoKind discriminates the three geo-literal shapes of §4.6.2.
type GeoKind uint8

const (
	GeoBox GeoKind = iota
	GeoCircle
	GeoPolygon
)

// Point is a (longitude, latitude) pair.
type Point struct{ Lon, Lat float64 }

// Node is the single closed-union AST node. Only the fields relevant to
// Kind are meaningful; see the per-Kind comment below each field group.
type Node struct {
	Kind Kind

	// KOr / KAnd: Kids holds the conjuncts/disjuncts.
	// KListLiteral: Kids holds the element Constant nodes.
	Kids []NodeID

	// KNot: Left is the negated predicate.
	// KCompare: Left/Right are the two operands (Value nodes).
	// KBetween: Left is the Value being tested, Right is a KListLiteral{lo,hi}.
	// KGeoWithin: Left is the Property being tested, Right is a KGeoLiteral
	// (or a KConstant holding an argument index when the literal is `$n`).
	Left, Right NodeID

	// KCompare
	CompareOp       CompareOp
	CaseInsensitive bool

	// KBoolLit
	BoolValue bool

	// KConstant: either a literal value, or (when IsArgument) a zero-based
	// placeholder index resolved against the binder's Arguments.
	ConstValue value.Value
	IsArgument bool
	ArgIndex   int

	// KProperty
	Path       path.Path
	Quantifier Quantifier
	PostOp     PostOp
	// LinkName/AggrProp populate KLinkAggr: the named backlink/forward-link
	// property, the aggregate op (carried in PostOp), and the property of
	// the linked type the aggregate is computed over.
	LinkName string
	AggrProp string

	// KGeoLiteral
	GeoKind   GeoKind
	GeoPoints []Point // Box: [p1,p2]; Circle: [center]; Polygon: outer loop (holes in GeoHoles)
	GeoRadius float64 // Circle only, degrees
	GeoHoles  [][]Point

	// KSubquery: SUBQUERY(Path, Var, Pred).@size
	SubqueryVar  string
	SubqueryPred NodeID
}

// Arena is a bump allocator for Node values; the whole tree is released by
// dropping the Arena.
type Arena struct {
	nodes []Node
}

// NewArena returns an empty arena with capacity hints for a typical query.
func NewArena() *Arena {
	return &Arena{nodes: make([]Node, 0, 16)}
}

// New appends n and returns its NodeID.
func (a *Arena) New(n Node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

// Get returns a pointer to the node at id, valid until the next New call
// triggers a slice reallocation — callers needing a stable reference should
// re-fetch by id rather than holding the pointer across arena mutation.
func (a *Arena) Get(id NodeID) *Node {
	if id == Invalid {
		return nil
	}
	return &a.nodes[id]
}

// Len reports how many nodes have been allocated.
func (a *Arena) Len() int { return len(a.nodes) }

// SortEntry is one (path, direction) pair of a SORT descriptor.
type SortEntry struct {
	Path      path.Path
	Ascending bool
}

// Query is the parse result: the predicate tree plus trailing descriptors,
// per §4.6.1's `predicate (descriptor)*` grammar.
type Query struct {
	Arena     *Arena
	Predicate NodeID

	Sort     []SortEntry
	Distinct []path.Path
	Limit    *uint64
}
