// Package binder resolves a parsed query/ast.Query against a concrete
// schema.ObjectType and an Arguments collaborator, turning bare identifier
// paths into schema-checked property chains and `$n` placeholders into
// typed value.Value literals. Grounded on §4.6.3's binder responsibilities
// and, for the error taxonomy, on src/realm/parser/driver.hpp's type-check
// diagnostics (original_source) — reported here as status.ErrorCodes rather
// than free-form exceptions, matching how the rest of this module surfaces
// recoverable failures (history, sync).
package binder

import (
	"github.com/ledgerwatch/turbodb/path"
	"github.com/ledgerwatch/turbodb/query/ast"
	"github.com/ledgerwatch/turbodb/schema"
	"github.com/ledgerwatch/turbodb/status"
	"github.com/ledgerwatch/turbodb/value"
)

// Arguments supplies the runtime values bound to `$n` placeholders. Each
// accessor is tried against the kind the binder infers the placeholder must
// hold from its sibling operand; an out-of-range index is reported as
// status.ArgumentOutOfRange by the implementation, surfaced to callers as
// status.InvalidArgument.
type Arguments interface {
	IntForArgument(n int) (int64, error)
	DoubleForArgument(n int) (float64, error)
	BoolForArgument(n int) (bool, error)
	StringForArgument(n int) (string, error)
	BinaryForArgument(n int) ([]byte, error)
	ObjectForArgument(n int) (value.LinkValue, error)
}

// Bound is a query whose predicate tree has been checked against objType:
// every Property path resolves to a real column chain and every `$n`
// placeholder has been replaced by a concrete value.Value constant.
type Bound struct {
	Query  *ast.Query
	Schema *schema.Schema
	Root   *schema.ObjectType
}

type binder struct {
	arena *ast.Arena
	sch   *schema.Schema
	root  *schema.ObjectType
	args  Arguments
}

// Bind type-checks q against root (a member of sch) and resolves every
// argument placeholder via args.
func Bind(q *ast.Query, sch *schema.Schema, root *schema.ObjectType, args Arguments) (*Bound, error) {
	b := &binder{arena: q.Arena, sch: sch, root: root, args: args}
	if err := b.bindNode(q.Predicate, root, 0); err != nil {
		return nil, err
	}
	for _, s := range q.Sort {
		if _, err := b.resolvePath(root, s.Path); err != nil {
			return nil, err
		}
	}
	for _, d := range q.Distinct {
		if _, err := b.resolvePath(root, d); err != nil {
			return nil, err
		}
	}
	return &Bound{Query: q, Schema: sch, Root: root}, nil
}

// bindNode walks the predicate tree rooted at id, resolving paths and
// arguments. objType is the type the path should resolve relative to
// (changes inside a SUBQUERY's sub-predicate and across link traversal).
func (b *binder) bindNode(id ast.NodeID, objType *schema.ObjectType, nestLevel int) error {
	if id == ast.Invalid {
		return nil
	}
	if err := path.CheckLevel(nestLevel); err != nil {
		return status.Newf(status.LimitExceeded, "%v", err)
	}

	n := b.arenaOf(id)
	switch n.Kind {
	case ast.KOr, ast.KAnd:
		for _, k := range n.Kids {
			if err := b.bindNode(k, objType, nestLevel); err != nil {
				return err
			}
		}
	case ast.KNot:
		return b.bindNode(n.Left, objType, nestLevel)
	case ast.KCompare:
		return b.bindComparePair(n, objType, nestLevel)
	case ast.KBetween:
		if err := b.bindOperand(n.Left, objType, nestLevel, value.Null); err != nil {
			return err
		}
		return b.bindNode(n.Right, objType, nestLevel)
	case ast.KGeoWithin:
		if err := b.bindOperand(n.Left, objType, nestLevel, value.Null); err != nil {
			return err
		}
	case ast.KListLiteral:
		for _, k := range n.Kids {
			if err := b.bindNode(k, objType, nestLevel); err != nil {
				return err
			}
		}
	case ast.KSubquery:
		propNode := b.arenaOf(n.Left)
		prop, err := b.resolvePath(objType, propNode.Path)
		if err != nil {
			return err
		}
		elemType := objType
		if prop.Target != "" {
			t, ok := b.sch.Resolve(prop.Target)
			if !ok {
				return status.Newf(status.InvalidQueryName, "subquery: unknown linked type %q", prop.Target)
			}
			elemType = t
		}
		// The loop variable names one element: a synthetic link property of
		// that name lets `var.prop` paths resolve against elemType.
		scoped := *elemType
		scoped.Properties = append(append([]schema.Property(nil), elemType.Properties...),
			schema.Property{Name: n.SubqueryVar, ValueKind: value.Link, Target: elemType.Name})
		return b.bindNode(n.SubqueryPred, &scoped, nestLevel+1)
	case ast.KProperty, ast.KListAggr, ast.KLinkAggr:
		_, err := b.resolvePath(objType, n.Path)
		return err
	case ast.KBoolLit, ast.KConstant, ast.KGeoLiteral:
		// nothing to resolve
	}
	return nil
}

// bindComparePair resolves both sides of a Compare node, inferring the
// expected kind for whichever side is an unresolved `$n` argument from the
// other side's declared property kind.
func (b *binder) bindComparePair(n *ast.Node, objType *schema.ObjectType, nestLevel int) error {
	leftKind, err := b.inferKind(n.Left, objType)
	if err != nil {
		return err
	}
	rightKind, err := b.inferKind(n.Right, objType)
	if err != nil {
		return err
	}
	expect := leftKind
	if expect == value.Null {
		expect = rightKind
	}
	if err := b.bindOperand(n.Left, objType, nestLevel, expect); err != nil {
		return err
	}
	if err := b.bindOperand(n.Right, objType, nestLevel, expect); err != nil {
		return err
	}
	if leftKind != value.Null && rightKind != value.Null && !kindsComparable(leftKind, rightKind) {
		return status.Newf(status.TypeMismatch, "cannot compare %s with %s", leftKind, rightKind)
	}
	return nil
}

// inferKind reports the static value kind of a node when known without
// consulting an argument (Property, or a non-argument Constant); returns
// value.Null ("unknown") for `$n` placeholders, whose kind must come from
// the sibling.
func (b *binder) inferKind(id ast.NodeID, objType *schema.ObjectType) (value.Kind, error) {
	n := b.arenaOf(id)
	switch n.Kind {
	case ast.KProperty:
		if n.PostOp == ast.PostSize || n.PostOp == ast.PostCount {
			return value.Int, nil
		}
		prop, err := b.resolvePath(objType, n.Path)
		if err != nil {
			return value.Null, err
		}
		return prop.ValueKind, nil
	case ast.KListAggr, ast.KLinkAggr:
		return value.Double, nil
	case ast.KConstant:
		if n.IsArgument {
			return value.Null, nil
		}
		return n.ConstValue.Kind, nil
	default:
		return value.Null, nil
	}
}

// bindOperand resolves a Property path or fills in a `$n` argument in
// place; expect is the value kind to coerce an argument placeholder to.
func (b *binder) bindOperand(id ast.NodeID, objType *schema.ObjectType, nestLevel int, expect value.Kind) error {
	n := b.arenaOf(id)
	switch n.Kind {
	case ast.KProperty, ast.KListAggr, ast.KLinkAggr:
		_, err := b.resolvePath(objType, n.Path)
		return err
	case ast.KListLiteral:
		for _, k := range n.Kids {
			if err := b.bindOperand(k, objType, nestLevel, expect); err != nil {
				return err
			}
		}
		return nil
	case ast.KConstant:
		if !n.IsArgument {
			return nil
		}
		v, err := b.resolveArgument(n.ArgIndex, expect)
		if err != nil {
			return err
		}
		n.ConstValue = v
		n.IsArgument = false
		return nil
	default:
		return nil
	}
}

func (b *binder) resolveArgument(idx int, kind value.Kind) (value.Value, error) {
	wrap := func(err error) error {
		if err == nil {
			return nil
		}
		return status.Newf(status.InvalidArgument, "argument $%d: %v", idx, err)
	}
	switch kind {
	case value.Int:
		v, err := b.args.IntForArgument(idx)
		return value.IntVal(v), wrap(err)
	case value.Double, value.Float:
		v, err := b.args.DoubleForArgument(idx)
		return value.DoubleVal(v), wrap(err)
	case value.Bool:
		v, err := b.args.BoolForArgument(idx)
		return value.BoolVal(v), wrap(err)
	case value.String:
		v, err := b.args.StringForArgument(idx)
		return value.StringVal(v), wrap(err)
	case value.Binary:
		v, err := b.args.BinaryForArgument(idx)
		return value.BinaryVal(v), wrap(err)
	case value.Link:
		v, err := b.args.ObjectForArgument(idx)
		return value.LinkVal(v), wrap(err)
	default:
		v, err := b.args.StringForArgument(idx)
		return value.StringVal(v), wrap(err)
	}
}

// resolvePath walks a path segment by segment against the schema, crossing
// link/embedded boundaries as needed. Backlink segments (encoded as
// "@links:Type:property" by query/parser) resolve against the named type's
// own property table instead of objType's.
func (b *binder) resolvePath(objType *schema.ObjectType, p path.Path) (*schema.Property, error) {
	cur := objType
	var last *schema.Property
	for i, el := range p {
		if el.Kind != path.Column {
			continue // index/dict-key/wildcard hops do not change the schema type
		}
		name, typeName, linkProp, isBacklink := decodeBacklinkColumn(el.Col)
		if isBacklink {
			t, ok := b.sch.Resolve(typeName)
			if !ok {
				return nil, status.Newf(status.InvalidQueryName, "unknown backlink type %q", typeName)
			}
			prop, ok := t.Property(linkProp)
			if !ok {
				return nil, status.Newf(status.InvalidQueryName, "type %q has no property %q", typeName, linkProp)
			}
			last = prop
			cur = t // backlink collection holds `typeName` instances; further segments resolve against it
			continue
		}
		prop, ok := cur.Property(name)
		if !ok {
			return nil, status.Newf(status.InvalidQueryName, "%s", unresolvedPathError(objType.Name, p, i))
		}
		last = prop
		if prop.Target != "" {
			t, ok := b.sch.Resolve(prop.Target)
			if ok {
				cur = t
			}
		}
	}
	if last == nil {
		return nil, status.Newf(status.InvalidQueryName, "empty path")
	}
	return last, nil
}

func decodeBacklinkColumn(col string) (name, typeName, prop string, isBacklink bool) {
	const prefix = "@links:"
	if len(col) <= len(prefix) || col[:len(prefix)] != prefix {
		return col, "", "", false
	}
	rest := col[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			return col, rest[:i], rest[i+1:], true
		}
	}
	return col, "", "", false
}

func unresolvedPathError(rootName string, p path.Path, i int) string {
	return "no property " + p[i].String() + " on " + rootName
}

func kindsComparable(a, bKind value.Kind) bool {
	if a == bKind {
		return true
	}
	numeric := func(k value.Kind) bool {
		return k == value.Int || k == value.Float || k == value.Double || k == value.Decimal128
	}
	if numeric(a) && numeric(bKind) {
		return true
	}
	return a == value.Mixed || bKind == value.Mixed || a == value.Null || bKind == value.Null
}

func (b *binder) arenaOf(id ast.NodeID) *ast.Node {
	return b.arena.Get(id)
}
