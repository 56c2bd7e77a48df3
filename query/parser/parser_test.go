package parser

import (
	"fmt"
	"testing"

	"github.com/google/gofuzz"
	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/turbodb/query/ast"
)

func TestParseSeedScenarioFivePredicate(t *testing.T) {
	q, err := Parse(`age > $0 && ANY dogs.breed == "poodle" SORT(name ASC) LIMIT(10)`)
	require.NoError(t, err)

	root := q.Arena.Get(q.Predicate)
	require.Equal(t, ast.KAnd, root.Kind)
	require.Len(t, root.Kids, 2)

	left := q.Arena.Get(root.Kids[0])
	require.Equal(t, ast.KCompare, left.Kind)
	require.Equal(t, ast.Gt, left.CompareOp)
	leftProp := q.Arena.Get(left.Left)
	require.Equal(t, ast.KProperty, leftProp.Kind)
	require.Equal(t, "[age]", leftProp.Path.String())

	right := q.Arena.Get(root.Kids[1])
	require.Equal(t, ast.KCompare, right.Kind)
	require.Equal(t, ast.Eq, right.CompareOp)
	rightProp := q.Arena.Get(right.Left)
	require.Equal(t, ast.KProperty, rightProp.Kind)
	require.Equal(t, ast.QAny, rightProp.Quantifier)
	require.Equal(t, "[dogs][breed]", rightProp.Path.String())

	require.Len(t, q.Sort, 1)
	require.Equal(t, "[name]", q.Sort[0].Path.String())
	require.True(t, q.Sort[0].Ascending)

	require.NotNil(t, q.Limit)
	require.Equal(t, uint64(10), *q.Limit)
}

func TestParseParenthesesAndNot(t *testing.T) {
	q, err := Parse(`!(age < $0 || name == "bob")`)
	require.NoError(t, err)
	root := q.Arena.Get(q.Predicate)
	require.Equal(t, ast.KNot, root.Kind)
	inner := q.Arena.Get(root.Left)
	require.Equal(t, ast.KOr, inner.Kind)
}

func TestParseBetween(t *testing.T) {
	q, err := Parse(`age BETWEEN {18, 65}`)
	require.NoError(t, err)
	root := q.Arena.Get(q.Predicate)
	require.Equal(t, ast.KBetween, root.Kind)
	list := q.Arena.Get(root.Right)
	require.Equal(t, ast.KListLiteral, list.Kind)
	require.Len(t, list.Kids, 2)
}

func TestParseCaseInsensitiveBeginsWith(t *testing.T) {
	q, err := Parse(`name BEGINSWITH[c] "AL"`)
	require.NoError(t, err)
	root := q.Arena.Get(q.Predicate)
	require.Equal(t, ast.KCompare, root.Kind)
	require.Equal(t, ast.BeginsWith, root.CompareOp)
	require.True(t, root.CaseInsensitive)
}

func TestParseAggregatesAndPostOps(t *testing.T) {
	q, err := Parse(`scores.@size > $0 && scores.@avg > $1`)
	require.NoError(t, err)
	root := q.Arena.Get(q.Predicate)
	require.Equal(t, ast.KAnd, root.Kind)

	sizeCmp := q.Arena.Get(root.Kids[0])
	sizeProp := q.Arena.Get(sizeCmp.Left)
	require.Equal(t, ast.KProperty, sizeProp.Kind)
	require.Equal(t, ast.PostSize, sizeProp.PostOp)

	avgCmp := q.Arena.Get(root.Kids[1])
	avgAggr := q.Arena.Get(avgCmp.Left)
	require.Equal(t, ast.KListAggr, avgAggr.Kind)
	require.Equal(t, ast.PostAvg, avgAggr.PostOp)
}

func TestParseLinkAggregate(t *testing.T) {
	q, err := Parse(`dogs.@sum.age > $0`)
	require.NoError(t, err)
	root := q.Arena.Get(q.Predicate)
	left := q.Arena.Get(root.Left)
	require.Equal(t, ast.KLinkAggr, left.Kind)
	require.Equal(t, ast.PostSum, left.PostOp)
	require.Equal(t, "age", left.AggrProp)
}

func TestParseBacklink(t *testing.T) {
	q, err := Parse(`@links.Person.dogs.@count > $0`)
	require.NoError(t, err)
	root := q.Arena.Get(q.Predicate)
	left := q.Arena.Get(root.Left)
	require.Equal(t, ast.KProperty, left.Kind)
	require.Equal(t, ast.PostCount, left.PostOp)
	require.Len(t, left.Path, 1)
}

func TestParseSubquerySize(t *testing.T) {
	q, err := Parse(`SUBQUERY(dogs, d, d.breed == "poodle").@size > $0`)
	require.NoError(t, err)
	root := q.Arena.Get(q.Predicate)
	left := q.Arena.Get(root.Left)
	require.Equal(t, ast.KSubquery, left.Kind)
	require.Equal(t, "d", left.SubqueryVar)
}

func TestParseGeoWithinBox(t *testing.T) {
	q, err := Parse(`location GEOWITHIN geobox(-10.0 20.0, -5.0 25.0)`)
	require.NoError(t, err)
	root := q.Arena.Get(q.Predicate)
	require.Equal(t, ast.KGeoWithin, root.Kind)
	geo := q.Arena.Get(root.Right)
	require.Equal(t, ast.GeoBox, geo.GeoKind)
	require.Len(t, geo.GeoPoints, 2)
}

func TestParseTruePredicateShortcuts(t *testing.T) {
	q, err := Parse(`truepredicate`)
	require.NoError(t, err)
	root := q.Arena.Get(q.Predicate)
	require.Equal(t, ast.KBoolLit, root.Kind)
	require.True(t, root.BoolValue)
}

func TestParseSyntaxErrorReported(t *testing.T) {
	_, err := Parse(`age >`)
	require.Error(t, err)
}

// TestParseIsDeterministic is the P9 property: parsing the same source
// string twice always yields a tree of equal shape, so the binder/evaluator
// downstream never observes nondeterministic structure for identical input.
func TestParseIsDeterministic(t *testing.T) {
	seeds := []string{
		`age > $0`,
		`name BEGINSWITH[c] "a" && age < $0`,
		`ANY dogs.breed == "poodle" || NONE cats.breed == "tabby"`,
		`score BETWEEN {1, 10}`,
		`scores.@sum > $0`,
		`!(a == $0) SORT(a ASC, b DESC) LIMIT(5)`,
	}
	fz := fuzz.NewWithSeed(42)
	for i, base := range seeds {
		for variant := 0; variant < 5; variant++ {
			src := mutateWhitespace(fz, base)
			q1, err1 := Parse(src)
			q2, err2 := Parse(src)
			if err1 != nil {
				require.Error(t, err2, "seed %d variant %d: %q", i, variant, src)
				continue
			}
			require.NoError(t, err2)
			require.Equal(t, shapeOf(q1), shapeOf(q2), "seed %d variant %d: %q", i, variant, src)
		}
	}
}

// mutateWhitespace pads a query string with fuzz-chosen amounts of
// insignificant whitespace around its tokens without altering semantics.
func mutateWhitespace(fz *fuzz.Fuzzer, src string) string {
	var pad int
	fz.Fuzz(&pad)
	n := pad % 3
	if n < 0 {
		n = -n
	}
	spacer := ""
	for i := 0; i < n; i++ {
		spacer += " "
	}
	return spacer + src + spacer
}

// shapeOf renders a parse tree into a deterministic string for structural
// comparison, independent of arena allocation order.
func shapeOf(q *ast.Query) string {
	return fmt.Sprintf("pred=%s sort=%v distinct=%v limit=%v", shapeOfNode(q.Arena, q.Predicate), q.Sort, q.Distinct, q.Limit)
}

func shapeOfNode(a *ast.Arena, id ast.NodeID) string {
	if id == ast.Invalid {
		return "<nil>"
	}
	n := a.Get(id)
	switch n.Kind {
	case ast.KOr, ast.KAnd, ast.KListLiteral:
		s := fmt.Sprintf("%s(", n.Kind)
		for i, k := range n.Kids {
			if i > 0 {
				s += ","
			}
			s += shapeOfNode(a, k)
		}
		return s + ")"
	case ast.KNot:
		return "Not(" + shapeOfNode(a, n.Left) + ")"
	case ast.KCompare:
		return fmt.Sprintf("Compare(%d,%s,%s)", n.CompareOp, shapeOfNode(a, n.Left), shapeOfNode(a, n.Right))
	case ast.KBetween:
		return "Between(" + shapeOfNode(a, n.Left) + "," + shapeOfNode(a, n.Right) + ")"
	case ast.KProperty:
		return fmt.Sprintf("Prop(%s,q=%d,op=%d)", n.Path.String(), n.Quantifier, n.PostOp)
	case ast.KConstant:
		return fmt.Sprintf("Const(%v,arg=%v,%d)", n.ConstValue, n.IsArgument, n.ArgIndex)
	case ast.KBoolLit:
		return fmt.Sprintf("Bool(%v)", n.BoolValue)
	default:
		return n.Kind.String()
	}
}
