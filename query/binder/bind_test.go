package binder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/turbodb/query/ast"
	"github.com/ledgerwatch/turbodb/query/binder"
	"github.com/ledgerwatch/turbodb/query/parser"
	"github.com/ledgerwatch/turbodb/schema"
	"github.com/ledgerwatch/turbodb/status"
	"github.com/ledgerwatch/turbodb/value"
)

type fakeArgs struct {
	ints []int64
}

func (f fakeArgs) IntForArgument(n int) (int64, error) {
	if n < 0 || n >= len(f.ints) {
		return 0, status.Newf(status.ArgumentOutOfRange, "argument $%d out of range", n)
	}
	return f.ints[n], nil
}
func (f fakeArgs) DoubleForArgument(n int) (float64, error)           { return 0, nil }
func (f fakeArgs) BoolForArgument(n int) (bool, error)                { return false, nil }
func (f fakeArgs) StringForArgument(n int) (string, error)            { return "", nil }
func (f fakeArgs) BinaryForArgument(n int) ([]byte, error)            { return nil, nil }
func (f fakeArgs) ObjectForArgument(n int) (value.LinkValue, error)   { return value.LinkValue{}, nil }

func buildSchema(t *testing.T) (*schema.Schema, *schema.ObjectType) {
	dog := &schema.ObjectType{
		Name: "Dog",
		Kind: schema.Embedded,
		Properties: []schema.Property{
			{Name: "breed", ValueKind: value.String},
		},
	}
	person := &schema.ObjectType{
		Name: "Person",
		Kind: schema.TopLevel,
		Properties: []schema.Property{
			{Name: "age", ValueKind: value.Int},
			{Name: "name", ValueKind: value.String},
			{Name: "dogs", ValueKind: value.Link, Collection: schema.ListCollection, Target: "Dog"},
		},
	}
	sch, err := schema.New(person, dog)
	require.NoError(t, err)
	return sch, person
}

// TestBindSeedScenarioFive binds the exact predicate named by this module's
// testable-properties seed scenario 5: `age > $0 && ANY dogs.breed ==
// "poodle" SORT(name ASC) LIMIT(10)` against a Person/Dog schema.
func TestBindSeedScenarioFive(t *testing.T) {
	q, err := parser.Parse(`age > $0 && ANY dogs.breed == "poodle" SORT(name ASC) LIMIT(10)`)
	require.NoError(t, err)

	sch, person := buildSchema(t)
	b, err := binder.Bind(q, sch, person, fakeArgs{ints: []int64{21}})
	require.NoError(t, err)
	require.Same(t, q, b.Query)

	root := q.Arena.Get(q.Predicate)
	require.Equal(t, ast.KAnd, root.Kind)

	ageCmp := q.Arena.Get(root.Kids[0])
	ageArg := q.Arena.Get(ageCmp.Right)
	require.False(t, ageArg.IsArgument)
	require.Equal(t, int64(21), ageArg.ConstValue.I)
}

func TestBindRejectsUnknownProperty(t *testing.T) {
	q, err := parser.Parse(`nonexistent == $0`)
	require.NoError(t, err)
	sch, person := buildSchema(t)
	_, err = binder.Bind(q, sch, person, fakeArgs{})
	require.Error(t, err)
	st, ok := err.(status.Status)
	require.True(t, ok)
	require.Equal(t, status.InvalidQueryName, st.Code)
}

func TestBindRejectsArgumentOutOfRange(t *testing.T) {
	q, err := parser.Parse(`age > $3`)
	require.NoError(t, err)
	sch, person := buildSchema(t)
	_, err = binder.Bind(q, sch, person, fakeArgs{ints: []int64{1}})
	require.Error(t, err)
	st, ok := err.(status.Status)
	require.True(t, ok)
	require.Equal(t, status.InvalidArgument, st.Code)
}

func TestBindRejectsTypeMismatch(t *testing.T) {
	q, err := parser.Parse(`age == "not a number"`)
	require.NoError(t, err)
	sch, person := buildSchema(t)
	_, err = binder.Bind(q, sch, person, fakeArgs{})
	require.Error(t, err)
}

func TestBindResolvesEmbeddedCollectionPath(t *testing.T) {
	q, err := parser.Parse(`ANY dogs.breed == "poodle"`)
	require.NoError(t, err)
	sch, person := buildSchema(t)
	_, err = binder.Bind(q, sch, person, fakeArgs{})
	require.NoError(t, err)
}
