package domain_test

import (
	"errors"
	"testing"

	"github.com/birdie-ai/ormkit/domain"
	"github.com/birdie-ai/ormkit/obj"
)

func TestLike(t *testing.T) {
	t.Parallel()

	type testcase struct {
		value   string
		op      domain.Operator
		pattern string
		want    bool
	}

	for _, tc := range []testcase{
		{value: "John Doe", op: domain.Like, pattern: "John", want: true},
		{value: "John Doe", op: domain.Like, pattern: "Doe", want: true},
		{value: "John Doe", op: domain.Like, pattern: "john", want: false},
		{value: "John Doe", op: domain.ILike, pattern: "john", want: true},
		{value: "John Doe", op: domain.Like, pattern: "John%", want: true},
		{value: "John Doe", op: domain.Like, pattern: "", want: true},
		{value: "John Doe", op: domain.EqLike, pattern: "John", want: false},
		{value: "John", op: domain.EqLike, pattern: "J_hn", want: true},
		{value: "Joohn", op: domain.EqLike, pattern: "J_hn", want: false},
		{value: "jOHN smith", op: domain.EqILike, pattern: "j__n%", want: true},
		{value: "jOHN smith", op: domain.EqLike, pattern: "j__n%", want: false},
		{value: "test user", op: domain.NotLike, pattern: "%test%", want: false},
		{value: "Prod", op: domain.NotILike, pattern: "%TEST%", want: true},
		{value: "Prod TEST", op: domain.NotILike, pattern: "test", want: false},
		{value: "100%", op: domain.EqLike, pattern: `100\%`, want: true},
		{value: "1000", op: domain.EqLike, pattern: `100\%`, want: false},
		{value: "a_b", op: domain.EqLike, pattern: `a\_b`, want: true},
		{value: "axb", op: domain.EqLike, pattern: `a\_b`, want: false},
		{value: "a.b", op: domain.EqLike, pattern: "a.b", want: true},
		{value: "axb", op: domain.EqLike, pattern: "a.b", want: false},
		{value: "(1+1)*", op: domain.Like, pattern: "(1+1)", want: true},
		{value: "line1\nline2", op: domain.Like, pattern: "1_l", want: true},
	} {
		t.Run(string(tc.op)+" "+tc.pattern, func(t *testing.T) {
			t.Parallel()

			d := domain.Domain{domain.C("name", tc.op, tc.pattern)}
			got, err := domain.Evaluate(d, obj.O{"name": tc.value}, domain.ObjResolver{})
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("%q %s %q = %v; want %v", tc.value, tc.op, tc.pattern, got, tc.want)
			}
		})
	}
}

// tree resolves ids of a parent relation kept in a map, ids without entry are roots.
type tree struct {
	domain.ObjResolver
	parents map[int]int
}

func (tr tree) Parent(_ string, id any) (any, error) {
	n, ok := id.(int)
	if !ok {
		return nil, errors.New("unexpected id type")
	}
	p, ok := tr.parents[n]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func TestHierarchy(t *testing.T) {
	t.Parallel()

	tr := tree{parents: map[int]int{
		2: 1, 3: 2, 4: 3,
		// cycle
		20: 21, 21: 20,
	}}

	type testcase struct {
		name string
		id   int
		cond domain.Cond
		want bool
	}

	for _, tc := range []testcase{
		{name: "descendant", id: 4, cond: domain.C("id", domain.ChildOf, 1), want: true},
		{name: "self", id: 4, cond: domain.C("id", domain.ChildOf, 4), want: true},
		{name: "unrelated", id: 4, cond: domain.C("id", domain.ChildOf, 10), want: false},
		{name: "ancestor is not a child", id: 1, cond: domain.C("id", domain.ChildOf, 4), want: false},
		{name: "any of list", id: 3, cond: domain.C("id", domain.ChildOf, []any{10, 2}), want: true},
		{name: "parent_of", id: 2, cond: domain.C("id", domain.ParentOf, 4), want: true},
		{name: "parent_of self", id: 2, cond: domain.C("id", domain.ParentOf, 2), want: true},
		{name: "descendant is not a parent", id: 4, cond: domain.C("id", domain.ParentOf, 2), want: false},
		{name: "parent_of any of list", id: 1, cond: domain.C("id", domain.ParentOf, []int{10, 3}), want: true},
		{name: "cycle child_of terminates", id: 20, cond: domain.C("id", domain.ChildOf, 1), want: false},
		{name: "cycle child_of member", id: 20, cond: domain.C("id", domain.ChildOf, 21), want: true},
		{name: "cycle parent_of terminates", id: 1, cond: domain.C("id", domain.ParentOf, 20), want: false},
		{name: "cycle parent_of member", id: 21, cond: domain.C("id", domain.ParentOf, 20), want: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := domain.Evaluate(domain.Domain{tc.cond}, obj.O{"id": tc.id}, tr)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Fatalf("record %d %v = %v; want %v", tc.id, tc.cond, got, tc.want)
			}
		})
	}
}
