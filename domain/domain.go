// Package domain implements search domains: prefix-notation boolean filters over
// field comparisons, like:
//
//	domain.Domain{
//		domain.Or,
//		domain.C("customer", domain.Eq, true),
//		domain.C("country_id.code", domain.In, []string{"US", "UK"}),
//	}
//
// A domain is a flat sequence of [Cond] and [Logic] terms. [And] and [Or] take the
// two terms (or sub expressions) that follow them and [Not] takes one. Consecutive
// terms not joined by an operator are joined with [And]. The empty domain matches
// every record.
//
// Domains are evaluated against opaque records through an injected [FieldResolver],
// so any host can provide typed field access and relation traversal.
package domain

import (
	"bytes"
	"errors"
	"fmt"
)

type (
	// Term is a single token of a [Domain], either a [Cond] or a [Logic] operator.
	Term interface {
		isTerm()
	}

	// Cond is a comparison triple (field path, operator, value).
	// The field is a dotted path, each segment but the last following a relation.
	// A false Value on [Eq] and [Neq] is a NULL test.
	Cond struct {
		Field string
		Op    Operator
		Value any
	}

	// Logic is a prefix boolean operator: [And], [Or] or [Not].
	Logic string

	// Domain is an ordered sequence of terms in prefix notation.
	Domain []Term

	// Operator is a comparison operator of a [Cond].
	Operator string

	// Record is an opaque record, only interpreted by a [FieldResolver].
	Record any

	// FieldResolver resolves dotted field paths against records.
	//
	// ResolveField returns nil for NULL values. When an intermediate relation of the
	// path is empty the whole path MUST resolve to nil instead of failing.
	// Paths traversing multi-valued relations resolve to [Values].
	// Unknown fields MUST fail with an error matching [ErrUnknownField].
	FieldResolver interface {
		ResolveField(rec Record, path string) (any, error)
	}

	// Hierarchy is implemented by resolvers of self-referential parent relations,
	// it is required by [ChildOf] and [ParentOf].
	//
	// Parent returns the parent id of the record with the given id in the model
	// targeted by path, or nil if the record is a root.
	Hierarchy interface {
		Parent(path string, id any) (any, error)
	}

	// Values is the value of a path traversing a multi-valued relation: one
	// element per related record, nil for the related records where the rest of
	// the path is NULL. A NULL test matches when any element is NULL, so empty
	// Values (no related records) never match it. The value of a multi-valued
	// field itself is a plain slice instead, NULL when empty.
	Values []any

	// ResolverFunc adapts a function to a [FieldResolver].
	ResolverFunc func(rec Record, path string) (any, error)
)

// Logic operators.
const (
	And Logic = "&"
	Or  Logic = "|"
	Not Logic = "!"
)

// Comparison operators.
const (
	Eq       Operator = "="
	Neq      Operator = "!="
	Gt       Operator = ">"
	Gte      Operator = ">="
	Lt       Operator = "<"
	Lte      Operator = "<="
	In       Operator = "in"
	NotIn    Operator = "not in"
	Like     Operator = "like"
	ILike    Operator = "ilike"
	EqLike   Operator = "=like"
	EqILike  Operator = "=ilike"
	NotLike  Operator = "not like"
	NotILike Operator = "not ilike"
	ChildOf  Operator = "child_of"
	ParentOf Operator = "parent_of"
)

// Errors reported by compilation and evaluation.
var (
	// ErrInvalidDomain indicates a malformed domain, like unbalanced operators or unknown operators.
	ErrInvalidDomain = errors.New("invalid domain")
	// ErrUnknownField indicates a field path that can't be resolved.
	ErrUnknownField = errors.New("unknown field")
	// ErrTypeMismatch indicates a comparison against a value of an incompatible type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrSyntax indicates that the textual form of a domain can't be parsed.
	ErrSyntax = errors.New("domain syntax error")
)

var operators = map[Operator]struct{}{
	Eq: {}, Neq: {}, Gt: {}, Gte: {}, Lt: {}, Lte: {}, In: {}, NotIn: {},
	Like: {}, ILike: {}, EqLike: {}, EqILike: {}, NotLike: {}, NotILike: {},
	ChildOf: {}, ParentOf: {},
}

// C creates a [Cond].
func C(field string, op Operator, value any) Cond {
	return Cond{Field: field, Op: op, Value: value}
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	_, ok := operators[o]
	return ok
}

// positive returns the operator o negates, if any.
func (o Operator) positive() (Operator, bool) {
	switch o {
	case Neq:
		return Eq, true
	case NotIn:
		return In, true
	case NotLike:
		return Like, true
	case NotILike:
		return ILike, true
	}
	return o, false
}

// arity is the number of operands the operator takes, 0 for unknown operators.
func (l Logic) arity() int {
	switch l {
	case And, Or:
		return 2
	case Not:
		return 1
	}
	return 0
}

func (Cond) isTerm()  {}
func (Logic) isTerm() {}

// ResolveField calls f.
func (f ResolverFunc) ResolveField(rec Record, path string) (any, error) {
	return f(rec, path)
}

func (c Cond) String() string {
	return fmt.Sprintf("(%q, %q, %v)", c.Field, c.Op, c.Value)
}

// String returns the JSON form of the domain, see [Encode].
func (d Domain) String() string {
	var buf bytes.Buffer
	if err := Encode(&buf, d); err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return buf.String()
}

// AND combines the given domains so that a record matches all of them.
// Empty domains match everything and are skipped.
func AND(ds ...Domain) (Domain, error) {
	return combine(And, ds)
}

// OR combines the given domains so that a record matches any of them.
// If any of the domains is empty the result is empty, matching everything.
func OR(ds ...Domain) (Domain, error) {
	for _, d := range ds {
		if len(d) == 0 {
			return Domain{}, nil
		}
	}
	return combine(Or, ds)
}

func combine(op Logic, ds []Domain) (Domain, error) {
	var (
		res   Domain
		count int
	)
	for _, d := range ds {
		if len(d) == 0 {
			continue
		}
		n, err := Normalize(d)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			res = append(Domain{op}, res...)
		}
		res = append(res, n...)
		count++
	}
	if res == nil {
		res = Domain{}
	}
	return res, nil
}
