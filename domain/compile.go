package domain

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/birdie-ai/ormkit/obj"
)

// Predicate is a compiled [Domain]. It is immutable and can be reused
// (also concurrently) to match any number of records.
type Predicate struct {
	root node
}

type (
	node interface {
		eval(rec Record, r FieldResolver) (bool, error)
	}

	constNode bool

	notNode struct {
		n node
	}

	andNode struct {
		l, r node
	}

	orNode struct {
		l, r node
	}

	condNode struct {
		cond Cond
		// op is the positive operator evaluated, negate is set for the negated ops.
		op      Operator
		negate  bool
		values  []any
		pattern *regexp.Regexp
	}
)

// Evaluate compiles d and matches rec against it.
func Evaluate(d Domain, rec Record, r FieldResolver) (bool, error) {
	p, err := Compile(d)
	if err != nil {
		return false, err
	}
	return p.Match(rec, r)
}

// Compile validates d and compiles it into a [Predicate].
//
// The terms are reduced with an operand stack, from the last term to the first,
// each operator popping its operands from the stack. Operands remaining on the
// stack once all terms are consumed are joined with [And], in their original order.
// Operators lacking operands, unknown operators and invalid field paths fail with
// [ErrInvalidDomain]. Values of the wrong kind for their operator (like a non list
// value for [In]) fail with [ErrTypeMismatch].
func Compile(d Domain) (*Predicate, error) {
	var stack []node
	for i := len(d) - 1; i >= 0; i-- {
		switch t := d[i].(type) {
		case Cond:
			n, err := compileCond(t)
			if err != nil {
				return nil, fmt.Errorf("term %d: %w", i, err)
			}
			stack = append(stack, n)
		case Logic:
			arity := t.arity()
			if arity == 0 {
				return nil, fmt.Errorf("%w: term %d: unknown logic operator %q", ErrInvalidDomain, i, string(t))
			}
			if len(stack) < arity {
				return nil, fmt.Errorf("%w: term %d: operator %q needs %d operands but has %d", ErrInvalidDomain, i, string(t), arity, len(stack))
			}
			// the top of the stack is the leftmost operand.
			first := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if t == Not {
				stack = append(stack, notNode{first})
				continue
			}
			second := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if t == And {
				stack = append(stack, andNode{first, second})
			} else {
				stack = append(stack, orNode{first, second})
			}
		default:
			return nil, fmt.Errorf("%w: term %d: unexpected term %T", ErrInvalidDomain, i, d[i])
		}
	}
	if len(stack) == 0 {
		return &Predicate{root: constNode(true)}, nil
	}
	root := stack[len(stack)-1]
	for i := len(stack) - 2; i >= 0; i-- {
		root = andNode{root, stack[i]}
	}
	return &Predicate{root: root}, nil
}

// Match reports whether rec matches the predicate.
// Evaluation has no side effects besides calling r.
func (p *Predicate) Match(rec Record, r FieldResolver) (bool, error) {
	return p.root.eval(rec, r)
}

// Normalize returns a domain equivalent to d where all implicit [And] are explicit,
// so every operator has exactly its operands following it. Normalize is idempotent.
func Normalize(d Domain) (Domain, error) {
	var (
		res      = make(Domain, 0, len(d))
		expected = 1
	)
	for i, term := range d {
		if expected == 0 {
			res = append(Domain{And}, res...)
			expected = 1
		}
		switch t := term.(type) {
		case Cond:
			if err := validateCond(t); err != nil {
				return nil, fmt.Errorf("term %d: %w", i, err)
			}
			expected--
		case Logic:
			arity := t.arity()
			if arity == 0 {
				return nil, fmt.Errorf("%w: term %d: unknown logic operator %q", ErrInvalidDomain, i, string(t))
			}
			expected += arity - 1
		default:
			return nil, fmt.Errorf("%w: term %d: unexpected term %T", ErrInvalidDomain, i, term)
		}
		res = append(res, term)
	}
	if len(d) > 0 && expected != 0 {
		return nil, fmt.Errorf("%w: %d missing operands", ErrInvalidDomain, expected)
	}
	return res, nil
}

func validateCond(c Cond) error {
	if !obj.IsValidPath(c.Field) {
		return fmt.Errorf("%w: invalid field path %q", ErrInvalidDomain, c.Field)
	}
	if !c.Op.Valid() {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidDomain, c.Op)
	}
	return nil
}

func compileCond(c Cond) (node, error) {
	if err := validateCond(c); err != nil {
		return nil, err
	}
	n := condNode{cond: c}
	n.op, n.negate = c.Op.positive()

	switch n.op {
	case In:
		values, ok := listValues(c.Value)
		if !ok {
			return nil, fmt.Errorf("%w: operator %q requires a list but got %T", ErrTypeMismatch, c.Op, c.Value)
		}
		n.values = values
	case ChildOf, ParentOf:
		if values, ok := listValues(c.Value); ok {
			n.values = values
		} else {
			n.values = []any{c.Value}
		}
	case Like, ILike, EqLike, EqILike:
		s, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: operator %q requires a string pattern but got %T", ErrTypeMismatch, c.Op, c.Value)
		}
		anchored := n.op == EqLike || n.op == EqILike
		fold := n.op == ILike || n.op == EqILike
		n.pattern = likePattern(s, anchored, fold)
	case Gt, Gte, Lt, Lte:
		if c.Value == nil || isList(c.Value) {
			return nil, fmt.Errorf("%w: operator %q requires a scalar but got %T", ErrTypeMismatch, c.Op, c.Value)
		}
	}
	return n, nil
}

func (c constNode) eval(Record, FieldResolver) (bool, error) {
	return bool(c), nil
}

func (n notNode) eval(rec Record, r FieldResolver) (bool, error) {
	v, err := n.n.eval(rec, r)
	return !v, err
}

// Both operands are always evaluated, so errors don't depend on the data.
func (n andNode) eval(rec Record, r FieldResolver) (bool, error) {
	l, err := n.l.eval(rec, r)
	if err != nil {
		return false, err
	}
	rv, err := n.r.eval(rec, r)
	if err != nil {
		return false, err
	}
	return l && rv, nil
}

func (n orNode) eval(rec Record, r FieldResolver) (bool, error) {
	l, err := n.l.eval(rec, r)
	if err != nil {
		return false, err
	}
	rv, err := n.r.eval(rec, r)
	if err != nil {
		return false, err
	}
	return l || rv, nil
}

func (n condNode) eval(rec Record, r FieldResolver) (bool, error) {
	v, err := r.ResolveField(rec, n.cond.Field)
	if err != nil {
		return false, fmt.Errorf("resolving %q: %w", n.cond.Field, err)
	}
	ok, err := n.match(v, r)
	if err != nil {
		return false, fmt.Errorf("evaluating %v: %w", n.cond, err)
	}
	return ok != n.negate, nil
}

func listValues(v any) ([]any, bool) {
	if vv, ok := v.([]any); ok {
		return vv, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	res := make([]any, rv.Len())
	for i := range res {
		res[i] = rv.Index(i).Interface()
	}
	return res, true
}

func isList(v any) bool {
	_, ok := listValues(v)
	return ok
}
