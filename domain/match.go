package domain

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/birdie-ai/ormkit/xtime"
)

// match evaluates the positive operator of n against the resolved value v.
func (n condNode) match(v any, r FieldResolver) (bool, error) {
	switch n.op {
	case Eq:
		if n.cond.Value == false || n.cond.Value == nil {
			if vs, ok := v.(Values); ok {
				return slices.ContainsFunc(vs, isNull), nil
			}
			return isNull(v), nil
		}
		return anyOf(v, func(e any) (bool, error) {
			return equal(e, n.cond.Value)
		})
	case In:
		vs, ok := v.(Values)
		if !ok {
			return n.in(v)
		}
		for _, e := range vs {
			if ok, err := n.in(e); ok || err != nil {
				return ok, err
			}
		}
		return false, nil
	case Gt, Gte, Lt, Lte:
		return anyOf(v, func(e any) (bool, error) {
			c, err := compare(e, n.cond.Value)
			if err != nil {
				return false, err
			}
			switch n.op {
			case Gt:
				return c > 0, nil
			case Gte:
				return c >= 0, nil
			case Lt:
				return c < 0, nil
			}
			return c <= 0, nil
		})
	case Like, ILike, EqLike, EqILike:
		return anyOf(v, func(e any) (bool, error) {
			s, ok := e.(string)
			if !ok {
				return false, fmt.Errorf("%w: %q needs a text value but got %T", ErrTypeMismatch, n.cond.Op, e)
			}
			return n.pattern.MatchString(s), nil
		})
	case ChildOf:
		h, err := hierarchy(r, n.cond.Op)
		if err != nil {
			return false, err
		}
		return anyOf(v, func(e any) (bool, error) {
			return walkUp(h, n.cond.Field, e, func(id any) (bool, error) {
				return contains(n.values, id)
			})
		})
	case ParentOf:
		h, err := hierarchy(r, n.cond.Op)
		if err != nil {
			return false, err
		}
		for _, target := range n.values {
			found, err := walkUp(h, n.cond.Field, target, func(id any) (bool, error) {
				return anyOf(v, func(e any) (bool, error) {
					return equal(e, id)
				})
			})
			if found || err != nil {
				return found, err
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidDomain, n.cond.Op)
}

// in reports whether v, or any of its elements, is one of the values of n.
func (n condNode) in(v any) (bool, error) {
	if isNull(v) {
		return containsNull(n.values), nil
	}
	return anyOf(v, func(e any) (bool, error) {
		return contains(n.values, e)
	})
}

func hierarchy(r FieldResolver, op Operator) (Hierarchy, error) {
	h, ok := r.(Hierarchy)
	if !ok {
		return nil, fmt.Errorf("%w: operator %q requires a resolver with a parent hierarchy", ErrInvalidDomain, op)
	}
	return h, nil
}

// walkUp calls found for start and each of its ancestors until it returns true
// or the root is reached. Cycles end the walk.
func walkUp(h Hierarchy, path string, start any, found func(id any) (bool, error)) (bool, error) {
	visited := map[any]struct{}{}
	cur := start
	for !isNull(cur) {
		key := idKey(cur)
		if _, ok := visited[key]; ok {
			return false, nil
		}
		visited[key] = struct{}{}

		ok, err := found(cur)
		if ok || err != nil {
			return ok, err
		}
		cur, err = h.Parent(path, cur)
		if err != nil {
			return false, fmt.Errorf("walking parents of %v: %w", start, err)
		}
	}
	return false, nil
}

// anyOf applies f to v, or to each of its elements when v is multi-valued.
// NULL elements are skipped.
func anyOf(v any, f func(e any) (bool, error)) (bool, error) {
	values, ok := listValues(v)
	if !ok {
		if v == nil {
			return false, nil
		}
		return f(v)
	}
	for _, e := range values {
		if e == nil {
			continue
		}
		ok, err := anyOf(e, f)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

// isNull reports whether v is NULL: nil, false or an empty multi-valued field.
func isNull(v any) bool {
	if v == nil || v == false {
		return true
	}
	values, ok := listValues(v)
	return ok && len(values) == 0
}

func containsNull(values []any) bool {
	for _, v := range values {
		if v == nil || v == false {
			return true
		}
	}
	return false
}

func contains(values []any, v any) (bool, error) {
	for _, e := range values {
		if e == nil || e == false {
			continue
		}
		ok, err := equal(v, e)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

func equal(a, b any) (bool, error) {
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return false, mismatch(a, b)
		}
		return ab == bb, nil
	}
	c, err := compare(a, b)
	return c == 0 && err == nil, err
}

// compare returns -1, 0 or +1 comparing a with b in their natural order.
func compare(a, b any) (int, error) {
	if ai, ok := integer(a); ok {
		if bi, ok := integer(b); ok {
			return cmp.Compare(ai, bi), nil
		}
	}
	if af, ok := number(a); ok {
		bf, ok := number(b)
		if !ok {
			return 0, mismatch(a, b)
		}
		return cmp.Compare(af, bf), nil
	}
	if at, ok := a.(time.Time); ok {
		bt, err := timeValue(b)
		if err != nil {
			return 0, err
		}
		return at.Compare(bt), nil
	}
	if as, ok := a.(string); ok {
		if bt, ok := b.(time.Time); ok {
			at, err := timeValue(as)
			if err != nil {
				return 0, err
			}
			return at.Compare(bt), nil
		}
		bs, ok := b.(string)
		if !ok {
			return 0, mismatch(a, b)
		}
		return strings.Compare(as, bs), nil
	}
	return 0, mismatch(a, b)
}

func timeValue(v any) (time.Time, error) {
	switch vv := v.(type) {
	case time.Time:
		return vv, nil
	case string:
		t, err := xtime.Parse(vv)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %T is not a date/datetime", ErrTypeMismatch, v)
}

// integer returns v as an int64 if it is an integer number that fits one.
func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// idKey normalizes ids so numerically equal ids of different types are the same map key.
func idKey(v any) any {
	if i, ok := integer(v); ok {
		return i
	}
	if f, ok := number(v); ok {
		if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
			return int64(f)
		}
		return f
	}
	return fmt.Sprint(v)
}

func mismatch(a, b any) error {
	return fmt.Errorf("%w: can't compare %T with %T", ErrTypeMismatch, a, b)
}

// likePattern translates a like pattern to a regular expression.
// '%' matches any run of characters, '_' any single character and '\' escapes the next one.
// Unless anchored the pattern matches anywhere in the value.
func likePattern(pattern string, anchored, fold bool) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?s")
	if fold {
		b.WriteString("i")
	}
	b.WriteString(")^")
	if !anchored {
		b.WriteString(".*")
	}
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		b.WriteString(`\\`)
	}
	if !anchored {
		b.WriteString(".*")
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
