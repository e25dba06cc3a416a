package domain

import (
	"fmt"

	"github.com/birdie-ai/ormkit/obj"
)

// ObjResolver is a [FieldResolver] for [obj.O] records where relations are
// nested objects (many2one) or lists of nested objects (x2many).
// Fields missing from an object are unknown, nil or false relations resolve to NULL
// and NULL elements of a list of objects are skipped.
type ObjResolver struct{}

// ResolveField resolves path against rec, which must be an [obj.O].
func (ObjResolver) ResolveField(rec Record, path string) (any, error) {
	segments, err := obj.Segments(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownField, err)
	}
	return resolveObj(rec, segments, path)
}

func resolveObj(node any, segments []string, path string) (any, error) {
	o, ok := node.(obj.O)
	if !ok {
		return nil, fmt.Errorf("%w: %q: want object got %T", ErrUnknownField, path, node)
	}
	v, ok := o[segments[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %q: missing %q", ErrUnknownField, path, segments[0])
	}
	rest := segments[1:]
	if len(rest) == 0 {
		return v, nil
	}
	list, ok := v.([]any)
	if !ok {
		if isNull(v) {
			return nil, nil
		}
		return resolveObj(v, rest, path)
	}
	res := Values{}
	for _, e := range list {
		if isNull(e) {
			continue
		}
		ev, err := resolveObj(e, rest, path)
		if err != nil {
			return nil, err
		}
		evs, ok := ev.(Values)
		switch {
		case !ok:
			res = append(res, ev)
		case len(evs) == 0:
			res = append(res, nil)
		default:
			res = append(res, evs...)
		}
	}
	return res, nil
}
