// Package obj provides an easy way to handle dynamic records in Go.
// A record being basically a map[string]any whose fields are addressed by dotted paths.
package obj

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// O represents a dynamic object, the field values of a record.
// It is just an alias to avoid typing map[string]any until your fingers bleed.
type O = map[string]any

var (
	// ErrNotFound indicates that a key was not found while traversing a [O].
	ErrNotFound = errors.New("traversing object: key not found")

	// ErrInvalidPath indicates that a traversal path is invalid.
	ErrInvalidPath = errors.New("object traversal path is invalid")
)

// Segments splits a dotted path like "partner_id.country_id.code" in its segments.
// Segments containing dots can be quoted: `a."b.c".d` has the segments a, b.c and d.
// A quote inside a quoted segment is escaped with a backslash.
// Empty segments (like "", ".", "a." or ".a") make the path invalid.
func Segments(path string) ([]string, error) {
	var (
		segments []string
		current  strings.Builder
		quoted   bool
		escaped  bool
		pending  bool
	)
	for _, r := range path {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quoted:
			escaped = true
		case r == '"':
			quoted = !quoted
			pending = true
		case r == '.' && !quoted:
			if current.Len() == 0 && !pending {
				return nil, fmt.Errorf("%w: %q: empty segment", ErrInvalidPath, path)
			}
			segments = append(segments, current.String())
			current.Reset()
			pending = false
		default:
			current.WriteRune(r)
		}
	}
	if quoted || escaped {
		return nil, fmt.Errorf("%w: %q: unterminated quote", ErrInvalidPath, path)
	}
	if current.Len() == 0 && !pending {
		return nil, fmt.Errorf("%w: %q: empty segment", ErrInvalidPath, path)
	}
	return append(segments, current.String()), nil
}

// Join is the inverse of [Segments], quoting segments when needed.
func Join(segments ...string) string {
	quoted := make([]string, len(segments))
	for i, s := range segments {
		if s == "" || strings.ContainsAny(s, `."\`) {
			s = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
		}
		quoted[i] = s
	}
	return strings.Join(quoted, ".")
}

// IsValidPath returns true if the given path is valid for [Get], [Lookup] and [Set].
func IsValidPath(path string) bool {
	_, err := Segments(path)
	return err == nil
}

// Lookup traverses o following path and returns the value found at its end.
// Every segment but the last MUST address an object. If a key is missing an
// error wrapping [ErrNotFound] is returned.
func Lookup(o O, path string) (any, error) {
	segments, err := Segments(path)
	if err != nil {
		return nil, err
	}
	var node any = o
	for i, key := range segments {
		m, ok := node.(O)
		if !ok {
			return nil, fmt.Errorf("traversing path %q: at %q: want object got %T", path, Join(segments[:i]...), node)
		}
		node, ok = m[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, Join(segments[:i+1]...))
		}
	}
	return node, nil
}

// Get calls [Lookup] and checks that the value found has type T.
func Get[T any](o O, path string) (T, error) {
	var z T
	v, err := Lookup(o, path)
	if err != nil {
		return z, err
	}
	t, ok := v.(T)
	if !ok {
		return z, fmt.Errorf("value at path %q: expected to have type %T but has %T", path, z, v)
	}
	return t, nil
}

// Set traverses o following path, creating intermediate objects as needed,
// and sets the last segment to value. Intermediate values that are not objects are overwritten.
func Set(o O, path string, value any) error {
	if o == nil {
		return fmt.Errorf("can't set %q on nil object", path)
	}
	segments, err := Segments(path)
	if err != nil {
		return err
	}
	node := o
	for _, key := range segments[:len(segments)-1] {
		next, ok := node[key].(O)
		if !ok {
			next = O{}
			node[key] = next
		}
		node = next
	}
	node[segments[len(segments)-1]] = value
	return nil
}

// Project returns a shallow copy of o with only the given keys.
// Keys not present on o are omitted.
func Project(o O, keys ...string) O {
	res := make(O, len(keys))
	for _, k := range keys {
		if v, ok := o[k]; ok {
			res[k] = v
		}
	}
	return res
}

// Keys returns the keys of o sorted.
func Keys(o O) []string {
	return slices.Sorted(maps.Keys(o))
}

// Clone returns a deep copy of o. Nested objects and slices of dynamic values,
// ids or strings are copied, any other value is assumed to be immutable.
func Clone(o O) O {
	if o == nil {
		return nil
	}
	res := make(O, len(o))
	for k, v := range o {
		res[k] = cloneValue(v)
	}
	return res
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case O:
		return Clone(vv)
	case []any:
		res := make([]any, len(vv))
		for i, e := range vv {
			res[i] = cloneValue(e)
		}
		return res
	case []int64:
		return slices.Clone(vv)
	case []string:
		return slices.Clone(vv)
	}
	return v
}
