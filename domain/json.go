package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/birdie-ai/ormkit/xerrors"
)

// Parse parses the JSON form of a domain, a list whose items are either a logic
// operator string or a [field, operator, value] list:
//
//	["|", ["customer", "=", true], ["country_id.code", "in", ["US", "UK"]]]
//
// Numbers are decoded as [json.Number]. Syntax errors match both [ErrSyntax] and [ErrInvalidDomain].
// Parse only checks the form, call [Compile] to validate the domain.
func Parse(in []byte) (Domain, error) {
	var items []json.RawMessage
	if err := decode(in, &items); err != nil {
		return nil, syntaxErr("expected a JSON list: %v", err)
	}
	d := make(Domain, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var op string
			if err := decode(item, &op); err != nil {
				return nil, syntaxErr("item %d: %v", i, err)
			}
			l := Logic(op)
			if l.arity() == 0 {
				return nil, syntaxErr("item %d: unknown logic operator %q", i, op)
			}
			d = append(d, l)
			continue
		}
		var triple []json.RawMessage
		if err := decode(item, &triple); err != nil || len(triple) != 3 {
			return nil, syntaxErr("item %d: expected an operator or a [field, operator, value] list but got %s", i, item)
		}
		var c Cond
		if err := decode(triple[0], &c.Field); err != nil {
			return nil, syntaxErr("item %d: field must be a string: %v", i, err)
		}
		if err := decode(triple[1], (*string)(&c.Op)); err != nil {
			return nil, syntaxErr("item %d: operator must be a string: %v", i, err)
		}
		if err := decode(triple[2], &c.Value); err != nil {
			return nil, syntaxErr("item %d: value: %v", i, err)
		}
		d = append(d, c)
	}
	return d, nil
}

// Encode writes the JSON form of d, see [Parse].
// Terms with unknown operators are not encoded and fail with [ErrInvalidDomain].
func Encode(w io.Writer, d Domain) error {
	items := make([]any, 0, len(d))
	for i, term := range d {
		switch t := term.(type) {
		case Logic:
			if t.arity() == 0 {
				return fmt.Errorf("%w: term %d: unknown logic operator %q", ErrInvalidDomain, i, string(t))
			}
			items = append(items, string(t))
		case Cond:
			if !t.Op.Valid() {
				return fmt.Errorf("%w: term %d: unknown operator %q", ErrInvalidDomain, i, t.Op)
			}
			items = append(items, []any{t.Field, string(t.Op), t.Value})
		default:
			return fmt.Errorf("%w: term %d: unexpected term %T", ErrInvalidDomain, i, term)
		}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding domain: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func decode(in []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(in))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

func syntaxErr(format string, args ...any) error {
	return xerrors.Tagf(ErrInvalidDomain, "%w: "+format, append([]any{ErrSyntax}, args...)...)
}
