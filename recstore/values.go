package recstore

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/birdie-ai/ormkit/relcmd"
	"github.com/birdie-ai/ormkit/xtime"
)

// convert returns the stored form of v for a scalar field, nil for NULL.
func convert(f Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.(bool); ok && !b && f.Type != Boolean {
		return nil, nil
	}
	switch f.Type {
	case Char, Text:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Selection:
		if s, ok := v.(string); ok {
			if !slices.Contains(f.Selection, s) {
				return nil, fmt.Errorf("%w: %q is not one of %q", ErrInvalidValue, s, f.Selection)
			}
			return s, nil
		}
	case Integer:
		if n, ok := toInt(v); ok {
			return n, nil
		}
	case Float:
		if n, ok := toFloat(v); ok {
			return n, nil
		}
	case Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Date:
		switch t := v.(type) {
		case time.Time:
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		case string:
			d, err := xtime.ParseDate(t)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return d, nil
		}
	case Datetime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			d, err := xtime.ParseDatetime(t)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %T is not a valid %s value", ErrInvalidValue, v, f.Type)
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// toID converts ids given as any integral number.
func toID(v any) (ID, bool) {
	id, ok := toInt(v)
	return id, ok && id > 0
}

// toCommands converts the value of an x2many field to commands.
// Values other than commands are taken as their JSON form, see [relcmd.Parse].
// NULL clears the links.
func toCommands(v any) (relcmd.Commands, error) {
	switch c := v.(type) {
	case nil:
		return relcmd.Commands{relcmd.Clear()}, nil
	case bool:
		if !c {
			return relcmd.Commands{relcmd.Clear()}, nil
		}
	case relcmd.Commands:
		return c, c.Validate()
	case []relcmd.Command:
		return c, relcmd.Commands(c).Validate()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: commands: %v", ErrInvalidValue, err)
	}
	return relcmd.Parse(data)
}
