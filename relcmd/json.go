package relcmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/birdie-ai/ormkit/xerrors"
)

// Parse parses the JSON form of commands, a list of [code, id, payload] lists:
//
//	[[0, 0, {"name": "X"}], [4, 7, 0], [6, 0, [1, 2]], [5]]
//
// Trailing elements may be omitted when they are unused by the code.
// Payload numbers are decoded as [json.Number]. Errors match [ErrSyntax] and
// [ErrInvalidCommand]. The parsed commands are validated, see [Commands.Validate].
func Parse(in []byte) (Commands, error) {
	var items [][]json.RawMessage
	if err := decode(in, &items); err != nil {
		return nil, syntaxErr("expected a JSON list of lists: %v", err)
	}
	cmds := make(Commands, 0, len(items))
	for i, item := range items {
		c, err := parseCommand(item)
		if err != nil {
			return nil, syntaxErr("command %d: %v", i, err)
		}
		cmds = append(cmds, c)
	}
	if err := cmds.Validate(); err != nil {
		return nil, err
	}
	return cmds, nil
}

func parseCommand(item []json.RawMessage) (Command, error) {
	var c Command
	if len(item) == 0 || len(item) > 3 {
		return c, fmt.Errorf("want 1 to 3 elements, got %d", len(item))
	}
	var code int
	if err := decode(item[0], &code); err != nil {
		return c, fmt.Errorf("code: %v", err)
	}
	c.Code = Code(code)

	if len(item) > 1 && !isZero(item[1]) {
		if err := decode(item[1], &c.ID); err != nil {
			return c, fmt.Errorf("id: %v", err)
		}
	}
	if len(item) < 3 {
		return c, nil
	}
	payload := item[2]
	switch c.Code {
	case CREATE, UPDATE:
		if err := decode(payload, &c.Values); err != nil {
			return c, fmt.Errorf("values: %v", err)
		}
	case REPLACE:
		if err := decode(payload, &c.IDs); err != nil {
			return c, fmt.Errorf("ids: %v", err)
		}
	default:
		if !isZero(payload) {
			return c, fmt.Errorf("unexpected payload %s for %v", payload, c.Code)
		}
	}
	return c, nil
}

// Encode writes the JSON form of cmds, see [Parse].
// Every command is written with its three elements.
func Encode(w io.Writer, cmds Commands) error {
	if err := cmds.Validate(); err != nil {
		return err
	}
	items := make([][3]any, len(cmds))
	for i, c := range cmds {
		items[i] = [3]any{int(c.Code), c.ID, 0}
		switch c.Code {
		case CREATE, UPDATE:
			items[i][2] = c.Values
		case REPLACE:
			items[i][2] = c.IDs
		}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding commands: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// isZero reports whether the raw value is one of the placeholders used for unused elements.
func isZero(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "0", "false", "null":
		return true
	}
	return false
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
	return xerrors.Tagf(ErrInvalidCommand, "%w: "+format, append([]any{ErrSyntax}, args...)...)
}
