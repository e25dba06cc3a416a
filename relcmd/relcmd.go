// Package relcmd implements relational commands: the small instruction
// language used to edit the set of child records linked to a parent through
// a one2many or many2many relation.
//
// A command is a (code, target, payload) triple. Commands of a sequence are
// applied in order by [Apply], which is all or nothing: either every command
// applies or the caller observes no change in the link set.
package relcmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/birdie-ai/ormkit/obj"
)

type (
	// ID identifies a child record.
	ID = int64

	// Code is the kind of command.
	Code int

	// Command is a single relational command.
	// Which of ID, Values and IDs are meaningful depends on the Code.
	Command struct {
		Code   Code
		ID     ID
		Values obj.O
		IDs    []ID
	}

	// Commands is a sequence of commands, applied in order.
	Commands []Command

	// ChildStore stores the child records targeted by commands.
	// Update and Remove of absent records must fail with an error matching [ErrNotFound].
	ChildStore interface {
		Insert(ctx context.Context, values obj.O) (ID, error)
		Update(ctx context.Context, id ID, values obj.O) error
		Remove(ctx context.Context, id ID) error
		Exists(ctx context.Context, id ID) (bool, error)
	}

	// Batcher is implemented by stores able to apply a group of operations
	// atomically. Batch calls f with a staged view of the store and commits the
	// staged operations only if f returns nil.
	Batcher interface {
		Batch(ctx context.Context, f func(ChildStore) error) error
	}
)

// Command codes.
const (
	CREATE  Code = 0 // create a child from Values and link it
	UPDATE  Code = 1 // update child ID with Values
	DELETE  Code = 2 // remove child ID from the store and the links
	UNLINK  Code = 3 // remove child ID from the links only
	LINK    Code = 4 // link existing child ID
	CLEAR   Code = 5 // remove all links
	REPLACE Code = 6 // replace the links with IDs
)

var (
	// ErrNotFound indicates a command targeting a child absent from the store.
	ErrNotFound = errors.New("child not found")
	// ErrInvalidCommand indicates a malformed command.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrSyntax indicates that the textual form of commands can't be parsed.
	ErrSyntax = errors.New("command syntax error")
)

var codeNames = [...]string{
	CREATE:  "CREATE",
	UPDATE:  "UPDATE",
	DELETE:  "DELETE",
	UNLINK:  "UNLINK",
	LINK:    "LINK",
	CLEAR:   "CLEAR",
	REPLACE: "REPLACE",
}

// Create returns a command creating a child with vals.
func Create(vals obj.O) Command {
	return Command{Code: CREATE, Values: vals}
}

// Update returns a command updating child id with vals.
func Update(id ID, vals obj.O) Command {
	return Command{Code: UPDATE, ID: id, Values: vals}
}

// Delete returns a command deleting child id.
func Delete(id ID) Command {
	return Command{Code: DELETE, ID: id}
}

// Unlink returns a command unlinking child id, keeping it on the store.
func Unlink(id ID) Command {
	return Command{Code: UNLINK, ID: id}
}

// Link returns a command linking the existing child id.
func Link(id ID) Command {
	return Command{Code: LINK, ID: id}
}

// Clear returns a command removing all links.
func Clear() Command {
	return Command{Code: CLEAR}
}

// Replace returns a command replacing all links with ids.
func Replace(ids ...ID) Command {
	if ids == nil {
		ids = []ID{}
	}
	return Command{Code: REPLACE, IDs: ids}
}

// Valid reports whether c is a known code.
func (c Code) Valid() bool {
	return c >= CREATE && c <= REPLACE
}

func (c Code) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return codeNames[c]
}

func (c Command) String() string {
	switch c.Code {
	case CREATE:
		return fmt.Sprintf("CREATE(%v)", c.Values)
	case UPDATE:
		return fmt.Sprintf("UPDATE(%d, %v)", c.ID, c.Values)
	case CLEAR:
		return "CLEAR"
	case REPLACE:
		return fmt.Sprintf("REPLACE(%v)", c.IDs)
	}
	return fmt.Sprintf("%v(%d)", c.Code, c.ID)
}

// Validate checks the shape of c: known code, a target id where one is
// needed and a payload where one is needed.
func (c Command) Validate() error {
	var errs []error
	switch c.Code {
	case CREATE:
		if c.Values == nil {
			errs = append(errs, errors.New("missing values"))
		}
	case UPDATE:
		if c.ID <= 0 {
			errs = append(errs, fmt.Errorf("invalid target id %d", c.ID))
		}
		if c.Values == nil {
			errs = append(errs, errors.New("missing values"))
		}
	case DELETE, UNLINK, LINK:
		if c.ID <= 0 {
			errs = append(errs, fmt.Errorf("invalid target id %d", c.ID))
		}
	case CLEAR:
	case REPLACE:
		if c.IDs == nil {
			errs = append(errs, errors.New("missing ids"))
		}
		for _, id := range c.IDs {
			if id <= 0 {
				errs = append(errs, fmt.Errorf("invalid id %d", id))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown code %d", int(c.Code)))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v: %w", ErrInvalidCommand, c, errors.Join(errs...))
}

// Validate validates every command, reporting all problems found.
func (cmds Commands) Validate() error {
	var errs []error
	for i, c := range cmds {
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("command %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
