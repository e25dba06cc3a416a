// Package xerrors extends Go's stdlib errors pkg.
package xerrors

import (
	"errors"
	"fmt"
)

// Tag tags err with the given tag error so that errors.Is(err, tag) and errors.As
// match the tag while the error message stays the one from err.
//
// This is useful to classify an error as a kind of the caller's taxonomy (like a generic
// "not found") when repeating the kind on the message would be redundant.
// Calls to [errors.As] and [errors.Is] are dispatched to the tag first and then
// fallback to the original error. Tagging a nil error returns nil.
func Tag(err, tag error) error {
	if err == nil {
		return nil
	}
	return tagged{err: err, tag: tag}
}

// Tagf formats a new error with [fmt.Errorf] and tags it with tag.
// The format may use %w to wrap other errors, they stay reachable with [errors.Is].
func Tagf(tag error, format string, args ...any) error {
	return Tag(fmt.Errorf(format, args...), tag)
}

// HasTag reports whether err matches any of the given tags.
func HasTag(err error, tags ...error) bool {
	for _, t := range tags {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

type tagged struct {
	err error
	tag error
}

func (t tagged) Is(target error) bool {
	return errors.Is(t.tag, target) || errors.Is(t.err, target)
}

func (t tagged) As(target any) bool {
	return errors.As(t.tag, target) || errors.As(t.err, target)
}

func (t tagged) Unwrap() error {
	return t.err
}

func (t tagged) Error() string {
	return t.err.Error()
}
