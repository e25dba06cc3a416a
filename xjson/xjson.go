// Package xjson extends Go's [json] to make it easier to handle streams of
// dynamic records and some other niceties.
package xjson

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/birdie-ai/ormkit/obj"
)

type (
	// Obj represents a dynamic JSON object.
	Obj = obj.O

	// Decoder specializes the [json.Decoder] for streams of values of the same type
	// (use [Obj] for dynamic records), leveraging parametric types and iterators.
	Decoder[T any] struct {
		d   *json.Decoder
		err error
	}

	// Encoder writes a stream of values of the same type, one JSON document per line.
	Encoder[T any] struct {
		e *json.Encoder
	}

	// UnmarshalError is returned by [Unmarshal] when an unmarshalling error happens.
	UnmarshalError struct {
		// Err is the unmarshalling error (returned by [json.Unmarshal]).
		Err error
		// Data is the data that caused the unmarshalling error, useful for debugging.
		Data string
	}
)

// UnmarshalFile calls [Unmarshal] with the opened file (closing it afterwards).
func UnmarshalFile[T any](path string) (T, error) {
	var z T
	f, err := os.Open(path)
	if err != nil {
		return z, fmt.Errorf("opening file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Unmarshal[T](f)
}

// Unmarshal reads r into memory and unmarshals it as a value of type T.
// If you need the data that was read when an unmarshalling error happened:
//
//	var errDetails UnmarshalError
//	if errors.As(err, &errDetails) {
//	    fmt.Println(errDetails.Data)
//	}
func Unmarshal[T any](r io.Reader) (T, error) {
	var v T
	d, err := io.ReadAll(r)
	if err != nil {
		return v, fmt.Errorf("reading stream: %w", err)
	}
	if err := json.Unmarshal(d, &v); err != nil {
		return v, UnmarshalError{err, string(d)}
	}
	return v, nil
}

// NewDecoder creates a new decoder for type T.
func NewDecoder[T any](r io.Reader) *Decoder[T] {
	return &Decoder[T]{d: json.NewDecoder(r)}
}

// All returns a single-use iterator for the stream.
// Iteration stops on the first decoding error, see [Decoder.Error].
func (d *Decoder[T]) All() iter.Seq[T] {
	return func(yield func(v T) bool) {
		for d.err == nil && d.d.More() {
			var v T
			if err := d.d.Decode(&v); err != nil {
				d.err = err
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Collect decodes up to limit values (all of them if limit <= 0).
func (d *Decoder[T]) Collect(limit int) ([]T, error) {
	var res []T
	for v := range d.All() {
		res = append(res, v)
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, d.err
}

// Error returns the error that interrupted iteration or nil if no error happened.
func (d *Decoder[T]) Error() error {
	return d.err
}

// NewEncoder creates a new line oriented encoder for type T.
func NewEncoder[T any](w io.Writer) *Encoder[T] {
	return &Encoder[T]{e: json.NewEncoder(w)}
}

// Encode writes v followed by a newline.
func (e *Encoder[T]) Encode(v T) error {
	return e.e.Encode(v)
}

func (e UnmarshalError) Error() string {
	return e.Err.Error()
}

func (e UnmarshalError) Unwrap() error {
	return e.Err
}
