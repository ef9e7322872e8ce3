// Package patch models partial document updates where "leave this field
// alone", "set it to a value", and "erase it from the document" are three
// distinct intents. Relying on a zero value or an untyped nil sentinel
// loses the third case the moment a serialization layer drops it; a
// cleared group assignment must remove the stored field, not leave a
// stale value behind.
package patch

import (
	"bytes"
	"encoding/json"
)

type state uint8

const (
	keep state = iota
	set
	clear
)

// Field is an optional update to a single document field.
// The zero value is Keep.
type Field[T any] struct {
	st    state
	value T
}

// Keep returns a Field that leaves the stored value untouched.
func Keep[T any]() Field[T] { return Field[T]{} }

// Set returns a Field that overwrites the stored value with v.
func Set[T any](v T) Field[T] { return Field[T]{st: set, value: v} }

// Clear returns a Field that erases the field from the stored document.
func Clear[T any]() Field[T] { return Field[T]{st: clear} }

// IsKeep reports whether the field should be left untouched.
func (f Field[T]) IsKeep() bool { return f.st == keep }

// IsSet reports whether the field carries a new value.
func (f Field[T]) IsSet() bool { return f.st == set }

// IsClear reports whether the field should be erased.
func (f Field[T]) IsClear() bool { return f.st == clear }

// Value returns the new value and whether one was set.
func (f Field[T]) Value() (T, bool) {
	return f.value, f.st == set
}

// UnmarshalJSON decodes a request-body field: JSON null means Clear, any
// other value means Set. An absent key never reaches UnmarshalJSON, so
// the zero value (Keep) applies.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = Clear[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Set(v)
	return nil
}

// MarshalJSON encodes Set values as-is and Clear as null. Keep fields
// marshal as null too; callers that need absence must omit the key.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.st == set {
		return json.Marshal(f.value)
	}
	return []byte("null"), nil
}
