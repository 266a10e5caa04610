package occupancy

import (
	"bytes"
	"encoding/json"
)

// Field is an optional update value that distinguishes "leave unchanged" (unset),
// "clear" (null) and "set to value".
type Field[T any] struct {
	set   bool
	null  bool
	value T
}

func Set[T any](v T) Field[T] {
	return Field[T]{set: true, value: v}
}

func Null[T any]() Field[T] {
	return Field[T]{set: true, null: true}
}

// IsSet reports whether the field was supplied at all.
func (f Field[T]) IsSet() bool { return f.set }

// IsNull reports whether the field was supplied as an explicit null.
func (f Field[T]) IsNull() bool { return f.set && f.null }

// Value returns the supplied value and whether one is present.
func (f Field[T]) Value() (T, bool) {
	return f.value, f.set && !f.null
}

// UnmarshalJSON is only invoked for keys present in the document, so an absent
// key leaves the field unset.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.null = true
		var zero T
		f.value = zero
		return nil
	}
	f.null = false
	return json.Unmarshal(b, &f.value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set || f.null {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
