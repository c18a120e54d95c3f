package contracts

import (
	"bytes"
	"encoding/json"
)

// Optional carries a value that may be unavailable. The zero value is
// unavailable. An unavailable field marshals to JSON null and is never
// confused with a real zero.
type Optional[T any] struct {
	value T
	ok    bool
}

// Float is an optional float64 metric
type Float = Optional[float64]

// Flag is an optional boolean metric
type Flag = Optional[bool]

// Int is an optional integer metric
type Int = Optional[int]

// Some wraps an available value
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an unavailable value
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is available
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// OK reports whether the value is available
func (o Optional[T]) OK() bool {
	return o.ok
}

// Or returns the value, or def when unavailable
func (o Optional[T]) Or(def T) T {
	if !o.ok {
		return def
	}
	return o.value
}

// MarshalJSON implements json.Marshaler
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON implements json.Unmarshaler
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// FirstOK returns the first available value among candidates
func FirstOK[T any](candidates ...Optional[T]) Optional[T] {
	for _, c := range candidates {
		if c.ok {
			return c
		}
	}
	return Optional[T]{}
}
