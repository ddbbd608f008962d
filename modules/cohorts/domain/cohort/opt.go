package cohort

import (
	"encoding/json"
	"fmt"
)

// Opt carries an attribute that may be absent. Absent means "leave the
// stored value alone"; Some of a zero value is still a present value.
type Opt[T any] struct {
	value T
	valid bool
}

func Some[T any](v T) Opt[T] { return Opt[T]{value: v, valid: true} }

func None[T any]() Opt[T] { return Opt[T]{} }

func FromPtr[T any](p *T) Opt[T] {
	if p == nil {
		return Opt[T]{}
	}
	return Some(*p)
}

func (o Opt[T]) Get() (T, bool) { return o.value, o.valid }
func (o Opt[T]) Valid() bool    { return o.valid }

func (o Opt[T]) OrElse(fallback T) T {
	if o.valid {
		return o.value
	}
	return fallback
}

// Or keeps o when present and falls back otherwise.
func (o Opt[T]) Or(fallback Opt[T]) Opt[T] {
	if o.valid {
		return o
	}
	return fallback
}

// Ptr returns nil for an absent value; pgx encodes that as NULL.
func (o Opt[T]) Ptr() *T {
	if !o.valid {
		return nil
	}
	v := o.value
	return &v
}

func (o Opt[T]) String() string {
	if !o.valid {
		return "\x00"
	}
	return fmt.Sprint(o.value)
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
