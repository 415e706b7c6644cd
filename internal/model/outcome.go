package model

// Outcome is the tagged result of one adapter call: either a populated
// record or an explicit "source unavailable / no match" state. Adapters
// never return partial shapes — a found outcome always carries the full
// normalized record.
type Outcome[T any] struct {
	value T
	found bool
}

// Found wraps a populated record.
func Found[T any](v T) Outcome[T] {
	return Outcome[T]{value: v, found: true}
}

// Unavailable is the canonical empty outcome.
func Unavailable[T any]() Outcome[T] {
	return Outcome[T]{}
}

// Get returns the record and whether it is populated.
func (o Outcome[T]) Get() (T, bool) {
	return o.value, o.found
}

// Available reports whether the source produced a record.
func (o Outcome[T]) Available() bool {
	return o.found
}
