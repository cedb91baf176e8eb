package common

// Memo is a dirty bit paired with a memoized value. It starts stale; Get rebuilds the value when stale
// and returns the stored value otherwise. Invalidate is monotone: a stale Memo stays stale until the
// next Get, there is no partially valid state.
//
// The zero value is ready to use. Memo is not safe for concurrent use; owners guard it with their own mutex.
type Memo[T any] struct {
	value  T
	valid  bool
	builds uint64
}

// Get returns the memoized value, calling build first if the memo is stale.
//
// Parameters:
//   - build: pure function producing the value from the owner's current state
//
// Returns:
//   - T: the memoized value
func (m *Memo[T]) Get(build func() T) T {
	if !m.valid {
		m.value = build()
		m.valid = true
		m.builds++
	}
	return m.value
}

// Peek returns the stored value and whether it is currently valid, without building.
func (m *Memo[T]) Peek() (T, bool) {
	return m.value, m.valid
}

// Invalidate marks the memo stale and drops the stored value.
func (m *Memo[T]) Invalidate() {
	var zero T
	m.value = zero
	m.valid = false
}

// Valid reports whether the next Get will be a cache hit.
func (m *Memo[T]) Valid() bool {
	return m.valid
}

// Builds returns how many times the memo has been rebuilt.
func (m *Memo[T]) Builds() uint64 {
	return m.builds
}
