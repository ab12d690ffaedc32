package gpdma

import "golang.org/x/exp/constraints"

// ceildiv returns a/b rounded up. b must be non-zero.
func ceildiv[T constraints.Unsigned](a, b T) T {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

// poll calls done up to attempts times and reports whether it returned true.
func poll(attempts int, done func() bool) bool {
	for i := 0; i < attempts; i++ {
		if done() {
			return true
		}
	}
	return false
}
