package slides

import (
	"fmt"
	"math"
)

// RMSDiff returns the root-mean-square of the per-byte differences of a and b.
func RMSDiff(a, b []byte) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}

	var squares uint64
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		squares += uint64(d * d)
	}
	return math.Sqrt(float64(squares) / float64(len(a))), nil
}
