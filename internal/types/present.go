package types

import (
	"math"
	"strconv"
)

// Present converts a runtime value into something JSON can carry: complex
// numbers become {re, im} maps and non-finite reals become strings.
func Present(v any) any {
	switch n := v.(type) {
	case complex128:
		return map[string]any{"re": Present(real(n)), "im": Present(imag(n))}
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return strconv.FormatFloat(n, 'g', -1, 64)
		}
		return n
	case []float64:
		for _, x := range n {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				ret := make([]any, len(n))
				for i, x := range n {
					ret[i] = Present(x)
				}
				return ret
			}
		}
		return n
	default:
		return v
	}
}
