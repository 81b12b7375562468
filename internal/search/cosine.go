package search

import "math"

// normEpsilon floors vector norms so an all-zero vector yields a zero
// similarity instead of a division by zero.
const normEpsilon = 1e-9

// Cosine returns dot(a,b) / (|a| * |b|). Mismatched lengths score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	na = math.Sqrt(na)
	nb = math.Sqrt(nb)
	if na < normEpsilon {
		na = normEpsilon
	}
	if nb < normEpsilon {
		nb = normEpsilon
	}
	return dot / (na * nb)
}
