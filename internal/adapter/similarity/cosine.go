package similarity

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Cosine returns the cosine similarity of a and b.
// Zero-length or zero-norm vectors score 0; mismatched dimensions are an error.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	return CosineF64(ToFloat64(a), ToFloat64(b)), nil
}

// CosineF64 is Cosine over pre-converted vectors of equal length.
func CosineF64(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (na * nb)
	// rounding can push parallel vectors just past 1
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// ToFloat64 widens a float32 vector for gonum.
func ToFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Normalize scales v to unit L2 norm in place. Zero vectors are left alone.
func Normalize(v []float64) {
	n := floats.Norm(v, 2)
	if n == 0 {
		return
	}
	floats.Scale(1/n, v)
}

// Clamp01 limits x to [0,1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
