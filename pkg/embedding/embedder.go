// Package embedding wraps the external text-embedding model. The model is
// opaque: text in, a fixed-dimension float vector out.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// DefaultDimension is the reference model's output size.
const DefaultDimension = 768

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrNonFinite         = errors.New("embedding contains non-finite values")
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Func adapts a plain function to Embedder.
type Func func(ctx context.Context, text string) ([]float64, error)

func (f Func) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

// Check verifies the vector has exactly dim finite values.
func Check(v []float64, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ErrNonFinite
		}
	}
	return nil
}
