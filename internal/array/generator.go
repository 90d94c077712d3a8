// Package array produces the random numeric payload returned to
// authenticated callers.
package array

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	DefaultLength = 500
	MaxValue      = 5.0
)

var ErrInvalidLength = errors.New("invalid array length")

type Generator struct {
	maxLength int
	float     func() float64
}

func NewGenerator(maxLength int) (*Generator, error) {
	if maxLength <= 0 {
		return nil, fmt.Errorf("max length must be > 0")
	}
	return &Generator{maxLength: maxLength, float: rand.Float64}, nil
}

// Generate returns n values drawn uniformly from [0, MaxValue], rounded to
// two decimals.
func (g *Generator) Generate(n int) ([]float64, error) {
	if n < 0 || n > g.maxLength {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidLength, n, g.maxLength)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Round(g.float()*MaxValue*100) / 100
	}
	return out, nil
}
