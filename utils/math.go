// Matrix functions I'm going to use for the calculations in the program

// r = rows
// c = columns
// o = output matrix
// m/n = input matricies

package utils

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

func Dot(m, n mat.Matrix) *mat.Dense {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func Apply(fn func(i, j int, v float64) float64, m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

// Multiply is element-wise.
func Multiply(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.MulElem(m, n)
	return o
}

func Add(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Add(m, n)
	return o
}

func Subtract(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Sub(m, n)
	return o
}

// OneMinus returns 1 - m element-wise.
func OneMinus(m mat.Matrix) *mat.Dense {
	return Apply(func(i, j int, v float64) float64 { return 1 - v }, m)
}

// SigmoidApply is mat.Apply-compatible.
func SigmoidApply(i, j int, v float64) float64 {
	return 1.0 / (1.0 + math.Exp(-v))
}

// TanhApply is mat.Apply-compatible.
func TanhApply(i, j int, v float64) float64 {
	return math.Tanh(v)
}

// AddRowBias broadcasts a (1 x c) bias row over every row of m.
func AddRowBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	br, bc := bias.Dims()
	if br != 1 || bc != c {
		panic("AddRowBias: bias must be (1 x c)")
	}
	o := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			o.Set(i, j, m.At(i, j)+bias.At(0, j))
		}
	}
	return o
}

// ColSums sums each column of m into a (1 x c) row.
func ColSums(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(1, c, nil)
	for j := 0; j < c; j++ {
		var s float64
		for i := 0; i < r; i++ {
			s += m.At(i, j)
		}
		o.Set(0, j, s)
	}
	return o
}

// OneHotRow builds a (1 x n) row with a single 1 at idx.
func OneHotRow(n, idx int) *mat.Dense {
	o := mat.NewDense(1, n, nil)
	o.Set(0, idx, 1)
	return o
}

// RandomArray returns uniform values in about +-1/sqrt(v), for fan-in scaled
// weight init.
func RandomArray(size int, v float64) []float64 {
	min := -1.0 / math.Sqrt(v+1e-12)
	max := 1.0 / math.Sqrt(v+1e-12)
	data := make([]float64, size)
	for i := range data {
		data[i] = min + rand.Float64()*(max-min)
	}
	return data
}

// RowSoftmax applies softmax across each row of the matrix.
func RowSoftmax(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		maxVal := math.Inf(-1)
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v > maxVal {
				maxVal = v // numerical stability
			}
		}
		var sum float64
		for j := 0; j < c; j++ {
			e := math.Exp(m.At(i, j) - maxVal)
			out.Set(i, j, e)
			sum += e
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, out.At(i, j)/sum)
		}
	}
	return out
}

// SampleFromProbs draws one index from a (1 x c) row of probabilities.
// The row is re-normalized by its sum so drift from the softmax cannot push
// the cumulative walk past 1.
func SampleFromProbs(probs *mat.Dense, rng *rand.Rand) int {
	r, c := probs.Dims()
	if r != 1 {
		panic("SampleFromProbs expects a row vector")
	}
	var sum float64
	for j := 0; j < c; j++ {
		sum += probs.At(0, j)
	}
	target := rng.Float64() * sum
	var cum float64
	for j := 0; j < c; j++ {
		cum += probs.At(0, j)
		if target < cum {
			return j
		}
	}
	return c - 1 // fallback
}

// ClipGrads clamps every gradient entry into [-bound, bound] in place.
func ClipGrads(bound float64, grads ...*mat.Dense) {
	for _, g := range grads {
		g.Apply(func(i, j int, v float64) float64 {
			if v > bound {
				return bound
			}
			if v < -bound {
				return -bound
			}
			return v
		}, g)
	}
}

// TotalNorm is the L2 norm over all gradient tensors taken together.
func TotalNorm(grads ...*mat.Dense) float64 {
	var sum float64
	for _, g := range grads {
		r, c := g.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v := g.At(i, j)
				sum += v * v
			}
		}
	}
	return math.Sqrt(sum)
}

// ScaleGrads multiplies every gradient tensor by s in place.
func ScaleGrads(s float64, grads ...*mat.Dense) {
	for _, g := range grads {
		g.Scale(s, g)
	}
}
