package utils

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestClipGradsBoundsEntries(t *testing.T) {
	g := mat.NewDense(2, 2, []float64{7, -9, 0.5, -0.25})
	ClipGrads(5, g)
	want := []float64{5, -5, 0.5, -0.25}
	for i, w := range want {
		if got := g.RawMatrix().Data[i]; got != w {
			t.Fatalf("entry %d = %g, want %g", i, got, w)
		}
	}
}

func TestTotalNormAndRescale(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{3, 0})
	b := mat.NewDense(1, 2, []float64{0, 4})
	if n := TotalNorm(a, b); math.Abs(n-5) > 1e-12 {
		t.Fatalf("TotalNorm = %g, want 5", n)
	}
	ScaleGrads(2, a, b)
	if a.At(0, 0) != 6 || b.At(0, 1) != 8 {
		t.Fatalf("rescale produced %g and %g, want 6 and 8", a.At(0, 0), b.At(0, 1))
	}
}

func TestRowSoftmaxRowsSumToOne(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, -1000, 0, 1000})
	out := RowSoftmax(m)
	for i := 0; i < 2; i++ {
		var sum float64
		for j := 0; j < 3; j++ {
			v := out.At(i, j)
			if math.IsNaN(v) || v < 0 {
				t.Fatalf("row %d col %d: bad probability %g", i, j, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Fatalf("row %d sums to %g", i, sum)
		}
	}
}

func TestSampleFromProbsRespectsMass(t *testing.T) {
	probs := mat.NewDense(1, 3, []float64{0, 1, 0})
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if id := SampleFromProbs(probs, rng); id != 1 {
			t.Fatalf("drew index %d from a point mass at 1", id)
		}
	}
}
