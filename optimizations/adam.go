package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/charGRU/params"
)

// Adam carries first and second moment estimates for one model's parameter
// list. Moments are positional: Update must always be fed parameters and
// gradients in the same stable order the optimizer was built with.
type Adam struct {
	M, V []*mat.Dense
	T    int

	LR           float64
	Beta1, Beta2 float64
	Eps          float64
	WeightDecay  float64 // AdamW-style, 0 disables
}

// NewAdam allocates zeroed moments shaped like each parameter.
func NewAdam(ps []*mat.Dense, cfg params.TrainingConfig) *Adam {
	a := &Adam{
		M:     make([]*mat.Dense, len(ps)),
		V:     make([]*mat.Dense, len(ps)),
		LR:    cfg.LearningRate,
		Beta1: cfg.AdamBeta1,
		Beta2: cfg.AdamBeta2,
		Eps:   cfg.AdamEps,
	}
	for i, p := range ps {
		r, c := p.Dims()
		a.M[i] = mat.NewDense(r, c, nil)
		a.V[i] = mat.NewDense(r, c, nil)
	}
	return a
}

// Update applies one bias-corrected step to every parameter.
func (a *Adam) Update(ps, gs []*mat.Dense) {
	if len(ps) != len(a.M) || len(gs) != len(ps) {
		panic("adam: parameter/gradient list length mismatch")
	}
	a.T++
	for i := range ps {
		AdamUpdateInPlace(ps[i], gs[i], a.M[i], a.V[i], a.T,
			a.LR, a.Beta1, a.Beta2, a.Eps, a.WeightDecay)
	}
}

// AdamUpdateInPlace performs an in-place update:
// p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p) with bias correction.
func AdamUpdateInPlace(p, g, m, v *mat.Dense, t int, lr, beta1, beta2, eps, weightDecay float64) {
	pr, pc := p.Dims()
	gr, gc := g.Dims()
	if pr != gr || pc != gc {
		panic("adamUpdateInPlace: grad shape mismatch")
	}
	b1t := math.Pow(beta1, float64(t))
	b2t := math.Pow(beta2, float64(t))
	c1 := 1.0 / (1.0 - b1t)
	c2 := 1.0 / (1.0 - b2t)

	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			gij := g.At(i, j)
			mij := beta1*m.At(i, j) + (1-beta1)*gij
			vij := beta2*v.At(i, j) + (1-beta2)*gij*gij
			m.Set(i, j, mij)
			v.Set(i, j, vij)

			mhat := mij * c1
			vhat := vij * c2
			denom := math.Sqrt(vhat) + eps

			update := mhat / denom
			if weightDecay != 0 {
				update += weightDecay * p.At(i, j)
			}
			p.Set(i, j, p.At(i, j)-lr*update)
		}
	}
}
