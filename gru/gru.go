package gru

import (
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/charGRU/utils"
)

// Layer is one GRU layer over row-major batches: inputs are (B x in), hidden
// states (B x H). Forward caches every gate activation so Backward can run
// backpropagation through the window it just saw.
//
// Gate equations, all row-major:
//
//	r = sigmoid(x*Wr + h*Ur + Br)
//	z = sigmoid(x*Wz + h*Uz + Bz)
//	hcand = tanh(x*Wh + (r.h)*Uh + Bh)
//	h' = (1-z).h + z.hcand
type Layer struct {
	InputSize  int
	HiddenSize int

	// W* act on the input, U* on the previous hidden state, B* broadcast
	// across the batch.
	Wr, Ur, Br *mat.Dense
	Wz, Uz, Bz *mat.Dense
	Wh, Uh, Bh *mat.Dense

	// cache for backprop, one entry per timestep
	inputs  []*mat.Dense // x_t       (B x in)
	hPrev   []*mat.Dense // h_{t-1}   (B x H)
	resets  []*mat.Dense // r_t       (B x H)
	updates []*mat.Dense // z_t       (B x H)
	cands   []*mat.Dense // hcand_t   (B x H)
}

// NewLayer initializes gate weights uniformly scaled by fan-in; biases start
// at zero.
func NewLayer(inputSize, hiddenSize int) *Layer {
	in, hid := float64(inputSize), float64(hiddenSize)
	return &Layer{
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		Wr:         mat.NewDense(inputSize, hiddenSize, utils.RandomArray(inputSize*hiddenSize, in)),
		Ur:         mat.NewDense(hiddenSize, hiddenSize, utils.RandomArray(hiddenSize*hiddenSize, hid)),
		Br:         mat.NewDense(1, hiddenSize, nil),
		Wz:         mat.NewDense(inputSize, hiddenSize, utils.RandomArray(inputSize*hiddenSize, in)),
		Uz:         mat.NewDense(hiddenSize, hiddenSize, utils.RandomArray(hiddenSize*hiddenSize, hid)),
		Bz:         mat.NewDense(1, hiddenSize, nil),
		Wh:         mat.NewDense(inputSize, hiddenSize, utils.RandomArray(inputSize*hiddenSize, in)),
		Uh:         mat.NewDense(hiddenSize, hiddenSize, utils.RandomArray(hiddenSize*hiddenSize, hid)),
		Bh:         mat.NewDense(1, hiddenSize, nil),
	}
}

func (l *Layer) gates(x, h *mat.Dense) (r, z, cand *mat.Dense) {
	r = utils.Apply(utils.SigmoidApply,
		utils.AddRowBias(utils.Add(utils.Dot(x, l.Wr), utils.Dot(h, l.Ur)), l.Br))
	z = utils.Apply(utils.SigmoidApply,
		utils.AddRowBias(utils.Add(utils.Dot(x, l.Wz), utils.Dot(h, l.Uz)), l.Bz))
	cand = utils.Apply(utils.TanhApply,
		utils.AddRowBias(utils.Add(utils.Dot(x, l.Wh), utils.Dot(utils.Multiply(r, h), l.Uh)), l.Bh))
	return r, z, cand
}

// h' = (1-z).h + z.hcand
func nextHidden(h, z, cand *mat.Dense) *mat.Dense {
	return utils.Add(utils.Multiply(utils.OneMinus(z), h), utils.Multiply(z, cand))
}

// Forward runs the layer across a window of timesteps, returning every hidden
// state plus the final one for carry-over into the next window. h0 is not
// mutated.
func (l *Layer) Forward(xs []*mat.Dense, h0 *mat.Dense) (hs []*mat.Dense, hT *mat.Dense) {
	T := len(xs)
	l.inputs = make([]*mat.Dense, T)
	l.hPrev = make([]*mat.Dense, T)
	l.resets = make([]*mat.Dense, T)
	l.updates = make([]*mat.Dense, T)
	l.cands = make([]*mat.Dense, T)

	hs = make([]*mat.Dense, T)
	h := h0
	for t, x := range xs {
		r, z, cand := l.gates(x, h)
		l.inputs[t], l.hPrev[t] = x, h
		l.resets[t], l.updates[t], l.cands[t] = r, z, cand
		h = nextHidden(h, z, cand)
		hs[t] = h
	}
	return hs, h
}

// Backward consumes dH[t] = dLoss/dh_t for every timestep of the last
// Forward and returns dX[t] plus this layer's parameter gradients. The
// carried-in state h0 is treated as a constant, so gradient history is
// truncated at the window boundary.
func (l *Layer) Backward(dH []*mat.Dense) (dX []*mat.Dense, grads *LayerGrads) {
	T := len(l.inputs)
	if len(dH) != T {
		panic("gru: Backward timestep count does not match Forward")
	}
	grads = newLayerGrads(l.InputSize, l.HiddenSize)
	dX = make([]*mat.Dense, T)

	B, _ := l.inputs[0].Dims()
	carry := mat.NewDense(B, l.HiddenSize, nil) // dLoss/dh_t flowing back through time
	for t := T - 1; t >= 0; t-- {
		dh := utils.Add(dH[t], carry)
		x, h, r, z, cand := l.inputs[t], l.hPrev[t], l.resets[t], l.updates[t], l.cands[t]

		// h' = (1-z).h + z.hcand
		dz := utils.Multiply(dh, utils.Subtract(cand, h))
		dcand := utils.Multiply(dh, z)
		dhPrev := utils.Multiply(dh, utils.OneMinus(z))

		// candidate pre-activation
		da := utils.Multiply(dcand, tanhPrime(cand))
		gated := utils.Multiply(r, h)
		grads.Wh.Add(grads.Wh, utils.Dot(x.T(), da))
		grads.Uh.Add(grads.Uh, utils.Dot(gated.T(), da))
		grads.Bh.Add(grads.Bh, utils.ColSums(da))

		dGated := utils.Dot(da, l.Uh.T())
		dr := utils.Multiply(dGated, h)
		dhPrev = utils.Add(dhPrev, utils.Multiply(dGated, r))

		// update gate pre-activation
		daz := utils.Multiply(dz, sigmoidPrime(z))
		grads.Wz.Add(grads.Wz, utils.Dot(x.T(), daz))
		grads.Uz.Add(grads.Uz, utils.Dot(h.T(), daz))
		grads.Bz.Add(grads.Bz, utils.ColSums(daz))
		dhPrev = utils.Add(dhPrev, utils.Dot(daz, l.Uz.T()))

		// reset gate pre-activation
		dar := utils.Multiply(dr, sigmoidPrime(r))
		grads.Wr.Add(grads.Wr, utils.Dot(x.T(), dar))
		grads.Ur.Add(grads.Ur, utils.Dot(h.T(), dar))
		grads.Br.Add(grads.Br, utils.ColSums(dar))
		dhPrev = utils.Add(dhPrev, utils.Dot(dar, l.Ur.T()))

		dx := utils.Dot(da, l.Wh.T())
		dx = utils.Add(dx, utils.Dot(daz, l.Wz.T()))
		dx = utils.Add(dx, utils.Dot(dar, l.Wr.T()))
		dX[t] = dx

		carry = dhPrev
	}
	return dX, grads
}

// params returns the layer's tensors in checkpoint order.
func (l *Layer) params() []*mat.Dense {
	return []*mat.Dense{l.Wr, l.Ur, l.Br, l.Wz, l.Uz, l.Bz, l.Wh, l.Uh, l.Bh}
}

// LayerGrads mirrors a Layer's parameter tensors.
type LayerGrads struct {
	Wr, Ur, Br *mat.Dense
	Wz, Uz, Bz *mat.Dense
	Wh, Uh, Bh *mat.Dense
}

func newLayerGrads(inputSize, hiddenSize int) *LayerGrads {
	return &LayerGrads{
		Wr: mat.NewDense(inputSize, hiddenSize, nil),
		Ur: mat.NewDense(hiddenSize, hiddenSize, nil),
		Br: mat.NewDense(1, hiddenSize, nil),
		Wz: mat.NewDense(inputSize, hiddenSize, nil),
		Uz: mat.NewDense(hiddenSize, hiddenSize, nil),
		Bz: mat.NewDense(1, hiddenSize, nil),
		Wh: mat.NewDense(inputSize, hiddenSize, nil),
		Uh: mat.NewDense(hiddenSize, hiddenSize, nil),
		Bh: mat.NewDense(1, hiddenSize, nil),
	}
}

func (g *LayerGrads) list() []*mat.Dense {
	return []*mat.Dense{g.Wr, g.Ur, g.Br, g.Wz, g.Uz, g.Bz, g.Wh, g.Uh, g.Bh}
}

func sigmoidPrime(s *mat.Dense) *mat.Dense {
	return utils.Apply(func(i, j int, v float64) float64 { return v * (1 - v) }, s)
}

func tanhPrime(y *mat.Dense) *mat.Dense {
	return utils.Apply(func(i, j int, v float64) float64 { return 1 - v*v }, y)
}
