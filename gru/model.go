package gru

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/charGRU/utils"
)

// Model is the full character model: two stacked GRU layers and a linear
// decoder shared across timesteps, softmaxed per timestep into a distribution
// over the vocabulary.
type Model struct {
	VocabSize  int
	HiddenSize int

	Layer1 *Layer     // vocab -> hidden
	Layer2 *Layer     // hidden -> hidden
	Wdec   *mat.Dense // (H x V)
	Bdec   *mat.Dense // (1 x V)

	// cache for backprop
	hidden2 []*mat.Dense // decoder inputs per timestep (B x H)
	logits  []*mat.Dense // pre-softmax scores        (B x V)
	probs   []*mat.Dense // softmax outputs           (B x V)
}

// NewModel builds an untrained model for the given alphabet and state width.
func NewModel(vocabSize, hiddenSize int) *Model {
	return &Model{
		VocabSize:  vocabSize,
		HiddenSize: hiddenSize,
		Layer1:     NewLayer(vocabSize, hiddenSize),
		Layer2:     NewLayer(hiddenSize, hiddenSize),
		Wdec:       mat.NewDense(hiddenSize, vocabSize, utils.RandomArray(hiddenSize*vocabSize, float64(hiddenSize))),
		Bdec:       mat.NewDense(1, vocabSize, nil),
	}
}

// ZeroState returns freshly zeroed hidden states for both layers.
func (m *Model) ZeroState(batchSize int) (h1, h2 *mat.Dense) {
	return mat.NewDense(batchSize, m.HiddenSize, nil), mat.NewDense(batchSize, m.HiddenSize, nil)
}

// Forward consumes one window of one-hot inputs plus the carried hidden
// states and produces per-timestep probability rows over the vocabulary along
// with both layers' final states. The same path serves training windows and
// single-step sampling.
func (m *Model) Forward(inputs []*mat.Dense, h1, h2 *mat.Dense) ([]*mat.Dense, *mat.Dense, *mat.Dense) {
	hs1, h1out := m.Layer1.Forward(inputs, h1)
	hs2, h2out := m.Layer2.Forward(hs1, h2)

	T := len(inputs)
	m.hidden2 = hs2
	m.logits = make([]*mat.Dense, T)
	m.probs = make([]*mat.Dense, T)
	for t, h := range hs2 {
		logits := utils.AddRowBias(utils.Dot(h, m.Wdec), m.Bdec)
		m.logits[t] = logits
		m.probs[t] = utils.RowSoftmax(logits)
	}
	return m.probs, h1out, h2out
}

// Loss is the mean cross-entropy of the cached forward pass against the
// target indices, averaged over batch and time.
func (m *Model) Loss(targets [][]int) float64 {
	T := len(m.logits)
	B, _ := m.logits[0].Dims()
	var total float64
	for t := 0; t < T; t++ {
		for b := 0; b < B; b++ {
			total += rowCrossEntropy(m.logits[t], b, targets[b][t])
		}
	}
	return total / float64(B*T)
}

// rowCrossEntropy is -log softmax(logits[b,:])[gold], computed from the
// logits with log-sum-exp so near-zero probabilities cannot overflow.
func rowCrossEntropy(logits *mat.Dense, b, gold int) float64 {
	_, c := logits.Dims()
	mx := logits.At(b, 0)
	for j := 1; j < c; j++ {
		if v := logits.At(b, j); v > mx {
			mx = v
		}
	}
	var sum float64
	for j := 0; j < c; j++ {
		sum += math.Exp(logits.At(b, j) - mx)
	}
	return math.Log(sum) + mx - logits.At(b, gold)
}

// Grads carries one optimization step's gradients in the same stable order as
// Model.Params.
type Grads struct {
	L1, L2     *LayerGrads
	Wdec, Bdec *mat.Dense
}

// List flattens the gradients into Params order.
func (g *Grads) List() []*mat.Dense {
	out := append(g.L1.list(), g.L2.list()...)
	return append(out, g.Wdec, g.Bdec)
}

// Backward runs backpropagation through the decoder and both layers for the
// cached window, returning all parameter gradients plus the mean loss it
// reproduces. dlogits per timestep is (probs - onehot(target)) / (B*T).
func (m *Model) Backward(targets [][]int) (*Grads, float64) {
	T := len(m.probs)
	B, _ := m.probs[0].Dims()
	n := float64(B * T)

	grads := &Grads{
		Wdec: mat.NewDense(m.HiddenSize, m.VocabSize, nil),
		Bdec: mat.NewDense(1, m.VocabSize, nil),
	}
	dH2 := make([]*mat.Dense, T)
	var loss float64
	for t := 0; t < T; t++ {
		dLogits := mat.DenseCopyOf(m.probs[t])
		for b := 0; b < B; b++ {
			gold := targets[b][t]
			dLogits.Set(b, gold, dLogits.At(b, gold)-1.0)
			loss += rowCrossEntropy(m.logits[t], b, gold)
		}
		dLogits.Scale(1.0/n, dLogits)

		grads.Wdec.Add(grads.Wdec, utils.Dot(m.hidden2[t].T(), dLogits))
		grads.Bdec.Add(grads.Bdec, utils.ColSums(dLogits))
		dH2[t] = utils.Dot(dLogits, m.Wdec.T())
	}

	dH1, g2 := m.Layer2.Backward(dH2)
	_, g1 := m.Layer1.Backward(dH1)
	grads.L1, grads.L2 = g1, g2
	return grads, loss / n
}

// Params returns every trainable tensor in checkpoint order: layer 1 gates,
// layer 2 gates, then the decoder.
func (m *Model) Params() []*mat.Dense {
	out := append(m.Layer1.params(), m.Layer2.params()...)
	return append(out, m.Wdec, m.Bdec)
}
