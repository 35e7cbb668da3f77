package IO

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/charGRU/params"
)

// BatchSampler draws fixed-size batches of overlapping character windows from
// a corpus. Each of the batchSize cursors starts at its own random offset and
// advances by seqLen per batch, wrapping modulo the valid start range, so the
// stream is endless and revisits the same windows after a full rotation.
// Restarting means constructing a new sampler.
type BatchSampler struct {
	corpus    []rune
	seqLen    int
	batchSize int
	offsets   []int
	modulus   int
}

// NewBatchSampler validates the corpus against the window size and seeds the
// start offsets uniformly in [0, len(corpus)-seqLen-1). Every window needs
// seqLen+1 characters, the extra one for the final target.
func NewBatchSampler(corpus []rune, seqLen, batchSize int, rng *rand.Rand) (*BatchSampler, error) {
	if seqLen <= 0 {
		return nil, &params.ConfigurationError{Field: "SequenceLength", Reason: "must be positive"}
	}
	if batchSize <= 0 {
		return nil, &params.ConfigurationError{Field: "BatchSize", Reason: "must be positive"}
	}
	if len(corpus) <= seqLen+1 {
		return nil, &params.ConfigurationError{
			Field:  "corpus",
			Reason: fmt.Sprintf("length %d cannot fit one window of %d+1 characters", len(corpus), seqLen),
		}
	}
	modulus := len(corpus) - seqLen - 1
	offsets := make([]int, batchSize)
	for i := range offsets {
		offsets[i] = rng.Intn(modulus)
	}
	return &BatchSampler{
		corpus:    corpus,
		seqLen:    seqLen,
		batchSize: batchSize,
		offsets:   offsets,
		modulus:   modulus,
	}, nil
}

// Next emits one batch of seqLen+1 character windows at the current offsets,
// then rotates every offset forward by seqLen.
func (s *BatchSampler) Next() [][]rune {
	windows := make([][]rune, s.batchSize)
	for i, off := range s.offsets {
		windows[i] = s.corpus[off : off+s.seqLen+1]
		s.offsets[i] = (off + s.seqLen) % s.modulus
	}
	return windows
}

// Batch is one encoded training batch. Inputs[t] holds the one-hot rows for
// timestep t (batch x vocab); Targets[b][t] is the next-character index for
// window b at timestep t.
type Batch struct {
	Inputs  []*mat.Dense
	Targets [][]int
}

// EncodeBatch converts raw windows into input and target tensors. Row b of
// Inputs[t] is one-hot(windows[b][t]); Targets[b][t] is the index of
// windows[b][t+1]. All windows must share a length; the sampler guarantees
// that.
func EncodeBatch(windows [][]rune, vocab params.Vocabulary) (*Batch, error) {
	if len(windows) == 0 {
		return nil, &params.ConfigurationError{Field: "batch", Reason: "is empty"}
	}
	seqLen := len(windows[0]) - 1
	inputs := make([]*mat.Dense, seqLen)
	for t := range inputs {
		inputs[t] = mat.NewDense(len(windows), vocab.Size(), nil)
	}
	targets := make([][]int, len(windows))
	for b, w := range windows {
		targets[b] = make([]int, seqLen)
		for t := 0; t < seqLen; t++ {
			in, err := vocab.Index(w[t])
			if err != nil {
				return nil, err
			}
			inputs[t].Set(b, in, 1)
			tgt, err := vocab.Index(w[t+1])
			if err != nil {
				return nil, err
			}
			targets[b][t] = tgt
		}
	}
	return &Batch{Inputs: inputs, Targets: targets}, nil
}
