package gru

import (
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/charGRU/params"
	"github.com/manningwu07/charGRU/utils"
)

// Sampler generates text from a trained model one character at a time. Every
// Generate call is an independent session with its own zeroed hidden state;
// the model and vocabulary must come from the same checkpoint.
type Sampler struct {
	model     *Model
	vocab     params.Vocabulary
	maxLength int
	rng       *rand.Rand
}

func NewSampler(model *Model, vocab params.Vocabulary, maxLength int, rng *rand.Rand) *Sampler {
	return &Sampler{model: model, vocab: vocab, maxLength: maxLength, rng: rng}
}

// Generate primes the hidden state on the primer, predictions discarded, then
// feeds the model its own sampled output until it emits a line break or hits
// the length cap. The primer is not part of the returned text; a sampled line
// break is.
func (s *Sampler) Generate(primer string) (string, error) {
	h1, h2 := s.model.ZeroState(1)
	x := mat.NewDense(1, s.vocab.Size(), nil)

	// Priming feeds the current input first, so the very first step sees the
	// all-zero row before any primer character takes effect.
	for _, r := range primer {
		_, h1n, h2n := s.model.Forward([]*mat.Dense{x}, h1, h2)
		h1, h2 = h1n, h2n
		id, err := s.vocab.Index(r)
		if err != nil {
			return "", err
		}
		x = utils.OneHotRow(s.vocab.Size(), id)
	}

	var out strings.Builder
	for i := 0; i < s.maxLength; i++ {
		probs, h1n, h2n := s.model.Forward([]*mat.Dense{x}, h1, h2)
		h1, h2 = h1n, h2n
		id := utils.SampleFromProbs(probs[0], s.rng)
		ch := s.vocab.Char(id)
		out.WriteRune(ch)
		if ch == '\n' {
			break
		}
		x = utils.OneHotRow(s.vocab.Size(), id)
	}
	return out.String(), nil
}
