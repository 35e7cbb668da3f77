package main

import (
	"io"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/charGRU/IO"
	"github.com/manningwu07/charGRU/gru"
	"github.com/manningwu07/charGRU/optimizations"
	"github.com/manningwu07/charGRU/params"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestTrainingLossDecreases(t *testing.T) {
	rand.Seed(1)
	corpus := []rune(strings.Repeat("ab", 300))
	vocab := IO.BuildVocabulary(corpus)
	cfg := params.DefaultConfig()
	cfg.SequenceLength = 8
	cfg.BatchSize = 4
	cfg.HiddenSize = 12

	rng := rand.New(rand.NewSource(2))
	sampler, err := IO.NewBatchSampler(corpus, cfg.SequenceLength, cfg.BatchSize, rng)
	if err != nil {
		t.Fatal(err)
	}
	model := gru.NewModel(vocab.Size(), cfg.HiddenSize)
	adam := optimizations.NewAdam(model.Params(), cfg)
	h1, h2 := model.ZeroState(cfg.BatchSize)

	const steps = 60
	var first, last float64
	for i := 0; i < steps; i++ {
		batch, err := IO.EncodeBatch(sampler.Next(), vocab)
		if err != nil {
			t.Fatal(err)
		}
		loss, norm, h1n, h2n := trainStep(model, adam, batch, h1, h2, cfg)
		if math.IsNaN(loss) || loss < 0 {
			t.Fatalf("step %d: bad loss %g", i, loss)
		}
		if math.IsNaN(norm) || norm < 0 {
			t.Fatalf("step %d: bad gradient norm %g", i, norm)
		}
		h1, h2 = h1n, h2n
		if i < 10 {
			first += loss
		}
		if i >= steps-10 {
			last += loss
		}
	}
	if last >= first {
		t.Fatalf("mean loss did not decrease: first ten %g, last ten %g", first/10, last/10)
	}
}

func TestTrainStepRespectsNormCap(t *testing.T) {
	rand.Seed(6)
	corpus := []rune(strings.Repeat("abcd", 100))
	vocab := IO.BuildVocabulary(corpus)
	cfg := params.DefaultConfig()
	cfg.SequenceLength = 6
	cfg.BatchSize = 3
	cfg.HiddenSize = 8
	cfg.MaxGradientNorm = 1e-6 // force the rescale branch

	rng := rand.New(rand.NewSource(7))
	sampler, err := IO.NewBatchSampler(corpus, cfg.SequenceLength, cfg.BatchSize, rng)
	if err != nil {
		t.Fatal(err)
	}
	model := gru.NewModel(vocab.Size(), cfg.HiddenSize)
	adam := optimizations.NewAdam(model.Params(), cfg)
	h1, h2 := model.ZeroState(cfg.BatchSize)

	batch, err := IO.EncodeBatch(sampler.Next(), vocab)
	if err != nil {
		t.Fatal(err)
	}
	_, norm, _, _ := trainStep(model, adam, batch, h1, h2, cfg)
	if norm <= cfg.MaxGradientNorm {
		t.Fatalf("reported norm %g should be the pre-rescale value", norm)
	}
}

func TestTrainStepReturnsCarriedState(t *testing.T) {
	rand.Seed(9)
	corpus := []rune(strings.Repeat("hello world\n", 50))
	vocab := IO.BuildVocabulary(corpus)
	cfg := params.DefaultConfig()
	cfg.SequenceLength = 7
	cfg.BatchSize = 2
	cfg.HiddenSize = 6

	rng := rand.New(rand.NewSource(10))
	sampler, err := IO.NewBatchSampler(corpus, cfg.SequenceLength, cfg.BatchSize, rng)
	if err != nil {
		t.Fatal(err)
	}
	model := gru.NewModel(vocab.Size(), cfg.HiddenSize)
	adam := optimizations.NewAdam(model.Params(), cfg)
	h1, h2 := model.ZeroState(cfg.BatchSize)

	batch, err := IO.EncodeBatch(sampler.Next(), vocab)
	if err != nil {
		t.Fatal(err)
	}
	// The weight update happens after the forward pass, so a forward with the
	// same inputs and states predicts trainStep's returned states exactly.
	_, wantH1, wantH2 := model.Forward(batch.Inputs, h1, h2)
	_, _, h1n, h2n := trainStep(model, adam, batch, h1, h2, cfg)
	if !mat.Equal(h1n, wantH1) || !mat.Equal(h2n, wantH2) {
		t.Fatal("trainStep must hand back the window's final hidden states for carry-over")
	}
	if mat.Equal(h1n, h1) {
		t.Fatal("carried layer 1 state did not move off zero")
	}
}

func TestTrainModelRunsValidation(t *testing.T) {
	rand.Seed(3)
	corpus := []rune(strings.Repeat("the quick brown fox\n", 40))
	vocab := IO.BuildVocabulary(corpus)
	train, val := IO.SplitCorpus(corpus)

	cfg := params.DefaultConfig()
	cfg.SequenceLength = 8
	cfg.BatchSize = 4
	cfg.HiddenSize = 10
	cfg.TrainingIterations = 30
	cfg.ValidationIterations = 5
	cfg.ProgressInterval = 10

	model := gru.NewModel(vocab.Size(), cfg.HiddenSize)
	rng := rand.New(rand.NewSource(4))
	res, err := TrainModel(model, train, val, vocab, cfg, rng, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if res.ValidationLoss <= 0 {
		t.Fatalf("validation loss = %g, want positive", res.ValidationLoss)
	}
	if len(res.Losses) != 3 || len(res.Iterations) != 3 || len(res.GradNorms) != 3 {
		t.Fatalf("progress history has %d/%d/%d entries, want 3 each",
			len(res.Iterations), len(res.Losses), len(res.GradNorms))
	}
	if res.Iterations[2] != 30 {
		t.Fatalf("last progress sample at iteration %d, want 30", res.Iterations[2])
	}
}
