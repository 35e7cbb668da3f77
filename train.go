package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/charGRU/IO"
	"github.com/manningwu07/charGRU/gru"
	"github.com/manningwu07/charGRU/optimizations"
	"github.com/manningwu07/charGRU/params"
	"github.com/manningwu07/charGRU/utils"
)

// TrainResult is what a run produced beyond the mutated model: the final
// validation loss and the sampled progress history for the CSV/plot artifacts.
type TrainResult struct {
	ValidationLoss float64
	Iterations     []int
	Losses         []float64
	GradNorms      []float64
}

// TrainModel runs the fixed-budget loop: hidden state carried across every
// iteration, element-wise clip then global-norm rescale on the gradients,
// Adam updates, progress every ProgressInterval iterations, and a validation
// pass over the held-out split at the end. With EvaluateInterval set it also
// validates mid-run and checkpoints whenever validation loss improves.
func TrainModel(model *gru.Model, train, val []rune, vocab params.Vocabulary,
	cfg params.TrainingConfig, rng *rand.Rand, log *logrus.Logger) (*TrainResult, error) {

	sampler, err := IO.NewBatchSampler(train, cfg.SequenceLength, cfg.BatchSize, rng)
	if err != nil {
		return nil, err
	}
	adam := optimizations.NewAdam(model.Params(), cfg)
	h1, h2 := model.ZeroState(cfg.BatchSize)

	var logWriter *csv.Writer
	if cfg.CSVLogPath != "" {
		logFile, err := os.Create(cfg.CSVLogPath)
		if err != nil {
			return nil, fmt.Errorf("create training log: %w", err)
		}
		defer logFile.Close()
		logWriter = csv.NewWriter(logFile)
		logWriter.Write([]string{"iteration", "loss", "grad_norm"})
		defer logWriter.Flush()
	}

	res := &TrainResult{}
	bestVal := math.Inf(1)

	for it := 1; it <= cfg.TrainingIterations; it++ {
		batch, err := IO.EncodeBatch(sampler.Next(), vocab)
		if err != nil {
			return nil, err
		}
		loss, norm, h1n, h2n := trainStep(model, adam, batch, h1, h2, cfg)
		h1, h2 = h1n, h2n // carried into the next batch, never reset mid-run

		if math.IsNaN(loss) || math.IsInf(loss, 0) || math.IsNaN(norm) || math.IsInf(norm, 0) {
			log.WithFields(logrus.Fields{
				"iteration": it,
				"loss":      loss,
				"grad_norm": norm,
			}).Warn("numeric instability in training step")
		}

		if cfg.ProgressInterval > 0 && it%cfg.ProgressInterval == 0 {
			log.WithFields(logrus.Fields{
				"iteration": it,
				"loss":      loss,
				"grad_norm": norm,
			}).Info("training progress")
			res.Iterations = append(res.Iterations, it)
			res.Losses = append(res.Losses, loss)
			res.GradNorms = append(res.GradNorms, norm)
			if logWriter != nil {
				logWriter.Write([]string{
					strconv.Itoa(it),
					strconv.FormatFloat(loss, 'g', -1, 64),
					strconv.FormatFloat(norm, 'g', -1, 64),
				})
				logWriter.Flush()
			}
		}

		if cfg.EvaluateInterval > 0 && it%cfg.EvaluateInterval == 0 {
			valLoss, err := runValidation(model, val, vocab, cfg, rng)
			if err != nil {
				return nil, err
			}
			log.WithFields(logrus.Fields{
				"iteration":       it,
				"validation_loss": valLoss,
			}).Info("validation checkpoint")
			if valLoss < bestVal {
				bestVal = valLoss
				if cfg.ModelPath != "" {
					if err := gru.SaveModel(cfg.ModelPath, model, vocab); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	valLoss, err := runValidation(model, val, vocab, cfg, rng)
	if err != nil {
		return nil, err
	}
	res.ValidationLoss = valLoss
	log.WithFields(logrus.Fields{"validation_loss": valLoss}).Info("validation complete")
	return res, nil
}

// trainStep runs one optimization step and returns the batch loss, the
// post-clip pre-rescale gradient norm, and the hidden states to carry
// forward.
func trainStep(model *gru.Model, adam *optimizations.Adam, batch *IO.Batch,
	h1, h2 *mat.Dense, cfg params.TrainingConfig) (float64, float64, *mat.Dense, *mat.Dense) {

	_, h1n, h2n := model.Forward(batch.Inputs, h1, h2)
	grads, loss := model.Backward(batch.Targets)

	gs := grads.List()
	if cfg.GradClip > 0 {
		utils.ClipGrads(cfg.GradClip, gs...)
	}
	norm := utils.TotalNorm(gs...)
	if cfg.MaxGradientNorm > 0 && norm > cfg.MaxGradientNorm {
		utils.ScaleGrads(cfg.MaxGradientNorm/norm, gs...)
	}
	adam.Update(model.Params(), gs)
	return loss, norm, h1n, h2n
}

// runValidation measures mean loss over the held-out split with freshly
// zeroed hidden state and no parameter updates.
func runValidation(model *gru.Model, val []rune, vocab params.Vocabulary,
	cfg params.TrainingConfig, rng *rand.Rand) (float64, error) {

	if cfg.ValidationIterations <= 0 {
		return 0, nil
	}
	sampler, err := IO.NewBatchSampler(val, cfg.SequenceLength, cfg.BatchSize, rng)
	if err != nil {
		return 0, err
	}
	h1, h2 := model.ZeroState(cfg.BatchSize)
	var total float64
	for i := 0; i < cfg.ValidationIterations; i++ {
		batch, err := IO.EncodeBatch(sampler.Next(), vocab)
		if err != nil {
			return 0, err
		}
		_, h1n, h2n := model.Forward(batch.Inputs, h1, h2)
		total += model.Loss(batch.Targets)
		h1, h2 = h1n, h2n
	}
	return total / float64(cfg.ValidationIterations), nil
}
