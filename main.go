package main

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/manningwu07/charGRU/IO"
	"github.com/manningwu07/charGRU/gru"
	"github.com/manningwu07/charGRU/params"
)

func main() {
	log := logrus.New()

	rootCmd := &cobra.Command{
		Use:           "charGRU",
		Short:         "Train and sample a character-level GRU text model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newTrainCmd(log), newSampleCmd())
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newTrainCmd(log *logrus.Logger) *cobra.Command {
	cfg := params.DefaultConfig()
	cfg.ModelPath = "model.gob"
	var seed int64
	var plotPath string
	var demoPrimer string

	cmd := &cobra.Command{
		Use:   "train <corpus.txt>",
		Short: "Train a model on a plain-text corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(args[0], cfg, seed, plotPath, demoPrimer, log)
		},
	}

	cmd.Flags().IntVar(&cfg.TrainingIterations, "iterations", cfg.TrainingIterations, "Training iteration budget")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Windows per batch")
	cmd.Flags().IntVar(&cfg.SequenceLength, "sequence-length", cfg.SequenceLength, "Characters per training window")
	cmd.Flags().IntVar(&cfg.HiddenSize, "hidden-size", cfg.HiddenSize, "GRU hidden state width")
	cmd.Flags().Float64Var(&cfg.LearningRate, "learning-rate", cfg.LearningRate, "Adam base learning rate")
	cmd.Flags().Float64Var(&cfg.GradClip, "grad-clip", cfg.GradClip, "Element-wise gradient clip bound")
	cmd.Flags().Float64Var(&cfg.MaxGradientNorm, "max-grad-norm", cfg.MaxGradientNorm, "Global gradient norm cap")
	cmd.Flags().IntVar(&cfg.ValidationIterations, "validation-iterations", cfg.ValidationIterations, "Batches per validation pass")
	cmd.Flags().IntVar(&cfg.EvaluateInterval, "evaluate-interval", cfg.EvaluateInterval, "Validate and checkpoint every N iterations (0 = final pass only)")
	cmd.Flags().IntVar(&cfg.ProgressInterval, "progress-interval", cfg.ProgressInterval, "Progress report cadence in iterations")
	cmd.Flags().StringVar(&cfg.ModelPath, "model-out", cfg.ModelPath, "Checkpoint destination")
	cmd.Flags().StringVar(&cfg.CSVLogPath, "csv-log", "", "Training log CSV path (empty disables)")
	cmd.Flags().StringVar(&plotPath, "loss-plot", "", "Loss curve image path (empty disables)")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UTC().UnixNano(), "RNG seed")
	cmd.Flags().StringVar(&demoPrimer, "sample-primer", "", "Primer for the post-training sample (empty takes the validation split's first line)")
	return cmd
}

func runTrain(corpusPath string, cfg params.TrainingConfig, seed int64,
	plotPath, demoPrimer string, log *logrus.Logger) error {

	if err := cfg.Validate(); err != nil {
		return err
	}
	corpus, err := IO.LoadCorpusFile(corpusPath)
	if err != nil {
		return err
	}
	vocab := IO.BuildVocabulary(corpus)
	train, val := IO.SplitCorpus(corpus)
	log.WithFields(logrus.Fields{
		"corpus_chars": len(corpus),
		"train_chars":  len(train),
		"val_chars":    len(val),
		"vocab_size":   vocab.Size(),
	}).Info("corpus loaded")

	rand.Seed(seed) // weight init draws from the global source
	rng := rand.New(rand.NewSource(seed))
	model := gru.NewModel(vocab.Size(), cfg.HiddenSize)

	t1 := time.Now()
	res, err := TrainModel(model, train, val, vocab, cfg, rng, log)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"elapsed":         time.Since(t1).String(),
		"validation_loss": res.ValidationLoss,
	}).Info("training complete")

	if cfg.ModelPath != "" {
		if err := gru.SaveModel(cfg.ModelPath, model, vocab); err != nil {
			return err
		}
		log.WithField("path", cfg.ModelPath).Info("model saved")
	}
	if plotPath != "" {
		if err := WriteLossPlot(res, plotPath); err != nil {
			return err
		}
		log.WithField("path", plotPath).Info("loss plot saved")
	}

	// A short sample in the freshly trained voice.
	primer := demoPrimer
	if primer == "" {
		primer = firstLine(val)
	}
	if !strings.HasSuffix(primer, "\n") {
		primer += "\n"
	}
	sampler := gru.NewSampler(model, vocab, cfg.SamplingMaxLength, rng)
	generated, err := sampler.Generate(primer)
	if err != nil {
		log.WithError(err).Warn("post-training sample failed")
		return nil
	}
	fmt.Printf("Primer: %q\n", primer)
	fmt.Printf("Generated: %s\n", generated)
	return nil
}

// firstLine returns the leading line of the text, line break included.
func firstLine(text []rune) string {
	for i, r := range text {
		if r == '\n' {
			return string(text[:i+1])
		}
	}
	return string(text)
}

func newSampleCmd() *cobra.Command {
	var primer string
	var maxLength int
	var seed int64

	cmd := &cobra.Command{
		Use:   "sample <model.gob>",
		Short: "Generate text from a trained model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, vocab, err := gru.LoadModel(args[0])
			if err != nil {
				return err
			}
			if !strings.HasSuffix(primer, "\n") {
				primer += "\n"
			}
			rng := rand.New(rand.NewSource(seed))
			sampler := gru.NewSampler(model, vocab, maxLength, rng)
			generated, err := sampler.Generate(primer)
			if err != nil {
				return err
			}
			fmt.Printf("Primer: %q\n", primer)
			fmt.Print(generated)
			if !strings.HasSuffix(generated, "\n") {
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&primer, "primer", "", "Priming text (a line break is appended if missing)")
	cmd.Flags().IntVar(&maxLength, "max-length", 500, "Generation step cap")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UTC().UnixNano(), "RNG seed")
	return cmd
}
