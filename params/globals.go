package params

import "fmt"

// Vocabulary is the model's alphabet: a bijection between characters and
// dense indices in [0, Size()). It is built once from the full corpus,
// before any train/validation split, and persisted alongside the weights so
// that training, loading, and sampling all share the identical mapping.
type Vocabulary struct {
	IDToChar []rune
	CharToID map[rune]int
}

// Size is the number of distinct characters, and therefore the width of
// every one-hot input row and output distribution.
func (v Vocabulary) Size() int { return len(v.IDToChar) }

// Index resolves a character to its vocabulary index.
func (v Vocabulary) Index(r rune) (int, error) {
	id, ok := v.CharToID[r]
	if !ok {
		return 0, &VocabularyError{Char: r}
	}
	return id, nil
}

// Char resolves an index back to its character. Indices come from the model's
// own output distribution, so they are always in range.
func (v Vocabulary) Char(id int) rune { return v.IDToChar[id] }

// VocabularyError reports a character outside the model's alphabet. It is
// fatal to the batch or sampling session that encountered it.
type VocabularyError struct {
	Char rune
}

func (e *VocabularyError) Error() string {
	return fmt.Sprintf("vocabulary: character %q not in alphabet", e.Char)
}

// ConfigurationError reports settings the pipeline cannot run with, including
// a corpus too short to cut a single training window from.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

type TrainingConfig struct {
	// Core model parameters
	SequenceLength int // characters per training window
	BatchSize      int // windows per batch
	HiddenSize     int // GRU state width, same for both layers

	// Optimization parameters
	LearningRate float64
	AdamBeta1    float64 // default 0.9
	AdamBeta2    float64 // default 0.999
	AdamEps      float64 // default 1e-8

	// Stability parameters
	GradClip        float64 // element-wise clip bound (<=0 disables)
	MaxGradientNorm float64 // global norm cap applied after the element clip (<=0 disables)

	// Loop budgets
	TrainingIterations   int
	ValidationIterations int
	SamplingMaxLength    int // generation step cap per sampling session
	ProgressInterval     int // report every N iterations (<=0 disables)
	EvaluateInterval     int // validate + checkpoint every N iterations (0 = final pass only)

	// Artifacts
	ModelPath  string // checkpoint destination ("" disables saving)
	CSVLogPath string // training log CSV ("" disables)
}

// DefaultConfig returns the experiment defaults.
func DefaultConfig() TrainingConfig {
	return TrainingConfig{
		SequenceLength: 50,
		BatchSize:      64,
		HiddenSize:     200,

		LearningRate: 0.002,
		AdamBeta1:    0.9,
		AdamBeta2:    0.999,
		AdamEps:      1e-8,

		GradClip:        5,
		MaxGradientNorm: 15,

		TrainingIterations:   20000,
		ValidationIterations: 50,
		SamplingMaxLength:    500,
		ProgressInterval:     100,
		EvaluateInterval:     0,
	}
}

// Validate rejects configurations the training and sampling loops cannot run
// with. Corpus-dependent checks (window vs corpus length) happen later, in
// the batch sampler.
func (c TrainingConfig) Validate() error {
	if c.SequenceLength <= 0 {
		return &ConfigurationError{Field: "SequenceLength", Reason: "must be positive"}
	}
	if c.BatchSize <= 0 {
		return &ConfigurationError{Field: "BatchSize", Reason: "must be positive"}
	}
	if c.HiddenSize <= 0 {
		return &ConfigurationError{Field: "HiddenSize", Reason: "must be positive"}
	}
	if c.LearningRate <= 0 {
		return &ConfigurationError{Field: "LearningRate", Reason: "must be positive"}
	}
	if c.AdamBeta1 < 0 || c.AdamBeta1 >= 1 || c.AdamBeta2 < 0 || c.AdamBeta2 >= 1 {
		return &ConfigurationError{Field: "Adam betas", Reason: "must lie in [0, 1)"}
	}
	if c.TrainingIterations < 0 {
		return &ConfigurationError{Field: "TrainingIterations", Reason: "must be non-negative"}
	}
	if c.ValidationIterations < 0 {
		return &ConfigurationError{Field: "ValidationIterations", Reason: "must be non-negative"}
	}
	if c.SamplingMaxLength <= 0 {
		return &ConfigurationError{Field: "SamplingMaxLength", Reason: "must be positive"}
	}
	return nil
}
