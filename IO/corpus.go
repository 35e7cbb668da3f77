package IO

import (
	"fmt"
	"os"
)

// LoadCorpusFile reads a plain-text corpus into the rune sequence the rest of
// the pipeline works on.
func LoadCorpusFile(path string) ([]rune, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	return []rune(string(raw)), nil
}

// SplitCorpus cuts the corpus into a training prefix and a validation suffix,
// 90/10 by character count, with no shuffling. Integer arithmetic keeps the
// cut point stable: len(train) == len(corpus)*9/10.
func SplitCorpus(corpus []rune) (train, val []rune) {
	cut := len(corpus) * 9 / 10
	return corpus[:cut], corpus[cut:]
}
