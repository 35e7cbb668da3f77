package gru

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/manningwu07/charGRU/params"
)

func TestGenerateDeterministicWithSeed(t *testing.T) {
	rand.Seed(31)
	vocab := testVocabulary("ab\n")
	model := NewModel(vocab.Size(), 4)

	outA, err := NewSampler(model, vocab, 40, rand.New(rand.NewSource(99))).Generate("ab\n")
	if err != nil {
		t.Fatal(err)
	}
	outB, err := NewSampler(model, vocab, 40, rand.New(rand.NewSource(99))).Generate("ab\n")
	if err != nil {
		t.Fatal(err)
	}
	if outA != outB {
		t.Fatalf("same seed produced different text: %q vs %q", outA, outB)
	}
}

func TestGenerateStopsAtLineBreakOrCap(t *testing.T) {
	rand.Seed(13)
	vocab := testVocabulary("xy\n")
	model := NewModel(vocab.Size(), 4)
	rng := rand.New(rand.NewSource(17))

	for trial := 0; trial < 20; trial++ {
		out, err := NewSampler(model, vocab, 25, rng).Generate("xy\n")
		if err != nil {
			t.Fatal(err)
		}
		runes := []rune(out)
		if len(runes) == 0 {
			t.Fatal("generated empty text")
		}
		if len(runes) > 25 {
			t.Fatalf("generated %d characters past the cap", len(runes))
		}
		for i, r := range runes {
			if r == '\n' && i != len(runes)-1 {
				t.Fatalf("text continued past a line break: %q", out)
			}
		}
	}
}

func TestGenerateRejectsUnknownPrimerChar(t *testing.T) {
	rand.Seed(19)
	vocab := testVocabulary("ab\n")
	model := NewModel(vocab.Size(), 4)

	_, err := NewSampler(model, vocab, 10, rand.New(rand.NewSource(1))).Generate("z\n")
	var vErr *params.VocabularyError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want VocabularyError", err)
	}
	if vErr.Char != 'z' {
		t.Fatalf("VocabularyError.Char = %q, want 'z'", vErr.Char)
	}
}
