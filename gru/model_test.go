package gru

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/charGRU/params"
)

func testVocabulary(chars string) params.Vocabulary {
	runes := []rune(chars)
	ids := make(map[rune]int, len(runes))
	for i, r := range runes {
		ids[r] = i
	}
	return params.Vocabulary{IDToChar: runes, CharToID: ids}
}

func TestForwardShapesAndDistributions(t *testing.T) {
	rand.Seed(5)
	model := NewModel(6, 4)
	rng := rand.New(rand.NewSource(11))
	inputs, _ := randomBatch(rng, 3, 5, 6)
	h1, h2 := model.ZeroState(3)

	probs, h1out, h2out := model.Forward(inputs, h1, h2)
	if len(probs) != 5 {
		t.Fatalf("got %d output timesteps, want 5", len(probs))
	}
	for ti, p := range probs {
		r, c := p.Dims()
		if r != 3 || c != 6 {
			t.Fatalf("timestep %d: output is %dx%d, want 3x6", ti, r, c)
		}
		for b := 0; b < r; b++ {
			var sum float64
			for j := 0; j < c; j++ {
				v := p.At(b, j)
				if v < 0 {
					t.Fatalf("timestep %d row %d: negative probability %g", ti, b, v)
				}
				sum += v
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("timestep %d row %d: probabilities sum to %g", ti, b, sum)
			}
		}
	}
	if r, c := h1out.Dims(); r != 3 || c != 4 {
		t.Fatalf("layer 1 state is %dx%d, want 3x4", r, c)
	}
	if r, c := h2out.Dims(); r != 3 || c != 4 {
		t.Fatalf("layer 2 state is %dx%d, want 3x4", r, c)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rand.Seed(21)
	model := NewModel(5, 3)
	vocab := testVocabulary("abcd\n")

	path := filepath.Join(t.TempDir(), "model.gob")
	if err := SaveModel(path, model, vocab); err != nil {
		t.Fatal(err)
	}
	loaded, loadedVocab, err := LoadModel(path)
	if err != nil {
		t.Fatal(err)
	}

	if loadedVocab.Size() != vocab.Size() {
		t.Fatalf("vocab size = %d, want %d", loadedVocab.Size(), vocab.Size())
	}
	for i, r := range vocab.IDToChar {
		if loadedVocab.IDToChar[i] != r {
			t.Fatalf("vocab index %d: %q, want %q", i, loadedVocab.IDToChar[i], r)
		}
	}

	rng := rand.New(rand.NewSource(3))
	inputs, _ := randomBatch(rng, 2, 4, 5)
	h1, h2 := model.ZeroState(2)
	probsA, _, _ := model.Forward(inputs, h1, h2)
	h1, h2 = loaded.ZeroState(2)
	probsB, _, _ := loaded.Forward(inputs, h1, h2)
	for ti := range probsA {
		if !mat.Equal(probsA[ti], probsB[ti]) {
			t.Fatalf("timestep %d: distributions differ after reload", ti)
		}
	}
}

func TestLoadModelRejectsCorruptBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gob")
	if err := os.WriteFile(path, []byte("not a checkpoint"), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err := LoadModel(path)
	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("error = %v, want ModelLoadError", err)
	}
}

func TestLoadModelRejectsShapeMismatch(t *testing.T) {
	rand.Seed(2)
	data := modelData{
		VocabSize:  4,
		HiddenSize: 3,
		Layer1:     flattenLayer(NewLayer(4, 3)),
		Layer2:     flattenLayer(NewLayer(3, 3)),
		Wdec:       make([]float64, 5), // want 3x4
		Bdec:       make([]float64, 4),
		Chars:      []rune("abcd"),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "mismatch.gob")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := LoadModel(path)
	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("error = %v, want ModelLoadError", err)
	}
}

func TestLoadModelMissingFile(t *testing.T) {
	_, _, err := LoadModel(filepath.Join(t.TempDir(), "absent.gob"))
	if err == nil {
		t.Fatal("expected an error for a missing checkpoint")
	}
}
