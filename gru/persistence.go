package gru

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/charGRU/params"
)

// ModelLoadError reports a checkpoint that cannot be restored into a model:
// undecodable, or internally inconsistent. Loading never produces a partial
// model.
type ModelLoadError struct {
	Path   string
	Reason string
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %s", e.Path, e.Reason)
}

// layerData is one layer's tensors flattened row-major. Shapes are implied by
// the checkpoint header dims.
type layerData struct {
	Wr, Ur, Br []float64
	Wz, Uz, Bz []float64
	Wh, Uh, Bh []float64
}

// modelData is the gob checkpoint: architecture dims, every parameter tensor
// in stable order, and the vocabulary that indexes the one-hot inputs.
type modelData struct {
	VocabSize  int
	HiddenSize int

	Layer1, Layer2 layerData
	Wdec, Bdec     []float64

	Chars []rune
}

// SaveModel persists the model weights and vocabulary as a single gob blob.
func SaveModel(filename string, m *Model, vocab params.Vocabulary) error {
	data := modelData{
		VocabSize:  m.VocabSize,
		HiddenSize: m.HiddenSize,
		Layer1:     flattenLayer(m.Layer1),
		Layer2:     flattenLayer(m.Layer2),
		Wdec:       flatten(m.Wdec),
		Bdec:       flatten(m.Bdec),
		Chars:      append([]rune(nil), vocab.IDToChar...),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("save model %s: %w", filename, err)
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

func flattenLayer(l *Layer) layerData {
	return layerData{
		Wr: flatten(l.Wr), Ur: flatten(l.Ur), Br: flatten(l.Br),
		Wz: flatten(l.Wz), Uz: flatten(l.Uz), Bz: flatten(l.Bz),
		Wh: flatten(l.Wh), Uh: flatten(l.Uh), Bh: flatten(l.Bh),
	}
}

func flatten(m *mat.Dense) []float64 {
	raw := mat.DenseCopyOf(m).RawMatrix()
	return append([]float64(nil), raw.Data...)
}

// LoadModel restores a model and its vocabulary from a blob written by
// SaveModel. The architecture is rebuilt from the blob's dims; any
// inconsistency aborts with ModelLoadError.
func LoadModel(filename string) (*Model, params.Vocabulary, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, params.Vocabulary{}, fmt.Errorf("load model: %w", err)
	}
	var data modelData
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		return nil, params.Vocabulary{}, &ModelLoadError{Path: filename, Reason: err.Error()}
	}
	if data.VocabSize <= 0 || data.HiddenSize <= 0 {
		return nil, params.Vocabulary{}, &ModelLoadError{Path: filename, Reason: "non-positive architecture dims"}
	}
	if len(data.Chars) != data.VocabSize {
		return nil, params.Vocabulary{}, &ModelLoadError{
			Path:   filename,
			Reason: fmt.Sprintf("vocabulary has %d characters, header says %d", len(data.Chars), data.VocabSize),
		}
	}

	m := &Model{
		VocabSize:  data.VocabSize,
		HiddenSize: data.HiddenSize,
		Layer1:     &Layer{InputSize: data.VocabSize, HiddenSize: data.HiddenSize},
		Layer2:     &Layer{InputSize: data.HiddenSize, HiddenSize: data.HiddenSize},
	}
	if err := restoreLayer(m.Layer1, data.Layer1); err != nil {
		return nil, params.Vocabulary{}, &ModelLoadError{Path: filename, Reason: "layer 1 " + err.Error()}
	}
	if err := restoreLayer(m.Layer2, data.Layer2); err != nil {
		return nil, params.Vocabulary{}, &ModelLoadError{Path: filename, Reason: "layer 2 " + err.Error()}
	}
	if m.Wdec, err = reshape(data.Wdec, data.HiddenSize, data.VocabSize); err != nil {
		return nil, params.Vocabulary{}, &ModelLoadError{Path: filename, Reason: "decoder weights " + err.Error()}
	}
	if m.Bdec, err = reshape(data.Bdec, 1, data.VocabSize); err != nil {
		return nil, params.Vocabulary{}, &ModelLoadError{Path: filename, Reason: "decoder bias " + err.Error()}
	}

	vocab := params.Vocabulary{
		IDToChar: append([]rune(nil), data.Chars...),
		CharToID: make(map[rune]int, len(data.Chars)),
	}
	for i, r := range vocab.IDToChar {
		vocab.CharToID[r] = i
	}
	if len(vocab.CharToID) != len(vocab.IDToChar) {
		return nil, params.Vocabulary{}, &ModelLoadError{Path: filename, Reason: "duplicate characters in vocabulary"}
	}
	return m, vocab, nil
}

func restoreLayer(l *Layer, d layerData) error {
	in, hid := l.InputSize, l.HiddenSize
	tensors := []struct {
		name string
		dst  **mat.Dense
		src  []float64
		r, c int
	}{
		{"Wr", &l.Wr, d.Wr, in, hid},
		{"Ur", &l.Ur, d.Ur, hid, hid},
		{"Br", &l.Br, d.Br, 1, hid},
		{"Wz", &l.Wz, d.Wz, in, hid},
		{"Uz", &l.Uz, d.Uz, hid, hid},
		{"Bz", &l.Bz, d.Bz, 1, hid},
		{"Wh", &l.Wh, d.Wh, in, hid},
		{"Uh", &l.Uh, d.Uh, hid, hid},
		{"Bh", &l.Bh, d.Bh, 1, hid},
	}
	for _, tn := range tensors {
		m, err := reshape(tn.src, tn.r, tn.c)
		if err != nil {
			return fmt.Errorf("%s %v", tn.name, err)
		}
		*tn.dst = m
	}
	return nil
}

func reshape(data []float64, r, c int) (*mat.Dense, error) {
	if len(data) != r*c {
		return nil, fmt.Errorf("has %d values, want %dx%d", len(data), r, c)
	}
	return mat.NewDense(r, c, append([]float64(nil), data...)), nil
}
