package IO

import (
	"sort"

	"github.com/manningwu07/charGRU/params"
)

// BuildVocabulary derives the alphabet from the full corpus, never from a
// split: every distinct rune, sorted so index assignment is identical across
// runs on the same text.
func BuildVocabulary(corpus []rune) params.Vocabulary {
	seen := make(map[rune]struct{})
	for _, r := range corpus {
		seen[r] = struct{}{}
	}
	chars := make([]rune, 0, len(seen))
	for r := range seen {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })

	ids := make(map[rune]int, len(chars))
	for i, r := range chars {
		ids[r] = i
	}
	return params.Vocabulary{IDToChar: chars, CharToID: ids}
}
