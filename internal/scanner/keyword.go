package scanner

import (
	"github.com/karupanerura/series-formula/internal/token"
)

// packedWidth is the number of bytes the fast path loads into one uint64.
const packedWidth = 8

type keyword struct {
	word   string // lower case
	kind   token.Kind
	packed uint64
}

// KeywordSet is an immutable keyword table for one grammar version.
//
// Lookup first tries a word-packed comparison: the candidate word is loaded
// into a uint64, folded to lower case by OR-ing 0x20 into every byte and
// compared against precomputed constants. Folding with 0x20 maps a byte onto
// a lower case letter only if the byte already was an ASCII letter, so the
// fast path never accepts a word the portable path rejects.
type KeywordSet struct {
	maxLength int
	// portable path: by length, then by folded first letter
	byInitial [][26][]keyword
	// fast path: by length
	byLength [][]keyword
}

var (
	BaseKeywords = newKeywordSet(map[string]token.Kind{
		"and":   token.And,
		"def":   token.Def,
		"else":  token.Else,
		"false": token.False,
		"if":    token.If,
		"in":    token.In,
		"let":   token.Let,
		"not":   token.Not,
		"or":    token.Or,
		"set":   token.Set,
		"then":  token.Then,
		"true":  token.True,
		"undef": token.Undef,
	})

	ExtendedKeywords = newKeywordSet(map[string]token.Kind{
		"and":   token.And,
		"def":   token.Def,
		"else":  token.Else,
		"false": token.False,
		"if":    token.If,
		"in":    token.In,
		"let":   token.Let,
		"not":   token.Not,
		"or":    token.Or,
		"set":   token.Set,
		"then":  token.Then,
		"true":  token.True,
		"undef": token.Undef,
		"elif":  token.Elif,
		"all":   token.All,
		"any":   token.Any,
	})
)

func newKeywordSet(words map[string]token.Kind) *KeywordSet {
	maxLength := 0
	for word := range words {
		if len(word) > packedWidth {
			panic("keyword longer than the packed width: " + word)
		}
		if len(word) > maxLength {
			maxLength = len(word)
		}
	}

	ks := &KeywordSet{
		maxLength: maxLength,
		byInitial: make([][26][]keyword, maxLength+1),
		byLength:  make([][]keyword, maxLength+1),
	}
	for word, kind := range words {
		for i := 0; i < len(word); i++ {
			if word[i] < 'a' || 'z' < word[i] {
				panic("keyword must be lower case ASCII letters: " + word)
			}
		}
		kw := keyword{word: word, kind: kind, packed: pack(word)}
		ks.byInitial[len(word)][word[0]-'a'] = append(ks.byInitial[len(word)][word[0]-'a'], kw)
		ks.byLength[len(word)] = append(ks.byLength[len(word)], kw)
	}
	return ks
}

// Words lists the keywords of the set.
func (ks *KeywordSet) Words() []string {
	var words []string
	for _, bucket := range ks.byLength {
		for _, kw := range bucket {
			words = append(words, kw.word)
		}
	}
	return words
}

func (ks *KeywordSet) Lookup(word string) (token.Kind, bool) {
	if len(word) == 0 || len(word) > ks.maxLength {
		return token.Identifier, false
	}

	folded := pack(word)
	for _, kw := range ks.byLength[len(word)] {
		if kw.packed == folded {
			return kw.kind, true
		}
	}
	return token.Identifier, false
}

// LookupPortable matches without the packed comparison.
func (ks *KeywordSet) LookupPortable(word string) (token.Kind, bool) {
	if len(word) == 0 || len(word) > ks.maxLength {
		return token.Identifier, false
	}

	c := lower(word[0])
	if c < 'a' || 'z' < c {
		return token.Identifier, false
	}
	for _, kw := range ks.byInitial[len(word)][c-'a'] {
		if equalFold(word, kw.word) {
			return kw.kind, true
		}
	}
	return token.Identifier, false
}

// pack loads up to packedWidth bytes little-endian and folds them to lower case.
func pack(word string) uint64 {
	var v uint64
	for i := 0; i < len(word) && i < packedWidth; i++ {
		v |= uint64(word[i]|0x20) << (8 * i)
	}
	return v
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// equalFold compares word with the lower case keyword kw.
func equalFold(word, kw string) bool {
	if len(word) != len(kw) {
		return false
	}
	for i := 0; i < len(word); i++ {
		if lower(word[i]) != kw[i] {
			return false
		}
	}
	return true
}
