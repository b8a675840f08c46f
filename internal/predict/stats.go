// Package predict builds the next-word prediction model: per-file token
// statistics, global aggregates that can subtract a file's contribution, and
// a serializable trie + n-gram snapshot projected from those aggregates.
package predict

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options controls tokenization and snapshot shape.
type Options struct {
	// TopK caps every suggestion list.
	TopK int
	// MinWordLength drops shorter tokens, counted in runes.
	MinWordLength int
	// MinNGramCount is the minimum successor count kept in n-gram lists.
	MinNGramCount int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{TopK: 5, MinWordLength: 2, MinNGramCount: 2}
}

// FileStats is the contribution of one file to the global aggregates.
type FileStats struct {
	TokenCount int                       `json:"tokenCount"`
	Words      map[string]int            `json:"words"`
	Bigrams    map[string]map[string]int `json:"bigrams"`
	Trigrams   map[string]map[string]int `json:"trigrams"`
}

// Tokenize lowercases text and splits it into words of at least minLen runes.
func Tokenize(text string, minLen int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if utf8.RuneCountInString(f) < minLen {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ComputeStats counts words, word -> next bigrams and (prev, word) -> next
// trigrams in a single pass over the tokens of text.
func ComputeStats(text string, opts Options) *FileStats {
	tokens := Tokenize(text, opts.MinWordLength)
	s := &FileStats{
		TokenCount: len(tokens),
		Words:      make(map[string]int),
		Bigrams:    make(map[string]map[string]int),
		Trigrams:   make(map[string]map[string]int),
	}
	for i, tok := range tokens {
		s.Words[tok]++
		if i+1 >= len(tokens) {
			continue
		}
		next := tokens[i+1]
		bump(s.Bigrams, tok, next, 1)
		if i > 0 {
			bump(s.Trigrams, TrigramKey(tokens[i-1], tok), next, 1)
		}
	}
	return s
}

// TrigramKey joins the two preceding words of a trigram.
func TrigramKey(prev, word string) string {
	return prev + " " + word
}

func bump(m map[string]map[string]int, key, next string, delta int) {
	inner := m[key]
	if inner == nil {
		inner = make(map[string]int)
		m[key] = inner
	}
	inner[next] += delta
	if inner[next] <= 0 {
		delete(inner, next)
		if len(inner) == 0 {
			delete(m, key)
		}
	}
}
