package predict

import (
	"maps"
	"slices"
)

// Aggregates holds the global word and n-gram counts, partitioned by source
// file so a file's contribution can be reversed in O(file size).
//
// Aggregates is not safe for concurrent use.
type Aggregates struct {
	files    map[string]*FileStats
	words    map[string]int
	bigrams  map[string]map[string]int
	trigrams map[string]map[string]int
	tokens   int
}

// NewAggregates returns empty aggregates.
func NewAggregates() *Aggregates {
	return &Aggregates{
		files:    make(map[string]*FileStats),
		words:    make(map[string]int),
		bigrams:  make(map[string]map[string]int),
		trigrams: make(map[string]map[string]int),
	}
}

// Apply replaces the recorded contribution of filename with stats. A nil
// stats forgets the file entirely.
func (a *Aggregates) Apply(filename string, stats *FileStats) {
	if prev, ok := a.files[filename]; ok {
		a.merge(prev, -1)
		delete(a.files, filename)
	}
	if stats == nil {
		return
	}
	a.merge(stats, 1)
	a.files[filename] = stats
}

// Has reports whether filename currently contributes.
func (a *Aggregates) Has(filename string) bool {
	_, ok := a.files[filename]
	return ok
}

// Files returns the sorted names of the contributing files.
func (a *Aggregates) Files() []string {
	return slices.Sorted(maps.Keys(a.files))
}

// FileCount returns the number of contributing files.
func (a *Aggregates) FileCount() int {
	return len(a.files)
}

// TokenCount returns the total number of tokens across all files.
func (a *Aggregates) TokenCount() int {
	return a.tokens
}

// UniqueTokens returns the vocabulary size.
func (a *Aggregates) UniqueTokens() int {
	return len(a.words)
}

// Reset forgets every file.
func (a *Aggregates) Reset() {
	*a = *NewAggregates()
}

func (a *Aggregates) merge(s *FileStats, sign int) {
	a.tokens += sign * s.TokenCount
	for w, c := range s.Words {
		a.words[w] += sign * c
		if a.words[w] <= 0 {
			delete(a.words, w)
		}
	}
	for k, nexts := range s.Bigrams {
		for n, c := range nexts {
			bump(a.bigrams, k, n, sign*c)
		}
	}
	for k, nexts := range s.Trigrams {
		for n, c := range nexts {
			bump(a.trigrams, k, n, sign*c)
		}
	}
}
