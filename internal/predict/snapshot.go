package predict

import (
	"slices"
	"strings"
	"time"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// Suggestion is a ranked candidate word.
type Suggestion struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// TrieNode is one character step of the prefix trie. Top holds the best
// whole words sharing the prefix that leads to the node.
type TrieNode struct {
	Top      []Suggestion         `json:"top,omitempty"`
	Children map[string]*TrieNode `json:"children,omitempty"`
}

// Snapshot is the serializable projection of the aggregates.
type Snapshot struct {
	Version      int                     `json:"version"`
	UpdatedAt    time.Time               `json:"updatedAt"`
	TokenCount   int                     `json:"tokenCount"`
	UniqueTokens int                     `json:"uniqueTokens"`
	Trie         *TrieNode               `json:"trie"`
	Bigrams      map[string][]Suggestion `json:"bigrams"`
	Trigrams     map[string][]Suggestion `json:"trigrams"`
}

// BuildSnapshot projects the aggregates into a snapshot. Every list is
// ordered by count descending, ties broken lexicographically, capped at
// opts.TopK. It reads only the global counts, never per-file stats.
func BuildSnapshot(a *Aggregates, opts Options, now time.Time) *Snapshot {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	s := &Snapshot{
		Version:      SnapshotVersion,
		UpdatedAt:    now,
		TokenCount:   a.tokens,
		UniqueTokens: len(a.words),
		Trie:         &TrieNode{},
		Bigrams:      rankAll(a.bigrams, opts),
		Trigrams:     rankAll(a.trigrams, opts),
	}
	for w, c := range a.words {
		s.Trie.insert(w, Suggestion{Word: w, Count: c}, opts.TopK)
	}
	return s
}

// Complete returns the best words starting with prefix.
func (s *Snapshot) Complete(prefix string) []Suggestion {
	if s == nil || s.Trie == nil || prefix == "" {
		return nil
	}
	node := s.Trie
	for _, r := range strings.ToLower(prefix) {
		node = node.Children[string(r)]
		if node == nil {
			return nil
		}
	}
	return slices.Clone(node.Top)
}

// Next returns likely successors of word, preferring the trigram list keyed
// by (prev, word) and falling back to the bigram list.
func (s *Snapshot) Next(prev, word string) []Suggestion {
	if s == nil {
		return nil
	}
	prev, word = strings.ToLower(prev), strings.ToLower(word)
	if prev != "" {
		if list := s.Trigrams[TrigramKey(prev, word)]; len(list) > 0 {
			return slices.Clone(list)
		}
	}
	return slices.Clone(s.Bigrams[word])
}

func (n *TrieNode) insert(word string, sg Suggestion, k int) {
	node := n
	for _, r := range word {
		if node.Children == nil {
			node.Children = make(map[string]*TrieNode)
		}
		key := string(r)
		child := node.Children[key]
		if child == nil {
			child = &TrieNode{}
			node.Children[key] = child
		}
		child.Top = pushTop(child.Top, sg, k)
		node = child
	}
}

func rankAll(m map[string]map[string]int, opts Options) map[string][]Suggestion {
	out := make(map[string][]Suggestion, len(m))
	for key, nexts := range m {
		var list []Suggestion
		for w, c := range nexts {
			if c < opts.MinNGramCount {
				continue
			}
			list = pushTop(list, Suggestion{Word: w, Count: c}, opts.TopK)
		}
		if len(list) > 0 {
			out[key] = list
		}
	}
	return out
}

// pushTop inserts sg into the ranked list and keeps at most k entries.
func pushTop(list []Suggestion, sg Suggestion, k int) []Suggestion {
	i, _ := slices.BinarySearchFunc(list, sg, compareSuggestions)
	if i >= k {
		return list
	}
	list = slices.Insert(list, i, sg)
	if len(list) > k {
		list = list[:k]
	}
	return list
}

func compareSuggestions(a, b Suggestion) int {
	if a.Count != b.Count {
		return b.Count - a.Count
	}
	return strings.Compare(a.Word, b.Word)
}
