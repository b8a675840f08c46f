package predict

import (
	"encoding/json"
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{TopK: 3, MinWordLength: 2, MinNGramCount: 1}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The [[Quick]] brown-fox, a B don't 'quoted' ÉTÉ", 2)
	assert.Equal(t, []string{"the", "quick", "brown", "fox", "don't", "quoted", "été"}, got)
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats("go is fun go is fast", testOptions())
	assert.Equal(t, 6, s.TokenCount)
	assert.Equal(t, 2, s.Words["go"])
	assert.Equal(t, 2, s.Bigrams["go"]["is"])
	assert.Equal(t, 1, s.Bigrams["fun"]["go"])
	assert.Equal(t, 1, s.Trigrams["go is"]["fun"])
	assert.Equal(t, 1, s.Trigrams["go is"]["fast"])
	assert.NotContains(t, s.Bigrams, "fast", "last token has no successor")
}

func aggregateState(a *Aggregates) (map[string]int, map[string]map[string]int, map[string]map[string]int, int) {
	words := maps.Clone(a.words)
	clone := func(m map[string]map[string]int) map[string]map[string]int {
		out := make(map[string]map[string]int, len(m))
		for k, v := range m {
			out[k] = maps.Clone(v)
		}
		return out
	}
	return words, clone(a.bigrams), clone(a.trigrams), a.tokens
}

func TestApply_Inverse(t *testing.T) {
	opts := testOptions()
	a := NewAggregates()
	a.Apply("base.md", ComputeStats("shared words live here and here", opts))
	w0, b0, t0, n0 := aggregateState(a)

	a.Apply("f.md", ComputeStats("words live here too and words again", opts))
	require.True(t, a.Has("f.md"))
	a.Apply("f.md", nil)

	w1, b1, t1, n1 := aggregateState(a)
	assert.Equal(t, w0, w1)
	assert.Equal(t, b0, b1)
	assert.Equal(t, t0, t1)
	assert.Equal(t, n0, n1)
	assert.False(t, a.Has("f.md"))
}

func TestApply_ReplacesPreviousContribution(t *testing.T) {
	opts := testOptions()
	a := NewAggregates()
	a.Apply("f.md", ComputeStats("alpha beta", opts))
	a.Apply("f.md", ComputeStats("gamma delta", opts))

	assert.NotContains(t, a.words, "alpha")
	assert.Equal(t, 1, a.words["gamma"])
	assert.Equal(t, 2, a.TokenCount())
	assert.Equal(t, 1, a.FileCount())
}

func TestApply_NilForUnknownFileIsNoop(t *testing.T) {
	a := NewAggregates()
	a.Apply("ghost.md", nil)
	assert.Zero(t, a.TokenCount())
	assert.Zero(t, a.FileCount())
}

func TestBuildSnapshot_TrieOrdering(t *testing.T) {
	opts := testOptions()
	a := NewAggregates()
	a.Apply("f.md", ComputeStats("tea tea tea team team ten tent tent tan", opts))
	s := BuildSnapshot(a, opts, time.Unix(0, 0))

	assert.Equal(t, SnapshotVersion, s.Version)
	assert.Equal(t, 9, s.TokenCount)
	assert.Equal(t, 5, s.UniqueTokens)

	// tea(3) beats team(2) = tent(2) tie broken lexicographically; ten(1) cut at K=3.
	assert.Equal(t, []Suggestion{{"tea", 3}, {"team", 2}, {"tent", 2}}, s.Complete("te"))
	assert.Equal(t, []Suggestion{{"tea", 3}, {"team", 2}, {"tent", 2}}, s.Complete("T"))
	assert.Equal(t, []Suggestion{{"tan", 1}}, s.Complete("ta"))
	assert.Nil(t, s.Complete("x"))
}

func TestBuildSnapshot_NGramThresholdAndCap(t *testing.T) {
	opts := Options{TopK: 2, MinWordLength: 2, MinNGramCount: 2}
	a := NewAggregates()
	a.Apply("f.md", ComputeStats("go home go home go away go fast go fast go slow", opts))
	s := BuildSnapshot(a, opts, time.Now())

	assert.Equal(t, []Suggestion{{"fast", 2}, {"home", 2}}, s.Bigrams["go"])
	assert.NotContains(t, s.Bigrams, "away", "away->go occurs once")
	assert.Equal(t, []Suggestion{{"go", 2}}, s.Bigrams["home"])
}

func TestBuildSnapshot_Deterministic(t *testing.T) {
	opts := testOptions()
	build := func(order []string) []byte {
		a := NewAggregates()
		texts := map[string]string{
			"a.md": "one two three one two",
			"b.md": "two three four two three",
			"c.md": "three one two",
		}
		for _, f := range order {
			a.Apply(f, ComputeStats(texts[f], opts))
		}
		data, err := json.Marshal(BuildSnapshot(a, opts, time.Unix(1, 0)))
		require.NoError(t, err)
		return data
	}
	assert.JSONEq(t, string(build([]string{"a.md", "b.md", "c.md"})), string(build([]string{"c.md", "a.md", "b.md"})))
}

func TestNext_TrigramThenBigram(t *testing.T) {
	opts := testOptions()
	a := NewAggregates()
	a.Apply("f.md", ComputeStats("see you later see you soon say you soon", opts))
	s := BuildSnapshot(a, opts, time.Now())

	assert.Equal(t, []Suggestion{{"later", 1}, {"soon", 1}}, s.Next("see", "you"))
	assert.Equal(t, []Suggestion{{"soon", 2}, {"later", 1}}, s.Next("", "you"))
	assert.Equal(t, []Suggestion{{"soon", 2}, {"later", 1}}, s.Next("unknown", "you"))
}
