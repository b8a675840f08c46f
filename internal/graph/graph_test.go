package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLinks_EnsuresTargets(t *testing.T) {
	g := New()
	g.SetLinks("People/John.md", []string{"People.md", "Alice.md", "People.md"})

	assert.Equal(t, []string{"Alice.md", "People.md"}, g.Links("People/John.md"))
	require.True(t, g.Has("People.md"))
	assert.Empty(t, g.Links("People.md"))
	assert.NotNil(t, g.Map()["People.md"])
}

func TestSetLinks_Overwrites(t *testing.T) {
	g := New()
	g.SetLinks("a.md", []string{"b.md"})
	g.SetLinks("a.md", []string{"c.md"})
	assert.Equal(t, []string{"c.md"}, g.Links("a.md"))
	assert.True(t, g.Has("b.md"), "previously referenced keys stay")
}

func TestBuild_NoDanglingReferences(t *testing.T) {
	g := Build(map[string][]string{
		"a.md": {"b.md", "c.md"},
		"b.md": {"d.md"},
	})
	m := g.Map()
	for src, targets := range m {
		for _, tgt := range targets {
			_, ok := m[tgt]
			assert.Truef(t, ok, "%s -> %s dangles", src, tgt)
		}
	}
}

func TestRemove(t *testing.T) {
	g := New()
	g.SetLinks("a.md", []string{"b.md"})
	g.SetLinks("b.md", []string{"c.md"})
	g.SetLinks("x.md", []string{"x.md"})

	g.Remove("b.md")
	assert.True(t, g.Has("b.md"), "still referenced by a.md")
	assert.Empty(t, g.Links("b.md"))

	g.Remove("a.md")
	assert.False(t, g.Has("a.md"))

	g.Remove("x.md")
	assert.False(t, g.Has("x.md"), "self link does not keep a key alive")
}

func TestBacklinks(t *testing.T) {
	g := Build(map[string][]string{
		"a.md": {"t.md"},
		"c.md": {"t.md"},
		"d.md": {"e.md"},
	})
	assert.Equal(t, []string{"a.md", "c.md"}, g.Backlinks("t.md"))
}

func TestFromMapRoundTripKeepsVirtual(t *testing.T) {
	g := New()
	g.SetLinks("2026-01-05.md", nil)
	g.AttachDaily("2026-01-05.md")

	back := FromMap(g.Map())
	assert.Equal(t, g.Map(), back.Map())

	// A real month note rewritten after reload keeps its daily successor.
	back.SetLinks("2026-01.md", []string{"Plan.md"})
	assert.Equal(t, []string{"2026-01-05.md", "Plan.md"}, back.Links("2026-01.md"))
}
