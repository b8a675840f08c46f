package parser

import (
	"reflect"
	"sort"
	"strings"
	"testing"
)

func TestExtractLinks(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"plain", "See [[Note A]] and [[Note B]].", []string{"Note A.md", "Note B.md"}},
		{"alias", "[[Target|shown text]]", []string{"Target.md"}},
		{"heading", "[[Target#Section]]", []string{"Target.md"}},
		{"alias and heading", "[[Target#Sec|alias]]", []string{"Target.md"}},
		{"explicit md", "[[Target.md]]", []string{"Target.md"}},
		{"attachment", "[[diagram.png]] [[report.pdf]]", []string{}},
		{"embed skipped", "![[Embedded]] [[Linked]]", []string{"Linked.md"}},
		{"same-note heading", "[[#Only heading]]", []string{}},
		{"empty", "[[ ]] [[|alias]]", []string{}},
		{"dotted name", "[[v1.2 release notes]]", []string{"v1.2 release notes.md"}},
		{"duplicates kept", "[[A]] [[A]]", []string{"A.md", "A.md"}},
		{"nested", "[[A/B/C]]", []string{"A/B/C.md", "A.md", "A/B.md"}},
		{"version suffix", "[[Release v1.2]]", []string{"Release v1.2.md"}},
		{"time suffix", "[[Meeting 10.30]]", []string{"Meeting 10.30.md"}},
		{"dotted folder", "[[v2.0/Plan]]", []string{"v2.0/Plan.md", "v2.0.md"}},
		{"attachment in folder", "[[assets.v1/logo.svg]]", []string{}},
		{"trailing slash", "[[A/]]", []string{"A.md"}},
		{"nested trailing slash", "[[A/B/]]", []string{"A/B.md", "A.md"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractLinks(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("links = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractLinks_CanonicalExtensionOnly(t *testing.T) {
	text := "[[a]] [[b.md]] [[c.jpeg]] [[d/e.txt]] [[f/g]] ![[h]] [[i.MD]]"
	for _, l := range ExtractLinks(text) {
		if !strings.HasSuffix(l, ".md") {
			t.Errorf("link %q lacks canonical extension", l)
		}
		if strings.Contains(l, ".jpeg") || strings.Contains(l, ".txt") {
			t.Errorf("attachment leaked: %q", l)
		}
	}
}

func TestExtractLinks_ImplicitAncestors(t *testing.T) {
	got := ExtractLinks("[[People/Team/John]]")
	sort.Strings(got)
	want := []string{"People.md", "People/Team.md", "People/Team/John.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("links = %q, want %q", got, want)
	}
	if anc := ancestors("People/Team/John.md"); len(anc) != 2 || anc[0] != "People.md" {
		t.Errorf("ancestors = %q, want shallowest first without self", anc)
	}
}
