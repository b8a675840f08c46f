package graph

import (
	"regexp"
	"slices"

	"github.com/starford/notegraph/internal/models"
)

var (
	dailyRe = regexp.MustCompile(`^(\d{4})-(\d{2})-\d{2}\.md$`)
	monthRe = regexp.MustCompile(`^(\d{4})-\d{2}\.md$`)
	yearRe  = regexp.MustCompile(`^\d{4}\.md$`)
)

// IsDailyNote reports whether filename is exactly YYYY-MM-DD.md.
func IsDailyNote(filename string) bool {
	return dailyRe.MatchString(filename)
}

// MonthKey returns the month node (YYYY-MM.md) of a daily note.
func MonthKey(daily string) string {
	m := dailyRe.FindStringSubmatch(daily)
	if m == nil {
		return ""
	}
	return m[1] + "-" + m[2] + models.Ext
}

// YearKey returns the year node (YYYY.md) of a daily note or month node.
func YearKey(name string) string {
	if m := dailyRe.FindStringSubmatch(name); m != nil {
		return m[1] + models.Ext
	}
	if m := monthRe.FindStringSubmatch(name); m != nil {
		return m[1] + models.Ext
	}
	return ""
}

// AttachDaily idempotently links a daily note under its month node and the
// month under its year node. It reports false for non-daily filenames.
func (g *Graph) AttachDaily(daily string) bool {
	if !IsDailyNote(daily) {
		return false
	}
	month := MonthKey(daily)
	g.addVirtual(month, daily)
	g.addVirtual(YearKey(daily), month)
	return true
}

// BuildTemporal creates the complete month/year hierarchy for the given
// daily notes in one pass.
func (g *Graph) BuildTemporal(dailies []string) {
	months := make(map[string][]string)
	years := make(map[string][]string)
	for _, d := range dailies {
		if !IsDailyNote(d) {
			continue
		}
		month := MonthKey(d)
		months[month] = append(months[month], d)
		year := YearKey(d)
		years[year] = append(years[year], month)
	}
	for month, days := range months {
		g.setVirtual(month, days)
	}
	for year, ms := range years {
		g.setVirtual(year, ms)
	}
}

func (g *Graph) addVirtual(node, child string) {
	g.virtual[node] = insertSorted(g.virtual[node], child)
	g.nodes[node] = insertSorted(g.nodes[node], child)
	g.Ensure(child)
}

func (g *Graph) setVirtual(node string, children []string) {
	children = normalize(children)
	g.virtual[node] = children
	g.nodes[node] = normalize(append(slices.Clone(g.nodes[node]), children...))
	g.Ensure(children...)
}

// isVirtualChild reports whether child is a synthesized successor of node.
func isVirtualChild(node, child string) bool {
	switch {
	case monthRe.MatchString(node):
		return IsDailyNote(child) && MonthKey(child) == node
	case yearRe.MatchString(node):
		return monthRe.MatchString(child) && YearKey(child) == node
	}
	return false
}
