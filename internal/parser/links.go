package parser

import (
	"path"
	"regexp"
	"strings"

	"github.com/starford/notegraph/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`(!?)\[\[([^\[\]]*?)\]\]`)
	extRe      = regexp.MustCompile(`^\.[A-Za-z][A-Za-z0-9]*$`)
)

// ExtractLinks returns the outgoing link targets of a note as canonical
// filenames. Embeds (![[...]]) and attachment targets are skipped. A nested
// target A/B/C additionally yields implicit links to A and A/B, shallowest
// first. Duplicates are kept; callers deduplicate.
func ExtractLinks(text string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if m[1] == "!" {
			continue
		}
		target, ok := normalizeTarget(m[2])
		if !ok {
			continue
		}
		out = append(out, target)
		out = append(out, ancestors(target)...)
	}
	return out
}

// normalizeTarget strips alias and heading fragments and resolves the
// extension. It reports false for empty and attachment targets.
func normalizeTarget(raw string) (string, bool) {
	target := raw
	if i := strings.Index(target, "|"); i >= 0 {
		target = target[:i]
	}
	if i := strings.Index(target, "#"); i >= 0 {
		target = target[:i]
	}
	target = strings.Trim(strings.TrimSpace(target), "/")
	if target == "" {
		return "", false
	}

	// Only a letter-led suffix of the last segment is an extension, so
	// "Release v1.2" stays a note.
	ext := path.Ext(path.Base(target))
	switch {
	case strings.EqualFold(ext, models.Ext):
		return strings.TrimSuffix(target, ext) + models.Ext, true
	case extRe.MatchString(ext):
		return "", false
	default:
		return target + models.Ext, true
	}
}

// ancestors returns the implicit parent links of a nested target.
func ancestors(target string) []string {
	parts := strings.Split(strings.TrimSuffix(target, models.Ext), "/")
	if len(parts) < 2 {
		return nil
	}
	out := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], "/")
		if prefix == "" || strings.HasSuffix(prefix, "/") {
			continue
		}
		out = append(out, prefix+models.Ext)
	}
	return out
}
