// Package parser extracts frontmatter, wikilinks, tasks, and tags from Markdown content.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/notegraph/internal/models"
)

var (
	hashtagRe  = regexp.MustCompile(`#([\p{L}\p{N}_/-]+)`)
	tagsLineRe = regexp.MustCompile(`(?m)^tags[ \t]*:[ \t]*(.*?)[ \t]*\r?$`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Links       []string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, wikilinks, and frontmatter tags from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, raw, body := splitFrontmatter(data)

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       ExtractLinks(string(data)),
		Tags:        tagsFrom(fm, raw),
		Title:       deriveTitle(fm, body),
	}, nil
}

// Title returns the display title of a note: the frontmatter title, the first
// H1 heading, or the filename stem.
func Title(filename string, res *Result) string {
	if res != nil && res.Title != "" {
		return res.Title
	}
	return models.Stem(filename)
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. It returns the decoded map (nil when absent or
// invalid), the raw YAML block, and the body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML still yields a raw block for the line-based tag syntaxes.
		return nil, string(yamlBlock), body
	}

	return fm, string(yamlBlock), body
}

// tagsFrom supports three syntaxes for the frontmatter "tags" key:
// a bracketed or block list, a comma-separated scalar, and inline hashtags.
// Hashtags are read from the raw line because YAML treats " #" as a comment.
func tagsFrom(fm map[string]interface{}, raw string) []string {
	var items []string

	line := ""
	if m := tagsLineRe.FindStringSubmatch(raw); m != nil {
		line = m[1]
	}

	switch {
	case strings.Contains(line, "#") && !strings.HasPrefix(line, "["):
		for _, m := range hashtagRe.FindAllStringSubmatch(line, -1) {
			items = append(items, m[1])
		}
	case fm != nil && fm["tags"] != nil:
		switch v := fm["tags"].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					items = append(items, s)
				}
			}
		case string:
			items = strings.Split(v, ",")
		}
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		items = strings.Split(line[1:len(line)-1], ",")
	case line != "":
		items = strings.Split(line, ",")
	}

	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		tag := strings.Trim(strings.TrimSpace(item), `"'`)
		tag = strings.ToLower(strings.TrimPrefix(tag, "#"))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
