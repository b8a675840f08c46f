package mcpserver

// SyntaxGuide describes the Markdown constructs the indexer recognises, so
// LLM consumers can interpret graph, task, and prediction results.
const SyntaxGuide = `# notegraph Syntax Guide

## Links

- ` + "`" + `[[Target]]` + "`" + ` links to ` + "`" + `Target.md` + "`" + `. The ` + "`" + `.md` + "`" + ` extension is implied.
- ` + "`" + `[[Target|alias]]` + "`" + ` and ` + "`" + `[[Target#Heading]]` + "`" + ` link to ` + "`" + `Target.md` + "`" + `.
- ` + "`" + `![[image.png]]` + "`" + ` is an embed and never a graph edge.
- Targets with a non-Markdown extension (` + "`" + `[[report.pdf]]` + "`" + `) are attachments and ignored.
- A nested target ` + "`" + `[[A/B/C]]` + "`" + ` also links to its folder notes ` + "`" + `A.md` + "`" + ` and ` + "`" + `A/B.md` + "`" + `.

## Daily notes

Files named ` + "`" + `YYYY-MM-DD.md` + "`" + ` are daily notes. Each is listed under a month
node ` + "`" + `YYYY-MM.md` + "`" + `, and each month under a year node ` + "`" + `YYYY.md` + "`" + `. Month and
year nodes exist even without a backing file and are never removed.

## Tasks

` + "```" + `markdown
- [ ] todo
- [/] doing
- [x] done
- [ ] with a due date 📅 2026-01-15
- [x] with a completion time ✅ 2026-01-15 14:30
- [ ] org style DEADLINE: <2026-01-15 Thu>
- [x] org style CLOSED: [2026-01-15 Thu 14:30]
` + "```" + `

Bullets may be ` + "`" + `-` + "`" + `, ` + "`" + `*` + "`" + ` or ` + "`" + `+` + "`" + `. The emoji marker wins when both due date forms
are present. Completion times are reported as ` + "`" + `YYYY-MM-DD HH:MM` + "`" + `.

## Tags

Frontmatter ` + "`" + `tags` + "`" + ` may be a YAML list, a bracketed list ` + "`" + `[a, b]` + "`" + `, a comma
separated scalar ` + "`" + `a, b` + "`" + `, or inline hashtags ` + "`" + `#a #b` + "`" + `. Tags are lowercased and
deduplicated.
`
