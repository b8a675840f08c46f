package parser

import (
	"regexp"
	"strings"

	"github.com/starford/notegraph/internal/models"
)

var (
	taskRe = regexp.MustCompile(`(?m)^[ \t]*[-*+] \[([ xX/])\](?:[ \t]+([^\n]*))?\r?$`)

	dueEmojiRe    = regexp.MustCompile(`📅\s*(\d{4}-\d{2}-\d{2})`)
	dueDeadlineRe = regexp.MustCompile(`DEADLINE:\s*<(\d{4}-\d{2}-\d{2})[^>]*>`)
	doneEmojiRe   = regexp.MustCompile(`✅\s*(\d{4}-\d{2}-\d{2})[T ](\d{2}:\d{2})`)
	doneClosedRe  = regexp.MustCompile(`CLOSED:\s*\[(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]{2,3})?\s+(\d{2}:\d{2})\]`)
)

// ExtractTasks returns one Task per checkbox line in text.
func ExtractTasks(text, filename string) []models.Task {
	locs := taskRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	tasks := make([]models.Task, 0, len(locs))
	line, scanned := 1, 0
	for _, loc := range locs {
		line += strings.Count(text[scanned:loc[0]], "\n")
		scanned = loc[0]

		body := ""
		if loc[4] >= 0 {
			body = strings.TrimSpace(text[loc[4]:loc[5]])
		}
		tasks = append(tasks, models.Task{
			File:        filename,
			Line:        line,
			Status:      statusOf(text[loc[2]:loc[3]]),
			Text:        body,
			DueDate:     dueDate(body),
			CompletedAt: completedAt(body),
		})
	}
	return tasks
}

func statusOf(mark string) models.TaskStatus {
	switch mark {
	case "x", "X":
		return models.StatusDone
	case "/":
		return models.StatusDoing
	default:
		return models.StatusTodo
	}
}

// dueDate tries the emoji marker before the org-style deadline.
func dueDate(text string) string {
	if m := dueEmojiRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := dueDeadlineRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// completedAt is normalised to "YYYY-MM-DD HH:MM".
func completedAt(text string) string {
	if m := doneEmojiRe.FindStringSubmatch(text); m != nil {
		return m[1] + " " + m[2]
	}
	if m := doneClosedRe.FindStringSubmatch(text); m != nil {
		return m[1] + " " + m[2]
	}
	return ""
}
