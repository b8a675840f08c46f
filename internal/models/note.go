// Package models defines the domain types shared across notegraph.
package models

import (
	"path"
	"strings"
)

// Ext is the canonical note extension. Every graph key ends with it.
const Ext = ".md"

// File is one element of a full-index request: a vault-relative filename
// and its already decrypted content.
type File struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// TaskStatus is the checkbox state of a task line.
type TaskStatus string

const (
	StatusTodo  TaskStatus = "todo"
	StatusDoing TaskStatus = "doing"
	StatusDone  TaskStatus = "done"
)

// Task is a checkbox line extracted from a note.
type Task struct {
	File        string     `json:"file"`
	Line        int        `json:"line"` // 1-based
	Status      TaskStatus `json:"status"`
	Text        string     `json:"text"`
	DueDate     string     `json:"dueDate,omitempty"`
	CompletedAt string     `json:"completedAt,omitempty"`
}

// SearchHit is one ranked full-text search result.
type SearchHit struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Snippet  string `json:"snippet"`
}

// IsNote reports whether name carries the canonical extension.
func IsNote(name string) bool {
	return strings.HasSuffix(name, Ext)
}

// Stem returns the base name of a note without its extension.
func Stem(name string) string {
	return strings.TrimSuffix(path.Base(name), Ext)
}
