package parser

import (
	"testing"

	"github.com/starford/notegraph/internal/models"
)

func TestExtractTasks_DueDateEmoji(t *testing.T) {
	tasks := ExtractTasks("- [ ] Buy milk 📅 2026-01-15", "shop.md")
	if len(tasks) != 1 {
		t.Fatalf("len = %d, want 1", len(tasks))
	}
	got := tasks[0]
	if got.Status != models.StatusTodo || got.DueDate != "2026-01-15" || got.CompletedAt != "" {
		t.Errorf("task = %+v", got)
	}
	if got.Line != 1 || got.File != "shop.md" || got.Text != "Buy milk 📅 2026-01-15" {
		t.Errorf("task = %+v", got)
	}
}

func TestExtractTasks_StatusesAndLines(t *testing.T) {
	text := "# List\n\n- [ ] one\n  - [/] two\n* [x] three ✅ 2026-01-10 09:30\n+ [X] four\nnot - [ ] a task\n- [] broken"
	tasks := ExtractTasks(text, "n.md")
	if len(tasks) != 4 {
		t.Fatalf("len = %d, want 4: %+v", len(tasks), tasks)
	}
	wantLines := []int{3, 4, 5, 6}
	wantStatus := []models.TaskStatus{models.StatusTodo, models.StatusDoing, models.StatusDone, models.StatusDone}
	for i, task := range tasks {
		if task.Line != wantLines[i] {
			t.Errorf("tasks[%d].Line = %d, want %d", i, task.Line, wantLines[i])
		}
		if task.Status != wantStatus[i] {
			t.Errorf("tasks[%d].Status = %q, want %q", i, task.Status, wantStatus[i])
		}
	}
	if tasks[2].CompletedAt != "2026-01-10 09:30" {
		t.Errorf("completedAt = %q", tasks[2].CompletedAt)
	}
}

func TestExtractTasks_DeadlineMarker(t *testing.T) {
	tasks := ExtractTasks("- [ ] report DEADLINE: <2026-03-01 Sun>", "a.md")
	if len(tasks) != 1 || tasks[0].DueDate != "2026-03-01" {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestExtractTasks_EmojiWinsOverDeadline(t *testing.T) {
	tasks := ExtractTasks("- [ ] both DEADLINE: <2026-03-01> 📅 2026-02-01", "a.md")
	if tasks[0].DueDate != "2026-02-01" {
		t.Errorf("due = %q, want emoji date", tasks[0].DueDate)
	}
}

func TestExtractTasks_ClosedMarker(t *testing.T) {
	tasks := ExtractTasks("- [x] shipped CLOSED: [2026-02-03 Tue 17:45]", "a.md")
	if tasks[0].CompletedAt != "2026-02-03 17:45" {
		t.Errorf("completedAt = %q", tasks[0].CompletedAt)
	}
}

func TestExtractTasks_None(t *testing.T) {
	if tasks := ExtractTasks("plain text\n- bullet", "a.md"); tasks != nil {
		t.Errorf("expected nil, got %+v", tasks)
	}
}

func TestExtractTasks_CRLF(t *testing.T) {
	tasks := ExtractTasks("- [ ]\r\n- [x] done 📅 2026-03-01\r\n- [/] \r\n", "win.md")
	if len(tasks) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(tasks), tasks)
	}
	if tasks[0].Text != "" || tasks[0].Status != models.StatusTodo || tasks[0].Line != 1 {
		t.Errorf("empty task = %+v", tasks[0])
	}
	if tasks[1].Text != "done 📅 2026-03-01" || tasks[1].DueDate != "2026-03-01" || tasks[1].Line != 2 {
		t.Errorf("task = %+v", tasks[1])
	}
	if tasks[2].Status != models.StatusDoing || tasks[2].Line != 3 {
		t.Errorf("task = %+v", tasks[2])
	}
}
