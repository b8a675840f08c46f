package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func spawn(t *testing.T, opts Options) *Worker {
	t.Helper()
	opts.Logger = quietLogger()
	w := Spawn(context.Background(), opts)
	t.Cleanup(w.Terminate)
	return w
}

func next(t *testing.T, w *Worker) Response {
	t.Helper()
	select {
	case r, ok := <-w.Responses():
		require.True(t, ok, "responses closed")
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for response")
		return nil
	}
}

func corpus() []models.File {
	return []models.File{
		{Filename: "People/John.md", Content: "# John\nWorks with [[Alice]] in [[People/Team]].\n- [ ] Call John 📅 2026-01-15\n"},
		{Filename: "People.md", Content: "Index of people"},
		{Filename: "2026-01-05.md", Content: "buy milk today\n- [x] Buy milk ✅ 2026-01-05 10:00\n"},
		{Filename: "2026-01-12.md", Content: "buy milk again"},
	}
}

func indexCorpus(t *testing.T, w *Worker, files []models.File) (GraphComplete, PredictionModel) {
	t.Helper()
	require.NoError(t, w.Send(context.Background(), IndexRequest{Files: files}))
	gc, ok := next(t, w).(GraphComplete)
	require.True(t, ok, "expected GraphComplete")
	pm, ok := next(t, w).(PredictionModel)
	require.True(t, ok, "expected PredictionModel")
	return gc, pm
}

func TestIndex_GraphAndTasks(t *testing.T) {
	w := spawn(t, Options{})
	gc, pm := indexCorpus(t, w, corpus())

	assert.Equal(t, w.ID(), gc.WorkerID())
	assert.Equal(t, []string{"Alice.md", "People.md", "People/Team.md"}, gc.Graph["People/John.md"])
	assert.Contains(t, gc.Graph, "People.md")
	assert.Contains(t, gc.Graph, "Alice.md")
	assert.Equal(t, []string{"2026-01-05.md", "2026-01-12.md"}, gc.Graph["2026-01.md"])
	assert.Equal(t, []string{"2026-01.md"}, gc.Graph["2026.md"])

	require.Len(t, gc.Tasks, 2)
	assert.Equal(t, models.Task{
		File: "People/John.md", Line: 3, Status: models.StatusTodo,
		Text: "Call John 📅 2026-01-15", DueDate: "2026-01-15",
	}, gc.Tasks[0])
	assert.Equal(t, models.StatusDone, gc.Tasks[1].Status)
	assert.Equal(t, "2026-01-05 10:00", gc.Tasks[1].CompletedAt)

	require.NotNil(t, pm.Snapshot)
	require.NotNil(t, pm.Aggregates)
	assert.Equal(t, 4, pm.Aggregates.FileCount())
	assert.Equal(t, "milk", pm.Snapshot.Complete("mi")[0].Word)
}

func TestIndex_EmptyCorpusHasNoSnapshot(t *testing.T) {
	w := spawn(t, Options{})
	gc, pm := indexCorpus(t, w, nil)
	assert.Empty(t, gc.Graph)
	assert.NotNil(t, gc.Tasks)
	assert.Nil(t, pm.Snapshot)
}

func TestIndex_PanickingFileIsSkipped(t *testing.T) {
	w := spawn(t, Options{beforeExtract: func(f models.File) {
		if f.Filename == "People.md" {
			panic("boom")
		}
	}})
	gc, pm := indexCorpus(t, w, corpus())

	// People.md still exists as a link target, but contributed nothing.
	assert.Empty(t, gc.Graph["People.md"])
	assert.Equal(t, 3, pm.Aggregates.FileCount())
	assert.False(t, pm.Aggregates.Has("People.md"))
}

func TestIndex_EngineFailureReportsGraphError(t *testing.T) {
	w := spawn(t, Options{Engine: func() (index.Engine, error) {
		return nil, errors.New("no engine")
	}})
	require.NoError(t, w.Send(context.Background(), IndexRequest{Files: corpus()}))
	ge, ok := next(t, w).(GraphError)
	require.True(t, ok, "expected GraphError")
	assert.Contains(t, ge.Err, "no engine")
	assert.Equal(t, w.ID(), ge.WorkerID())
}

func search(t *testing.T, w *Worker, id, q string) SearchResults {
	t.Helper()
	require.NoError(t, w.Send(context.Background(), SearchRequest{ID: id, Query: q}))
	sr, ok := next(t, w).(SearchResults)
	require.True(t, ok, "expected SearchResults")
	require.NoError(t, sr.Err)
	assert.Equal(t, id, sr.RequestID)
	return sr
}

func TestSearch(t *testing.T) {
	w := spawn(t, Options{})
	indexCorpus(t, w, corpus())

	sr := search(t, w, "r1", "milk")
	require.Len(t, sr.Hits, 2)
	for _, h := range sr.Hits {
		assert.True(t, strings.HasPrefix(h.Filename, "2026-01-"))
		assert.Contains(t, strings.ToLower(h.Snippet), "milk")
	}

	john := search(t, w, "r2", "alice")
	require.Len(t, john.Hits, 1)
	assert.Equal(t, "John", john.Hits[0].Title)
	assert.Equal(t, "Works with [[Alice]] in [[People/Team]].", john.Hits[0].Snippet)

	assert.Empty(t, search(t, w, "r3", "  ").Hits)
}

func TestSearch_CappedAtMax(t *testing.T) {
	w := spawn(t, Options{})
	var files []models.File
	for i := 0; i < MaxSearchHits+5; i++ {
		files = append(files, models.File{
			Filename: "n" + strings.Repeat("x", i) + ".md",
			Content:  "shared keyword",
		})
	}
	indexCorpus(t, w, files)
	assert.Len(t, search(t, w, "r", "keyword").Hits, MaxSearchHits)
}

func TestUpsertAndRemoveDocument(t *testing.T) {
	w := spawn(t, Options{})
	indexCorpus(t, w, corpus())
	ctx := context.Background()

	require.NoError(t, w.Send(ctx, UpsertDocumentRequest{File: models.File{
		Filename: "Zebra.md", Content: "striped animal",
	}}))
	assert.Len(t, search(t, w, "a", "striped").Hits, 1)

	require.NoError(t, w.Send(ctx, RemoveDocumentRequest{Filename: "Zebra.md"}))
	assert.Empty(t, search(t, w, "b", "striped").Hits)
}

func TestTerminate(t *testing.T) {
	w := Spawn(context.Background(), Options{Logger: quietLogger()})
	w.Terminate()
	w.Terminate()

	err := w.Send(context.Background(), SearchRequest{ID: "x", Query: "q"})
	assert.ErrorIs(t, err, apperr.ErrWorkerTerminated)
	_, ok := <-w.Responses()
	assert.False(t, ok)
}

func TestUniqueIDs(t *testing.T) {
	a := spawn(t, Options{})
	b := spawn(t, Options{})
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("é", SnippetLength+10)
	tests := []struct {
		name, content, query, want string
	}{
		{"matching line", "first\nsecond MILK line\nthird", "milk", "second MILK line"},
		{"fallback first non-empty", "\n\n  intro\nbody", "absent", "intro"},
		{"truncated", long, "zzz", strings.Repeat("é", SnippetLength) + "..."},
		{"exact length untouched", strings.Repeat("a", SnippetLength), "a", strings.Repeat("a", SnippetLength)},
		{"empty", "", "x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Snippet(tt.content, tt.query))
		})
	}
}
