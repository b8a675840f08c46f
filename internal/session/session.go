// Package session owns the in-memory index of one open vault: the link
// graph, the task list and the prediction model. A full index runs on a
// worker; afterwards the session applies per-file deltas as the vault changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/debounce"
	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/metrics"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/predict"
	"github.com/starford/notegraph/internal/storage"
	"github.com/starford/notegraph/internal/worker"
)

// DefaultDebounce is the quiescence window before a prediction rebuild.
const DefaultDebounce = 60 * time.Second

// Options configures a Session.
type Options struct {
	VaultPath string
	CacheDir  string // relative to VaultPath; empty disables persistence
	Corpus    Corpus
	Reader    Reader
	Engine    index.Factory
	Predict   predict.Options
	Debounce  time.Duration
	Workers   int // parallel extractions per full index
	Notifier  Notifier
	Logger    *slog.Logger
}

// Status summarises the session for status endpoints.
type Status struct {
	Ready     bool   `json:"ready"`
	Indexing  bool   `json:"indexing"`
	Nodes     int    `json:"nodes"`
	Tasks     int    `json:"tasks"`
	Files     int    `json:"predictionFiles"`
	Tokens    int    `json:"tokenCount"`
	WorkerID  string `json:"workerId,omitempty"`
	LastError string `json:"lastError,omitempty"`
	IndexedAt string `json:"indexedAt,omitempty"`
}

// Session is the single owner of a vault's mutable index state.
type Session struct {
	opts   Options
	log    *slog.Logger
	timers *debounce.Registry

	mu        sync.Mutex
	ctx       context.Context
	graph     *graph.Graph
	tasks     []models.Task
	agg       *predict.Aggregates
	hashes    map[string]uint64
	snapshot  *predict.Snapshot
	worker    *worker.Worker
	workerID  string
	pending   map[string]chan worker.SearchResults
	deferred  []Event
	ready     bool
	indexing  bool
	lastErr   string
	indexedAt time.Time

	// Graph cache writes happen off the lock; only the newest unwritten
	// graph is kept.
	writeGraph  func(map[string][]string) error
	persistNext map[string][]string
	persisting  bool

	loops sync.WaitGroup
}

// New creates a closed session. Call Open to start indexing.
func New(opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Predict.TopK <= 0 {
		opts.Predict = predict.DefaultOptions()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		opts:    opts,
		log:     log,
		timers:  debounce.New(),
		graph:   graph.New(),
		tasks:   []models.Task{},
		agg:     predict.NewAggregates(),
		hashes:  make(map[string]uint64),
		pending: make(map[string]chan worker.SearchResults),
	}
	s.writeGraph = func(m map[string][]string) error {
		return storage.PersistGraph(opts.VaultPath, opts.CacheDir, m)
	}
	return s
}

// Open loads the cached graph, collects the corpus and starts a full index
// on a fresh worker. It returns once the index request is dispatched.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.worker != nil || s.indexing {
		s.mu.Unlock()
		return errors.New("session: already open")
	}
	if s.opts.CacheDir != "" {
		if cached, ok := storage.LoadCachedGraph(s.opts.VaultPath, s.opts.CacheDir); ok {
			s.graph = graph.FromMap(cached)
			s.log.Info("loaded cached graph", slog.Int("nodes", s.graph.Len()))
		}
	}
	// Changes seen while the corpus is read are queued and replayed after
	// the full index, which would otherwise overwrite them.
	s.indexing = true
	s.deferred = nil
	s.lastErr = ""
	s.mu.Unlock()

	files, err := s.collect()
	if err != nil {
		s.abortOpen()
		return err
	}

	w := worker.Spawn(context.WithoutCancel(ctx), worker.Options{
		Engine:      s.opts.Engine,
		Predict:     s.opts.Predict,
		Concurrency: s.opts.Workers,
		Logger:      s.log,
	})

	s.mu.Lock()
	s.ctx = context.WithoutCancel(ctx)
	s.worker = w
	s.workerID = w.ID()
	s.mu.Unlock()

	s.loops.Add(1)
	go s.listen(w)

	if err := w.Send(ctx, worker.IndexRequest{Files: files}); err != nil {
		s.abortOpen()
		return fmt.Errorf("session: start index: %w", err)
	}
	s.log.Info("index started", slog.String("worker", w.ID()), slog.Int("files", len(files)))
	return nil
}

// abortOpen leaves the indexing state after a failed Open. Queued events are
// dropped; the next Open reads the disk again.
func (s *Session) abortOpen() {
	s.mu.Lock()
	s.indexing = false
	s.deferred = nil
	s.mu.Unlock()
}

func (s *Session) collect() ([]models.File, error) {
	names, err := s.opts.Corpus.List()
	if err != nil {
		return nil, fmt.Errorf("session: list corpus: %w", err)
	}
	files := make([]models.File, 0, len(names))
	for _, name := range names {
		text, err := s.opts.Reader.Read(name)
		if err != nil {
			s.log.Warn("skip unreadable file", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}
		files = append(files, models.File{Filename: name, Content: text})
	}
	return files, nil
}

// Reindex discards the current worker and all per-file state, then runs a
// fresh full index.
func (s *Session) Reindex(ctx context.Context) error {
	s.teardown()
	return s.Open(ctx)
}

// Close terminates the worker, cancels pending rebuilds and clears
// per-file prediction stats. The last known graph and tasks stay readable.
func (s *Session) Close() {
	s.teardown()
}

func (s *Session) teardown() {
	s.mu.Lock()
	w := s.worker
	s.worker = nil
	s.workerID = ""
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	s.deferred = nil
	s.timers.CancelAll()
	s.agg.Reset()
	clear(s.hashes)
	s.ready = false
	s.indexing = false
	s.mu.Unlock()

	if w != nil {
		w.Terminate()
	}
	s.loops.Wait()
}

// listen dispatches one worker's responses until the worker exits.
func (s *Session) listen(w *worker.Worker) {
	defer s.loops.Done()
	for resp := range w.Responses() {
		s.dispatch(resp)
	}
}

func (s *Session) dispatch(resp worker.Response) {
	var notes []string
	var replay []Event

	s.mu.Lock()
	if resp.WorkerID() != s.workerID || s.workerID == "" {
		s.mu.Unlock()
		metrics.StaleMessages.Inc()
		s.log.Debug("drop stale worker message",
			slog.String("worker", resp.WorkerID()),
			slog.String("type", fmt.Sprintf("%T", resp)))
		return
	}
	switch r := resp.(type) {
	case worker.GraphComplete:
		s.graph = graph.FromMap(r.Graph)
		s.tasks = r.Tasks
		s.persistLocked()
		notes = append(notes, NotifyGraphUpdated, NotifyTasksUpdated)
	case worker.PredictionModel:
		s.agg = r.Aggregates
		if s.agg == nil {
			s.agg = predict.NewAggregates()
		}
		s.snapshot = r.Snapshot
		s.ready = true
		s.indexing = false
		s.indexedAt = time.Now()
		replay, s.deferred = s.deferred, nil
		notes = append(notes, NotifyPredictionUpdated, NotifyIndexReady)
	case worker.SearchResults:
		if ch, ok := s.pending[r.RequestID]; ok {
			delete(s.pending, r.RequestID)
			ch <- r
		}
	case worker.GraphError:
		// Previously known state stays in place.
		s.lastErr = r.Err
		s.indexing = false
		replay, s.deferred = s.deferred, nil
		notes = append(notes, NotifyIndexError)
		s.log.Error("full index failed", slog.String("error", r.Err))
	}
	ctx := s.ctx
	s.mu.Unlock()

	for _, kind := range notes {
		s.notify(kind, "")
	}
	if len(replay) > 0 {
		// Replay sends to the worker, so it must not run on the goroutine
		// draining the worker's responses.
		s.loops.Add(1)
		go func() {
			defer s.loops.Done()
			for _, ev := range replay {
				if err := s.apply(ctx, ev); err != nil {
					s.log.Warn("replay event", slog.String("file", ev.Filename), slog.String("error", err.Error()))
				}
			}
		}()
	}
}

func (s *Session) notify(kind, filename string) {
	if s.opts.Notifier != nil {
		s.opts.Notifier.Notify(kind, filename)
	}
}

// persistLocked queues a copy of the graph for the cache writer and starts
// the writer if it is idle. s.mu must be held.
func (s *Session) persistLocked() {
	if s.opts.CacheDir == "" {
		return
	}
	s.persistNext = s.graph.Map()
	if s.persisting {
		return
	}
	s.persisting = true
	s.loops.Add(1)
	go s.persistLoop()
}

// persistLoop writes queued graphs in order until none is left. Failures
// are logged only; the in-memory graph stays authoritative.
func (s *Session) persistLoop() {
	defer s.loops.Done()
	for {
		s.mu.Lock()
		next, write := s.persistNext, s.writeGraph
		s.persistNext = nil
		if next == nil {
			s.persisting = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if err := write(next); err != nil {
			metrics.PersistFailures.Inc()
			s.log.Error("persist graph", slog.String("error", err.Error()))
		}
	}
}

// HandleEvent routes a vault change to the delta operations. Events that
// arrive while a full index is running are replayed once it finishes.
func (s *Session) HandleEvent(ctx context.Context, ev Event) error {
	if !models.IsNote(ev.Filename) {
		return nil
	}
	s.mu.Lock()
	if s.indexing {
		s.deferred = append(s.deferred, ev)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.apply(ctx, ev)
}

func (s *Session) apply(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventAdded, EventChanged:
		return errors.Join(
			s.UpdateGraphForSingleFile(ctx, ev.Filename),
			s.UpdateTasksForFile(ev.Filename),
			s.UpdatePredictionModelForFile(ev.Filename),
		)
	case EventDeleted:
		return s.RemoveFile(ctx, ev.Filename)
	}
	return fmt.Errorf("session: unknown event kind %d", ev.Kind)
}

// read returns the note text, reporting missing files as found == false.
func (s *Session) read(filename string) (text string, found bool, err error) {
	text, err = s.opts.Reader.Read(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: read %s: %w", filename, err)
	}
	return text, true, nil
}

// UpdateGraphForSingleFile recomputes the outgoing links of filename and
// persists the graph. A missing file is a no-op.
func (s *Session) UpdateGraphForSingleFile(ctx context.Context, filename string) error {
	text, found, err := s.read(filename)
	if err != nil || !found {
		return err
	}
	links := parser.ExtractLinks(text)

	s.mu.Lock()
	s.graph.SetLinks(filename, links)
	s.graph.AttachDaily(filename)
	s.persistLocked()
	w := s.worker
	s.mu.Unlock()

	metrics.IncrementalUpdates.WithLabelValues(metrics.OpGraph).Inc()
	s.notify(NotifyGraphUpdated, filename)

	if w != nil {
		req := worker.UpsertDocumentRequest{File: models.File{Filename: filename, Content: text}}
		if err := w.Send(ctx, req); err != nil && !errors.Is(err, apperr.ErrWorkerTerminated) {
			s.log.Warn("refresh search document", slog.String("file", filename), slog.String("error", err.Error()))
		}
	}
	return nil
}

// UpdateTasksForFile replaces every task of filename with a fresh
// extraction. Non-note files and missing files are ignored.
func (s *Session) UpdateTasksForFile(filename string) error {
	if !models.IsNote(filename) {
		return nil
	}
	text, found, err := s.read(filename)
	if err != nil || !found {
		return err
	}
	fresh := parser.ExtractTasks(text, filename)

	s.mu.Lock()
	s.tasks = append(dropTasks(s.tasks, filename), fresh...)
	s.mu.Unlock()

	metrics.IncrementalUpdates.WithLabelValues(metrics.OpTasks).Inc()
	s.notify(NotifyTasksUpdated, filename)
	return nil
}

func dropTasks(tasks []models.Task, filename string) []models.Task {
	return slices.DeleteFunc(tasks, func(t models.Task) bool { return t.File == filename })
}

// UpdatePredictionModelForFile replaces the prediction stats of filename
// and schedules a debounced snapshot rebuild. A missing file forgets its
// stats.
func (s *Session) UpdatePredictionModelForFile(filename string) error {
	text, found, err := s.read(filename)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !found {
		if !s.agg.Has(filename) {
			s.mu.Unlock()
			return nil
		}
		delete(s.hashes, filename)
		s.agg.Apply(filename, nil)
	} else {
		sum := checksum.Sum(text)
		if prev, ok := s.hashes[filename]; ok && prev == sum && s.agg.Has(filename) {
			s.mu.Unlock()
			return nil
		}
		s.hashes[filename] = sum
		s.agg.Apply(filename, predict.ComputeStats(text, s.opts.Predict))
	}
	s.mu.Unlock()

	metrics.IncrementalUpdates.WithLabelValues(metrics.OpPrediction).Inc()
	s.timers.Schedule(filename, s.opts.Debounce, s.rebuildSnapshot)
	return nil
}

func (s *Session) rebuildSnapshot() {
	s.mu.Lock()
	var snap *predict.Snapshot
	if s.agg.TokenCount() > 0 {
		snap = predict.BuildSnapshot(s.agg, s.opts.Predict, time.Now())
	}
	s.snapshot = snap
	s.mu.Unlock()

	metrics.SnapshotRebuilds.Inc()
	s.notify(NotifyPredictionUpdated, "")
}

// RemoveFile applies a deletion to every index: graph, tasks, prediction
// stats and the search document.
func (s *Session) RemoveFile(ctx context.Context, filename string) error {
	s.mu.Lock()
	s.graph.Remove(filename)
	s.persistLocked()
	s.tasks = dropTasks(s.tasks, filename)
	hadStats := s.agg.Has(filename)
	s.agg.Apply(filename, nil)
	delete(s.hashes, filename)
	w := s.worker
	s.mu.Unlock()

	metrics.IncrementalUpdates.WithLabelValues(metrics.OpRemove).Inc()
	s.notify(NotifyGraphUpdated, filename)
	s.notify(NotifyTasksUpdated, filename)
	if hadStats {
		s.timers.Schedule(filename, s.opts.Debounce, s.rebuildSnapshot)
	}
	if w != nil {
		if err := w.Send(ctx, worker.RemoveDocumentRequest{Filename: filename}); err != nil &&
			!errors.Is(err, apperr.ErrWorkerTerminated) {
			return fmt.Errorf("session: remove search document: %w", err)
		}
	}
	return nil
}

// Search runs a full-text query on the worker.
func (s *Session) Search(ctx context.Context, query string) ([]models.SearchHit, error) {
	s.mu.Lock()
	w := s.worker
	if w == nil {
		s.mu.Unlock()
		return nil, apperr.ErrNotReady
	}
	id := uuid.NewString()
	ch := make(chan worker.SearchResults, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}
	if err := w.Send(ctx, worker.SearchRequest{ID: id, Query: query}); err != nil {
		cancel()
		return nil, err
	}
	select {
	case r, ok := <-ch:
		if !ok {
			return nil, apperr.ErrWorkerTerminated
		}
		return r.Hits, r.Err
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

// Graph returns a copy of the link graph.
func (s *Session) Graph() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Map()
}

// Links returns the outgoing links of file.
func (s *Session) Links(file string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.graph.Has(file) {
		return nil, apperr.ErrNotFound
	}
	return s.graph.Links(file), nil
}

// Backlinks returns the files linking to file.
func (s *Session) Backlinks(file string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.graph.Has(file) {
		return nil, apperr.ErrNotFound
	}
	out := s.graph.Backlinks(file)
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// Tasks returns a copy of the task list.
func (s *Session) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

// Snapshot returns the current prediction snapshot, or nil. Callers must
// treat it as read-only.
func (s *Session) Snapshot() *predict.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Tracked returns the files that currently contribute to the index.
func (s *Session) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Files()
}

// Ready reports whether a full index has completed.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Status returns a point-in-time summary.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Ready:     s.ready,
		Indexing:  s.indexing,
		Nodes:     s.graph.Len(),
		Tasks:     len(s.tasks),
		Files:     s.agg.FileCount(),
		Tokens:    s.agg.TokenCount(),
		WorkerID:  s.workerID,
		LastError: s.lastErr,
	}
	if !s.indexedAt.IsZero() {
		st.IndexedAt = s.indexedAt.UTC().Format(time.RFC3339)
	}
	return st
}
