// Package worker runs full indexing and search queries in an isolated
// goroutine that talks to its owner only through request and response
// messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/metrics"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/parser"
	"github.com/starford/notegraph/internal/predict"
)

const (
	// MaxSearchHits caps the results of one search.
	MaxSearchHits = 20
	// SnippetLength is the snippet cap in runes before the ellipsis.
	SnippetLength = 120
)

// Options configures a worker.
type Options struct {
	Engine      index.Factory
	Predict     predict.Options
	Concurrency int // parallel file extractions; defaults to GOMAXPROCS
	Logger      *slog.Logger

	beforeExtract func(models.File) // test hook
}

// Worker owns a private search engine and processes one request at a time.
type Worker struct {
	id    string
	opts  Options
	log   *slog.Logger
	reqs  chan Request
	resps chan Response

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	engine index.Engine
}

// Spawn starts a worker. The worker runs until Terminate is called or ctx
// is done; its Responses channel is closed on exit.
func Spawn(ctx context.Context, opts Options) *Worker {
	if opts.Engine == nil {
		opts.Engine = index.MemoryFactory()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Predict.TopK <= 0 {
		opts.Predict = predict.DefaultOptions()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()

	ctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		id:     id,
		opts:   opts,
		log:    log.With(slog.String("worker", id)),
		reqs:   make(chan Request),
		resps:  make(chan Response, 8),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

// ID returns the worker's unique identity.
func (w *Worker) ID() string {
	return w.id
}

// Responses returns the worker's outbound messages.
func (w *Worker) Responses() <-chan Response {
	return w.resps
}

// Send delivers a request. It fails with apperr.ErrWorkerTerminated once the
// worker has exited.
func (w *Worker) Send(ctx context.Context, req Request) error {
	select {
	case w.reqs <- req:
		return nil
	case <-w.done:
		return apperr.ErrWorkerTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate stops the worker and waits for it to exit. In-progress indexing
// is abandoned. Safe to call more than once.
func (w *Worker) Terminate() {
	w.once.Do(w.cancel)
	<-w.done
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.resps)
	defer func() {
		if w.engine != nil {
			if err := w.engine.Close(); err != nil {
				w.log.Warn("close engine", slog.String("error", err.Error()))
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.reqs:
			w.handle(ctx, req)
		}
	}
}

func (w *Worker) handle(ctx context.Context, req Request) {
	switch r := req.(type) {
	case IndexRequest:
		w.index(ctx, r.Files)
	case SearchRequest:
		hits, err := w.search(r.Query)
		w.emit(ctx, SearchResults{Origin: w.origin(), RequestID: r.ID, Hits: hits, Err: err})
	case UpsertDocumentRequest:
		w.upsert(r.File)
	case RemoveDocumentRequest:
		w.remove(r.Filename)
	default:
		w.log.Error("unknown request", slog.String("type", fmt.Sprintf("%T", req)))
	}
}

func (w *Worker) origin() Origin {
	return Origin{ID: w.id}
}

// emit hands a response to the owner unless the worker is shutting down.
func (w *Worker) emit(ctx context.Context, resp Response) {
	select {
	case w.resps <- resp:
	case <-ctx.Done():
	}
}

func (w *Worker) ensureEngine() (index.Engine, error) {
	if w.engine != nil {
		return w.engine, nil
	}
	e, err := w.opts.Engine()
	if err != nil {
		return nil, fmt.Errorf("worker: open engine: %w", err)
	}
	w.engine = e
	return e, nil
}

// extraction is everything derived from one file.
type extraction struct {
	ok    bool
	links []string
	tasks []models.Task
	doc   index.Document
	stats *predict.FileStats
}

func (w *Worker) extract(f models.File) (ex extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if w.opts.beforeExtract != nil {
		w.opts.beforeExtract(f)
	}
	res, err := parser.Parse([]byte(f.Content))
	if err != nil {
		return ex, err
	}
	return extraction{
		ok:    true,
		links: res.Links,
		tasks: parser.ExtractTasks(f.Content, f.Filename),
		doc:   document(f, res),
		stats: predict.ComputeStats(f.Content, w.opts.Predict),
	}, nil
}

func document(f models.File, res *parser.Result) index.Document {
	return index.Document{
		ID:       f.Filename,
		Title:    parser.Title(f.Filename, res),
		Filename: f.Filename,
		Content:  f.Content,
		Tags:     res.Tags,
	}
}

func (w *Worker) index(ctx context.Context, files []models.File) {
	start := time.Now()
	engine, err := w.ensureEngine()
	if err != nil {
		w.log.Error("index failed", slog.String("error", err.Error()))
		w.emit(ctx, GraphError{Origin: w.origin(), Err: err.Error()})
		return
	}

	results := make([]extraction, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ex, err := w.extract(f)
			if err != nil {
				w.log.Warn("skip file", slog.String("file", f.Filename), slog.String("error", err.Error()))
				return nil
			}
			results[i] = ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.emit(ctx, GraphError{Origin: w.origin(), Err: err.Error()})
		return
	}

	outgoing := make(map[string][]string, len(files))
	var tasks []models.Task
	agg := predict.NewAggregates()
	indexed := 0
	for i, ex := range results {
		name := files[i].Filename
		if !ex.ok {
			metrics.FilesIndexed.WithLabelValues(metrics.OutcomeSkipped).Inc()
			continue
		}
		outgoing[name] = ex.links
		tasks = append(tasks, ex.tasks...)
		agg.Apply(name, ex.stats)
		if err := engine.AddDocument(ex.doc); err != nil {
			w.log.Warn("index document", slog.String("file", name), slog.String("error", err.Error()))
		}
		indexed++
		metrics.FilesIndexed.WithLabelValues(metrics.OutcomeIndexed).Inc()
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	gr := graph.Build(outgoing)
	w.emit(ctx, GraphComplete{Origin: w.origin(), Graph: gr.Map(), Tasks: tasks})

	var snap *predict.Snapshot
	if agg.TokenCount() > 0 {
		snap = predict.BuildSnapshot(agg, w.opts.Predict, time.Now())
	}
	w.emit(ctx, PredictionModel{Origin: w.origin(), Snapshot: snap, Aggregates: agg})

	metrics.IndexDuration.Observe(time.Since(start).Seconds())
	w.log.Info("index complete",
		slog.Int("files", len(files)),
		slog.Int("indexed", indexed),
		slog.Duration("took", time.Since(start)))
}

func (w *Worker) search(query string) ([]models.SearchHit, error) {
	hits := []models.SearchHit{}
	if strings.TrimSpace(query) == "" || w.engine == nil {
		return hits, nil
	}
	results, err := w.engine.Search(query, MaxSearchHits)
	if err != nil {
		return hits, fmt.Errorf("worker: search: %w", err)
	}
	for _, r := range results {
		hits = append(hits, models.SearchHit{
			ID:       r.ID,
			Title:    r.Title,
			Filename: r.Filename,
			Snippet:  Snippet(r.Content, query),
		})
	}
	return hits, nil
}

func (w *Worker) upsert(f models.File) {
	engine, err := w.ensureEngine()
	if err != nil {
		w.log.Warn("upsert document", slog.String("file", f.Filename), slog.String("error", err.Error()))
		return
	}
	res, err := parser.Parse([]byte(f.Content))
	if err != nil {
		w.log.Warn("parse document", slog.String("file", f.Filename), slog.String("error", err.Error()))
		return
	}
	if err := engine.AddDocument(document(f, res)); err != nil {
		w.log.Warn("upsert document", slog.String("file", f.Filename), slog.String("error", err.Error()))
	}
}

func (w *Worker) remove(filename string) {
	if w.engine == nil {
		return
	}
	if err := w.engine.RemoveDocument(filename); err != nil {
		w.log.Warn("remove document", slog.String("file", filename), slog.String("error", err.Error()))
	}
}

// Snippet returns the first line of content containing query
// (case-insensitive), else the first non-empty line, truncated to
// SnippetLength runes with a trailing "...".
func Snippet(content, query string) string {
	lines := strings.Split(content, "\n")
	q := strings.ToLower(strings.TrimSpace(query))
	pick := ""
	if q != "" {
		for _, l := range lines {
			if strings.Contains(strings.ToLower(l), q) {
				pick = l
				break
			}
		}
	}
	if pick == "" {
		for _, l := range lines {
			if strings.TrimSpace(l) != "" {
				pick = l
				break
			}
		}
	}
	pick = strings.TrimSpace(pick)
	if utf8.RuneCountInString(pick) <= SnippetLength {
		return pick
	}
	return string([]rune(pick)[:SnippetLength]) + "..."
}
