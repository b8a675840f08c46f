package worker

import (
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/predict"
)

// Request is a message sent to the worker. The set of implementations is
// closed: IndexRequest, SearchRequest, UpsertDocumentRequest and
// RemoveDocumentRequest.
type Request interface {
	isRequest()
}

// IndexRequest asks for a full index of the given corpus.
type IndexRequest struct {
	Files []models.File
}

// SearchRequest asks for ranked hits. ID correlates the reply.
type SearchRequest struct {
	ID    string
	Query string
}

// UpsertDocumentRequest adds or replaces one search document.
type UpsertDocumentRequest struct {
	File models.File
}

// RemoveDocumentRequest drops one search document.
type RemoveDocumentRequest struct {
	Filename string
}

func (IndexRequest) isRequest()          {}
func (SearchRequest) isRequest()         {}
func (UpsertDocumentRequest) isRequest() {}
func (RemoveDocumentRequest) isRequest() {}

// Response is a message emitted by the worker. The set of implementations is
// closed: GraphComplete, PredictionModel, SearchResults and GraphError.
type Response interface {
	// WorkerID identifies the worker that produced the message.
	WorkerID() string
	isResponse()
}

// Origin stamps a response with its producing worker.
type Origin struct {
	ID string
}

// WorkerID implements Response.
func (o Origin) WorkerID() string { return o.ID }

// GraphComplete carries the link graph and task list of a full index.
type GraphComplete struct {
	Origin
	Graph map[string][]string
	Tasks []models.Task
}

// PredictionModel carries the prediction snapshot of a full index. Snapshot
// is nil when the corpus has no tokens. Ownership of Aggregates passes to
// the receiver.
type PredictionModel struct {
	Origin
	Snapshot   *predict.Snapshot
	Aggregates *predict.Aggregates
}

// SearchResults answers a SearchRequest.
type SearchResults struct {
	Origin
	RequestID string
	Hits      []models.SearchHit
	Err       error
}

// GraphError reports a failed full index.
type GraphError struct {
	Origin
	Err string
}

func (GraphComplete) isResponse()   {}
func (PredictionModel) isResponse() {}
func (SearchResults) isResponse()   {}
func (GraphError) isResponse()      {}
