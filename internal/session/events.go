package session

// EventKind classifies a vault change.
type EventKind int

const (
	EventAdded EventKind = iota + 1
	EventChanged
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventChanged:
		return "changed"
	case EventDeleted:
		return "deleted"
	}
	return "unknown"
}

// Event is a change to one vault file.
type Event struct {
	Kind     EventKind
	Filename string
}

// Notification kinds delivered to a Notifier.
const (
	NotifyGraphUpdated      = "graph.updated"
	NotifyTasksUpdated      = "tasks.updated"
	NotifyPredictionUpdated = "prediction.updated"
	NotifyIndexReady        = "index.ready"
	NotifyIndexError        = "index.error"
)

// Notifier receives state-change notifications. Implementations must not
// block. filename is empty for vault-wide changes.
type Notifier interface {
	Notify(kind, filename string)
}

// Corpus lists the vault's note files.
type Corpus interface {
	List() ([]string, error)
}

// Reader returns the decrypted text of a note.
type Reader interface {
	Read(filename string) (string, error)
}
