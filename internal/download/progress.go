package download

import "time"

// Event is one progress update of a download task. For file downloads the
// sizes are bytes; for slide sets they count images.
type Event struct {
	TaskID     string
	Status     Status
	Name       string
	Downloaded int64
	Total      int64
	Message    string
}

// Sink receives progress events. Implementations must be safe for concurrent
// use; the engine publishes from multiple task goroutines.
type Sink interface {
	Publish(Event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}

// Record describes a finished download for the history ledger.
type Record struct {
	TaskID      string
	Kind        string
	Name        string
	Path        string
	Size        int64
	CompletedAt time.Time
}

// Recorder persists finished downloads. The engine treats it as best effort:
// a recording failure is logged, never surfaced.
type Recorder interface {
	RecordDownload(rec Record) error
}
