package download

// Status describes where a download task is in its lifecycle. Every task
// emits exactly one terminal status: done, failed, or canceled.
type Status int

const (
	StatusPending Status = iota
	StatusDownloading
	StatusWriting
	StatusDone
	StatusFailed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDownloading:
		return "downloading"
	case StatusWriting:
		return "writing"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends the task.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}
