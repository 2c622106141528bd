// Package export implements the scrape-and-normalize engine: a single
// worker that drives the Mi Cloud notes list one card at a time through an
// automation bridge, extracts and classifies every note, and emits the
// records to a configurable sink.
package export

import (
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

type OutputMode string

const (
	// ModeCombined appends every note to one delimiter-separated file.
	ModeCombined OutputMode = "combined"
	// ModeSplit writes one file per note inside a session directory.
	ModeSplit OutputMode = "split"
	// ModeStreamed hands each record to the listener; the caller owns
	// persistence.
	ModeStreamed OutputMode = "streamed"
)

// Session is the state of one export run. It is owned and mutated
// exclusively by the Controller; listeners only ever read it. Once the
// status is terminal the session never changes again.
type Session struct {
	ID              string
	Domain          string
	OutputMode      OutputMode
	TimestampFormat string
	ExportImages    bool

	TotalCount     int
	ProcessedCount int
	ImagesCount    int

	StartedAt  time.Time
	Status     Status
	LastError  string
	OutputPath string
}

// finish applies a terminal transition. Transitions out of a terminal
// status are ignored so a late failure cannot overwrite a cancellation.
func (s *Session) finish(status Status, lastError string) {
	if s.Status.Terminal() {
		return
	}
	s.Status = status
	s.LastError = lastError
}

type NoteType int

const (
	NoteNormal NoteType = iota
	// NoteUnsupported marks structurally opaque notes (mind-maps, sound
	// notes). They carry no title, content or images, only a creation date.
	NoteUnsupported
)

// NoteRecord is one extracted note. Records are immutable after emission.
type NoteRecord struct {
	Title      string
	Content    string
	CreatedRaw string
	CreatedAt  time.Time
	Type       NoteType
	Images     []ImageAsset
}

// ImageAsset is one fetched embedded image, payload resolved before
// emission. Names are unique within their record.
type ImageAsset struct {
	Name      string
	SourceURL string
	Payload   []byte
}

// ProgressEvent is pushed to the listener after every processed note.
type ProgressEvent struct {
	Current     int
	Total       int
	NotesCount  int
	ImagesCount int
	LogLine     string
}

// CompleteEvent is pushed once when a run finishes successfully.
type CompleteEvent struct {
	Total      int
	ElapsedMs  int64
	OutputPath string
}

// Listener receives engine events. All callbacks run on the controller's
// goroutine; implementations marshal to their own threads as needed.
type Listener interface {
	OnProgress(ProgressEvent)
	// OnRecord delivers each note in ModeStreamed; never called in the
	// file-backed modes.
	OnRecord(NoteRecord)
	OnComplete(CompleteEvent)
	OnError(message string)
}
