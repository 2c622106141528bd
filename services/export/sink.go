package export

import (
	"fmt"
	"os"
	"path/filepath"

	"minote-exporter/lib/noteclock"
)

// Sink receives extracted records in processing order. Append must persist
// the record (or hand it off) before returning; the controller advances the
// list only after a successful append so a crash never loses emitted notes.
type Sink interface {
	Append(rec NoteRecord) error
	// Finish flushes and closes the sink. Called exactly once, on every
	// terminal path including cancellation.
	Finish() error
	// Path is the primary output location, "" for streamed sinks.
	Path() string
}

// newSink builds the sink for a session. File-backed sinks stamp their
// output names with the session start time so concurrent or repeated runs
// never clobber each other.
func newSink(session *Session, outputDir string, listener Listener) (Sink, error) {
	stamp := session.StartedAt.Format(noteclock.DefaultLayout)
	switch session.OutputMode {
	case ModeCombined:
		return newCombinedSink(outputDir, stamp)
	case ModeSplit:
		return newSplitSink(outputDir, stamp, session.TimestampFormat)
	case ModeStreamed:
		if listener == nil {
			return nil, fmt.Errorf("streamed output requires a listener")
		}
		return &streamedSink{listener: listener}, nil
	default:
		return nil, fmt.Errorf("unknown output mode %q", session.OutputMode)
	}
}

// combinedSink appends every note to one delimiter-separated file, images
// going to a sibling directory.
type combinedSink struct {
	file      *os.File
	path      string
	imagesDir string
}

func newCombinedSink(outputDir, stamp string) (*combinedSink, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(outputDir, "exported_notes_"+stamp+".md")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &combinedSink{
		file:      file,
		path:      path,
		imagesDir: filepath.Join(outputDir, "images_"+stamp),
	}, nil
}

func (s *combinedSink) Append(rec NoteRecord) error {
	refs, err := storeImages(s.imagesDir, filepath.Base(s.imagesDir), rec.Images)
	if err != nil {
		return err
	}
	_, err = s.file.WriteString(blockDelimiter + "\n" + renderNote(rec, refs))
	return err
}

func (s *combinedSink) Finish() error { return s.file.Close() }
func (s *combinedSink) Path() string  { return s.path }

// splitSink writes one file per note into a session directory, named by the
// note's creation time. Distinct notes created in the same formatted
// instant land in the same file, delimiter-separated, rather than
// overwriting each other.
type splitSink struct {
	dir       string
	imagesDir string
	layout    string
	written   map[string]bool
}

func newSplitSink(outputDir, stamp, timestampFormat string) (*splitSink, error) {
	dir := filepath.Join(outputDir, "exported_notes_"+stamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &splitSink{
		dir:       dir,
		imagesDir: filepath.Join(dir, "images"),
		layout:    noteclock.LayoutFromTemplate(timestampFormat),
		written:   map[string]bool{},
	}, nil
}

func (s *splitSink) Append(rec NoteRecord) error {
	refs, err := storeImages(s.imagesDir, "images", rec.Images)
	if err != nil {
		return err
	}

	name := noteclock.SanitizeFilename(rec.CreatedAt.Format(s.layout)) + ".md"
	path := filepath.Join(s.dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	block := renderNote(rec, refs)
	if s.written[name] {
		block = blockDelimiter + "\n" + block
	}
	s.written[name] = true
	_, err = file.WriteString(block)
	return err
}

func (s *splitSink) Finish() error { return nil }
func (s *splitSink) Path() string  { return s.dir }

// streamedSink forwards records to the listener; nothing touches disk.
type streamedSink struct {
	listener Listener
}

func (s *streamedSink) Append(rec NoteRecord) error {
	s.listener.OnRecord(rec)
	return nil
}

func (s *streamedSink) Finish() error { return nil }
func (s *streamedSink) Path() string  { return "" }

// storeImages persists a record's image payloads and returns their
// reference paths relative to the markdown file.
func storeImages(dir, refDir string, images []ImageAsset) ([]string, error) {
	if len(images) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(images))
	for _, img := range images {
		if err := os.WriteFile(filepath.Join(dir, img.Name), img.Payload, 0o644); err != nil {
			return nil, err
		}
		refs = append(refs, refDir+"/"+img.Name)
	}
	return refs, nil
}
