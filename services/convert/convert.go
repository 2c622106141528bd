// Package convert turns previously exported markdown notes back into a
// JSON document, one record per note, keyed by a content hash so repeated
// conversions of the same input produce identical output.
package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"minote-exporter/lib/noteclock"
)

var (
	// ErrNoNotes means the source yielded zero valid records.
	ErrNoNotes = errors.New("no notes found in source")
	// ErrNoCreatedAt marks a block without a "*Created at:" line.
	ErrNoCreatedAt = errors.New("block has no created-at line")
	// ErrEmptyBlock marks a block with a date but no content.
	ErrEmptyBlock = errors.New("block has no content")
)

const (
	blockDelimiter  = "****"
	createdSentinel = "*Created at:"
)

// Note is one converted record. IDs are the SHA-256 of the content, so the
// same note always converts to the same record.
type Note struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	CreationDate string `json:"creationDate"`
	LastModified string `json:"lastModified"`
}

// BlockError reports one skipped malformed block. Skips never abort a
// conversion; the caller decides whether to surface them.
type BlockError struct {
	Source string
	Block  int
	Err    error
}

func (e BlockError) Error() string {
	return fmt.Sprintf("%s: block %d: %v", e.Source, e.Block, e.Err)
}

// Convert reads sourcePath, a markdown file or a directory of them, and
// returns the parsed records plus a report of every skipped block. The
// error is ErrNoNotes when nothing valid was found.
func Convert(sourcePath string) ([]Note, []BlockError, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, nil, err
	}

	files := []string{sourcePath}
	if info.IsDir() {
		files, err = markdownFiles(sourcePath)
		if err != nil {
			return nil, nil, err
		}
	}

	var notes []Note
	var skipped []BlockError
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, nil, err
		}
		parsed, errs := parseDocument(string(raw), filepath.Base(file))
		notes = append(notes, parsed...)
		skipped = append(skipped, errs...)
	}

	if len(notes) == 0 {
		return nil, skipped, ErrNoNotes
	}
	return notes, skipped, nil
}

// WriteJSON writes notes as an indented JSON array.
func WriteJSON(path string, notes []Note) error {
	payload, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

func markdownFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// parseDocument splits a file on the block delimiter and parses each block
// independently, so one malformed note never poisons its neighbors.
func parseDocument(raw, source string) ([]Note, []BlockError) {
	var notes []Note
	var skipped []BlockError

	for i, block := range splitBlocks(raw) {
		note, err := parseBlock(block)
		if err != nil {
			skipped = append(skipped, BlockError{Source: source, Block: i + 1, Err: err})
			continue
		}
		notes = append(notes, note)
	}
	return notes, skipped
}

func splitBlocks(raw string) []string {
	var blocks []string
	var current []string
	flush := func() {
		joined := strings.TrimSpace(strings.Join(current, "\n"))
		if joined != "" {
			blocks = append(blocks, joined)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == blockDelimiter {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

func parseBlock(block string) (Note, error) {
	lines := strings.Split(block, "\n")

	// the sentinel is the LAST matching line, so note bodies that quote a
	// "*Created at:" line keep it as content
	createdIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), createdSentinel) {
			createdIdx = i
		}
	}
	if createdIdx < 0 {
		return Note{}, ErrNoCreatedAt
	}

	createdAt, err := parseCreatedLine(lines[createdIdx])
	if err != nil {
		return Note{}, err
	}

	content := strings.TrimSpace(strings.Join(contentLines(lines, createdIdx), "\n"))
	if content == "" {
		return Note{}, ErrEmptyBlock
	}

	sum := sha256.Sum256([]byte(content))
	stamp := createdAt.UTC().Format(time.RFC3339)
	return Note{
		ID:           hex.EncodeToString(sum[:]),
		Content:      content,
		CreationDate: stamp,
		LastModified: stamp,
	}, nil
}

// contentLines drops the sentinel line and a leading title line, either a
// markdown heading or a fully bold first line.
func contentLines(lines []string, createdIdx int) []string {
	var out []string
	titleSeen := false
	for i, line := range lines {
		if i == createdIdx {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if !titleSeen && len(out) == 0 {
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, "## ") || isBoldLine(trimmed) {
				titleSeen = true
				continue
			}
		}
		out = append(out, line)
	}
	return out
}

func isBoldLine(line string) bool {
	return len(line) > 4 &&
		strings.HasPrefix(line, "**") &&
		strings.HasSuffix(line, "**") &&
		!strings.Contains(strings.TrimSuffix(strings.TrimPrefix(line, "**"), "**"), "**")
}

func parseCreatedLine(line string) (time.Time, error) {
	text := strings.TrimSpace(line)
	text = strings.TrimPrefix(text, createdSentinel)
	text = strings.TrimSuffix(strings.TrimSpace(text), "*")
	return noteclock.ParseAbsolute(strings.TrimSpace(text))
}
