package export

import (
	"fmt"
	"strings"

	"minote-exporter/lib/noteclock"
)

// blockDelimiter separates notes in a combined export file. The converter
// splits on the same marker, so combined files round-trip.
const blockDelimiter = "****"

// renderNote renders one record as a markdown block, without the leading
// delimiter. imageRefs are the relative paths the sink stored the note's
// images under, in image order.
func renderNote(rec NoteRecord, imageRefs []string) string {
	created := rec.CreatedAt.Format(noteclock.CreatedAtLayout)

	var b strings.Builder
	if rec.Type == NoteUnsupported {
		b.WriteString("** Unsupported note type (Mind-map or Sound note) (Created at: ")
		b.WriteString(created)
		b.WriteString(")**\n")
		return b.String()
	}

	if rec.Title != "" {
		b.WriteString("**")
		b.WriteString(rec.Title)
		b.WriteString("**\n\n")
	}
	b.WriteString(rec.Content)
	b.WriteString("\n")
	for i, ref := range imageRefs {
		fmt.Fprintf(&b, "\n![image %d](%s)\n", i+1, ref)
	}
	b.WriteString("\n*Created at: ")
	b.WriteString(created)
	b.WriteString("*\n")
	return b.String()
}
