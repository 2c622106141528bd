package convert

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const combinedFixture = `****
**Groceries**

milk
eggs

*Created at: 15/03/2024 14:30*
****
plain note without title

*Created at: 16/03/2024 09:00*
****
this block has no date line and gets skipped
****
*Created at: 17/03/2024 10:00*
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConvertCombinedFile(t *testing.T) {
	path := writeFixture(t, "export.md", combinedFixture)

	notes, skipped, err := Convert(path)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	require.Equal(t, "milk\neggs", notes[0].Content)
	require.Equal(t, "2024-03-15T14:30:00Z", notes[0].CreationDate)
	require.Equal(t, notes[0].CreationDate, notes[0].LastModified)
	require.Len(t, notes[0].ID, 64)

	require.Equal(t, "plain note without title", notes[1].Content)
	require.Equal(t, "2024-03-16T09:00:00Z", notes[1].CreationDate)

	// the dateless block and the contentless block are reported, not fatal
	require.Len(t, skipped, 2)
	require.ErrorIs(t, skipped[0].Err, ErrNoCreatedAt)
	require.Equal(t, 3, skipped[0].Block)
	require.ErrorIs(t, skipped[1].Err, ErrEmptyBlock)
}

func TestConvertIsIdempotent(t *testing.T) {
	path := writeFixture(t, "export.md", combinedFixture)

	first, _, err := Convert(path)
	require.NoError(t, err)
	second, _, err := Convert(path)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(first, second))
}

func TestConvertDirectoryWalksMarkdownFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"),
		[]byte("alpha\n\n*Created at: 15/03/2024 14:30*\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"),
		[]byte("beta\n\n*Created at: 16/03/2024 14:30*\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"),
		[]byte("ignored\n"), 0o644))

	notes, skipped, err := Convert(dir)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Len(t, notes, 2)
	require.Equal(t, "alpha", notes[0].Content)
	require.Equal(t, "beta", notes[1].Content)
}

func TestConvertHeadingTitleIsStripped(t *testing.T) {
	path := writeFixture(t, "note.md",
		"## Shopping\n\nmilk\n\n*Created at: 15/03/2024 14:30*\n")

	notes, _, err := Convert(path)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "milk", notes[0].Content)
}

func TestConvertKeepsQuotedCreatedLineInContent(t *testing.T) {
	path := writeFixture(t, "note.md",
		"*Created at: 01/01/2020 00:00* is how footers look\n\n*Created at: 15/03/2024 14:30*\n")

	notes, _, err := Convert(path)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Contains(t, notes[0].Content, "is how footers look")
	require.Equal(t, "2024-03-15T14:30:00Z", notes[0].CreationDate)
}

func TestConvertNoNotes(t *testing.T) {
	path := writeFixture(t, "empty.md", "just text, no footer\n")

	notes, skipped, err := Convert(path)
	require.ErrorIs(t, err, ErrNoNotes)
	require.Empty(t, notes)
	require.Len(t, skipped, 1)
}

func TestConvertRFC3339Footer(t *testing.T) {
	path := writeFixture(t, "note.md",
		"content\n\n*Created at: 2024-03-15T14:30:00+02:00*\n")

	notes, _, err := Convert(path)
	require.NoError(t, err)
	require.Equal(t, "2024-03-15T12:30:00Z", notes[0].CreationDate)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.json")
	notes := []Note{{
		ID:           "abc",
		Content:      "hello",
		CreationDate: "2024-03-15T14:30:00Z",
		LastModified: "2024-03-15T14:30:00Z",
	}}
	require.NoError(t, WriteJSON(path, notes))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []Note
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, notes, decoded)
	require.Contains(t, string(raw), `"creationDate": "2024-03-15T14:30:00Z"`)
}
