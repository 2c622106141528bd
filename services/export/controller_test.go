package export

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"minote-exporter/lib/browser"
	"minote-exporter/lib/telemetry"
	"minote-exporter/services/export/db"
)

// shortWaits shrinks every engine wait so the loop tests run in
// milliseconds instead of real browser time.
func shortWaits(t *testing.T) {
	t.Helper()
	durations := []*time.Duration{
		&readinessTimeout, &readyPollInterval,
		&openTimeout, &openPollInterval,
		&settleDelay, &advanceDelay,
		&locateBackoffBase, &locateBackoffStep, &locateBackoffMax,
		&contentWaitTimeout, &contentPollInterval, &titleWaitTimeout,
		&imageWaitTimeout, &imagePollInterval,
	}
	for _, d := range durations {
		saved := *d
		ptr := d
		t.Cleanup(func() { *ptr = saved })
	}

	readinessTimeout = time.Millisecond * 100
	readyPollInterval = time.Millisecond * 5
	openTimeout = time.Millisecond * 50
	openPollInterval = time.Millisecond * 5
	settleDelay = time.Millisecond
	advanceDelay = time.Millisecond
	locateBackoffBase = time.Millisecond
	locateBackoffStep = time.Millisecond
	locateBackoffMax = time.Millisecond * 5
	contentWaitTimeout = time.Millisecond * 50
	contentPollInterval = time.Millisecond * 5
	titleWaitTimeout = time.Millisecond * 50
	imageWaitTimeout = time.Millisecond * 50
	imagePollInterval = time.Millisecond * 5
}

type fakeImage struct {
	src   string
	ready bool
}

type fakeNote struct {
	created     string
	title       string
	content     string
	unsupported bool
	images      []fakeImage
}

// fakePage scripts the notes view: a virtualized list that renders a
// window of cards, opens cards on click and serves the open note's editor
// pane.
type fakePage struct {
	notes      []fakeNote
	rendered   int // cards currently in the DOM
	open       int // index of the open card, -1 for none
	totalLabel string

	neverReady bool
	neverOpens bool

	nudges int
	opened bool
}

func newFakePage(notes []fakeNote) *fakePage {
	return &fakePage{
		notes:      notes,
		rendered:   len(notes),
		open:       -1,
		totalLabel: fmt.Sprintf("%d notes", len(notes)),
	}
}

func (p *fakePage) Open(ctx context.Context) error { p.opened = true; return nil }

func (p *fakePage) Ready(ctx context.Context) (bool, error) { return !p.neverReady, nil }

func (p *fakePage) TotalLabel(ctx context.Context) (string, error) { return p.totalLabel, nil }

func (p *fakePage) ListHTML(ctx context.Context) (string, error) {
	var cards []string
	for i := 0; i < p.rendered && i < len(p.notes); i++ {
		class := "note-item-f3k2"
		if i == p.open {
			class += " open-sel"
		}
		cards = append(cards, cardHTML(class, p.notes[i].created))
	}
	return listHTML(cards...), nil
}

func (p *fakePage) ClickCard(ctx context.Context, index int) error {
	if index >= p.rendered || index >= len(p.notes) {
		return browser.ErrNoElement
	}
	if !p.neverOpens {
		p.open = index
	}
	return nil
}

func (p *fakePage) CardOpen(ctx context.Context, index int) (bool, error) {
	return p.open == index, nil
}

func (p *fakePage) ScrollPastCard(ctx context.Context, index int) error {
	return nil
}

func (p *fakePage) ScrollNudge(ctx context.Context) error {
	p.nudges++
	p.extend()
	return nil
}

func (p *fakePage) extend() {
	if p.rendered < len(p.notes) {
		p.rendered++
	}
}

func (p *fakePage) openNote() *fakeNote {
	if p.open < 0 || p.open >= len(p.notes) {
		return nil
	}
	return &p.notes[p.open]
}

func (p *fakePage) ContentPresent(ctx context.Context) (bool, error) {
	note := p.openNote()
	return note != nil && !note.unsupported, nil
}

func (p *fakePage) ContentText(ctx context.Context) (string, error) {
	if note := p.openNote(); note != nil {
		return note.content, nil
	}
	return "", nil
}

func (p *fakePage) TitlePresent(ctx context.Context) (bool, error) {
	note := p.openNote()
	return note != nil && !note.unsupported && note.title != "", nil
}

func (p *fakePage) TitleText(ctx context.Context) (string, error) {
	if note := p.openNote(); note != nil {
		return note.title, nil
	}
	return "", nil
}

func (p *fakePage) ImageCount(ctx context.Context) (int, error) {
	if note := p.openNote(); note != nil && !note.unsupported {
		return len(note.images), nil
	}
	return 0, nil
}

func (p *fakePage) ImageReady(ctx context.Context, index int) (bool, error) {
	note := p.openNote()
	if note == nil || index >= len(note.images) {
		return false, nil
	}
	return note.images[index].ready, nil
}

func (p *fakePage) ImageSource(ctx context.Context, index int) (string, error) {
	note := p.openNote()
	if note == nil || index >= len(note.images) {
		return "", nil
	}
	return note.images[index].src, nil
}

func (p *fakePage) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	return []*http.Cookie{{Name: "serviceToken", Value: "t0ken"}}, nil
}

type fakeFetcher struct {
	urls       []string
	gotCookies bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, cookies []*http.Cookie) ([]byte, error) {
	f.urls = append(f.urls, url)
	f.gotCookies = len(cookies) > 0
	return []byte("payload"), nil
}

var testClockAnchor = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func testClock() time.Time { return testClockAnchor }

func TestRunExportsAllNotes(t *testing.T) {
	defer telemetry.SetupForTesting(t, "export-test")()
	shortWaits(t)
	dir := t.TempDir()

	page := newFakePage([]fakeNote{
		{
			created: "5 minutes ago",
			title:   "Groceries",
			content: "milk\neggs",
			images: []fakeImage{
				{src: "https://cdn.example.com/a.png", ready: true},
			},
		},
		{created: "yesterday", unsupported: true},
		{created: "3/15 14:30", content: "plain text"},
	})
	fetcher := &fakeFetcher{}
	listener := &recordingListener{}

	store, err := db.Open(context.Background(), filepath.Join(dir, "sessions.db"))
	require.NoError(t, err)
	defer store.Close()

	ctrl, err := NewController(Options{
		Page:         page,
		Domain:       "i.mi.com",
		OutputDir:    dir,
		Mode:         ModeCombined,
		ExportImages: true,
		Fetcher:      fetcher,
		Store:        store,
		Listener:     listener,
		Clock:        testClock,
	})
	require.NoError(t, err)

	require.NoError(t, ctrl.Run(context.Background()))

	session := ctrl.Session()
	require.Equal(t, StatusCompleted, session.Status)
	require.Equal(t, 3, session.TotalCount)
	require.Equal(t, 3, session.ProcessedCount)
	require.Equal(t, 1, session.ImagesCount)
	require.True(t, page.opened)

	raw, err := os.ReadFile(session.OutputPath)
	require.NoError(t, err)
	text := string(raw)
	require.Equal(t, 3, strings.Count(text, "****\n"))
	require.Contains(t, text, "**Groceries**\n\nmilk\neggs\n")
	require.Contains(t, text, "*Created at: 01/06/2024 09:55*")
	require.Contains(t, text, "** Unsupported note type (Mind-map or Sound note) (Created at: 31/05/2024 00:00)**")
	require.Contains(t, text, "plain text\n")
	require.Contains(t, text, "*Created at: 15/03/2024 14:30*")

	// image fetched with the page session's cookies and stored on disk
	require.Equal(t, []string{"https://cdn.example.com/a.png"}, fetcher.urls)
	require.True(t, fetcher.gotCookies)
	imagesDir := filepath.Join(dir, "images_01-06-2024_10-00-00")
	_, err = os.Stat(filepath.Join(imagesDir, "note_img_0_5_minutes_ago.png"))
	require.NoError(t, err)

	// terminal listener event and progress along the way
	require.Len(t, listener.complete, 1)
	require.Equal(t, 3, listener.complete[0].Total)
	require.Empty(t, listener.errors)
	require.NotEmpty(t, listener.progress)

	// session history landed in the store
	stored, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", stored.Status)
	require.Equal(t, 3, stored.NotesCount)
	require.Equal(t, 1, stored.ImagesCount)
	require.NotNil(t, stored.FinishedAt)
}

func TestRunStreamedMode(t *testing.T) {
	shortWaits(t)

	page := newFakePage([]fakeNote{
		{created: "now", content: "first"},
		{created: "now", content: "second"},
	})
	listener := &recordingListener{}

	ctrl, err := NewController(Options{
		Page:     page,
		Mode:     ModeStreamed,
		Listener: listener,
		Clock:    testClock,
	})
	require.NoError(t, err)
	require.NoError(t, ctrl.Run(context.Background()))

	require.Equal(t, StatusCompleted, ctrl.Session().Status)
	require.Empty(t, ctrl.Session().OutputPath)
	require.Len(t, listener.records, 2)
	require.Equal(t, "first", listener.records[0].Content)
	require.Equal(t, "second", listener.records[1].Content)
}

func TestRunVirtualizedListNeedsNudges(t *testing.T) {
	shortWaits(t)

	page := newFakePage([]fakeNote{
		{created: "now", content: "one"},
		{created: "now", content: "two"},
		{created: "now", content: "three"},
	})
	page.rendered = 1

	ctrl, err := NewController(Options{
		Page:      page,
		OutputDir: t.TempDir(),
		Clock:     testClock,
	})
	require.NoError(t, err)
	require.NoError(t, ctrl.Run(context.Background()))

	require.Equal(t, StatusCompleted, ctrl.Session().Status)
	require.Equal(t, 3, ctrl.Session().ProcessedCount)
	require.GreaterOrEqual(t, page.nudges, 2)
}

func TestRunReadinessTimeout(t *testing.T) {
	shortWaits(t)

	page := newFakePage([]fakeNote{{created: "now", content: "x"}})
	page.neverReady = true
	listener := &recordingListener{}

	ctrl, err := NewController(Options{
		Page:      page,
		OutputDir: t.TempDir(),
		Listener:  listener,
		Clock:     testClock,
	})
	require.NoError(t, err)

	err = ctrl.Run(context.Background())
	require.ErrorIs(t, err, ErrReadinessTimeout)
	require.Equal(t, StatusFailed, ctrl.Session().Status)
	require.Len(t, listener.errors, 1)
}

func TestRunEmptyCollection(t *testing.T) {
	shortWaits(t)

	page := newFakePage(nil)
	page.totalLabel = ""

	ctrl, err := NewController(Options{
		Page:      page,
		OutputDir: t.TempDir(),
		Clock:     testClock,
	})
	require.NoError(t, err)

	err = ctrl.Run(context.Background())
	require.ErrorIs(t, err, ErrEmptyCollection)
	require.Equal(t, StatusFailed, ctrl.Session().Status)
}

func TestRunCancellation(t *testing.T) {
	shortWaits(t)

	page := newFakePage([]fakeNote{{created: "now", content: "x"}})
	listener := &recordingListener{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ctrl, err := NewController(Options{
		Page:      page,
		OutputDir: t.TempDir(),
		Listener:  listener,
		Clock:     testClock,
	})
	require.NoError(t, err)

	err = ctrl.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, StatusCancelled, ctrl.Session().Status)
	require.Equal(t, []string{"export cancelled"}, listener.errors)
}

func TestRunStalledListFails(t *testing.T) {
	shortWaits(t)

	// the count widget promises two notes but the list only ever renders
	// one, so the loop must give up instead of spinning forever
	page := newFakePage([]fakeNote{{created: "now", content: "only"}})
	page.totalLabel = "2 notes"

	ctrl, err := NewController(Options{
		Page:      page,
		OutputDir: t.TempDir(),
		Clock:     testClock,
	})
	require.NoError(t, err)

	err = ctrl.Run(context.Background())
	require.ErrorIs(t, err, ErrListStalled)
	require.Equal(t, StatusFailed, ctrl.Session().Status)
	require.Equal(t, 1, ctrl.Session().ProcessedCount)
}

func TestRunCardThatNeverOpensStalls(t *testing.T) {
	shortWaits(t)

	page := newFakePage([]fakeNote{{created: "now", content: "x"}})
	page.neverOpens = true

	ctrl, err := NewController(Options{
		Page:      page,
		OutputDir: t.TempDir(),
		Clock:     testClock,
	})
	require.NoError(t, err)

	err = ctrl.Run(context.Background())
	require.ErrorIs(t, err, ErrListStalled)
	require.Equal(t, 0, ctrl.Session().ProcessedCount)
}
