package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"minote-exporter/lib/browser"
	"minote-exporter/lib/poll"
	"minote-exporter/services/export/db"
)

var tracer = otel.Tracer("services/export")

// vars so tests can shrink the waits
var (
	// Readiness doubles as the sign-in window: the user authenticates in
	// the live browser while the engine polls for the loaded list.
	readinessTimeout  = time.Second * 300
	readyPollInterval = time.Millisecond * 250

	openTimeout      = time.Second * 5
	openPollInterval = time.Millisecond * 120

	settleDelay  = time.Millisecond * 240
	advanceDelay = time.Millisecond * 200

	locateBackoffBase = time.Millisecond * 200
	locateBackoffStep = time.Millisecond * 150
	locateBackoffMax  = time.Millisecond * 1200
)

const (
	// After this many consecutive locate misses the controller assumes the
	// virtualized list needs a scroll to render the next card.
	maxLocateRetries = 4

	// The list is advanced blindly, so a hard ceiling on loop passes keeps
	// a wedged UI from spinning forever.
	guardFactor = 16
)

var (
	ErrReadinessTimeout = errors.New("note list never became ready")
	ErrEmptyCollection  = errors.New("no notes found")
	ErrListStalled      = errors.New("note list stopped advancing")
)

// Options configure one export run. Page is required; everything else has
// a usable zero value.
type Options struct {
	Page            Page
	Domain          string
	OutputDir       string
	Mode            OutputMode
	TimestampFormat string
	ExportImages    bool

	// Fetcher overrides the default image fetcher, for tests.
	Fetcher Fetcher
	// Store, when set, receives the session history.
	Store *db.Store
	// Listener receives progress and terminal events. Required in
	// ModeStreamed.
	Listener Listener
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Controller runs the scrape loop: locate the next card, open it, extract,
// emit, advance. One controller runs one session exactly once.
type Controller struct {
	opts    Options
	session *Session
	clock   func() time.Time
}

func NewController(opts Options) (*Controller, error) {
	if opts.Page == nil {
		return nil, fmt.Errorf("page is required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeCombined
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	id, err := random.String(8)
	if err != nil {
		return nil, err
	}

	return &Controller{
		opts:  opts,
		clock: clock,
		session: &Session{
			ID:              id,
			Domain:          opts.Domain,
			OutputMode:      opts.Mode,
			TimestampFormat: opts.TimestampFormat,
			ExportImages:    opts.ExportImages,
			StartedAt:       clock(),
			Status:          StatusRunning,
		},
	}, nil
}

// Session returns the run's session state. Read-only for callers; the
// controller keeps mutating it until Run returns.
func (c *Controller) Session() *Session {
	return c.session
}

// Run drives the export to a terminal status. Cancelling ctx stops the run
// cleanly: everything emitted so far stays flushed and the session ends as
// StatusCancelled.
func (c *Controller) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "export.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", c.session.ID),
		attribute.String("output_mode", string(c.session.OutputMode)),
	)

	sink, err := newSink(c.session, c.opts.OutputDir, c.opts.Listener)
	if err != nil {
		c.finish(ctx, span, nil, StatusFailed, err)
		return err
	}
	c.session.OutputPath = sink.Path()
	c.recordStart(ctx)

	err = c.scrape(ctx, sink)
	switch {
	case err == nil:
		c.finish(ctx, span, sink, StatusCompleted, nil)
		return nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		c.finish(ctx, span, sink, StatusCancelled, err)
		return err
	default:
		c.finish(ctx, span, sink, StatusFailed, err)
		return err
	}
}

func (c *Controller) scrape(ctx context.Context, sink Sink) error {
	page := c.opts.Page

	if err := page.Open(ctx); err != nil {
		return fmt.Errorf("opening notes view: %w", err)
	}

	ready, err := poll.Await(ctx, readinessTimeout, readyPollInterval, page.Ready)
	if err != nil {
		return err
	}
	if !ready {
		return ErrReadinessTimeout
	}

	total, err := c.discoverTotal(ctx)
	if err != nil {
		return err
	}
	if total <= 0 {
		return ErrEmptyCollection
	}
	c.session.TotalCount = total
	c.notifyProgress(ctx, fmt.Sprintf("Discovered %d notes.", total))

	var collector *AssetCollector
	if c.session.ExportImages {
		fetcher := c.opts.Fetcher
		if fetcher == nil {
			fetcher = NewImageFetcher()
		}
		collector = NewAssetCollector(page, fetcher, true)
	}
	extractor := NewExtractor(page, collector, c.clock)

	firstPass := true
	locateRetries := 0
	for guard := 0; c.session.ProcessedCount < total; guard++ {
		if guard >= total*guardFactor {
			return ErrListStalled
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		listHTML, err := page.ListHTML(ctx)
		if err != nil && !errors.Is(err, browser.ErrNoElement) {
			return err
		}
		card, ok := Locate(listHTML, firstPass)
		if !ok {
			locateRetries++
			if err := poll.Sleep(ctx, locateBackoff(locateRetries)); err != nil {
				return err
			}
			if locateRetries >= maxLocateRetries {
				locateRetries = 0
				if err := page.ScrollNudge(ctx); err != nil {
					slog.WarnContext(ctx, "scroll nudge failed", "err", err)
				}
				if err := poll.Sleep(ctx, settleDelay); err != nil {
					return err
				}
			}
			continue
		}
		locateRetries = 0

		if err := page.ClickCard(ctx, card.Index); err != nil {
			if errors.Is(err, browser.ErrNoElement) {
				// list re-rendered between snapshot and click
				continue
			}
			return err
		}

		opened, err := poll.Await(ctx, openTimeout, openPollInterval, func(ctx context.Context) (bool, error) {
			return page.CardOpen(ctx, card.Index)
		})
		if err != nil {
			return err
		}
		if !opened {
			// same card gets retried on the next pass, no advance
			continue
		}
		firstPass = false

		if err := poll.Sleep(ctx, settleDelay); err != nil {
			return err
		}

		rec, err := extractor.Extract(ctx, card)
		if err != nil {
			return err
		}
		if err := sink.Append(rec); err != nil {
			return fmt.Errorf("emitting note: %w", err)
		}

		c.session.ProcessedCount++
		c.session.ImagesCount += len(rec.Images)
		c.notifyProgress(ctx, progressLine(rec, c.session.ProcessedCount))

		if c.session.ProcessedCount >= total {
			break
		}
		if err := page.ScrollPastCard(ctx, card.Index); err != nil {
			slog.WarnContext(ctx, "scrolling past card failed", "index", card.Index, "err", err)
		}
		if err := poll.Sleep(ctx, advanceDelay); err != nil {
			return err
		}
	}
	return nil
}

var digitRegex = regexp.MustCompile(`\d+`)

// discoverTotal reads the expected note count from the count widget and
// falls back to counting rendered cards when the widget is absent.
func (c *Controller) discoverTotal(ctx context.Context) (int, error) {
	label, err := c.opts.Page.TotalLabel(ctx)
	if err != nil {
		return 0, err
	}
	if m := digitRegex.FindString(label); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 0 {
			return n, nil
		}
	}

	listHTML, err := c.opts.Page.ListHTML(ctx)
	if err != nil {
		if errors.Is(err, browser.ErrNoElement) {
			return 0, nil
		}
		return 0, err
	}
	return CountCards(listHTML), nil
}

func (c *Controller) recordStart(ctx context.Context) {
	if c.opts.Store == nil {
		return
	}
	err := c.opts.Store.Insert(ctx, db.Session{
		ID:              c.session.ID,
		Domain:          c.session.Domain,
		OutputMode:      string(c.session.OutputMode),
		TimestampFormat: c.session.TimestampFormat,
		ImagesEnabled:   c.session.ExportImages,
		Status:          string(StatusRunning),
		OutputPath:      c.session.OutputPath,
		StartedAt:       c.session.StartedAt,
	})
	if err != nil {
		slog.WarnContext(ctx, "recording session start failed", "err", err)
	}
}

func (c *Controller) notifyProgress(ctx context.Context, logLine string) {
	if c.opts.Store != nil {
		err := c.opts.Store.UpdateProgress(ctx, c.session.ID,
			c.session.TotalCount, c.session.ProcessedCount, c.session.ImagesCount)
		if err != nil {
			slog.WarnContext(ctx, "recording session progress failed", "err", err)
		}
	}
	if c.opts.Listener != nil {
		c.opts.Listener.OnProgress(ProgressEvent{
			Current:     c.session.ProcessedCount,
			Total:       c.session.TotalCount,
			NotesCount:  c.session.ProcessedCount,
			ImagesCount: c.session.ImagesCount,
			LogLine:     logLine,
		})
	}
}

func (c *Controller) finish(ctx context.Context, span trace.Span, sink Sink, status Status, cause error) {
	if sink != nil {
		if err := sink.Finish(); err != nil {
			slog.WarnContext(ctx, "closing sink failed", "err", err)
		}
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
		span.RecordError(cause)
		span.SetStatus(codes.Error, msg)
	}
	c.session.finish(status, msg)

	if c.opts.Store != nil {
		// ctx may already be cancelled; the outcome still has to land
		storeCtx := context.WithoutCancel(ctx)
		err := c.opts.Store.SetOutcome(storeCtx, c.session.ID,
			string(c.session.Status), c.session.LastError,
			c.session.OutputPath, c.clock())
		if err != nil {
			slog.WarnContext(storeCtx, "recording session outcome failed", "err", err)
		}
	}

	if c.opts.Listener != nil {
		switch status {
		case StatusCompleted:
			c.opts.Listener.OnComplete(CompleteEvent{
				Total:      c.session.ProcessedCount,
				ElapsedMs:  c.clock().Sub(c.session.StartedAt).Milliseconds(),
				OutputPath: c.session.OutputPath,
			})
		case StatusCancelled:
			c.opts.Listener.OnError("export cancelled")
		default:
			c.opts.Listener.OnError(msg)
		}
	}
}

func locateBackoff(retries int) time.Duration {
	d := locateBackoffBase + locateBackoffStep*time.Duration(retries-1)
	if d > locateBackoffMax {
		return locateBackoffMax
	}
	return d
}

func progressLine(rec NoteRecord, current int) string {
	if rec.Type == NoteUnsupported {
		return fmt.Sprintf("Note %d has an unsupported type, emitted placeholder.", current)
	}
	label := rec.Title
	if label == "" {
		label = firstLine(rec.Content)
	}
	return fmt.Sprintf("Exported note %d: %s", current, truncate(label, 40))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
