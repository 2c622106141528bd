package export

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"minote-exporter/lib/noteclock"
	"minote-exporter/lib/poll"
)

// vars so tests can shrink the waits
var (
	contentWaitTimeout  = time.Second * 3
	contentPollInterval = time.Millisecond * 120
	titleWaitTimeout    = time.Second * 3
)

// Extractor turns the currently open note into a NoteRecord. It never
// fails: notes whose editor pane never materializes are mind-maps or sound
// notes and come back as NoteUnsupported, and an unparsable creation label
// defaults to the current time rather than aborting the run.
type Extractor struct {
	page   Page
	assets *AssetCollector
	now    func() time.Time
}

func NewExtractor(page Page, assets *AssetCollector, now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{page: page, assets: assets, now: now}
}

func (e *Extractor) Extract(ctx context.Context, card Card) (NoteRecord, error) {
	createdAt := e.resolveCreatedAt(ctx, card.CreatedLabel)

	hasContent, err := poll.Await(ctx, contentWaitTimeout, contentPollInterval, e.page.ContentPresent)
	if err != nil {
		return NoteRecord{}, err
	}
	if !hasContent {
		return NoteRecord{
			CreatedRaw: card.CreatedLabel,
			CreatedAt:  createdAt,
			Type:       NoteUnsupported,
		}, nil
	}

	// The title widget renders after the content pane and only for notes
	// that have one; its absence is normal.
	title := ""
	hasTitle, err := poll.Await(ctx, titleWaitTimeout, contentPollInterval, e.page.TitlePresent)
	if err != nil {
		return NoteRecord{}, err
	}
	if hasTitle {
		raw, err := e.page.TitleText(ctx)
		if err != nil {
			return NoteRecord{}, err
		}
		title = strings.TrimSpace(raw)
	}

	content, err := e.page.ContentText(ctx)
	if err != nil {
		return NoteRecord{}, err
	}

	var images []ImageAsset
	if e.assets != nil {
		images = e.assets.Collect(ctx, card.CreatedLabel)
	}

	return NoteRecord{
		Title:      title,
		Content:    strings.TrimRight(content, "\n"),
		CreatedRaw: card.CreatedLabel,
		CreatedAt:  createdAt,
		Type:       NoteNormal,
		Images:     images,
	}, nil
}

func (e *Extractor) resolveCreatedAt(ctx context.Context, raw string) time.Time {
	now := e.now()
	createdAt, err := noteclock.Normalize(raw, now)
	if err != nil {
		slog.WarnContext(ctx, "unparsable creation label, defaulting to now",
			"label", raw, "err", err)
		return now
	}
	return createdAt
}
