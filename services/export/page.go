package export

import (
	"context"
	"net/http"
	"strings"

	"minote-exporter/lib/browser"
)

// Page is the notes view as the engine sees it. The controller, extractor
// and asset collector depend on this interface only; tests substitute a
// scripted fake and the production implementation delegates every call to a
// browser.Bridge with a small script.
type Page interface {
	// Open navigates to the notes view of the configured service domain.
	Open(ctx context.Context) error
	// Ready reports whether the list has finished its initial load: the
	// loading spinner is gone and the note-create button is visible.
	Ready(ctx context.Context) (bool, error)
	// TotalLabel returns the raw text of the note-count widget, "" when the
	// widget is not rendered.
	TotalLabel(ctx context.Context) (string, error)
	// ListHTML snapshots the outer HTML of the list container.
	ListHTML(ctx context.Context) (string, error)
	// ClickCard clicks the index-th card. browser.ErrNoElement when the
	// list re-rendered and the index no longer exists.
	ClickCard(ctx context.Context, index int) error
	// CardOpen reports whether the index-th card carries the open marker.
	CardOpen(ctx context.Context, index int) (bool, error)
	// ScrollPastCard scrolls the list by the index-th card's height.
	ScrollPastCard(ctx context.Context, index int) error
	// ScrollNudge scrolls the list by the stall-recovery step.
	ScrollNudge(ctx context.Context) error

	ContentPresent(ctx context.Context) (bool, error)
	ContentText(ctx context.Context) (string, error)
	TitlePresent(ctx context.Context) (bool, error)
	TitleText(ctx context.Context) (string, error)

	// ImageReady reports whether the index-th embedded image of the open
	// note has decoded and is fetchable.
	ImageReady(ctx context.Context, index int) (bool, error)
	// ImageSource returns the resolved source URL of the index-th image.
	ImageSource(ctx context.Context, index int) (string, error)
	// ImageCount returns how many embedded images the open note declares.
	ImageCount(ctx context.Context) (int, error)

	// Cookies exposes the authenticated session's cookies for out-of-page
	// asset fetches.
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

type bridgePage struct {
	bridge browser.Bridge
	domain string
}

// NewPage wraps an automation bridge as the notes view of domain.
func NewPage(bridge browser.Bridge, domain string) Page {
	return &bridgePage{bridge: bridge, domain: domain}
}

func (p *bridgePage) Open(ctx context.Context) error {
	url := "https://" + strings.TrimSuffix(p.domain, "/") + "/note/h5/?_locale=en-US"
	return p.bridge.Navigate(ctx, url)
}

func (p *bridgePage) Ready(ctx context.Context) (bool, error) {
	var ready bool
	err := p.bridge.Eval(ctx, jsReady, &ready)
	return ready, err
}

func (p *bridgePage) TotalLabel(ctx context.Context) (string, error) {
	var label string
	err := p.bridge.Eval(ctx, jsTotalLabel, &label)
	return label, err
}

func (p *bridgePage) ListHTML(ctx context.Context) (string, error) {
	return p.bridge.HTML(ctx, selNoteList)
}

func (p *bridgePage) ClickCard(ctx context.Context, index int) error {
	var clicked bool
	if err := p.bridge.Eval(ctx, jsClickCard(index), &clicked); err != nil {
		return err
	}
	if !clicked {
		return browser.ErrNoElement
	}
	return nil
}

func (p *bridgePage) CardOpen(ctx context.Context, index int) (bool, error) {
	var open bool
	err := p.bridge.Eval(ctx, jsCardOpen(index), &open)
	return open, err
}

func (p *bridgePage) ScrollPastCard(ctx context.Context, index int) error {
	return p.bridge.Eval(ctx, jsScrollPastCard(index), nil)
}

func (p *bridgePage) ScrollNudge(ctx context.Context) error {
	return p.bridge.Eval(ctx, jsScrollNudge, nil)
}

func (p *bridgePage) ContentPresent(ctx context.Context) (bool, error) {
	var present bool
	err := p.bridge.Eval(ctx, jsContentPresent, &present)
	return present, err
}

func (p *bridgePage) ContentText(ctx context.Context) (string, error) {
	var text string
	err := p.bridge.Eval(ctx, jsContentText, &text)
	return text, err
}

func (p *bridgePage) TitlePresent(ctx context.Context) (bool, error) {
	var present bool
	err := p.bridge.Eval(ctx, jsTitlePresent, &present)
	return present, err
}

func (p *bridgePage) TitleText(ctx context.Context) (string, error) {
	var text string
	err := p.bridge.Eval(ctx, jsTitleText, &text)
	return text, err
}

func (p *bridgePage) ImageReady(ctx context.Context, index int) (bool, error) {
	var ready bool
	err := p.bridge.Eval(ctx, jsImageReady(index), &ready)
	return ready, err
}

func (p *bridgePage) ImageSource(ctx context.Context, index int) (string, error) {
	var src string
	err := p.bridge.Eval(ctx, jsImageSource(index), &src)
	return src, err
}

func (p *bridgePage) ImageCount(ctx context.Context) (int, error) {
	var count int
	expr := `document.querySelectorAll("` + selContent + ` .image-view img").length`
	err := p.bridge.Eval(ctx, expr, &count)
	return count, err
}

func (p *bridgePage) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	return p.bridge.Cookies(ctx)
}
