package browser

import (
	"context"
	"net/http"
	"strings"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configure the embedded Chrome instance. An export against a
// live account needs a visible window for the user to sign in through, so
// Headless defaults to off.
type ChromeOptions struct {
	Headless  bool
	UserAgent string
}

// Chrome drives a Chrome tab over the DevTools protocol.
type Chrome struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

// NewChrome boots a browser and opens the tab the session will live in.
// Close must be called once the session ends.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.Flag("headless", opts.Headless),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// start the browser eagerly so a broken Chrome install fails here
	// instead of on the first Navigate
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, err
	}

	return &Chrome{
		ctx:     tabCtx,
		cancels: []context.CancelFunc{tabCancel, allocCancel},
	}, nil
}

func (c *Chrome) Close() {
	for _, cancel := range c.cancels {
		cancel()
	}
}

func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	// honor the caller's deadline/cancellation without abandoning the tab
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	return chromedp.Run(runCtx, actions...)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)
}

func (c *Chrome) HTML(ctx context.Context, selector string) (string, error) {
	var out string
	var found bool
	err := c.run(ctx, chromedp.Evaluate(snapshotExpr(selector), &struct {
		Found *bool   `json:"found"`
		HTML  *string `json:"html"`
	}{&found, &out}))
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNoElement
	}
	return out, nil
}

// snapshotExpr reads outerHTML through Evaluate instead of
// chromedp.OuterHTML so a missing element reports ErrNoElement immediately
// rather than blocking on chromedp's implicit wait.
func snapshotExpr(selector string) string {
	quoted := strings.ReplaceAll(selector, `"`, `\"`)
	return `(() => {
		const el = document.querySelector("` + quoted + `");
		if (!el) return {found: false, html: ""};
		return {found: true, html: el.outerHTML};
	})()`
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	var clicked bool
	quoted := strings.ReplaceAll(selector, `"`, `\"`)
	err := c.run(ctx, chromedp.Evaluate(`(() => {
		const el = document.querySelector("`+quoted+`");
		if (!el) return false;
		el.click();
		return true;
	})()`, &clicked))
	if err != nil {
		return err
	}
	if !clicked {
		return ErrNoElement
	}
	return nil
}

func (c *Chrome) Eval(ctx context.Context, expression string, out any) error {
	return c.run(ctx, chromedp.Evaluate(expression, out))
}

func (c *Chrome) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, ck := range raw {
			cookies = append(cookies, &http.Cookie{
				Name:   ck.Name,
				Value:  ck.Value,
				Domain: ck.Domain,
				Path:   ck.Path,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return cookies, nil
}
