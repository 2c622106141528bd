package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"minote-exporter/lib/noteclock"
	"minote-exporter/lib/poll"
	"minote-exporter/lib/telemetry"
)

// vars so tests can shrink the waits
var (
	imageWaitTimeout  = time.Second * 3
	imagePollInterval = time.Millisecond * 120
)

const (
	imageFetchTimeout = time.Second * 20

	// Keep in sync with the bridge's browser UA so the CDN sees the same
	// client for page loads and asset fetches.
	chromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Fetcher downloads one asset URL using the page session's cookies.
type Fetcher interface {
	Fetch(ctx context.Context, url string, cookies []*http.Cookie) ([]byte, error)
}

// ImageFetcher fetches note images over HTTP. The notes CDN sits behind
// Cloudflare, which rejects Go's default client fingerprint, so the
// transport carries the browser-profile bypass.
type ImageFetcher struct {
	client *resty.Client
}

func NewImageFetcher() *ImageFetcher {
	client := resty.New()
	client.SetTimeout(imageFetchTimeout)
	client.SetHeader("user-agent", chromeUserAgent)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	telemetry.InstrumentResty(client, "export/images")
	return &ImageFetcher{client: client}
}

func (f *ImageFetcher) Fetch(ctx context.Context, url string, cookies []*http.Cookie) ([]byte, error) {
	res, err := f.client.R().
		SetContext(ctx).
		SetCookies(cookies).
		Get(url)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("unexpected status %s", res.Status())
	}
	return res.Body(), nil
}

// AssetCollector resolves the embedded images of the currently open note.
// Failures are per-image and non-fatal: an image that never decodes or
// fails to download is skipped and the rest of the note still exports.
type AssetCollector struct {
	page    Page
	fetcher Fetcher
	enabled bool
}

func NewAssetCollector(page Page, fetcher Fetcher, enabled bool) *AssetCollector {
	return &AssetCollector{page: page, fetcher: fetcher, enabled: enabled}
}

// Collect waits for each declared image to decode, resolves its source and
// downloads the payload. seed disambiguates file names across notes and is
// usually the note's raw creation label.
func (c *AssetCollector) Collect(ctx context.Context, seed string) []ImageAsset {
	if !c.enabled {
		return nil
	}

	count, err := c.page.ImageCount(ctx)
	if err != nil || count == 0 {
		return nil
	}

	cookies, err := c.page.Cookies(ctx)
	if err != nil {
		slog.WarnContext(ctx, "reading session cookies failed, skipping images", "err", err)
		return nil
	}

	sanitized := noteclock.SanitizeSeed(seed)
	var assets []ImageAsset
	for i := 0; i < count; i++ {
		ready, err := poll.Await(ctx, imageWaitTimeout, imagePollInterval, func(ctx context.Context) (bool, error) {
			return c.page.ImageReady(ctx, i)
		})
		if err != nil {
			return assets
		}
		if !ready {
			slog.DebugContext(ctx, "image never became ready, skipping", "index", i)
			continue
		}

		src, err := c.page.ImageSource(ctx, i)
		if err != nil || src == "" || strings.HasPrefix(src, "data:") {
			continue
		}

		payload, err := c.fetcher.Fetch(ctx, src, cookies)
		if err != nil {
			slog.WarnContext(ctx, "image download failed, skipping", "index", i, "err", err)
			continue
		}

		assets = append(assets, ImageAsset{
			Name:      fmt.Sprintf("note_img_%d_%s.png", i, sanitized),
			SourceURL: src,
			Payload:   payload,
		})
	}
	return assets
}
