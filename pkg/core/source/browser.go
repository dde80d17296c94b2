package source

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Renderer returns the fully rendered HTML of a page. The secondary
// results site builds its tables client-side, so a plain GET sees nothing.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// ChromeRenderer renders pages in headless Chrome.
type ChromeRenderer struct {
	// WaitDelay is how long to let the page's scripts settle after
	// navigation before snapshotting the DOM.
	WaitDelay   time.Duration
	UserAgent   string
	PageTimeout time.Duration
}

var _ Renderer = (*ChromeRenderer)(nil)

// Render navigates to url and snapshots the rendered document.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	wait := r.WaitDelay
	if wait == 0 {
		wait = 3 * time.Second
	}
	timeout := r.PageTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ua := r.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(ua),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(wait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}
