package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Renderer loads a page in a browser and returns its rendered HTML.
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (string, error)
}

// ChromeRenderer renders pages with a fresh headless Chrome per call.
type ChromeRenderer struct {
	Headless  bool
	UserAgent string
	Timeout   time.Duration
	Cookies   []*network.Cookie
}

// Render navigates to url, waits for waitSelector and returns outer HTML.
func (r ChromeRenderer) Render(ctx context.Context, url, waitSelector string) (string, error) {
	browserCtx, cancel := NewContext(ctx, r.Headless, r.UserAgent)
	defer cancel()

	if r.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		browserCtx, timeoutCancel = context.WithTimeout(browserCtx, r.Timeout)
		defer timeoutCancel()
	}

	if len(r.Cookies) > 0 {
		if err := InjectCookies(browserCtx, r.Cookies); err != nil {
			return "", fmt.Errorf("failed to inject cookies: %w", err)
		}
	}

	var html string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

// InjectCookies sets cookies in the browser context before navigation.
func InjectCookies(ctx context.Context, cookies []*network.Cookie) error {
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					WithSameSite(c.SameSite).
					Do(ctx)
				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}
