package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// LoginFlow describes an interactive login in a visible browser.
type LoginFlow struct {
	Site string
	// LoginURL is opened for the user.
	LoginURL string
	// SuccessURLs are page URLs (prefix match) that mean the login finished.
	SuccessURLs []string
	// AuthCookie must be present and non-empty before cookies are captured.
	AuthCookie string
	Timeout    time.Duration
	Poll       time.Duration
}

// XLogin is the flow for capturing an x.com session.
var XLogin = LoginFlow{
	Site:        "x.com",
	LoginURL:    "https://x.com/login",
	SuccessURLs: []string{"https://x.com/home", "https://twitter.com/home"},
	AuthCookie:  "auth_token",
	Timeout:     5 * time.Minute,
	Poll:        2 * time.Second,
}

// Login opens a visible browser, waits for the user to finish logging in
// and saves the captured cookies to jar.
func Login(ctx context.Context, flow LoginFlow, jar *CookieJar, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	browserCtx, cancel := NewContext(ctx, false, "")
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(flow.LoginURL)); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}
	logger.Info("browser: waiting for login", "site", flow.Site, "timeout", flow.Timeout)

	cookies, err := waitForLogin(browserCtx, flow)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := jar.Save(flow.Site, cookies, time.Now()); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	logger.Info("browser: session saved", "site", flow.Site, "cookies", len(cookies), "path", jar.Path())
	return nil
}

// waitForLogin polls until the page lands on a success URL with the auth
// cookie set.
func waitForLogin(ctx context.Context, flow LoginFlow) ([]*network.Cookie, error) {
	timeout := time.After(flow.Timeout)
	ticker := time.NewTicker(flow.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, fmt.Errorf("login timeout exceeded")
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var url string
			if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
				continue
			}
			if !hasAnyPrefix(url, flow.SuccessURLs) {
				continue
			}

			cookies, err := extractCookies(ctx)
			if err != nil {
				continue
			}
			for _, c := range cookies {
				if c.Name == flow.AuthCookie && c.Value != "" {
					return cookies, nil
				}
			}
		}
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// extractCookies gets all cookies from the browser
func extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	return cookies, err
}
