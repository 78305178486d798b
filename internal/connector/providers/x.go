package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/sharpwatch/internal/browser"
	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// X timeline DOM selectors. X changes these often; update when scraping breaks.
const (
	xTimeline = `[data-testid="primaryColumn"]`
	xTweet    = `article[data-testid="tweet"]`
)

// X scrapes recent posts from configured sharp-money accounts using a
// saved login session.
type X struct {
	cfg      config.XConfig
	jar      *browser.CookieJar
	headless bool
	ua       string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewX(cfg config.XConfig, jar *browser.CookieJar, scraping config.ScrapingConfig, logger *slog.Logger) *X {
	if logger == nil {
		logger = slog.Default()
	}
	return &X{
		cfg:      cfg,
		jar:      jar,
		headless: scraping.Headless,
		ua:       scraping.UserAgent,
		timeout:  time.Duration(scraping.PageTimeoutSeconds) * time.Second * time.Duration(max(1, len(cfg.Accounts))),
		logger:   logger,
	}
}

func (x *X) Name() string { return "Twitter" }

// Available requires a valid stored session.
func (x *X) Available() bool {
	return x.cfg.Enabled && len(x.cfg.Accounts) > 0 && x.jar != nil && x.jar.Valid(time.Now())
}

// rawTweet is the data pulled from the DOM via JavaScript
type rawTweet struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Likes     string `json:"likes"`
	Retweets  string `json:"retweets"`
	Replies   string `json:"replies"`
}

const extractTweetsJS = `
(function() {
	const results = [];
	document.querySelectorAll('article[data-testid="tweet"]').forEach(el => {
		const link = el.querySelector('a[href*="/status/"]');
		const id = link?.href?.match(/status\/(\d+)/)?.[1];
		if (!id) return;

		const handleLink = el.querySelector('[data-testid="User-Name"] a[href^="/"]');
		const metric = (testId) => {
			const m = el.querySelector('[data-testid="' + testId + '"]');
			if (!m) return '0';
			const label = m.getAttribute('aria-label');
			if (label) {
				const match = label.match(/^([\d,.]+[KkMm]?)/);
				return match ? match[1] : '0';
			}
			return m.textContent?.trim() || '0';
		};

		results.push({
			id,
			handle: handleLink?.getAttribute('href')?.replace('/', '') || '',
			content: el.querySelector('[data-testid="tweetText"]')?.textContent || '',
			timestamp: el.querySelector('time')?.getAttribute('datetime') || '',
			likes: metric('like'),
			retweets: metric('retweet'),
			replies: metric('reply'),
		});
	});
	return results;
})()
`

// FetchSentiment visits each account timeline in one browser session.
// An account that fails to load is logged and skipped.
func (x *X) FetchSentiment(ctx context.Context) (connector.SentimentBatch, error) {
	cookies, err := x.jar.ForDomain("x.com")
	if err != nil {
		return connector.SentimentBatch{}, fmt.Errorf("x: %w", err)
	}

	browserCtx, cancel := browser.NewContext(ctx, x.headless, x.ua)
	defer cancel()
	if x.timeout > 0 {
		var timeoutCancel context.CancelFunc
		browserCtx, timeoutCancel = context.WithTimeout(browserCtx, x.timeout)
		defer timeoutCancel()
	}

	if err := browser.InjectCookies(browserCtx, cookies); err != nil {
		return connector.SentimentBatch{}, fmt.Errorf("failed to inject cookies: %w", err)
	}

	var batch connector.SentimentBatch
	loaded := 0
	now := time.Now()
	for _, handle := range x.cfg.Accounts {
		tweets, err := x.scrapeAccount(browserCtx, handle)
		if err != nil {
			x.logger.Warn("x: account scrape failed", "account", handle, "error", err)
			continue
		}
		loaded++
		batch.Found += len(tweets)
		for _, t := range tweets {
			batch.Records = append(batch.Records, tweetRecord(handle, t, now))
		}
	}

	if loaded == 0 {
		return batch, fmt.Errorf("x: no account timelines loaded")
	}
	return batch, nil
}

func (x *X) scrapeAccount(ctx context.Context, handle string) ([]rawTweet, error) {
	if err := chromedp.Run(ctx,
		chromedp.Navigate("https://x.com/"+handle),
		chromedp.WaitVisible(xTweet, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}

	var tweets []rawTweet
	seen := map[string]bool{}
	maxScrolls := x.cfg.PostsPerAccount/5 + 1

	for attempt := 0; len(tweets) < x.cfg.PostsPerAccount && attempt < maxScrolls; attempt++ {
		var visible []rawTweet
		if err := chromedp.Run(ctx, chromedp.Evaluate(extractTweetsJS, &visible)); err != nil {
			return nil, fmt.Errorf("failed to extract posts from DOM: %w", err)
		}
		for _, t := range visible {
			if !seen[t.ID] {
				seen[t.ID] = true
				tweets = append(tweets, t)
			}
		}

		if err := chromedp.Run(ctx, chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil)); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(500+attempt*100) * time.Millisecond):
		}
	}

	if len(tweets) > x.cfg.PostsPerAccount {
		tweets = tweets[:x.cfg.PostsPerAccount]
	}
	return tweets, nil
}

// tweetRecord converts a scraped tweet. Missing timestamps fall back to now.
func tweetRecord(account string, t rawTweet, now time.Time) types.SentimentRecord {
	ts := now
	if parsed, err := time.Parse(time.RFC3339, t.Timestamp); err == nil {
		ts = parsed
	}
	author := t.Handle
	if author == "" {
		author = account
	}
	return types.SentimentRecord{
		ID:         "x_" + t.ID,
		Platform:   "Twitter",
		Community:  "@" + account,
		Content:    t.Content,
		Author:     author,
		Engagement: connector.ParseMetric(t.Likes) + connector.ParseMetric(t.Retweets) + connector.ParseMetric(t.Replies),
		Timestamp:  ts,
	}
}
