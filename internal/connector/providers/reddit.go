package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ibeckermayer/sharpwatch/internal/config"
	"github.com/ibeckermayer/sharpwatch/internal/connector"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Reddit reads hot posts from the configured subreddits.
type Reddit struct {
	cfg    config.RedditConfig
	client *connector.HTTPClient
	pacer  *connector.Pacer
}

func NewReddit(cfg config.RedditConfig, client *connector.HTTPClient, pacer *connector.Pacer) *Reddit {
	return &Reddit{cfg: cfg, client: client, pacer: pacer}
}

func (r *Reddit) Name() string    { return "Reddit" }
func (r *Reddit) Available() bool { return r.cfg.Enabled && len(r.cfg.Subreddits) > 0 }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// FetchSentiment returns every post unclassified. A failing subreddit is
// skipped; the fetch fails only when every subreddit does.
func (r *Reddit) FetchSentiment(ctx context.Context) (connector.SentimentBatch, error) {
	var batch connector.SentimentBatch
	var lastErr error
	failed := 0

	headers := map[string]string{}
	if r.cfg.UserAgent != "" {
		headers["User-Agent"] = r.cfg.UserAgent
	}

	for _, sub := range r.cfg.Subreddits {
		if err := r.pacer.Wait(ctx); err != nil {
			return batch, err
		}

		u := fmt.Sprintf("%s/r/%s/hot.json?%s", strings.TrimRight(r.cfg.BaseURL, "/"), url.PathEscape(sub),
			url.Values{"limit": {fmt.Sprint(r.cfg.Limit)}}.Encode())

		var listing redditListing
		if err := r.client.GetJSON(ctx, u, headers, &listing); err != nil {
			failed++
			lastErr = err
			continue
		}

		for _, c := range listing.Data.Children {
			batch.Found++
			batch.Records = append(batch.Records, postRecord(sub, c.Data))
		}
	}

	if failed == len(r.cfg.Subreddits) {
		return batch, fmt.Errorf("reddit: all subreddits failed: %w", lastErr)
	}
	return batch, nil
}

func postRecord(sub string, p redditPost) types.SentimentRecord {
	content := p.Title
	if body := strings.TrimSpace(p.Selftext); body != "" {
		content += "\n\n" + body
	}
	sec := int64(p.CreatedUTC)
	return types.SentimentRecord{
		ID:         "reddit_" + p.ID,
		Platform:   "Reddit",
		Community:  "r/" + sub,
		Content:    content,
		Author:     p.Author,
		Engagement: p.Score + p.NumComments,
		Timestamp:  time.Unix(sec, 0).UTC(),
	}
}
