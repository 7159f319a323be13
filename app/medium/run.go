package medium

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zhangxin15435/rss-autopost/app/feed"
	"github.com/zhangxin15435/rss-autopost/app/ledger"
	"github.com/zhangxin15435/rss-autopost/app/source"
)

// submitPacing is the pause between consecutive draft submissions so a
// batch run does not hammer the endpoint.
const submitPacing = 2 * time.Second

// FetchFeedItems downloads and parses the published RSS feed.
func (c *Client) FetchFeedItems(ctx context.Context) ([]feed.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.RSSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("medium: failed to build feed request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("medium: failed to fetch feed %s: %w", c.cfg.RSSURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode, Endpoint: c.cfg.RSSURL}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("medium: failed to read feed: %w", err)
	}

	_, items, err := feed.NewParser().Parse(data)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Run submits every feed item not yet recorded in the ledger as a
// Medium draft. Failures are counted, not fatal; the ledger is
// persisted even when some submissions fail.
func (c *Client) Run(ctx context.Context, led *ledger.Ledger) (Stats, error) {
	var stats Stats

	if _, err := c.VerifyIdentity(ctx); err != nil {
		return stats, err
	}

	items, err := c.FetchFeedItems(ctx)
	if err != nil {
		return stats, err
	}
	stats.Total = len(items)

	for i, item := range items {
		if led.Has(item.GUID, item.Title, item.Link) {
			stats.Skipped++
			slog.Debug("Skipping already-submitted item", "title", item.Title)
			continue
		}

		draft, err := c.CreateDraft(ctx, item.Title, item.Content, item.Link, item.Categories)
		if err != nil {
			stats.Failed++
			slog.Error("Draft submission failed", "title", item.Title, "error", err)
		} else {
			stats.Submitted++
			led.Add(item.GUID, item.Title, item.Link)
			slog.Info("Submitted draft", "title", item.Title, "url", draft.URL)
		}

		// Every submission attempt hits the endpoint, so failed ones
		// pace the next request just like successful ones.
		if i < len(items)-1 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(c.pacing):
			}
		}
	}

	if err := led.Persist(); err != nil {
		return stats, err
	}
	return stats, nil
}

// Publish submits a single article as a draft. Implements the
// publisher driver contract.
func (c *Client) Publish(ctx context.Context, article source.Article, permalink string) (string, error) {
	draft, err := c.CreateDraft(ctx, article.Title, article.Content, permalink, article.Tags)
	if err != nil {
		return "", err
	}
	return draft.URL, nil
}
