package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zhangxin15435/rss-autopost/app/blog"
	"github.com/zhangxin15435/rss-autopost/app/feed"
	"github.com/zhangxin15435/rss-autopost/app/ledger"
	"github.com/zhangxin15435/rss-autopost/app/source"
)

// Driver delivers one article to Medium and returns the story URL.
// Both the API client and the interactive browser driver satisfy it.
type Driver interface {
	Publish(ctx context.Context, article source.Article, permalink string) (string, error)
}

// WriteBackFailure means the ledger or tracking sheet could not be
// updated after a successful publish. The publish stands; Medium-side
// actions are irreversible from here.
type WriteBackFailure struct {
	Target string
	Key    string
	Err    error
}

func (e *WriteBackFailure) Error() string {
	return fmt.Sprintf("failed to record publish of %q in %s: %v", e.Key, e.Target, e.Err)
}

func (e *WriteBackFailure) Unwrap() error { return e.Err }

// Summary is the aggregate outcome of an orchestrated run.
type Summary struct {
	Eligible  int
	Published int
	Skipped   int
	Errors    int
}

// Options tunes one orchestrated run.
type Options struct {
	AllowRepublish     bool
	DeleteAfterPublish bool
	SiteMeta           blog.SiteMeta
	FeedURL            string
	SiteDir            string
}

// Orchestrator wires the source adapter, blog generator, feed builder,
// ledger and a platform driver into the end-to-end pipeline.
type Orchestrator struct {
	source *source.Adapter
	blog   *blog.Generator
	ledger *ledger.Ledger
	driver Driver
	opts   Options
}

func NewOrchestrator(src *source.Adapter, gen *blog.Generator, led *ledger.Ledger, driver Driver, opts Options) *Orchestrator {
	return &Orchestrator{
		source: src,
		blog:   gen,
		ledger: led,
		driver: driver,
		opts:   opts,
	}
}

// GenerateSite renders every eligible article as a blog post, then
// rebuilds the index and the RSS feed from all published posts.
func (o *Orchestrator) GenerateSite() ([]blog.Post, error) {
	articles, err := o.source.ListArticles()
	if err != nil {
		return nil, err
	}

	eligible := FilterPublishable(articles, o.opts.AllowRepublish)
	slog.Info("Generating site", "articles", len(articles), "eligible", len(eligible))

	for _, a := range eligible {
		if _, err := o.blog.WritePost(a); err != nil {
			return nil, fmt.Errorf("failed to render %q: %w", a.Title, err)
		}
	}

	posts, err := o.blog.LoadPosts()
	if err != nil {
		return nil, err
	}

	if err := blog.WriteSiteConfig(o.opts.SiteDir, o.opts.SiteMeta); err != nil {
		return nil, err
	}
	if err := blog.WriteIndex(o.opts.SiteDir, o.opts.SiteMeta, posts); err != nil {
		return nil, err
	}

	meta := feed.Meta{
		Title:       o.opts.SiteMeta.Title,
		Link:        o.opts.SiteMeta.URL,
		FeedURL:     o.opts.FeedURL,
		Description: o.opts.SiteMeta.Description,
		Author:      o.opts.SiteMeta.Author,
	}
	if _, err := feed.WriteSiteFeed(o.opts.SiteDir, meta, posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// Run is the full pipeline: generate the site, then deliver every
// eligible article not yet in the ledger. Per-article failures are
// counted and the batch continues.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	articles, err := o.source.ListArticles()
	if err != nil {
		return sum, err
	}
	eligible := FilterPublishable(articles, o.opts.AllowRepublish)
	sum.Eligible = len(eligible)

	if len(eligible) == 0 {
		slog.Info("No eligible articles")
		return sum, nil
	}

	if _, err := o.GenerateSite(); err != nil {
		return sum, err
	}

	for _, a := range eligible {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		post := blog.Post{Date: a.Date, Slug: a.Slug}
		permalink := o.blog.PostURL(post)

		if o.ledger.Has(permalink, a.Title, a.Slug) {
			sum.Skipped++
			slog.Debug("Skipping already-delivered article", "title", a.Title)
			continue
		}

		storyURL, err := o.driver.Publish(ctx, a, permalink)
		if err != nil {
			sum.Errors++
			slog.Error("Delivery failed", "title", a.Title, "error", err)
			continue
		}

		sum.Published++
		slog.Info("Published article", "title", a.Title, "story", storyURL)
		o.reconcile(a, permalink)
	}

	if err := o.ledger.Persist(); err != nil {
		wb := &WriteBackFailure{Target: "ledger", Key: "batch", Err: err}
		slog.Error("Write-back failed, publishes stand", "error", wb)
		sum.Errors++
	}

	return sum, nil
}

// PublishOne delivers the next eligible article end-to-end. Returns
// false when nothing is eligible.
func (o *Orchestrator) PublishOne(ctx context.Context) (bool, error) {
	articles, err := o.source.ListArticles()
	if err != nil {
		return false, err
	}

	for _, a := range FilterPublishable(articles, o.opts.AllowRepublish) {
		post := blog.Post{Date: a.Date, Slug: a.Slug}
		permalink := o.blog.PostURL(post)
		if o.ledger.Has(permalink, a.Title, a.Slug) {
			continue
		}

		if _, err := o.blog.WritePost(a); err != nil {
			return false, err
		}
		if _, err := o.GenerateSite(); err != nil {
			return false, err
		}

		storyURL, err := o.driver.Publish(ctx, a, permalink)
		if err != nil {
			return false, err
		}

		slog.Info("Published article", "title", a.Title, "story", storyURL)
		o.reconcile(a, permalink)
		if err := o.ledger.Persist(); err != nil {
			slog.Error("Ledger persist failed, publish stands", "error", err)
		}
		return true, nil
	}

	slog.Info("No eligible articles")
	return false, nil
}

// reconcile records a successful delivery in the ledger and the
// tracking sheet. Write-back failures are logged; the publish stands.
func (o *Orchestrator) reconcile(a source.Article, permalink string) {
	o.ledger.Add(permalink, a.Title, a.Slug)

	if _, err := o.source.UpdateStatus(a.Title, source.PublishedSentinel); err != nil {
		wb := &WriteBackFailure{Target: "tracking sheet", Key: a.Title, Err: err}
		slog.Error("Write-back failed, publish stands", "error", wb)
	}

	if o.opts.DeleteAfterPublish {
		if _, err := o.source.DeleteArticle(a.Title); err != nil {
			slog.Error("Post-publish delete failed", "title", a.Title, "error", err)
		}
	}
}
