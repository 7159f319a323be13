package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/zhangxin15435/rss-autopost/app/blog"
	"github.com/zhangxin15435/rss-autopost/app/browser"
	"github.com/zhangxin15435/rss-autopost/app/cfg"
	"github.com/zhangxin15435/rss-autopost/app/ledger"
	"github.com/zhangxin15435/rss-autopost/app/medium"
	"github.com/zhangxin15435/rss-autopost/app/publisher"
	"github.com/zhangxin15435/rss-autopost/app/source"
)

func main() {
	c, args, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if c == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(c)

	command := "full"
	if len(args) > 0 {
		command = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(c)

	slog.Info("Starting RSS AutoPost", "version", c.Version, "command", command)

	switch command {
	case "full":
		err = app.runFull(ctx)
	case "blog":
		err = app.runBlog()
	case "medium":
		err = app.runMedium(ctx)
	case "single":
		err = app.runSingle(ctx)
	case "status":
		err = app.runStatus()
	case "config":
		err = app.runConfig()
	case "help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		printHelp()
		os.Exit(2)
	}

	if err != nil {
		slog.Error("Command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func setupLogger(c *cfg.Cfg) {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// app wires the pipeline components from configuration.
type app struct {
	cfg    *cfg.Cfg
	source *source.Adapter
	blog   *blog.Generator
	ledger *ledger.Ledger
}

func newApp(c *cfg.Cfg) *app {
	return &app{
		cfg:    c,
		source: source.NewAdapter(c.CSVFile, c.ArticlesDir),
		blog:   blog.NewGenerator(c.PostsDir, c.SiteURL),
		ledger: ledger.New(c.PublishedFile),
	}
}

func (a *app) siteMeta() blog.SiteMeta {
	return blog.SiteMeta{
		Title:       a.cfg.BlogTitle,
		Description: a.cfg.BlogDescription,
		Author:      a.cfg.BlogAuthor,
		URL:         a.cfg.SiteURL,
	}
}

func (a *app) orchestratorOptions() publisher.Options {
	return publisher.Options{
		AllowRepublish:     a.cfg.AllowRepublish,
		DeleteAfterPublish: a.cfg.DeleteAfterPublish,
		SiteMeta:           a.siteMeta(),
		FeedURL:            a.cfg.RSSURL,
		SiteDir:            a.cfg.SiteDir,
	}
}

func (a *app) apiClient() *medium.Client {
	return medium.NewClient(medium.ClientConfig{
		RSSURL:           a.cfg.RSSURL,
		SessionToken:     a.cfg.SessionToken,
		IntegrationToken: a.cfg.IntegrationToken,
		UserID:           a.cfg.UserID,
		UserAgent:        a.cfg.UserAgent,
		Timeout:          a.cfg.Timeout(),
	})
}

func (a *app) browserDriver() *browser.Driver {
	return browser.NewDriver(browser.Config{
		RSSURL:        a.cfg.RSSURL,
		Headless:      a.cfg.Headless,
		UserAgent:     a.cfg.UserAgent,
		Timeout:       a.cfg.Timeout(),
		Retries:       a.cfg.Retries,
		ScreenshotDir: a.cfg.ScreenshotDir,
		Auth: browser.Resolver{
			CookiesFile:  a.cfg.CookiesFile,
			SessionToken: a.cfg.SessionToken,
			Email:        a.cfg.Email,
			Password:     a.cfg.Password,
		},
	})
}

func (a *app) driver() publisher.Driver {
	if a.cfg.PublishMethod == "api" {
		return a.apiClient()
	}
	return a.browserDriver()
}

// runFull generates the site and delivers every eligible article.
func (a *app) runFull(ctx context.Context) error {
	if !a.cfg.ShouldPublish() {
		slog.Warn("No Medium credentials for the selected method, generating site only",
			"method", a.cfg.PublishMethod)
		return a.runBlog()
	}

	o := publisher.NewOrchestrator(a.source, a.blog, a.ledger, a.driver(), a.orchestratorOptions())
	sum, err := o.Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("Run completed",
		"eligible", sum.Eligible,
		"published", sum.Published,
		"skipped", sum.Skipped,
		"errors", sum.Errors)
	if sum.Errors > 0 {
		return fmt.Errorf("%d of %d deliveries failed", sum.Errors, sum.Eligible)
	}
	return nil
}

// runBlog regenerates posts, site files and the RSS feed without
// touching Medium.
func (a *app) runBlog() error {
	o := publisher.NewOrchestrator(a.source, a.blog, a.ledger, nil, a.orchestratorOptions())
	posts, err := o.GenerateSite()
	if err != nil {
		return err
	}
	slog.Info("Site generated", "posts", len(posts), "dir", a.cfg.SiteDir)
	return nil
}

// runMedium delivers from the published RSS feed only, without
// regenerating the site.
func (a *app) runMedium(ctx context.Context) error {
	if a.cfg.PublishMethod == "api" {
		stats, err := a.apiClient().Run(ctx, a.ledger)
		if err != nil {
			return err
		}
		slog.Info("API run completed",
			"total", stats.Total,
			"submitted", stats.Submitted,
			"skipped", stats.Skipped,
			"failed", stats.Failed)
		if stats.Failed > 0 {
			return fmt.Errorf("%d of %d submissions failed", stats.Failed, stats.Total)
		}
		return nil
	}

	stats, err := a.browserDriver().Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("Import run completed",
		"attempts", stats.Attempts,
		"imported", stats.Imported,
		"published", stats.Published,
		"story", stats.StoryURL)
	return nil
}

// runSingle delivers the next eligible article end-to-end.
func (a *app) runSingle(ctx context.Context) error {
	o := publisher.NewOrchestrator(a.source, a.blog, a.ledger, a.driver(), a.orchestratorOptions())
	published, err := o.PublishOne(ctx)
	if err != nil {
		return err
	}
	if !published {
		slog.Info("Nothing eligible to publish")
	}
	return nil
}

// runStatus prints a JSON snapshot of the pipeline state.
func (a *app) runStatus() error {
	status := struct {
		CSVFile       string `json:"csvFile"`
		Articles      int    `json:"articles"`
		Eligible      int    `json:"eligible"`
		Posts         int    `json:"posts"`
		LedgerEntries int    `json:"ledgerEntries"`
		PublishMethod string `json:"publishMethod"`
		CanPublish    bool   `json:"canPublish"`
	}{
		CSVFile:       a.cfg.CSVFile,
		PublishMethod: a.cfg.PublishMethod,
		CanPublish:    a.cfg.ShouldPublish(),
		LedgerEntries: a.ledger.Size(),
	}

	articles, err := a.source.ListArticles()
	if err == nil {
		status.Articles = len(articles)
		status.Eligible = len(publisher.FilterPublishable(articles, a.cfg.AllowRepublish))
	} else {
		slog.Warn("Tracking sheet unavailable", "error", err)
	}

	if posts, err := a.blog.LoadPosts(); err == nil {
		status.Posts = len(posts)
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runConfig scaffolds a working directory: sample env file, articles
// directory and an empty tracking sheet.
func (a *app) runConfig() error {
	if err := os.MkdirAll(a.cfg.ArticlesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create articles directory: %w", err)
	}

	if err := writeIfAbsent(".env.example", envExample); err != nil {
		return err
	}

	sample := map[string]any{
		"siteUrl":       a.cfg.SiteURL,
		"rssUrl":        a.cfg.RSSURL,
		"blogTitle":     a.cfg.BlogTitle,
		"blogAuthor":    a.cfg.BlogAuthor,
		"publishMethod": a.cfg.PublishMethod,
		"csvFile":       a.cfg.CSVFile,
		"articlesDir":   a.cfg.ArticlesDir,
	}
	sampleData, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return err
	}
	if err := writeIfAbsent("config.sample.json", string(sampleData)+"\n"); err != nil {
		return err
	}

	sheetHeader := fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s\n",
		source.ColTitle, source.ColContent, source.ColAuthor, source.ColTags,
		source.ColStatus, source.ColChannels, source.ColCompleted, source.ColContentFile)
	if err := writeIfAbsent(a.cfg.CSVFile, sheetHeader); err != nil {
		return err
	}

	slog.Info("Scaffolding complete", "csv", a.cfg.CSVFile, "env", ".env.example")
	return nil
}

func writeIfAbsent(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		slog.Info("File already exists, leaving untouched", "file", path)
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

const envExample = `# Site
SITE_URL=https://example.github.io/blog
RSS_URL=https://example.github.io/blog/feed.xml
BLOG_TITLE=技术博客
BLOG_AUTHOR=Blog Author

# Medium credentials (choose one path)
MEDIUM_PUBLISH_METHOD=browser
MEDIUM_SESSION_TOKEN=
MEDIUM_INTEGRATION_TOKEN=
MEDIUM_EMAIL=
MEDIUM_PASSWORD=

# Behaviour
ALLOW_REPUBLISH=false
DELETE_AFTER_PUBLISH=false
MEDIUM_HEADLESS=true
MEDIUM_TIMEOUT=30
MEDIUM_RETRIES=3
DEBUG=false
`

func printHelp() {
	fmt.Println(`Usage: rss-autopost [OPTIONS] [command]

Commands:
  full     generate the site and publish eligible articles (default)
  blog     regenerate posts, site files and the RSS feed only
  medium   publish from the already-published RSS feed only
  single   publish the next eligible article
  status   print a JSON snapshot of the pipeline state
  config   scaffold .env.example and an empty tracking sheet
  help     show this help

Run with --help for the full option list.`)
}
