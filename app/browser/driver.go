package browser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhangxin15435/rss-autopost/app/source"
)

const importURL = "https://medium.com/p/import"

// Candidate selectors for the import URL field. Medium renders the
// field as an editor paragraph whose exact id shifts between variants,
// so the probes go from most to least specific.
var urlFieldSelectors = []string{
	`#editor_7 p span`,
	`[id^="editor_"] p span`,
	`[id^="editor_"] span`,
	`[id^="editor_"] p`,
	`[contenteditable="true"]`,
	`[data-testid*="editor"]`,
	`[role="textbox"]`,
}

var importButtonSelectors = []string{
	`button[data-action="import-url"]`,
	`button[data-testid="importButton"]`,
}

// Page texts that mean the import went through.
var importSuccessTexts = []string{
	"Imported the story",
	"Click Publish to share",
	"See your story",
	"导入成功",
}

// Page texts that mean the import was rejected. Checked before the
// URL heuristics: an error banner can show up on a URL that would
// otherwise read as success.
var importErrorTexts = []string{
	"Couldn't import",
	"couldn't be imported",
	"Something went wrong",
	"导入失败",
}

// URL fragments that mean the browser landed somewhere post-import.
// The import page itself lives under /p/, so that fragment is not a
// signal; a location still on the import page means nothing happened.
var importSuccessURLFragments = []string{
	"/edit",
	"/me/",
	"/stories/",
	"/dashboard",
}

const (
	inputRetries      = 3
	editorPollWindow  = 15 * time.Second
	editorPollTick    = time.Second
	runBackoff        = 5 * time.Second
	resultSettleDelay = 5 * time.Second
)

// Config carries everything the interactive driver needs.
type Config struct {
	RSSURL        string
	Headless      bool
	UserAgent     string
	Timeout       time.Duration
	Retries       int
	ScreenshotDir string

	Auth Resolver
}

// Stats summarizes one interactive run.
type Stats struct {
	Attempts  int
	Imported  bool
	Published bool
	StoryURL  string
}

// Driver runs the Medium import flow in a real browser.
type Driver struct {
	cfg Config

	// settle and backoff are shortened in tests.
	settle  time.Duration
	backoff time.Duration

	// newSession is swapped out in tests.
	newSession func(ctx context.Context) (Page, func(), error)
}

func NewDriver(cfg Config) *Driver {
	d := &Driver{cfg: cfg, settle: resultSettleDelay, backoff: runBackoff}
	d.newSession = func(ctx context.Context) (Page, func(), error) {
		b, err := Launch(ctx, LaunchConfig{Headless: cfg.Headless, UserAgent: cfg.UserAgent})
		if err != nil {
			return nil, nil, err
		}
		return b.Page(), b.Close, nil
	}
	return d
}

// Run imports the configured RSS feed into Medium, retrying the whole
// flow with a fresh browser on failure.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	result, attempts, err := d.runWithRetry(ctx, d.cfg.RSSURL)
	stats := Stats{Attempts: attempts}
	if err != nil {
		return stats, err
	}
	stats.Imported = true
	stats.Published = result.published
	stats.StoryURL = result.storyURL
	return stats, nil
}

// PublishOne imports a single article by its permalink, with the same
// bounded retry as a feed run. Implements the publisher driver
// contract.
func (d *Driver) PublishOne(ctx context.Context, article source.Article, permalink string) (string, error) {
	slog.Info("Importing article", "title", article.Title, "url", permalink)
	result, _, err := d.runWithRetry(ctx, permalink)
	if err != nil {
		return "", err
	}
	return result.storyURL, nil
}

// runWithRetry repeats the flow with a fresh browser per attempt,
// bounded by the configured retry count.
func (d *Driver) runWithRetry(ctx context.Context, sourceURL string) (flowResult, int, error) {
	retries := d.cfg.Retries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			slog.Info("Retrying import flow", "attempt", attempt, "of", retries)
			if err := d.wait(ctx, d.backoff); err != nil {
				return flowResult{}, attempt, err
			}
		}

		result, err := d.runOnce(ctx, sourceURL)
		if err == nil {
			return result, attempt, nil
		}

		lastErr = err
		slog.Error("Import attempt failed", "attempt", attempt, "error", err)
	}

	return flowResult{}, retries, fmt.Errorf("import flow failed after %d attempts: %w", retries, lastErr)
}

func (d *Driver) wait(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(dur):
		return nil
	}
}

// Publish is an alias satisfying the orchestrator driver interface.
func (d *Driver) Publish(ctx context.Context, article source.Article, permalink string) (string, error) {
	return d.PublishOne(ctx, article, permalink)
}

type flowResult struct {
	published bool
	storyURL  string
}

// stageCtx bounds one stage of the flow with the configured timeout.
func (d *Driver) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.cfg.Timeout)
}

// runOnce drives one full import in a fresh browser. The browser is
// always torn down, whatever stage failed.
func (d *Driver) runOnce(ctx context.Context, sourceURL string) (flowResult, error) {
	page, closeFn, err := d.newSession(ctx)
	if err != nil {
		return flowResult{}, err
	}
	defer closeFn()

	authCtx, cancel := d.stageCtx(ctx)
	state, err := d.cfg.Auth.Resolve(authCtx, page)
	cancel()
	if err != nil {
		return flowResult{}, &StageError{Stage: "auth", Err: err}
	}
	slog.Debug("Authenticated", "state", state.String())

	stages := []struct {
		name string
		fn   func(context.Context, Page) error
	}{
		{"import-surface", d.openImportSurface},
		{"enter-url", func(ctx context.Context, page Page) error {
			return d.enterSourceURL(ctx, page, sourceURL)
		}},
		{"submit", d.submitImport},
	}
	for _, stage := range stages {
		stageCtx, cancel := d.stageCtx(ctx)
		err := stage.fn(stageCtx, page)
		cancel()
		if err != nil {
			d.screenshot(ctx, page, stage.name)
			return flowResult{}, err
		}
	}

	// The result view renders asynchronously after the submit; reading
	// it too early misclassifies a slow success as a failure.
	if err := d.wait(ctx, d.settle); err != nil {
		return flowResult{}, err
	}

	classifyCtx, cancel := d.stageCtx(ctx)
	err = d.classifyResult(classifyCtx, page)
	cancel()
	if err != nil {
		d.screenshot(ctx, page, "classify")
		return flowResult{}, err
	}

	d.openEditor(ctx, page)

	result := flowResult{}
	storyURL, err := d.publishStory(ctx, page)
	if err != nil {
		// The import itself succeeded; a publish failure leaves a
		// draft behind, which the operator can finish by hand.
		slog.Warn("Import succeeded but publish did not", "error", err)
		d.screenshot(ctx, page, "publish")
	} else {
		result.published = true
		result.storyURL = storyURL
	}

	return result, nil
}

// openImportSurface navigates to the import page. One signin redirect
// is tolerated: the session is re-resolved and navigation retried.
func (d *Driver) openImportSurface(ctx context.Context, page Page) error {
	for attempt := 0; attempt < 2; attempt++ {
		if err := page.Navigate(ctx, importURL); err != nil {
			return &StageError{Stage: "open-import", Err: err}
		}

		url, err := page.Location(ctx)
		if err != nil {
			return &StageError{Stage: "open-import", Err: err}
		}
		if !strings.Contains(url, "/m/signin") && !strings.Contains(url, "/m/login") {
			return nil
		}
		if attempt > 0 {
			break
		}

		slog.Warn("Import page redirected to signin, re-resolving session")
		if _, err := d.cfg.Auth.Resolve(ctx, page); err != nil {
			return &StageError{Stage: "open-import", Err: err}
		}
	}
	return &StageError{Stage: "open-import", Err: &AuthenticationError{Reason: "import page keeps redirecting to signin"}}
}

// enterSourceURL types the source URL into the import field and reads
// it back. Every attempt re-locates the field from scratch; the editor
// re-renders its DOM while loading, so a selector that matched a
// moment ago can stop matching. Retries fall back from scripted
// assignment to keystroke typing.
func (d *Driver) enterSourceURL(ctx context.Context, page Page, sourceURL string) error {
	var lastErr error
	for attempt := 1; attempt <= inputRetries; attempt++ {
		sel, err := locate(ctx, page, "import URL field", urlFieldSelectors)
		if err != nil {
			lastErr = err
			continue
		}

		if attempt == 1 {
			err = page.SetEditableText(ctx, sel, sourceURL)
		} else {
			if err = page.SetEditableText(ctx, sel, ""); err == nil {
				err = page.TypeText(ctx, sel, sourceURL)
			}
		}
		if err != nil {
			lastErr = err
			slog.Debug("URL field went stale, re-locating", "selector", sel, "attempt", attempt)
			continue
		}

		got, err := page.ReadText(ctx, sel)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(got) == sourceURL {
			return nil
		}
		lastErr = fmt.Errorf("field content %q does not match %q", strings.TrimSpace(got), sourceURL)
	}
	return &StageError{Stage: "enter-url", Err: lastErr}
}

func (d *Driver) submitImport(ctx context.Context, page Page) error {
	sel, err := locate(ctx, page, "import button", importButtonSelectors)
	if err != nil {
		// Fallback for layouts where the button carries no data
		// attributes at all.
		if textErr := page.ClickByText(ctx, "button", "Import"); textErr == nil {
			return nil
		}
		return &StageError{Stage: "submit", Err: err}
	}

	if enabled, err := page.Enabled(ctx, sel); err == nil && !enabled {
		return &StageError{Stage: "submit", Err: fmt.Errorf("import button disabled")}
	}

	if err := page.Click(ctx, sel); err != nil {
		return &StageError{Stage: "submit", Err: err}
	}
	return nil
}

// classifyResult decides whether the import worked: known success
// texts first, then known error texts, then URL heuristics. A page
// still on the import URL, or not recognized either way, is a failure.
func (d *Driver) classifyResult(ctx context.Context, page Page) error {
	body, err := page.BodyText(ctx)
	if err != nil {
		return &StageError{Stage: "classify", Err: err}
	}
	for _, text := range importSuccessTexts {
		if strings.Contains(body, text) {
			slog.Info("Import confirmed", "marker", text)
			return nil
		}
	}
	for _, text := range importErrorTexts {
		if strings.Contains(body, text) {
			return &StageError{Stage: "classify", Err: fmt.Errorf("import rejected, page shows %q", text)}
		}
	}

	url, err := page.Location(ctx)
	if err != nil {
		return &StageError{Stage: "classify", Err: err}
	}
	if !strings.HasPrefix(url, importURL) {
		for _, fragment := range importSuccessURLFragments {
			if strings.Contains(url, fragment) {
				slog.Info("Import confirmed by location", "url", url)
				return nil
			}
		}
	}

	return &StageError{Stage: "classify", Err: fmt.Errorf("page state not recognized as success (url %s)", url)}
}

// openEditor polls for the post-import "See your story" link and
// follows it. Missing link is tolerated: some variants drop straight
// into the editor.
func (d *Driver) openEditor(ctx context.Context, page Page) {
	deadline := time.Now().Add(editorPollWindow)
	for time.Now().Before(deadline) {
		if err := page.ClickByText(ctx, "a, button", "See your story"); err == nil {
			slog.Debug("Opened imported story")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(editorPollTick):
		}
	}
	slog.Debug("No story link appeared, assuming editor is already open")
}

// publishStory pushes the imported draft live and returns the story
// URL.
func (d *Driver) publishStory(ctx context.Context, page Page) (string, error) {
	if err := page.ClickByText(ctx, "button", "Publish"); err != nil {
		return "", fmt.Errorf("publish button not found: %w", err)
	}

	// Prepublish dialog confirmation.
	if err := page.ClickByText(ctx, "button", "Publish now"); err != nil {
		slog.Debug("No prepublish dialog, continuing")
	}

	url, err := page.Location(ctx)
	if err != nil {
		return "", err
	}
	// A story URL has /p/ in it; the editor does too but keeps /edit,
	// and the import page keeps /p/import. Neither is a published
	// story.
	if !strings.Contains(url, "/p/") || strings.Contains(url, "/edit") || strings.HasPrefix(url, importURL) {
		return "", fmt.Errorf("location %s is not a published story", url)
	}
	return url, nil
}

func (d *Driver) screenshot(ctx context.Context, page Page, stage string) {
	if d.cfg.ScreenshotDir == "" {
		return
	}
	name := fmt.Sprintf("%s-%s.png", time.Now().Format("20060102-150405"), stage)
	path := filepath.Join(d.cfg.ScreenshotDir, name)
	if err := page.Screenshot(ctx, path); err != nil {
		slog.Warn("Failed to capture diagnostic screenshot", "stage", stage, "error", err)
		return
	}
	slog.Info("Saved diagnostic screenshot", "file", path)
}
