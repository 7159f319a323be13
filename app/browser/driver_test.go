package browser

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhangxin15435/rss-autopost/app/source"
)

func sourceArticle(title string) source.Article {
	return source.Article{Title: title, Slug: source.Slugify(title)}
}

// fakePage is an in-memory Page for exercising the flow logic without
// a browser.
type fakePage struct {
	exists    map[string]bool
	disabled  map[string]bool
	texts     map[string]string
	body      string
	location  string
	redirects map[string]string
	cookies   []Cookie

	clickableTexts map[string]bool
	clickNavigates map[string]string

	setTextStaleOnce map[string]bool
	setTextCalls     int
	navigations      []string
	clicked          []string
}

func newFakePage() *fakePage {
	return &fakePage{
		exists:           make(map[string]bool),
		disabled:         make(map[string]bool),
		texts:            make(map[string]string),
		redirects:        make(map[string]string),
		clickableTexts:   make(map[string]bool),
		clickNavigates:   make(map[string]string),
		setTextStaleOnce: make(map[string]bool),
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigations = append(p.navigations, url)
	if to, ok := p.redirects[url]; ok {
		p.location = to
		return nil
	}
	p.location = url
	return nil
}

func (p *fakePage) Location(context.Context) (string, error) { return p.location, nil }

func (p *fakePage) Exists(_ context.Context, sel string) (bool, error) {
	return p.exists[sel], nil
}

func (p *fakePage) Enabled(_ context.Context, sel string) (bool, error) {
	return p.exists[sel] && !p.disabled[sel], nil
}

func (p *fakePage) Click(_ context.Context, sel string) error {
	if !p.exists[sel] {
		return &StaleElementError{Selector: sel}
	}
	p.clicked = append(p.clicked, sel)
	return nil
}

func (p *fakePage) ClickByText(_ context.Context, selector, text string) error {
	if p.clickableTexts[text] {
		p.clicked = append(p.clicked, text)
		if to, ok := p.clickNavigates[text]; ok {
			p.location = to
		}
		return nil
	}
	return &ElementNotFoundError{Role: "text " + text, Candidates: []string{selector}}
}

func (p *fakePage) TypeText(_ context.Context, sel, text string) error {
	if !p.exists[sel] {
		return &StaleElementError{Selector: sel}
	}
	p.texts[sel] += text
	return nil
}

func (p *fakePage) SetEditableText(_ context.Context, sel, text string) error {
	p.setTextCalls++
	if p.setTextStaleOnce[sel] {
		delete(p.setTextStaleOnce, sel)
		return &StaleElementError{Selector: sel}
	}
	if !p.exists[sel] {
		return &StaleElementError{Selector: sel}
	}
	p.texts[sel] = text
	return nil
}

func (p *fakePage) ReadText(_ context.Context, sel string) (string, error) {
	return p.texts[sel], nil
}

func (p *fakePage) BodyText(context.Context) (string, error) { return p.body, nil }

func (p *fakePage) Cookies(context.Context) ([]Cookie, error) { return p.cookies, nil }

func (p *fakePage) SetCookies(_ context.Context, cookies []Cookie) error {
	p.cookies = append(p.cookies, cookies...)
	return nil
}

func (p *fakePage) Screenshot(context.Context, string) error { return nil }

// signedIn marks the fake as having an authenticated session.
func (p *fakePage) signedIn() {
	p.exists[signedInSelectors[0]] = true
}

func TestLocatePriorityOrder(t *testing.T) {
	page := newFakePage()
	page.exists[`[contenteditable="true"]`] = true
	page.exists[`[role="textbox"]`] = true

	sel, err := locate(context.Background(), page, "field", urlFieldSelectors)
	if err != nil {
		t.Fatalf("locate() error: %v", err)
	}
	if sel != `[contenteditable="true"]` {
		t.Errorf("expected highest-priority match, got %q", sel)
	}
}

func TestLocateNotFound(t *testing.T) {
	page := newFakePage()

	_, err := locate(context.Background(), page, "field", urlFieldSelectors)
	var notFound *ElementNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ElementNotFoundError, got %v", err)
	}
	if len(notFound.Candidates) != len(urlFieldSelectors) {
		t.Errorf("Candidates = %d, expected %d", len(notFound.Candidates), len(urlFieldSelectors))
	}
}

func TestEnterSourceURLRelocatesAfterStale(t *testing.T) {
	page := newFakePage()
	page.exists[`#editor_7 p span`] = true
	page.setTextStaleOnce[`#editor_7 p span`] = true

	d := NewDriver(Config{})
	err := d.enterSourceURL(context.Background(), page, "https://blog.example.com/feed.xml")
	if err != nil {
		t.Fatalf("enterSourceURL() error: %v", err)
	}
	if page.setTextCalls != 2 {
		t.Errorf("expected a re-located second attempt, got %d calls", page.setTextCalls)
	}
	if page.texts[`#editor_7 p span`] != "https://blog.example.com/feed.xml" {
		t.Errorf("field content = %q", page.texts[`#editor_7 p span`])
	}
}

func TestEnterSourceURLGivesUpAfterRetries(t *testing.T) {
	page := newFakePage()

	d := NewDriver(Config{})
	err := d.enterSourceURL(context.Background(), page, "https://blog.example.com/feed.xml")
	var stage *StageError
	if !errors.As(err, &stage) || stage.Stage != "enter-url" {
		t.Fatalf("expected enter-url StageError, got %v", err)
	}
}

func TestClassifyResult(t *testing.T) {
	d := NewDriver(Config{})

	page := newFakePage()
	page.body = "blah Imported the story blah"
	if err := d.classifyResult(context.Background(), page); err != nil {
		t.Errorf("success text not recognized: %v", err)
	}

	page = newFakePage()
	page.body = "nothing recognizable"
	page.location = "https://medium.com/p/abc123/edit"
	if err := d.classifyResult(context.Background(), page); err != nil {
		t.Errorf("success URL not recognized: %v", err)
	}

	page = newFakePage()
	page.body = "nothing recognizable"
	page.location = "https://medium.com/m/oops"
	if err := d.classifyResult(context.Background(), page); err == nil {
		t.Error("expected unrecognized page to fail")
	}
}

func TestClassifyResultUnchangedImportPage(t *testing.T) {
	// A submit that does nothing leaves the browser on the import
	// page, which must not read as success just because its URL sits
	// under /p/.
	page := newFakePage()
	page.body = "Import a story"
	page.location = importURL

	d := NewDriver(Config{})
	err := d.classifyResult(context.Background(), page)
	var stage *StageError
	if !errors.As(err, &stage) || stage.Stage != "classify" {
		t.Fatalf("expected classify StageError, got %v", err)
	}
}

func TestClassifyResultErrorTextBeatsURL(t *testing.T) {
	page := newFakePage()
	page.body = "Something went wrong while importing"
	page.location = "https://medium.com/me/stories/drafts"

	d := NewDriver(Config{})
	if err := d.classifyResult(context.Background(), page); err == nil {
		t.Error("expected error text to override the success-looking URL")
	}
}

func TestOpenImportSurfaceReauthOnSigninRedirect(t *testing.T) {
	page := newFakePage()
	page.signedIn()
	page.redirects[importURL] = "https://medium.com/m/signin?next=import"

	d := NewDriver(Config{Auth: Resolver{SessionToken: "sid-token"}})

	// The first navigation bounces to signin; the redirect clears
	// after the re-resolve, modelling a session that became valid.
	wrapped := &reauthPage{fakePage: page, dropAfter: 2}
	if err := d.openImportSurface(context.Background(), wrapped); err != nil {
		t.Fatalf("openImportSurface() error: %v", err)
	}
	if len(page.navigations) < 3 {
		t.Errorf("expected re-auth plus retry, saw %d navigations", len(page.navigations))
	}
}

// reauthPage drops the import redirect after a number of navigations,
// modelling a session that becomes valid after re-auth.
type reauthPage struct {
	*fakePage
	dropAfter int
	count     int
}

func (p *reauthPage) Navigate(ctx context.Context, url string) error {
	p.count++
	if p.count > p.dropAfter {
		delete(p.redirects, importURL)
	}
	return p.fakePage.Navigate(ctx, url)
}

func TestResolverNoCredential(t *testing.T) {
	r := &Resolver{}
	_, err := r.Resolve(context.Background(), newFakePage())
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestResolverSessionToken(t *testing.T) {
	page := newFakePage()
	page.signedIn()

	dir := t.TempDir()
	r := &Resolver{
		SessionToken: "sid-value",
		CookiesFile:  filepath.Join(dir, "cookies.json"),
	}

	state, err := r.Resolve(context.Background(), page)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if state != LoginConfirmed {
		t.Errorf("state = %v, expected confirmed", state)
	}

	var sid *Cookie
	for i := range page.cookies {
		if page.cookies[i].Name == "sid" {
			sid = &page.cookies[i]
		}
	}
	if sid == nil {
		t.Fatal("sid cookie not injected")
	}
	if sid.Domain != ".medium.com" || !sid.HTTPOnly || !sid.Secure {
		t.Errorf("sid cookie = %+v", sid)
	}

	if _, err := os.Stat(r.CookiesFile); err != nil {
		t.Errorf("expected cookie cache written: %v", err)
	}
}

func TestResolverAssumedSession(t *testing.T) {
	page := newFakePage()

	r := &Resolver{SessionToken: "sid-value"}
	state, err := r.Resolve(context.Background(), page)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if state != LoginAssumed {
		t.Errorf("state = %v, expected assumed", state)
	}
}

func TestResolverCookieCache(t *testing.T) {
	dir := t.TempDir()
	cookiesFile := filepath.Join(dir, "cookies.json")
	cached := []Cookie{{Name: "sid", Value: "cached", Domain: ".medium.com", Path: "/"}}
	data, _ := json.Marshal(cached)
	if err := os.WriteFile(cookiesFile, data, 0o600); err != nil {
		t.Fatal(err)
	}

	page := newFakePage()
	page.signedIn()

	r := &Resolver{CookiesFile: cookiesFile}
	state, err := r.Resolve(context.Background(), page)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if state != LoginConfirmed {
		t.Errorf("state = %v, expected confirmed", state)
	}
	if len(page.cookies) == 0 || page.cookies[0].Value != "cached" {
		t.Error("cached cookies not loaded into page")
	}
}

// newHappyPage builds a fake that walks the whole import flow through
// to a published story.
func newHappyPage() *fakePage {
	page := newFakePage()
	page.signedIn()
	page.exists[`[contenteditable="true"]`] = true
	page.exists[`button[data-action="import-url"]`] = true
	page.clickableTexts["See your story"] = true
	page.clickableTexts["Publish"] = true
	page.clickableTexts["Publish now"] = true
	page.clickNavigates["Publish now"] = "https://medium.com/p/abc123"
	page.body = "Imported the story"
	return page
}

func newTestDriver(cfg Config) *Driver {
	d := NewDriver(cfg)
	d.settle = 0
	d.backoff = 0
	return d
}

func TestRunOnceHappyPath(t *testing.T) {
	page := newHappyPage()

	d := newTestDriver(Config{
		RSSURL:  "https://blog.example.com/feed.xml",
		Retries: 1,
		Timeout: 5 * time.Second,
		Auth:    Resolver{SessionToken: "sid"},
	})
	d.newSession = func(context.Context) (Page, func(), error) {
		return page, func() {}, nil
	}

	stats, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !stats.Imported || !stats.Published {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Attempts != 1 {
		t.Errorf("Attempts = %d", stats.Attempts)
	}
	if page.texts[`[contenteditable="true"]`] != "https://blog.example.com/feed.xml" {
		t.Errorf("feed URL not entered, field = %q", page.texts[`[contenteditable="true"]`])
	}
	if !contains(page.clicked, `button[data-action="import-url"]`) {
		t.Error("import button not clicked")
	}
	if !strings.Contains(stats.StoryURL, "/p/abc123") {
		t.Errorf("StoryURL = %q", stats.StoryURL)
	}
}

func TestPublishStoryRejectsEditorURL(t *testing.T) {
	page := newFakePage()
	page.clickableTexts["Publish"] = true
	page.clickableTexts["Publish now"] = true
	page.clickNavigates["Publish now"] = "https://medium.com/p/abc123/edit"

	d := newTestDriver(Config{})
	if _, err := d.publishStory(context.Background(), page); err == nil {
		t.Error("expected the editor URL to be rejected as not published")
	}
}

func TestPublishStoryAcceptsStoryURL(t *testing.T) {
	page := newFakePage()
	page.clickableTexts["Publish"] = true
	page.clickableTexts["Publish now"] = true
	page.clickNavigates["Publish now"] = "https://medium.com/@me/my-story-abc123"

	d := newTestDriver(Config{})
	if _, err := d.publishStory(context.Background(), page); err == nil {
		t.Error("expected a URL without /p/ to be rejected")
	}

	page.clickNavigates["Publish now"] = "https://medium.com/p/abc123"
	url, err := d.publishStory(context.Background(), page)
	if err != nil {
		t.Fatalf("publishStory() error: %v", err)
	}
	if url != "https://medium.com/p/abc123" {
		t.Errorf("url = %q", url)
	}
}

func TestPublishOneRetriesFreshSession(t *testing.T) {
	sessions := 0
	page := newHappyPage()

	d := newTestDriver(Config{
		Retries: 3,
		Auth:    Resolver{SessionToken: "sid"},
	})
	d.newSession = func(context.Context) (Page, func(), error) {
		sessions++
		if sessions == 1 {
			return nil, nil, errors.New("browser crashed")
		}
		return page, func() {}, nil
	}

	url, err := d.PublishOne(context.Background(), sourceArticle("Retry Me"), "https://blog.example.com/2026/08/29/retry-me/")
	if err != nil {
		t.Fatalf("PublishOne() error: %v", err)
	}
	if sessions != 2 {
		t.Errorf("expected a second attempt in a fresh session, got %d", sessions)
	}
	if url != "https://medium.com/p/abc123" {
		t.Errorf("url = %q", url)
	}
}

func TestPublishOneBoundedRetries(t *testing.T) {
	sessions := 0

	d := newTestDriver(Config{Retries: 2})
	d.newSession = func(context.Context) (Page, func(), error) {
		sessions++
		return nil, nil, errors.New("browser crashed")
	}

	_, err := d.PublishOne(context.Background(), sourceArticle("Never"), "https://blog.example.com/2026/08/29/never/")
	if err == nil {
		t.Fatal("expected failure after retries exhausted")
	}
	if sessions != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", sessions)
	}
}

func TestResultSettleBeforeClassify(t *testing.T) {
	page := newHappyPage()

	d := newTestDriver(Config{Retries: 1, Auth: Resolver{SessionToken: "sid"}})
	d.settle = 30 * time.Millisecond
	d.newSession = func(context.Context) (Page, func(), error) {
		return page, func() {}, nil
	}

	start := time.Now()
	if _, err := d.runOnce(context.Background(), "https://blog.example.com/feed.xml"); err != nil {
		t.Fatalf("runOnce() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("classification ran after %v, before the settle window", elapsed)
	}
}

func TestSubmitImportDisabledButton(t *testing.T) {
	page := newFakePage()
	page.exists[`button[data-action="import-url"]`] = true
	page.disabled[`button[data-action="import-url"]`] = true

	d := NewDriver(Config{})
	err := d.submitImport(context.Background(), page)
	var stage *StageError
	if !errors.As(err, &stage) || stage.Stage != "submit" {
		t.Fatalf("expected submit StageError, got %v", err)
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
