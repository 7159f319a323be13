package blog

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/zhangxin15435/rss-autopost/app/source"
)

func testArticle() source.Article {
	return source.Article{
		Title:   "Go Concurrency Patterns 实战",
		Content: "第一段内容。第二段开始了。\n\n\n\nSome **bold** text here.",
		Author:  "张三",
		Tags:    []string{"技术", "Go"},
		Slug:    "go-concurrency-patterns",
		Date:    time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestWritePostRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, "https://blog.example.com")

	article := testArticle()
	written, err := g.WritePost(article)
	if err != nil {
		t.Fatalf("WritePost() error: %v", err)
	}

	if written.Filename != "2025-03-14-go-concurrency-patterns.md" {
		t.Errorf("Filename = %q", written.Filename)
	}
	if written.URL != "https://blog.example.com/2025/03/14/go-concurrency-patterns/" {
		t.Errorf("URL = %q", written.URL)
	}

	parsed, err := g.ParsePost(filepath.Join(dir, written.Filename))
	if err != nil {
		t.Fatalf("ParsePost() error: %v", err)
	}

	if parsed.Title != article.Title {
		t.Errorf("Title = %q, expected %q", parsed.Title, article.Title)
	}
	if !parsed.Date.Equal(written.Date) {
		t.Errorf("Date = %v, expected %v", parsed.Date, written.Date)
	}
	if !reflect.DeepEqual(parsed.Tags, article.Tags) {
		t.Errorf("Tags = %v, expected %v", parsed.Tags, article.Tags)
	}
	if !parsed.Published {
		t.Error("expected parsed post to be published")
	}
	if strings.TrimSpace(parsed.Content) != strings.TrimSpace(written.Content) {
		t.Errorf("Content = %q, expected %q", parsed.Content, written.Content)
	}
}

func TestWritePostCleansContent(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, "https://blog.example.com")

	article := testArticle()
	article.Content = "He said “hello” and ‘bye’.\r\nLine two.\n\n\n\n\nLine three."

	written, err := g.WritePost(article)
	if err != nil {
		t.Fatalf("WritePost() error: %v", err)
	}

	if strings.ContainsAny(written.Content, "“”‘’") {
		t.Errorf("expected curly quotes normalized, got %q", written.Content)
	}
	if strings.Contains(written.Content, "\n\n\n") {
		t.Errorf("expected blank runs collapsed, got %q", written.Content)
	}
	if strings.Contains(written.Content, "\r") {
		t.Errorf("expected CR removed, got %q", written.Content)
	}
}

func TestLoadPostsSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, "https://blog.example.com")

	for i, day := range []int{10, 20, 15} {
		article := testArticle()
		article.Slug = article.Slug + "-" + string(rune('a'+i))
		article.Date = time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC)
		if _, err := g.WritePost(article); err != nil {
			t.Fatalf("WritePost() error: %v", err)
		}
	}

	draft := "---\nlayout: post\ntitle: Draft\ndate: 2025-03-25 00:00:00 +0000\npublished: false\n---\n\nnot yet\n"
	if err := os.WriteFile(filepath.Join(dir, "2025-03-25-draft.md"), []byte(draft), 0o644); err != nil {
		t.Fatal(err)
	}

	posts, err := g.LoadPosts()
	if err != nil {
		t.Fatalf("LoadPosts() error: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(posts))
	}
	for i := 1; i < len(posts); i++ {
		if posts[i].Date.After(posts[i-1].Date) {
			t.Errorf("posts out of order: %v before %v", posts[i-1].Date, posts[i].Date)
		}
	}
}

func TestLoadPostsMissingDirectory(t *testing.T) {
	g := NewGenerator(filepath.Join(t.TempDir(), "absent"), "https://blog.example.com")

	posts, err := g.LoadPosts()
	if err != nil {
		t.Fatalf("LoadPosts() error: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("expected no posts, got %d", len(posts))
	}
}

func TestParsePostRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("---\ntitle: x\n---\n\nbody\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := NewGenerator(dir, "https://blog.example.com")
	if _, err := g.ParsePost(path); err == nil {
		t.Error("expected error for filename without date prefix")
	}
}

func TestSummarizeTruncates(t *testing.T) {
	long := strings.Repeat("字", 200)
	got := summarize(long, 150)
	if len([]rune(got)) != 153 {
		t.Errorf("expected 150 runes plus ellipsis, got %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
}

func TestWriteSiteConfig(t *testing.T) {
	dir := t.TempDir()
	meta := SiteMeta{
		Title:       "Tech Blog",
		Description: "Articles",
		Author:      "ops",
		URL:         "https://blog.example.com",
	}
	if err := WriteSiteConfig(dir, meta); err != nil {
		t.Fatalf("WriteSiteConfig() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "_config.yml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"title: Tech Blog", "permalink: /:year/:month/:day/:title/", "jekyll-feed"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("config missing %q", want)
		}
	}
}
