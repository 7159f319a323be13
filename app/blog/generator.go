package blog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhangxin15435/rss-autopost/app/source"
)

// Generator renders tracking-sheet articles into Jekyll post files and
// parses them back for feed generation.
type Generator struct {
	postsDir string
	siteURL  string
}

func NewGenerator(postsDir, siteURL string) *Generator {
	return &Generator{
		postsDir: postsDir,
		siteURL:  strings.TrimSuffix(siteURL, "/"),
	}
}

var (
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	sentenceRe   = regexp.MustCompile(`([。！？])\s*([A-Za-z\p{Han}])`)
	postNameRe   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-(.+)\.md$`)
	markdownLink = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)
	markdownImg  = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	headingRe    = regexp.MustCompile(`(?m)^#+.*$`)
)

// WritePost renders one article to <date>-<slug>.md and returns the
// resulting post with its permalink.
func (g *Generator) WritePost(article source.Article) (Post, error) {
	if err := os.MkdirAll(g.postsDir, 0o755); err != nil {
		return Post{}, fmt.Errorf("failed to create posts directory: %w", err)
	}

	content := cleanContent(article.Content)
	post := Post{
		Title:       article.Title,
		Date:        article.Date,
		Author:      article.Author,
		Tags:        article.Tags,
		Categories:  []string{"blog"},
		Description: summarize(content, 150),
		Excerpt:     summarize(content, 80),
		Published:   true,
		Slug:        article.Slug,
		Content:     content,
	}
	post.Filename = fmt.Sprintf("%s-%s.md", post.Date.Format("2006-01-02"), post.Slug)
	post.URL = g.PostURL(post)

	fm := frontMatter{
		Layout:      "post",
		Title:       post.Title,
		Date:        post.Date.Format(frontMatterDateLayout),
		Author:      post.Author,
		Tags:        post.Tags,
		Categories:  post.Categories,
		Description: post.Description,
		Excerpt:     post.Excerpt,
		Published:   true,
	}
	meta, err := yaml.Marshal(&fm)
	if err != nil {
		return Post{}, fmt.Errorf("failed to render front matter: %w", err)
	}

	doc := fmt.Sprintf("---\n%s---\n\n%s\n", meta, content)
	path := filepath.Join(g.postsDir, post.Filename)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return Post{}, fmt.Errorf("failed to write post: %w", err)
	}

	slog.Info("Created post", "file", post.Filename)
	return post, nil
}

// ParsePost reads a post file back into a Post. Files that do not
// follow the <date>-<slug>.md naming are rejected.
func (g *Generator) ParsePost(path string) (Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Post{}, fmt.Errorf("failed to read post: %w", err)
	}

	body, rawMeta := source.StripFrontMatter(string(data))
	var fm frontMatter
	if rawMeta != "" {
		if err := yaml.Unmarshal([]byte(rawMeta), &fm); err != nil {
			return Post{}, fmt.Errorf("invalid front matter in %s: %w", path, err)
		}
	}

	name := filepath.Base(path)
	m := postNameRe.FindStringSubmatch(name)
	if m == nil {
		return Post{}, fmt.Errorf("post filename %q does not match <date>-<slug>.md", name)
	}

	post := Post{
		Title:       fm.Title,
		Author:      fm.Author,
		Tags:        fm.Tags,
		Categories:  fm.Categories,
		Description: fm.Description,
		Excerpt:     fm.Excerpt,
		Published:   fm.Published,
		Slug:        m[2],
		Content:     strings.TrimSpace(body),
		Filename:    name,
	}
	if post.Title == "" {
		post.Title = strings.ReplaceAll(m[2], "-", " ")
	}

	if fm.Date != "" {
		if t, err := time.Parse(frontMatterDateLayout, fm.Date); err == nil {
			post.Date = t
		}
	}
	if post.Date.IsZero() {
		t, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			return Post{}, fmt.Errorf("invalid date in filename %q: %w", name, err)
		}
		post.Date = t
	}

	post.URL = g.PostURL(post)
	return post, nil
}

// LoadPosts parses every post file, skipping unpublished or malformed
// ones, newest first.
func (g *Generator) LoadPosts() ([]Post, error) {
	entries, err := os.ReadDir(g.postsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read posts directory: %w", err)
	}

	var posts []Post
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		post, err := g.ParsePost(filepath.Join(g.postsDir, e.Name()))
		if err != nil {
			slog.Warn("Skipping unparsable post", "file", e.Name(), "error", err)
			continue
		}
		if !post.Published {
			continue
		}
		posts = append(posts, post)
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].Date.After(posts[j].Date)
	})
	return posts, nil
}

// PostURL builds the Jekyll-style permalink for a post.
func (g *Generator) PostURL(post Post) string {
	return fmt.Sprintf("%s/%s/%s/",
		g.siteURL, post.Date.Format("2006/01/02"), post.Slug)
}

// cleanContent normalizes sheet content for publication: curly quotes
// straightened, runs of blank lines collapsed, paragraph breaks added
// after CJK sentence endings.
func cleanContent(content string) string {
	replacer := strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		"\r\n", "\n", "\r", "\n",
	)
	content = replacer.Replace(content)
	content = sentenceRe.ReplaceAllString(content, "$1\n\n$2")
	content = blankRunRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// summarize produces a plain-text digest of markdown content.
func summarize(content string, limit int) string {
	cleaned := markdownImg.ReplaceAllString(content, "")
	cleaned = markdownLink.ReplaceAllString(cleaned, "")
	cleaned = headingRe.ReplaceAllString(cleaned, "")
	cleaned = strings.NewReplacer("*", "", "_", "", "`", "", "\n", " ").Replace(cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	runes := []rune(cleaned)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return cleaned
}
