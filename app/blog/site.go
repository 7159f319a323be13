package blog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SiteMeta is the blog-level metadata written into the Jekyll site
// configuration and feed headers.
type SiteMeta struct {
	Title       string
	Description string
	Author      string
	URL         string
}

type jekyllConfig struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Author      string   `yaml:"author"`
	URL         string   `yaml:"url"`
	BaseURL     string   `yaml:"baseurl"`
	Permalink   string   `yaml:"permalink"`
	Markdown    string   `yaml:"markdown"`
	Theme       string   `yaml:"theme"`
	Plugins     []string `yaml:"plugins,flow"`
	Encoding    string   `yaml:"encoding"`
}

// WriteSiteConfig writes _config.yml into the site directory.
func WriteSiteConfig(siteDir string, meta SiteMeta) error {
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return fmt.Errorf("failed to create site directory: %w", err)
	}

	cfg := jekyllConfig{
		Title:       meta.Title,
		Description: meta.Description,
		Author:      meta.Author,
		URL:         meta.URL,
		BaseURL:     "",
		Permalink:   "/:year/:month/:day/:title/",
		Markdown:    "kramdown",
		Theme:       "minima",
		Plugins:     []string{"jekyll-feed"},
		Encoding:    "utf-8",
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to render site config: %w", err)
	}

	path := filepath.Join(siteDir, "_config.yml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write site config: %w", err)
	}

	slog.Debug("Wrote site config", "file", path)
	return nil
}

// WriteIndex writes a landing page listing the given posts, newest
// first.
func WriteIndex(siteDir string, meta SiteMeta, posts []Post) error {
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return fmt.Errorf("failed to create site directory: %w", err)
	}

	var b []byte
	b = append(b, "---\nlayout: default\ntitle: "+meta.Title+"\n---\n\n"...)
	b = append(b, "# "+meta.Title+"\n\n"...)
	if meta.Description != "" {
		b = append(b, meta.Description+"\n\n"...)
	}
	for _, p := range posts {
		line := fmt.Sprintf("- [%s](%s) <small>%s</small>\n",
			p.Title, p.URL, p.Date.Format("2006-01-02"))
		b = append(b, line...)
	}

	path := filepath.Join(siteDir, "index.md")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write index page: %w", err)
	}

	slog.Debug("Wrote index page", "file", path, "posts", len(posts))
	return nil
}
