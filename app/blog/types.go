package blog

import "time"

// Post is a generated blog article parsed from or rendered to a
// front-matter markdown file under the posts directory.
type Post struct {
	Title       string
	Date        time.Time
	Author      string
	Tags        []string
	Categories  []string
	Description string
	Excerpt     string
	Published   bool

	Slug     string
	Content  string
	Filename string
	URL      string
}

// frontMatter is the YAML metadata block at the top of a post file.
type frontMatter struct {
	Layout      string   `yaml:"layout"`
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Author      string   `yaml:"author,omitempty"`
	Tags        []string `yaml:"tags,flow"`
	Categories  []string `yaml:"categories,flow"`
	Description string   `yaml:"description,omitempty"`
	Excerpt     string   `yaml:"excerpt,omitempty"`
	Published   bool     `yaml:"published"`
}

const frontMatterDateLayout = "2006-01-02 15:04:05 -0700"
