package feed

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhangxin15435/rss-autopost/app/blog"
)

// ItemFromPost converts a generated blog post into a feed item. The
// permalink doubles as the GUID.
func ItemFromPost(post blog.Post) Item {
	return Item{
		GUID:        post.URL,
		Title:       post.Title,
		Link:        post.URL,
		Description: post.Description,
		Content:     post.Content,
		Author:      post.Author,
		Categories:  post.Tags,
		PubDate:     post.Date,
	}
}

// WriteSiteFeed renders the posts as RSS and Atom and writes feed.xml
// and atom.xml into the site directory. Both documents are validated
// before being written so a malformed feed never reaches disk.
func WriteSiteFeed(siteDir string, meta Meta, posts []blog.Post) (string, error) {
	items := make([]Item, 0, len(posts))
	for _, post := range posts {
		items = append(items, ItemFromPost(post))
	}

	gen := NewGenerator()
	doc, err := gen.Run(meta, items)
	if err != nil {
		return "", err
	}
	if err := Validate(doc); err != nil {
		return "", err
	}
	if _, _, err := NewParser().Parse([]byte(doc)); err != nil {
		return "", fmt.Errorf("generated feed failed validation: %w", err)
	}

	atomDoc, err := gen.RunAtom(meta, items)
	if err != nil {
		return "", err
	}
	if err := Validate(atomDoc); err != nil {
		return "", err
	}

	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create site directory: %w", err)
	}
	path := filepath.Join(siteDir, "feed.xml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("failed to write feed: %w", err)
	}
	if err := os.WriteFile(filepath.Join(siteDir, "atom.xml"), []byte(atomDoc), 0o644); err != nil {
		return "", fmt.Errorf("failed to write atom feed: %w", err)
	}
	return path, nil
}
