package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"
)

// Parser reads a published feed back into normalized items. Used to
// verify generated output and to source the import flow.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Parse parses feed data and returns channel metadata and normalized
// items.
func (p *Parser) Parse(data []byte) (*Meta, []Item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	meta := &Meta{
		Title:       feed.Title,
		Link:        feed.Link,
		FeedURL:     feed.FeedLink,
		Description: feed.Description,
		Language:    feed.Language,
	}

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, p.normalizeItem(item))
	}

	slog.Debug("Parsed feed", "title", meta.Title, "items", len(items))
	return meta, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:        p.coalesce(item.GUID, item.Link),
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Content:     p.coalesce(item.Content, item.Description),
		Categories:  item.Categories,
	}

	if item.PublishedParsed != nil {
		normalized.PubDate = *item.PublishedParsed
	} else {
		normalized.PubDate = time.Now()
	}

	if item.Author != nil {
		normalized.Author = item.Author.Name
	}

	return normalized
}

// coalesce returns the first non-empty string from the provided values.
func (p *Parser) coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
