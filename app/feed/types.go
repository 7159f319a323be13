package feed

import "time"

// Meta is the channel-level feed metadata.
type Meta struct {
	Title       string
	Link        string
	FeedURL     string
	Description string
	Language    string
	Author      string
}

// Item is a normalized feed entry, either built from a generated blog
// post or parsed back out of a published feed.
type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	Categories  []string
	PubDate     time.Time
}
