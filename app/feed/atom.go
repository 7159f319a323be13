package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"time"
)

// RunAtom renders the channel and items as an Atom 1.0 document.
func (g *Generator) RunAtom(meta Meta, items []Item) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n")

	g.writeElement(&buf, "title", meta.Title, 2)
	g.writeElement(&buf, "id", meta.Link+"/", 2)
	buf.WriteString(fmt.Sprintf("  <link href=\"%s\" />\n", html.EscapeString(meta.Link)))
	if meta.FeedURL != "" {
		atomURL := strings.Replace(meta.FeedURL, "feed.xml", "atom.xml", 1)
		buf.WriteString(fmt.Sprintf("  <link href=\"%s\" rel=\"self\" />\n", html.EscapeString(atomURL)))
	}

	updated := time.Now()
	if len(items) > 0 && !items[0].PubDate.IsZero() {
		updated = items[0].PubDate
	}
	g.writeElement(&buf, "updated", updated.Format(time.RFC3339), 2)

	if meta.Author != "" {
		buf.WriteString("  <author>\n")
		g.writeElement(&buf, "name", meta.Author, 4)
		buf.WriteString("  </author>\n")
	}

	for _, item := range items {
		g.writeAtomEntry(&buf, item)
	}

	buf.WriteString("</feed>")
	return buf.String(), nil
}

func (g *Generator) writeAtomEntry(buf *bytes.Buffer, item Item) {
	buf.WriteString("  <entry>\n")

	g.writeElement(buf, "title", item.Title, 4)
	g.writeElement(buf, "id", item.GUID, 4)
	if item.Link != "" {
		buf.WriteString(fmt.Sprintf("    <link href=\"%s\" />\n", html.EscapeString(item.Link)))
	}
	g.writeElement(buf, "updated", item.PubDate.Format(time.RFC3339), 4)
	g.writeElement(buf, "summary", item.Description, 4)

	if item.Content != "" {
		buf.WriteString(`    <content type="html"><![CDATA[`)
		buf.WriteString(item.Content)
		buf.WriteString("]]></content>\n")
	}

	if item.Author != "" {
		buf.WriteString("    <author>\n")
		g.writeElement(buf, "name", item.Author, 6)
		buf.WriteString("    </author>\n")
	}

	for _, category := range item.Categories {
		if category != "" {
			buf.WriteString(fmt.Sprintf("    <category term=\"%s\" />\n", html.EscapeString(category)))
		}
	}

	buf.WriteString("  </entry>\n")
}

// Validate checks that a rendered feed is well-formed XML and carries
// the elements aggregators require.
func Validate(doc string) error {
	decoder := xml.NewDecoder(strings.NewReader(doc))
	var required map[string]bool
	for {
		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("feed is not well-formed: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "rss":
			required = map[string]bool{"channel": false, "title": false, "link": false, "description": false}
		case "feed":
			required = map[string]bool{"title": false, "id": false, "updated": false}
		default:
			if required != nil {
				if _, want := required[start.Name.Local]; want {
					required[start.Name.Local] = true
				}
			}
		}
	}

	if required == nil {
		return fmt.Errorf("document is neither RSS nor Atom")
	}
	for name, seen := range required {
		if !seen {
			return fmt.Errorf("feed is missing required element <%s>", name)
		}
	}
	return nil
}
