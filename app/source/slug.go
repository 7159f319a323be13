package source

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	englishRunRe  = regexp.MustCompile(`[A-Za-z][A-Za-z\s:]*`)
	nonSlugCharRe = regexp.MustCompile(`[^a-z0-9]+`)
	dashRunRe     = regexp.MustCompile(`-{2,}`)
)

// Slugify derives a URL-friendly slug from a title. Titles with an
// English fragment use it; otherwise the slug is a stable digest so the
// same title always maps to the same identifier.
func Slugify(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	if match := englishRunRe.FindString(title); match != "" {
		slug := strings.ToLower(match)
		slug = nonSlugCharRe.ReplaceAllString(slug, "-")
		slug = dashRunRe.ReplaceAllString(slug, "-")
		slug = strings.Trim(slug, "-")
		if slug != "" {
			return slug
		}
	}

	sum := sha256.Sum256([]byte(title))
	return "post-" + hex.EncodeToString(sum[:4])
}
