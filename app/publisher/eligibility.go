package publisher

import (
	"strings"

	"github.com/zhangxin15435/rss-autopost/app/source"
)

// IsPublishable decides whether a tracking row is ready to go out. The
// returned reason names the first failed gate for logging.
func IsPublishable(a source.Article, allowRepublish bool) (bool, string) {
	if strings.TrimSpace(a.Title) == "" {
		return false, "blank title"
	}
	if !strings.Contains(a.Status, source.WorkflowMarker) {
		return false, "not marked for the publish workflow"
	}
	if !strings.Contains(strings.ToLower(a.Channels), "medium") {
		return false, "medium not in channels"
	}
	if a.ContentFile != "" && !a.FileResolved {
		return false, "companion file unresolved"
	}
	if !allowRepublish && a.Completed == source.PublishedSentinel {
		return false, "already published"
	}
	return true, ""
}

// FilterPublishable returns the articles that pass every gate.
func FilterPublishable(articles []source.Article, allowRepublish bool) []source.Article {
	eligible := make([]source.Article, 0, len(articles))
	for _, a := range articles {
		if ok, _ := IsPublishable(a, allowRepublish); ok {
			eligible = append(eligible, a)
		}
	}
	return eligible
}
