package medium

import (
	"fmt"
	"time"
)

// ClientConfig carries everything the API client needs. Exactly one of
// SessionToken (cookie mode) or IntegrationToken (official API mode)
// should be set; cookie mode wins when both are.
type ClientConfig struct {
	RSSURL           string
	SessionToken     string
	IntegrationToken string
	UserID           string
	UserAgent        string

	// Endpoint overrides, empty means production.
	SiteBaseURL string
	APIBaseURL  string

	Timeout time.Duration
}

// Identity is the authenticated Medium account.
type Identity struct {
	ID       string
	Username string
	Name     string
}

// Draft is a created Medium post.
type Draft struct {
	ID    string
	URL   string
	Title string
}

// Stats summarizes one API submission run.
type Stats struct {
	Total     int
	Submitted int
	Skipped   int
	Failed    int
}

// HTTPError is a non-2xx response from a Medium endpoint.
type HTTPError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("medium: %s returned %d: %s", e.Endpoint, e.Status, e.Body)
}
