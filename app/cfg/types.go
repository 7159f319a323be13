package cfg

import "time"

type Cfg struct {
	// Tracking sheet and content sources
	CSVFile     string
	ArticlesDir string
	PostsDir    string
	SiteDir     string

	// Site and feed metadata
	SiteURL         string
	RSSURL          string
	BlogTitle       string
	BlogDescription string
	BlogAuthor      string

	// Publishing behaviour
	AllowRepublish     bool
	DeleteAfterPublish bool
	PublishMethod      string

	// Medium credentials
	Email            string
	Password         string
	IntegrationToken string
	SessionToken     string
	UserID           string

	// Browser automation
	Headless      bool
	TimeoutSec    int
	Retries       int
	CookiesFile   string
	ScreenshotDir string

	// Local bookkeeping
	PublishedFile string

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}

func (c *Cfg) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// HasAPICredentials reports whether the API publish method can run.
func (c *Cfg) HasAPICredentials() bool {
	return c.IntegrationToken != "" || c.SessionToken != ""
}

// HasBrowserCredentials reports whether the interactive publish method
// has at least one viable login path.
func (c *Cfg) HasBrowserCredentials() bool {
	return (c.Email != "" && c.Password != "") || c.SessionToken != ""
}

// ShouldPublish reports whether publishing to Medium is configured for
// the selected method.
func (c *Cfg) ShouldPublish() bool {
	if c.PublishMethod == "api" {
		return c.HasAPICredentials()
	}
	return c.HasBrowserCredentials()
}
