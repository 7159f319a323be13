package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Tracking sheet and content sources
	CSVFile     string `long:"csv-file" env:"CSV_FILE" default:"articles/内容库_发布数据@zc_发布情况.csv" description:"Tracking CSV file"`
	ArticlesDir string `long:"articles-dir" env:"ARTICLES_DIR" default:"articles" description:"Directory containing companion article files"`
	PostsDir    string `long:"posts-dir" env:"POSTS_DIR" default:"_posts" description:"Output directory for generated posts"`
	SiteDir     string `long:"site-dir" env:"SITE_DIR" default:"_site" description:"Jekyll site build directory"`

	// Site and feed metadata
	SiteURL         string `long:"site-url" env:"SITE_URL" default:"https://zhangxin15435.github.io/rss_autopost" description:"Public base URL of the blog"`
	RSSURL          string `long:"rss-url" env:"RSS_URL" default:"https://zhangxin15435.github.io/rss_autopost/feed.xml" description:"Public URL of the generated RSS feed"`
	BlogTitle       string `long:"blog-title" env:"BLOG_TITLE" default:"技术博客" description:"Blog title"`
	BlogDescription string `long:"blog-description" env:"BLOG_DESCRIPTION" default:"Context Engineering and AI Development Blog" description:"Blog description"`
	BlogAuthor      string `long:"blog-author" env:"BLOG_AUTHOR" default:"Blog Author" description:"Default article author"`

	// Publishing behaviour
	AllowRepublish     bool   `long:"allow-republish" env:"ALLOW_REPUBLISH" description:"Make already-published rows eligible again"`
	DeleteAfterPublish bool   `long:"delete-after-publish" env:"DELETE_AFTER_PUBLISH" description:"Remove tracking row and companion file after a successful publish"`
	PublishMethod      string `long:"publish-method" env:"MEDIUM_PUBLISH_METHOD" default:"browser" choice:"browser" choice:"api" description:"Medium publish strategy"`

	// Medium credentials
	Email            string `long:"medium-email" env:"MEDIUM_EMAIL" description:"Medium account email (interactive login)"`
	Password         string `long:"medium-password" env:"MEDIUM_PASSWORD" description:"Medium account password (interactive login)"`
	IntegrationToken string `long:"medium-token" env:"MEDIUM_INTEGRATION_TOKEN" description:"Medium integration token (official API)"`
	SessionToken     string `long:"medium-session" env:"MEDIUM_SESSION_TOKEN" description:"Medium sid session cookie value"`
	UserID           string `long:"medium-user-id" env:"MEDIUM_USER_ID" description:"Medium user id (optional, discovered when empty)"`

	// Browser automation
	Headless      string `long:"headless" env:"MEDIUM_HEADLESS" default:"true" choice:"true" choice:"false" description:"Run the browser headless"`
	TimeoutSec    int    `long:"timeout" env:"MEDIUM_TIMEOUT" default:"30" description:"Per-action timeout in seconds"`
	Retries       int    `long:"retries" env:"MEDIUM_RETRIES" default:"3" description:"Publish attempt retry count"`
	CookiesFile   string `long:"cookies-file" env:"COOKIES_FILE" default:"medium_cookies.json" description:"Cached session cookies file"`
	ScreenshotDir string `long:"screenshot-dir" env:"SCREENSHOT_DIR" default:"debug" description:"Directory for diagnostic screenshots"`

	// Local bookkeeping
	PublishedFile string `long:"published-file" env:"PUBLISHED_FILE" default:"published_articles.json" description:"Publish ledger file"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS-to-Medium-Publisher/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load parses configuration from a .env file (when present), process
// environment variables and command-line flags. The returned slice
// holds the remaining positional arguments (the subcommand).
func Load() (*Cfg, []string, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.Usage = "[OPTIONS] [command]"

	args, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil, nil
			}
		}
		return nil, nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		CSVFile:            raw.CSVFile,
		ArticlesDir:        raw.ArticlesDir,
		PostsDir:           raw.PostsDir,
		SiteDir:            raw.SiteDir,
		SiteURL:            raw.SiteURL,
		RSSURL:             raw.RSSURL,
		BlogTitle:          raw.BlogTitle,
		BlogDescription:    raw.BlogDescription,
		BlogAuthor:         raw.BlogAuthor,
		AllowRepublish:     raw.AllowRepublish,
		DeleteAfterPublish: raw.DeleteAfterPublish,
		PublishMethod:      raw.PublishMethod,
		Email:              raw.Email,
		Password:           raw.Password,
		IntegrationToken:   raw.IntegrationToken,
		SessionToken:       raw.SessionToken,
		UserID:             raw.UserID,
		Headless:           raw.Headless != "false",
		TimeoutSec:         raw.TimeoutSec,
		Retries:            raw.Retries,
		CookiesFile:        raw.CookiesFile,
		ScreenshotDir:      raw.ScreenshotDir,
		PublishedFile:      raw.PublishedFile,
		UserAgent:          raw.UserAgent,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	globalCfg = cfg

	return cfg, args, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}
