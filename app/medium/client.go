package medium

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	defaultSiteBaseURL = "https://medium.com"
	defaultAPIBaseURL  = "https://api.medium.com"

	// Medium prefixes internal API responses with a JSON hijacking
	// guard that has to be stripped before decoding.
	jsonGuardPrefix = "])}while(1);</x>"
)

const contentFooter = "\n\n---\n\n*本文由RSS自动发布系统生成*"

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// Client talks to Medium over HTTP, either through the internal
// cookie-authenticated endpoints or the official integration API.
type Client struct {
	cfg      ClientConfig
	http     *http.Client
	identity *Identity

	// pacing is the pause between consecutive submissions, shortened
	// in tests.
	pacing time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cmp.Or(cfg.Timeout, 30*time.Second),
		},
		pacing: submitPacing,
	}
}

func (c *Client) siteBaseURL() string {
	return cmp.Or(c.cfg.SiteBaseURL, defaultSiteBaseURL)
}

func (c *Client) apiBaseURL() string {
	return cmp.Or(c.cfg.APIBaseURL, defaultAPIBaseURL)
}

func (c *Client) cookieMode() bool {
	return c.cfg.SessionToken != ""
}

// VerifyIdentity checks the configured credential against Medium and
// caches the resolved account.
func (c *Client) VerifyIdentity(ctx context.Context) (*Identity, error) {
	if c.identity != nil {
		return c.identity, nil
	}

	var (
		identity *Identity
		err      error
	)
	if c.cookieMode() {
		identity, err = c.verifyCookie(ctx)
	} else if c.cfg.IntegrationToken != "" {
		identity, err = c.verifyToken(ctx)
	} else {
		return nil, fmt.Errorf("medium: no session token or integration token configured")
	}
	if err != nil {
		return nil, err
	}

	if c.cfg.UserID != "" {
		identity.ID = c.cfg.UserID
	}

	slog.Info("Verified Medium identity", "username", identity.Username, "mode", c.modeName())
	c.identity = identity
	return identity, nil
}

func (c *Client) modeName() string {
	if c.cookieMode() {
		return "cookie"
	}
	return "token"
}

func (c *Client) verifyCookie(ctx context.Context) (*Identity, error) {
	body, err := c.do(ctx, http.MethodGet, c.siteBaseURL()+"/_/api/users/self", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Payload struct {
			User struct {
				ID       string `json:"userId"`
				Username string `json:"username"`
				Name     string `json:"name"`
			} `json:"user"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("medium: failed to decode identity response: %w", err)
	}
	if resp.Payload.User.ID == "" {
		return nil, fmt.Errorf("medium: session cookie rejected")
	}

	return &Identity{
		ID:       resp.Payload.User.ID,
		Username: resp.Payload.User.Username,
		Name:     resp.Payload.User.Name,
	}, nil
}

func (c *Client) verifyToken(ctx context.Context) (*Identity, error) {
	body, err := c.do(ctx, http.MethodGet, c.apiBaseURL()+"/v1/me", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("medium: failed to decode identity response: %w", err)
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("medium: integration token rejected")
	}

	return &Identity{
		ID:       resp.Data.ID,
		Username: resp.Data.Username,
		Name:     resp.Data.Name,
	}, nil
}

// CreateDraft submits a markdown draft to the authenticated account.
func (c *Client) CreateDraft(ctx context.Context, title, content, canonicalURL string, tags []string) (*Draft, error) {
	identity, err := c.VerifyIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if len(tags) > 5 {
		tags = tags[:5]
	}
	content = NormalizeContent(content)

	if c.cookieMode() {
		return c.createDraftCookie(ctx, title, content, canonicalURL, tags)
	}
	return c.createDraftToken(ctx, identity.ID, title, content, canonicalURL, tags)
}

func (c *Client) createDraftCookie(ctx context.Context, title, content, canonicalURL string, tags []string) (*Draft, error) {
	payload := map[string]any{
		"title":           title,
		"content":         content,
		"contentFormat":   "markdown",
		"tags":            tags,
		"canonicalUrl":    canonicalURL,
		"publishStatus":   "draft",
		"notifyFollowers": false,
	}
	body, err := c.do(ctx, http.MethodPost, c.siteBaseURL()+"/_/api/posts", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Payload struct {
			Value struct {
				ID         string `json:"id"`
				UniqueSlug string `json:"uniqueSlug"`
			} `json:"value"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("medium: failed to decode draft response: %w", err)
	}

	draft := &Draft{ID: resp.Payload.Value.ID, Title: title}
	if resp.Payload.Value.ID != "" {
		draft.URL = fmt.Sprintf("%s/p/%s", c.siteBaseURL(), resp.Payload.Value.ID)
	}
	return draft, nil
}

func (c *Client) createDraftToken(ctx context.Context, userID, title, content, canonicalURL string, tags []string) (*Draft, error) {
	payload := map[string]any{
		"title":           title,
		"contentFormat":   "markdown",
		"content":         content,
		"tags":            tags,
		"canonicalUrl":    canonicalURL,
		"publishStatus":   "draft",
		"notifyFollowers": false,
	}
	endpoint := fmt.Sprintf("%s/v1/users/%s/posts", c.apiBaseURL(), userID)
	body, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			ID    string `json:"id"`
			URL   string `json:"url"`
			Title string `json:"title"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("medium: failed to decode draft response: %w", err)
	}

	return &Draft{
		ID:    resp.Data.ID,
		URL:   resp.Data.URL,
		Title: cmp.Or(resp.Data.Title, title),
	}, nil
}

// do performs one request and returns the response body with Medium's
// JSON guard prefix stripped.
func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("medium: failed to serialize request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("medium: failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookieMode() {
		req.Header.Set("Cookie", "sid="+c.cfg.SessionToken)
		req.Header.Set("X-Xsrf-Token", "1")
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.IntegrationToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("medium: request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("medium: failed to read response from %s: %w", endpoint, err)
	}

	text := strings.TrimPrefix(string(body), jsonGuardPrefix)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Status:   resp.StatusCode,
			Endpoint: endpoint,
			Body:     truncate(text, 300),
		}
	}

	return []byte(text), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// NormalizeContent prepares markdown for submission: line endings are
// unified, runs of blank lines collapsed and the generator footer
// appended.
func NormalizeContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = blankRunRe.ReplaceAllString(content, "\n\n")
	content = strings.TrimSpace(content)
	return content + contentFooter
}

// ContentFooter returns the footer appended to every submitted article.
func ContentFooter() string {
	return strings.TrimPrefix(contentFooter, "\n\n")
}
