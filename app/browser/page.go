package browser

import "context"

// Cookie is a browser session cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
}

// Page is the browser surface the import flow drives. Selector-taking
// methods query the live DOM on every call, so a selector that matched
// a moment ago may legitimately fail now; callers re-locate instead of
// holding on to results.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)

	Exists(ctx context.Context, selector string) (bool, error)
	Enabled(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	ClickByText(ctx context.Context, selector, text string) error

	TypeText(ctx context.Context, selector, text string) error
	SetEditableText(ctx context.Context, selector, text string) error
	ReadText(ctx context.Context, selector string) (string, error)
	BodyText(ctx context.Context) (string, error)

	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error

	Screenshot(ctx context.Context, path string) error
}
