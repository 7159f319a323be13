package browser

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LoginState reports how confident the resolver is that a session is
// established.
type LoginState int

const (
	// LoginConfirmed means a signed-in marker was found on the page.
	LoginConfirmed LoginState = iota
	// LoginAssumed means no marker was found but nothing indicates a
	// signin wall either. The flow proceeds and lets a later stage
	// fail if the session is actually absent.
	LoginAssumed
)

func (s LoginState) String() string {
	if s == LoginConfirmed {
		return "confirmed"
	}
	return "assumed"
}

const mediumHome = "https://medium.com"

// Selectors that only render for a signed-in account.
var signedInSelectors = []string{
	`img[alt*="avatar" i]`,
	`button[aria-label="user menu"]`,
	`a[href*="/me/"]`,
	`[data-testid="headerAvatar"]`,
}

var loginSelectors = struct {
	email    []string
	password []string
	submit   []string
}{
	email: []string{
		`input[name="email"]`,
		`input[type="email"]`,
		`input[autocomplete="email"]`,
	},
	password: []string{
		`input[name="password"]`,
		`input[type="password"]`,
	},
	submit: []string{
		`button[type="submit"]`,
	},
}

// Resolver establishes a Medium session on a page, trying cached
// cookies first, then a configured sid token, then interactive login.
type Resolver struct {
	CookiesFile  string
	SessionToken string
	Email        string
	Password     string
}

// Resolve runs the credential chain. On success the session cookies are
// cached for the next run.
func (r *Resolver) Resolve(ctx context.Context, page Page) (LoginState, error) {
	if r.CookiesFile != "" {
		if state, ok := r.tryCookieFile(ctx, page); ok {
			return state, nil
		}
	}

	if r.SessionToken != "" {
		state, err := r.trySessionToken(ctx, page)
		if err == nil {
			r.cacheCookies(ctx, page)
			return state, nil
		}
		slog.Warn("Session token rejected, falling back", "error", err)
	}

	if r.Email != "" && r.Password != "" {
		state, err := r.loginWithPassword(ctx, page)
		if err != nil {
			return 0, err
		}
		r.cacheCookies(ctx, page)
		return state, nil
	}

	return 0, &AuthenticationError{Reason: "no usable credential (cookies, session token or email/password)"}
}

func (r *Resolver) tryCookieFile(ctx context.Context, page Page) (LoginState, bool) {
	data, err := os.ReadFile(r.CookiesFile)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read cookie cache", "file", r.CookiesFile, "error", err)
		}
		return 0, false
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		slog.Warn("Malformed cookie cache, ignoring", "file", r.CookiesFile, "error", err)
		return 0, false
	}
	if len(cookies) == 0 {
		return 0, false
	}

	if err := page.SetCookies(ctx, cookies); err != nil {
		slog.Warn("Failed to load cached cookies", "error", err)
		return 0, false
	}

	state, err := r.probeSession(ctx, page)
	if err != nil {
		slog.Warn("Cached cookies no longer valid", "error", err)
		return 0, false
	}

	slog.Info("Session restored from cookie cache", "state", state.String())
	return state, true
}

func (r *Resolver) trySessionToken(ctx context.Context, page Page) (LoginState, error) {
	cookie := Cookie{
		Name:     "sid",
		Value:    r.SessionToken,
		Domain:   ".medium.com",
		Path:     "/",
		Expires:  float64(time.Now().Add(180 * 24 * time.Hour).Unix()),
		Secure:   true,
		HTTPOnly: true,
	}
	if err := page.SetCookies(ctx, []Cookie{cookie}); err != nil {
		return 0, err
	}

	state, err := r.probeSession(ctx, page)
	if err != nil {
		return 0, err
	}

	slog.Info("Session established from sid token", "state", state.String())
	return state, nil
}

func (r *Resolver) loginWithPassword(ctx context.Context, page Page) (LoginState, error) {
	if err := page.Navigate(ctx, mediumHome+"/m/signin"); err != nil {
		return 0, err
	}

	// The email sign-in option is behind a chooser on some variants
	// of the page. Missing chooser means the form is already shown.
	_ = page.ClickByText(ctx, "button, a", "Sign in with email")

	emailSel, err := locate(ctx, page, "email input", loginSelectors.email)
	if err != nil {
		return 0, &AuthenticationError{Reason: "signin form not found"}
	}
	if err := page.TypeText(ctx, emailSel, r.Email); err != nil {
		return 0, err
	}

	if submitSel, err := locate(ctx, page, "submit button", loginSelectors.submit); err == nil {
		_ = page.Click(ctx, submitSel)
	}

	passwordSel, err := locate(ctx, page, "password input", loginSelectors.password)
	if err != nil {
		return 0, &AuthenticationError{Reason: "password field not found, account may require email link login"}
	}
	if err := page.TypeText(ctx, passwordSel, r.Password); err != nil {
		return 0, err
	}

	submitSel, err := locate(ctx, page, "submit button", loginSelectors.submit)
	if err != nil {
		return 0, err
	}
	if err := page.Click(ctx, submitSel); err != nil {
		return 0, err
	}

	state, err := r.probeSession(ctx, page)
	if err != nil {
		return 0, &AuthenticationError{Reason: "login form submitted but no session established"}
	}

	slog.Info("Session established from password login", "state", state.String())
	return state, nil
}

// Page texts that only show for a signed-in account.
var signedInTexts = []string{"Your stories", "Following", "Notifications"}

// probeSession loads the home page and decides whether a session is
// present. A signin redirect or a visible sign-in control is a hard
// rejection; a page with no recognizable marker either way downgrades
// to an assumed session.
func (r *Resolver) probeSession(ctx context.Context, page Page) (LoginState, error) {
	if err := page.Navigate(ctx, mediumHome); err != nil {
		return 0, err
	}

	url, err := page.Location(ctx)
	if err != nil {
		return 0, err
	}
	if strings.Contains(url, "/m/signin") || strings.Contains(url, "/m/login") {
		return 0, &AuthenticationError{Reason: "redirected to signin"}
	}

	if sel, err := locate(ctx, page, "signed-in marker", signedInSelectors); err == nil {
		slog.Debug("Signed-in marker found", "selector", sel)
		return LoginConfirmed, nil
	}

	if body, err := page.BodyText(ctx); err == nil {
		for _, text := range signedInTexts {
			if strings.Contains(body, text) {
				slog.Debug("Signed-in page text found", "text", text)
				return LoginConfirmed, nil
			}
		}
	}

	if strings.Contains(url, "/me/") || strings.Contains(url, "/@") {
		return LoginConfirmed, nil
	}

	if found, err := page.Exists(ctx, `a[href*="/m/signin"]`); err == nil && found {
		return 0, &AuthenticationError{Reason: "sign-in control visible, session absent"}
	}

	slog.Warn("No signed-in marker found, assuming session is valid")
	return LoginAssumed, nil
}

// cacheCookies stores the session cookies for the next run. Failures
// only cost the cache, so they are logged and swallowed.
func (r *Resolver) cacheCookies(ctx context.Context, page Page) {
	if r.CookiesFile == "" {
		return
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		slog.Warn("Failed to read cookies for caching", "error", err)
		return
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		slog.Warn("Failed to serialize cookie cache", "error", err)
		return
	}
	if err := os.WriteFile(r.CookiesFile, data, 0o600); err != nil {
		slog.Warn("Failed to write cookie cache", "file", r.CookiesFile, "error", err)
		return
	}

	slog.Debug("Cached session cookies", "file", r.CookiesFile, "count", len(cookies))
}
