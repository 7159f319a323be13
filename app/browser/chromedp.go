package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// LaunchConfig controls the Chrome instance backing a session.
type LaunchConfig struct {
	Headless  bool
	UserAgent string
}

// Browser owns a Chrome process and the tab the import flow drives.
// Close always tears the process down, including after panics in the
// flow above it.
type Browser struct {
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tabCtx      context.Context
}

// Launch starts Chrome and opens a blank tab.
func Launch(ctx context.Context, cfg LaunchConfig) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 900),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so launch failures
	// surface here instead of on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: failed to launch chrome: %w", err)
	}

	slog.Debug("Launched browser", "headless", cfg.Headless)
	return &Browser{
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		tabCtx:      tabCtx,
	}, nil
}

// Page returns the driving tab.
func (b *Browser) Page() Page {
	return &chromedpPage{tabCtx: b.tabCtx}
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.tabCancel()
	b.allocCancel()
}

// chromedpPage implements Page on a chromedp tab context. Every call
// re-queries the DOM; nothing element-shaped is cached between calls.
type chromedpPage struct {
	tabCtx context.Context
}

func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := p.tabCtx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(p.tabCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("browser: failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *chromedpPage) Location(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("browser: failed to read location: %w", err)
	}
	return url, nil
}

// jsString encodes a Go string as a JS string literal.
func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func (p *chromedpPage) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	script := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return false, fmt.Errorf("browser: failed to probe %q: %w", selector, err)
	}
	return found, nil
}

func (p *chromedpPage) Enabled(ctx context.Context, selector string) (bool, error) {
	var enabled bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el !== null && !el.disabled;
	})()`, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &enabled)); err != nil {
		return false, fmt.Errorf("browser: failed to probe %q: %w", selector, err)
	}
	return enabled, nil
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return &StaleElementError{Selector: selector}
	}
	return nil
}

// ClickByText clicks the first element matching selector whose text
// contains the given fragment.
func (p *chromedpPage) ClickByText(ctx context.Context, selector, text string) error {
	var clicked bool
	script := fmt.Sprintf(`(() => {
		const els = document.querySelectorAll(%s);
		for (const el of els) {
			if ((el.textContent || '').includes(%s)) {
				el.click();
				return true;
			}
		}
		return false;
	})()`, jsString(selector), jsString(text))
	if err := p.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("browser: failed to click %q by text: %w", selector, err)
	}
	if !clicked {
		return &ElementNotFoundError{Role: "text " + text, Candidates: []string{selector}}
	}
	return nil
}

func (p *chromedpPage) TypeText(ctx context.Context, selector, text string) error {
	err := p.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return &StaleElementError{Selector: selector}
	}
	return nil
}

// SetEditableText replaces the content of an editable element and fires
// an input event so the surrounding editor notices the change.
func (p *chromedpPage) SetEditableText(ctx context.Context, selector, text string) error {
	var ok bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (el === null) return false;
		el.focus();
		if ('value' in el && el.tagName !== 'DIV') {
			el.value = %s;
		} else {
			el.textContent = %s;
		}
		el.dispatchEvent(new Event('input', {bubbles: true}));
		return true;
	})()`, jsString(selector), jsString(text), jsString(text))
	if err := p.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("browser: failed to set text on %q: %w", selector, err)
	}
	if !ok {
		return &StaleElementError{Selector: selector}
	}
	return nil
}

func (p *chromedpPage) ReadText(ctx context.Context, selector string) (string, error) {
	var text string
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (el === null) return '';
		return ('value' in el && el.tagName !== 'DIV' ? el.value : el.textContent) || '';
	})()`, jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &text)); err != nil {
		return "", &StaleElementError{Selector: selector}
	}
	return text, nil
}

func (p *chromedpPage) BodyText(ctx context.Context) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text)); err != nil {
		return "", fmt.Errorf("browser: failed to read page text: %w", err)
	}
	return text, nil
}

func (p *chromedpPage) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		raw, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			cookies = append(cookies, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("browser: failed to read cookies: %w", err)
	}
	return cookies, nil
}

func (p *chromedpPage) SetCookies(ctx context.Context, cookies []Cookie) error {
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.Expires > 0 {
				param = param.WithExpires(&expires)
			}
			if err := param.Do(ctx); err != nil {
				return fmt.Errorf("cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("browser: failed to set cookies: %w", err)
	}
	return nil
}

func (p *chromedpPage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("browser: failed to capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("browser: failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("browser: failed to write screenshot: %w", err)
	}
	return nil
}
