package browser

import "context"

// locate probes the candidate selectors in priority order and returns
// the first one present on the page right now. The selector, not an
// element, is the result: callers re-query through it for every action
// so nothing stale is ever reused.
func locate(ctx context.Context, page Page, role string, candidates []string) (string, error) {
	for _, sel := range candidates {
		found, err := page.Exists(ctx, sel)
		if err != nil {
			return "", err
		}
		if found {
			return sel, nil
		}
	}
	return "", &ElementNotFoundError{Role: role, Candidates: candidates}
}
