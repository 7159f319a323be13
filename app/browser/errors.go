package browser

import "fmt"

// ElementNotFoundError means none of the candidate selectors matched
// the current page.
type ElementNotFoundError struct {
	Role       string
	Candidates []string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("browser: no %s element found (tried %d selectors)", e.Role, len(e.Candidates))
}

// StaleElementError means a previously located element vanished before
// it could be used. Callers are expected to re-locate and retry.
type StaleElementError struct {
	Selector string
}

func (e *StaleElementError) Error() string {
	return fmt.Sprintf("browser: element %q went stale", e.Selector)
}

// AuthenticationError means a Medium session could not be established.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("browser: authentication failed: %s", e.Reason)
}

// StageError pins a failure to one stage of the import flow so retries
// and diagnostics can name where things broke.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("browser: stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
