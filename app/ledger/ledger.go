// Package ledger tracks which articles have already been submitted to
// Medium so repeated runs stay idempotent.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

type fileFormat struct {
	Published   []string `json:"published"`
	LastUpdated string   `json:"lastUpdated"`
}

// Ledger is an in-memory set of published keys backed by a JSON file.
// Mutations are buffered until Persist is called.
type Ledger struct {
	path string
	keys map[string]struct{}
}

// New loads the ledger at path. A missing or unreadable file yields an
// empty ledger; losing history only risks duplicate submissions, which
// the caller already tolerates.
func New(path string) *Ledger {
	l := &Ledger{
		path: path,
		keys: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read publish ledger, starting empty", "file", path, "error", err)
		}
		return l
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		slog.Warn("Malformed publish ledger, starting empty", "file", path, "error", err)
		return l
	}

	for _, k := range f.Published {
		if k != "" {
			l.keys[k] = struct{}{}
		}
	}
	return l
}

// Has reports whether any of the given keys is recorded as published.
func (l *Ledger) Has(keys ...string) bool {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := l.keys[k]; ok {
			return true
		}
	}
	return false
}

// Add records the given keys as published. The change is visible to Has
// immediately but only reaches disk on Persist.
func (l *Ledger) Add(keys ...string) {
	for _, k := range keys {
		if k != "" {
			l.keys[k] = struct{}{}
		}
	}
}

// Size returns the number of recorded keys.
func (l *Ledger) Size() int {
	return len(l.keys)
}

// Persist writes the ledger back to its file.
func (l *Ledger) Persist() error {
	f := fileFormat{
		Published:   make([]string, 0, len(l.keys)),
		LastUpdated: time.Now().Format(time.RFC3339),
	}
	for k := range l.keys {
		f.Published = append(f.Published, k)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize ledger: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}

	slog.Debug("Persisted publish ledger", "file", l.path, "entries", len(f.Published))
	return nil
}
