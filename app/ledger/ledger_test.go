package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAddVisibleBeforePersist(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "published.json"))

	if l.Has("guid-1") {
		t.Error("empty ledger should not contain guid-1")
	}

	l.Add("guid-1", "文章标题")
	if !l.Has("guid-1") {
		t.Error("expected guid-1 after Add")
	}
	if !l.Has("missing", "文章标题") {
		t.Error("expected match on any provided key")
	}
	if l.Size() != 2 {
		t.Errorf("Size() = %d, expected 2", l.Size())
	}
}

func TestPersistReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "published.json")

	l := New(path)
	l.Add("https://blog.example.com/2025/03/14/post-a/", "Post A")
	if err := l.Persist(); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"published"`) || !strings.Contains(string(data), `"lastUpdated"`) {
		t.Errorf("unexpected ledger format: %s", data)
	}

	reloaded := New(path)
	if !reloaded.Has("Post A") || !reloaded.Has("https://blog.example.com/2025/03/14/post-a/") {
		t.Error("reloaded ledger lost entries")
	}
	if reloaded.Size() != 2 {
		t.Errorf("Size() = %d, expected 2", reloaded.Size())
	}
}

func TestMalformedFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "published.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(path)
	if l.Size() != 0 {
		t.Errorf("expected empty ledger, got %d entries", l.Size())
	}

	l.Add("guid-1")
	if err := l.Persist(); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}
	if !New(path).Has("guid-1") {
		t.Error("expected ledger recovered after rewrite")
	}
}

func TestEmptyKeysIgnored(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "published.json"))
	l.Add("", "")
	if l.Size() != 0 {
		t.Errorf("expected empty keys ignored, Size() = %d", l.Size())
	}
	if l.Has("") {
		t.Error("Has(\"\") should be false")
	}
}
