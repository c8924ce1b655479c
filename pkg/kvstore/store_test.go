package kvstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "kv.list")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := s.Get("odid"); ok {
		t.Fatal("new store should be empty")
	}
	if err := s.Set("odid", "abc-123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("other", "value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Delete("other"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if v, ok := reopened.Get("odid"); !ok || v != "abc-123" {
		t.Errorf("expected persisted value, got %q %v", v, ok)
	}
	if _, ok := reopened.Get("other"); ok {
		t.Error("deleted key came back")
	}
}

func TestGetOrCreate(t *testing.T) {
	s, _ := Open(filepath.Join(t.TempDir(), "kv.list"))

	calls := 0
	create := func() string {
		calls++
		return "generated"
	}
	first, err := s.GetOrCreate("odid", create)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	second, _ := s.GetOrCreate("odid", create)
	if first != "generated" || second != first || calls != 1 {
		t.Errorf("expected one generated value, got %q %q after %d calls", first, second, calls)
	}
}

func TestInvalidEntriesAndMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.list")
	if err := os.WriteFile(path, []byte("good => 1\nbroken line\n => empty key\n"), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if v, ok := s.Get("good"); !ok || v != "1" {
		t.Errorf("expected good=1, got %q", v)
	}
	if _, ok := s.Get("broken line"); ok {
		t.Error("malformed line should be skipped")
	}

	if err := s.Set("a => b", "c"); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("expected ErrInvalidEntry, got %v", err)
	}
	if err := s.Set("key", "multi\nline"); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("expected ErrInvalidEntry, got %v", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := s.Get("good"); ok {
		t.Error("Clear left entries behind")
	}
}
