package kv

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, name string, s Store) {
	t.Run(name, func(t *testing.T) {
		if _, ok, err := s.Get("missing"); ok || err != nil {
			t.Errorf("Expected missing key, got ok=%v err=%v", ok, err)
		}

		if err := s.Set("a:1", []byte(`{"x":1}`)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		s.Set("a:2", []byte(`[1,2]`))
		s.Set("b:1", []byte(`"v"`))

		v, ok, err := s.Get("a:1")
		if !ok || err != nil || string(v) != `{"x":1}` {
			t.Errorf("Expected stored value, got %s ok=%v err=%v", v, ok, err)
		}

		keys, _ := s.Keys("a:")
		if fmt.Sprint(keys) != "[a:1 a:2]" {
			t.Errorf("Expected [a:1 a:2], got %v", keys)
		}

		if err := s.Delete("a:1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, ok, _ := s.Get("a:1"); ok {
			t.Error("Expected key deleted")
		}
		if err := s.Delete("a:1"); err != nil {
			t.Errorf("Expected deleting missing key to succeed, got %v", err)
		}
	})
}

// TestStores runs the shared contract against each implementation
func TestStores(t *testing.T) {
	testStore(t, "memory", NewMemoryStore())

	fs, err := OpenFile(filepath.Join(t.TempDir(), "nested", "data.json"))
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	testStore(t, "file", fs)
}

// TestFileStorePersists verifies values survive reopening
func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, _ := OpenFile(path)
	if err := s.Set("k", []byte(`{"n":42}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	v, ok, _ := reopened.Get("k")
	if !ok || string(v) != `{"n":42}` {
		t.Errorf("Expected persisted value, got %s", v)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected only the data file, found %d entries", len(entries))
	}
}

// TestFileStoreRejectsNonJSON verifies values must be JSON
func TestFileStoreRejectsNonJSON(t *testing.T) {
	s, _ := OpenFile(filepath.Join(t.TempDir(), "data.json"))
	if err := s.Set("k", []byte("not json")); err == nil {
		t.Error("Expected error for non-JSON value")
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Error("Expected nothing stored")
	}
}

// TestFileStoreCorrupt verifies a broken document is reported
func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	os.WriteFile(path, []byte("{broken"), 0644)
	if _, err := OpenFile(path); err == nil {
		t.Error("Expected decode error")
	}
}
