package storage

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFSStore_PutGetList(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put("gate/cs-2021.json", strings.NewReader(`[1]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put("gate/cs-2021.json", strings.NewReader(`[2]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	rc, err := s.Get("gate/cs-2021.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != `[2]` {
		t.Errorf("expected overwritten payload, got %s", b)
	}
	keys, err := s.List()
	if err != nil || len(keys) != 1 || keys[0] != "gate/cs-2021.json" {
		t.Errorf("unexpected keys %v (%v)", keys, err)
	}
}

func TestFSStore_RejectsEscapingKeys(t *testing.T) {
	s, _ := NewFSStore(t.TempDir())
	for _, k := range []string{"", "..", "../x.json", "/etc/passwd", "a/../../b"} {
		if _, err := s.Put(k, strings.NewReader("x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: expected ErrInvalidKey, got %v", k, err)
		}
	}
	if _, err := s.Get("missing.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
