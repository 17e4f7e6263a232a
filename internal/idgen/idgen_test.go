package idgen

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id, err := New(SessionPrefix)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if !strings.HasPrefix(id, SessionPrefix) {
			t.Errorf("missing prefix: %q", id)
		}
		if len(id) != len(SessionPrefix)+length {
			t.Errorf("unexpected length %d for %q", len(id), id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
