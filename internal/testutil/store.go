package testutil

import (
	"testing"

	"github.com/coral-mesh/dwarfdump/internal/store"
)

// NewTestStore opens an in-memory index store that is closed when the test
// completes.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	ctx, cancel := NewTestContext()
	defer cancel()

	s, err := store.Open(ctx, "", NewTestLogger(t))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close test store: %v", err)
		}
	})
	return s
}
