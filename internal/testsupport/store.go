package testsupport

import (
	"testing"

	"nixgen/internal/config"
	"nixgen/internal/generation"
)

// MustOpenStore opens a registry store bound to the test config and closes it
// on cleanup.
func MustOpenStore(t *testing.T, cfg *config.Config) *generation.Store {
	t.Helper()
	store, err := generation.Open(cfg)
	if err != nil {
		t.Fatalf("open registry store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close registry store: %v", err)
		}
	})
	return store
}
