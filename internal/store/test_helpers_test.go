package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/relaymigrate/internal/domain"
)

var testAdmin = addr(0xad)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createInitializedStore creates a store bound to testAdmin.
func createInitializedStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	if err := s.Init(context.Background(), testAdmin); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	return s
}

// addr returns an address whose last byte is b.
func addr(b byte) domain.Address {
	var a domain.Address
	a[19] = b
	return a
}
