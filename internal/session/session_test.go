package session

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"maunium.net/go/mautrix/id"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "session.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_NextBatchRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	user := id.UserID("@warden:example.org")

	if got, _ := s.LoadNextBatch(ctx, user); got != "" {
		t.Errorf("Expected empty token initially, got %q", got)
	}

	s.SaveNextBatch(ctx, user, "s12345_67890")
	if got, _ := s.LoadNextBatch(ctx, user); got != "s12345_67890" {
		t.Errorf("LoadNextBatch() = %q", got)
	}

	// Overwrite keeps the latest value.
	s.SaveNextBatch(ctx, user, "s99999_00001")
	if got, _ := s.LoadNextBatch(ctx, user); got != "s99999_00001" {
		t.Errorf("LoadNextBatch() after overwrite = %q", got)
	}
}

func TestStore_FilterIDRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	user := id.UserID("@warden:example.org")

	s.SaveFilterID(ctx, user, "filter-1")
	if got, _ := s.LoadFilterID(ctx, user); got != "filter-1" {
		t.Errorf("LoadFilterID() = %q", got)
	}
}

func TestStore_PerUserIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SaveNextBatch(ctx, id.UserID("@a:example.org"), "token-a")
	s.SaveNextBatch(ctx, id.UserID("@b:example.org"), "token-b")

	if got, _ := s.LoadNextBatch(ctx, id.UserID("@a:example.org")); got != "token-a" {
		t.Errorf("User a token = %q", got)
	}
	if got, _ := s.LoadNextBatch(ctx, id.UserID("@b:example.org")); got != "token-b" {
		t.Errorf("User b token = %q", got)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()
	user := id.UserID("@warden:example.org")

	s, err := Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	s.SaveNextBatch(ctx, user, "s42")
	s.Close()

	s, err = Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Reopen error: %v", err)
	}
	defer s.Close()

	if got, _ := s.LoadNextBatch(ctx, user); got != "s42" {
		t.Errorf("Token lost across reopen, got %q", got)
	}
}
