package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ontrack-driver/internal/apperr"
)

func TestSQLite_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	if err := s.Set(ctx, "queue", []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "queue", []byte(`[{"op":"start"}]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.Get(ctx, "queue")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `[{"op":"start"}]` {
		t.Fatalf("got %q", got)
	}

	if err := s.Delete(ctx, "queue"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "queue"); !errors.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}
